// Package alerts defines the alert types this deployment ships with.
// Registration happens explicitly at startup so registration order and
// failures are visible; a duplicate identifier aborts boot.
package alerts

import (
	"github.com/stanstork/alert-api/internal/event"
	"github.com/stanstork/alert-api/internal/registry"
)

// EventUserCreated fires when a new user account is created.
// Payload: "user" (models.User).
const EventUserCreated event.Kind = "user.created"

// Identifiers of the built-in alert types.
const (
	TypeBroadcast = "admin_broadcast"
	TypeWelcome   = "welcome"
)

// Register installs the built-in alert types.
func Register(reg *registry.Registry) error {
	if err := reg.RegisterAlertType(TypeBroadcast, &BroadcastAlert{}); err != nil {
		return err
	}
	if err := reg.RegisterAlertType(TypeWelcome, &WelcomeAlert{}); err != nil {
		return err
	}
	return nil
}
