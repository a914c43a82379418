package alerts

import (
	"github.com/stanstork/alert-api/internal/engine"
	"github.com/stanstork/alert-api/internal/event"
	"github.com/stanstork/alert-api/internal/registry"
)

// WelcomeAlert greets newly created accounts.
type WelcomeAlert struct{}

func (WelcomeAlert) Title() string { return "Welcome new users" }

func (WelcomeAlert) Description() string {
	return "When a new user signs up, send them a welcome message"
}

// New users get the welcome email but no push; they have not registered a
// device yet.
func (WelcomeAlert) Default() registry.Default {
	return registry.PerBackendDefault(map[string]bool{
		"email": true,
		"push":  false,
	})
}

func (WelcomeAlert) Binding() registry.Binding {
	return registry.Binding{Kind: EventUserCreated}
}

func (WelcomeAlert) ApplicableUsers(evt event.Event) interface{} {
	return evt.Payload[engine.PayloadUser]
}
