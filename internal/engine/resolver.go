package engine

import (
	"context"
	"fmt"

	"github.com/stanstork/alert-api/internal/models"
	"github.com/stanstork/alert-api/internal/registry"
	"github.com/stanstork/alert-api/internal/repository"
)

// Recipient is one (user, backend) pair that should receive a message.
type Recipient struct {
	User      models.User
	BackendID string
	Backend   registry.Backend
}

// Resolver decides which (user, backend) pairs receive a message for an
// alert type, by overlaying explicit preference rows on the type's declared
// defaults.
type Resolver struct {
	registry *registry.Registry
	prefs    repository.PreferenceRepository
}

func NewResolver(reg *registry.Registry, prefs repository.PreferenceRepository) *Resolver {
	return &Resolver{registry: reg, prefs: prefs}
}

// Resolve computes the eligible pairs for alertTypeID among the candidate
// users. Anonymous users are opted out of everything and never appear in the
// result. An empty candidate set short-circuits without touching the store.
func (r *Resolver) Resolve(ctx context.Context, alertTypeID string, users []models.User) ([]Recipient, error) {
	alertType, ok := r.registry.AlertType(alertTypeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAlertType, alertTypeID)
	}

	candidates := make([]models.User, 0, len(users))
	for _, user := range users {
		if user.Anonymous() {
			continue
		}
		candidates = append(candidates, user)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	userIDs := make([]string, len(candidates))
	for i, user := range candidates {
		userIDs[i] = user.ID
	}

	rows, err := r.prefs.ListForType(ctx, alertTypeID, userIDs)
	if err != nil {
		return nil, err
	}

	explicit := make(map[string]map[string]bool, len(candidates))
	for _, row := range rows {
		if explicit[row.UserID] == nil {
			explicit[row.UserID] = make(map[string]bool)
		}
		explicit[row.UserID][row.Backend] = row.Preference
	}

	defaults := alertType.Default()
	backends := r.registry.Backends()

	var recipients []Recipient
	for _, user := range candidates {
		for _, entry := range backends {
			opted, found := false, false
			if byBackend, ok := explicit[user.ID]; ok {
				opted, found = byBackend[entry.ID]
			}
			if !found {
				opted, err = defaults.For(entry.ID)
				if err != nil {
					return nil, fmt.Errorf("alert type %s: %w", alertTypeID, err)
				}
			}
			if opted {
				recipients = append(recipients, Recipient{User: user, BackendID: entry.ID, Backend: entry.Backend})
			}
		}
	}
	return recipients, nil
}
