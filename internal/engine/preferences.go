package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stanstork/alert-api/internal/event"
	"github.com/stanstork/alert-api/internal/models"
	"github.com/stanstork/alert-api/internal/registry"
	"github.com/stanstork/alert-api/internal/repository"
)

// Preferences exposes the opt-in/opt-out surface consumed by user-facing
// settings UIs and unsubscribe flows.
type Preferences struct {
	registry *registry.Registry
	repo     repository.PreferenceRepository
	bus      *event.Bus
	logger   zerolog.Logger
}

func NewPreferences(reg *registry.Registry, repo repository.PreferenceRepository, bus *event.Bus, logger zerolog.Logger) *Preferences {
	return &Preferences{
		registry: reg,
		repo:     repo,
		bus:      bus,
		logger:   logger.With().Str("component", "preferences").Logger(),
	}
}

// UserPreferences returns the full (alert type × backend) matrix for a user,
// filling gaps with each type's declared default. Anonymous users get an
// all-false matrix without a store query.
func (p *Preferences) UserPreferences(ctx context.Context, user models.User) (map[models.PrefKey]bool, error) {
	matrix := make(map[models.PrefKey]bool)

	if user.Anonymous() {
		for _, t := range p.registry.AlertTypes() {
			for _, b := range p.registry.Backends() {
				matrix[models.PrefKey{AlertType: t.ID, Backend: b.ID}] = false
			}
		}
		return matrix, nil
	}

	rows, err := p.repo.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		matrix[row.Key()] = row.Preference
	}

	for _, t := range p.registry.AlertTypes() {
		defaults := t.Type.Default()
		for _, b := range p.registry.Backends() {
			key := models.PrefKey{AlertType: t.ID, Backend: b.ID}
			if _, ok := matrix[key]; ok {
				continue
			}
			value, err := defaults.For(b.ID)
			if err != nil {
				return nil, fmt.Errorf("alert type %s: %w", t.ID, err)
			}
			matrix[key] = value
		}
	}
	return matrix, nil
}

// Set upserts one explicit preference and publishes preference.updated when
// the stored value changed.
func (p *Preferences) Set(ctx context.Context, user models.User, alertType, backend string, value bool) (models.AlertPreference, error) {
	if user.Anonymous() {
		return models.AlertPreference{}, fmt.Errorf("anonymous users have no preferences")
	}
	if _, ok := p.registry.AlertType(alertType); !ok {
		return models.AlertPreference{}, fmt.Errorf("%w: %s", ErrUnknownAlertType, alertType)
	}
	if _, ok := p.registry.Backend(backend); !ok {
		return models.AlertPreference{}, fmt.Errorf("%w: %s", ErrUnknownBackend, backend)
	}

	saved, err := p.repo.Upsert(ctx, models.AlertPreference{
		UserID:     user.ID,
		AlertType:  alertType,
		Backend:    backend,
		Preference: value,
	})
	if err != nil {
		return models.AlertPreference{}, err
	}

	if err := p.bus.Publish(ctx, event.Event{
		Kind:   EventPreferenceUpdated,
		Source: alertType,
		Payload: map[string]interface{}{
			PayloadUser:       user,
			PayloadPreference: saved,
		},
	}); err != nil {
		p.logger.Warn().Err(err).Str("alert_type", alertType).Msg("preference.updated handler failed")
	}
	return saved, nil
}

// SetMany applies a batch of explicit preferences, e.g. a settings form save.
func (p *Preferences) SetMany(ctx context.Context, user models.User, values map[models.PrefKey]bool) error {
	for key, value := range values {
		if _, err := p.Set(ctx, user, key.AlertType, key.Backend, value); err != nil {
			return err
		}
	}
	return nil
}

// Unsubscribe turns off the matching preferences and deletes the user's
// matching not-yet-sent alerts. Nil filters match all registered types and
// backends.
func (p *Preferences) Unsubscribe(ctx context.Context, user models.User, alertTypes, backendIDs []string) (repository.UnsubscribeResult, error) {
	if user.Anonymous() {
		return repository.UnsubscribeResult{}, fmt.Errorf("anonymous users have no preferences")
	}
	for _, id := range alertTypes {
		if _, ok := p.registry.AlertType(id); !ok {
			return repository.UnsubscribeResult{}, fmt.Errorf("%w: %s", ErrUnknownAlertType, id)
		}
	}
	for _, id := range backendIDs {
		if _, ok := p.registry.Backend(id); !ok {
			return repository.UnsubscribeResult{}, fmt.Errorf("%w: %s", ErrUnknownBackend, id)
		}
	}

	// Ensure explicit rows exist for every matched pair so the cascade's
	// preference=false sticks even where only the default applied before.
	types := alertTypes
	if len(types) == 0 {
		for _, t := range p.registry.AlertTypes() {
			types = append(types, t.ID)
		}
	}
	targets := backendIDs
	if len(targets) == 0 {
		for _, b := range p.registry.Backends() {
			targets = append(targets, b.ID)
		}
	}
	for _, t := range types {
		for _, b := range targets {
			if _, err := p.repo.Upsert(ctx, models.AlertPreference{
				UserID:     user.ID,
				AlertType:  t,
				Backend:    b,
				Preference: false,
			}); err != nil {
				return repository.UnsubscribeResult{}, err
			}
		}
	}

	result, err := p.repo.Unsubscribe(ctx, user.ID, alertTypes, backendIDs)
	if err != nil {
		return repository.UnsubscribeResult{}, err
	}

	p.logger.Info().
		Str("user_id", user.ID).
		Strs("alert_types", alertTypes).
		Strs("backends", backendIDs).
		Int64("alerts_deleted", result.AlertsDeleted).
		Msg("unsubscribed")
	return result, nil
}
