package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stanstork/alert-api/internal/event"
	"github.com/stanstork/alert-api/internal/models"
	"github.com/stanstork/alert-api/internal/registry"
	"github.com/stanstork/alert-api/internal/repository"
)

// Trigger turns domain events into pending alert rows. Bind subscribes every
// registered alert type to its declared event; a firing resolves recipients,
// renders the message per pair and inserts one alert per pair.
type Trigger struct {
	registry     *registry.Registry
	resolver     *Resolver
	materializer *Materializer
	alerts       repository.AlertRepository
	site         string
	logger       zerolog.Logger
	now          func() time.Time
}

func NewTrigger(reg *registry.Registry, resolver *Resolver, materializer *Materializer, alerts repository.AlertRepository, site string, logger zerolog.Logger) *Trigger {
	return &Trigger{
		registry:     reg,
		resolver:     resolver,
		materializer: materializer,
		alerts:       alerts,
		site:         site,
		logger:       logger.With().Str("component", "trigger").Logger(),
		now:          time.Now,
	}
}

// Bind subscribes all registered alert types on the bus. Call once at
// startup, after registration is complete.
func (t *Trigger) Bind(bus *event.Bus) {
	for _, entry := range t.registry.AlertTypes() {
		entry := entry
		binding := entry.Type.Binding()
		bus.Subscribe(binding.Kind, binding.Source, func(ctx context.Context, evt event.Event) error {
			return t.Fire(ctx, entry.ID, evt)
		})
	}
}

// Fire runs one alert type against one event. Exposed for direct invocation
// in tests and admin tooling; normal flow goes through the bus.
func (t *Trigger) Fire(ctx context.Context, alertTypeID string, evt event.Event) error {
	alertType, ok := t.registry.AlertType(alertTypeID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAlertType, alertTypeID)
	}

	if filter, ok := alertType.(registry.BeforeFilter); ok && !filter.Before(evt) {
		return nil
	}

	users, err := normalizeUsers(alertType.ApplicableUsers(evt))
	if err != nil {
		return fmt.Errorf("alert type %s: %w", alertTypeID, err)
	}

	recipients, err := t.resolver.Resolve(ctx, alertTypeID, users)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	when := t.now()
	if timer, ok := alertType.(registry.SendTimer); ok {
		when = timer.SendTime(evt)
	}

	for _, recipient := range recipients {
		data := t.templateData(alertType, recipient, evt)
		title, body, err := t.materializer.Render(alertTypeID, recipient.BackendID, data)
		if err != nil {
			return err
		}

		alert := models.Alert{
			UserID:    recipient.User.ID,
			Backend:   recipient.BackendID,
			AlertType: alertTypeID,
			Title:     title,
			Body:      body,
			Site:      t.site,
			When:      when,
		}
		created, err := t.alerts.Create(ctx, alert)
		if err != nil {
			return err
		}

		t.logger.Debug().
			Str("alert_id", created.ID).
			Str("alert_type", alertTypeID).
			Str("backend", recipient.BackendID).
			Str("user_id", recipient.User.ID).
			Time("when", when).
			Msg("alert queued")
	}
	return nil
}

// templateData merges the event payload with the addressed backend, user,
// site and alert type.
func (t *Trigger) templateData(alertType registry.AlertType, recipient Recipient, evt event.Event) map[string]interface{} {
	data := make(map[string]interface{}, len(evt.Payload)+4)
	if provider, ok := alertType.(registry.ContextProvider); ok {
		for k, v := range provider.TemplateContext(evt) {
			data[k] = v
		}
	} else {
		for k, v := range evt.Payload {
			data[k] = v
		}
	}
	data["Backend"] = recipient.BackendID
	data["User"] = recipient.User
	data["Site"] = t.site
	data["Alert"] = alertType
	return data
}

// normalizeUsers accepts a single user or a slice of users, per the
// alert-type contract, and rejects anything else.
func normalizeUsers(value interface{}) ([]models.User, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case models.User:
		return []models.User{v}, nil
	case *models.User:
		if v == nil {
			return nil, nil
		}
		return []models.User{*v}, nil
	case []models.User:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidApplicableUsers, value)
	}
}
