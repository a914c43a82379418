package engine

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/alert-api/internal/event"
	"github.com/stanstork/alert-api/internal/models"
	"github.com/stanstork/alert-api/internal/repository"
)

// Broadcasts manages operator-authored messages. Saving with draft=false
// fans the broadcast out to its recipient group exactly once; further saves
// of a sent broadcast are rejected as edits and never re-trigger fan-out.
type Broadcasts struct {
	repo   repository.BroadcastRepository
	users  repository.UserRepository
	bus    *event.Bus
	logger zerolog.Logger
}

func NewBroadcasts(repo repository.BroadcastRepository, users repository.UserRepository, bus *event.Bus, logger zerolog.Logger) *Broadcasts {
	return &Broadcasts{
		repo:   repo,
		users:  users,
		bus:    bus,
		logger: logger.With().Str("component", "broadcasts").Logger(),
	}
}

// Save persists the broadcast and, on its first non-draft save, publishes
// the fan-out event with the recipient group expanded into users. The
// conditional sent-flag transition in the store is the idempotency guard: a
// re-save of an already-sent broadcast publishes nothing.
func (b *Broadcasts) Save(ctx context.Context, broadcast models.AdminAlert) (models.AdminAlert, error) {
	if strings.TrimSpace(broadcast.Title) == "" {
		return models.AdminAlert{}, errors.New("broadcast title is required")
	}
	if broadcast.SendAt.IsZero() {
		broadcast.SendAt = time.Now()
	}

	var (
		saved models.AdminAlert
		err   error
	)
	if broadcast.ID == "" {
		saved, err = b.repo.Create(ctx, broadcast)
	} else {
		saved, err = b.repo.Update(ctx, broadcast)
	}
	if err != nil {
		return models.AdminAlert{}, err
	}

	if saved.Draft {
		return saved, nil
	}

	transitioned, err := b.repo.MarkSent(ctx, saved.ID)
	if err != nil {
		return models.AdminAlert{}, err
	}
	saved.Draft = false
	saved.Sent = true
	if !transitioned {
		return saved, nil
	}

	recipients, err := b.users.ListByGroup(ctx, saved.Recipients)
	if err != nil {
		return models.AdminAlert{}, errors.Wrap(err, "expand recipient group")
	}

	b.logger.Info().
		Str("broadcast_id", saved.ID).
		Str("group", saved.Recipients).
		Int("recipients", len(recipients)).
		Msg("broadcast fan-out")

	if err := b.bus.Publish(ctx, event.Event{
		Kind: EventBroadcastSaved,
		Payload: map[string]interface{}{
			PayloadBroadcast:  saved,
			PayloadRecipients: recipients,
		},
	}); err != nil {
		return models.AdminAlert{}, err
	}
	return saved, nil
}

func (b *Broadcasts) Get(ctx context.Context, id string) (models.AdminAlert, error) {
	return b.repo.Get(ctx, id)
}

func (b *Broadcasts) List(ctx context.Context, limit int) ([]models.AdminAlert, error) {
	return b.repo.List(ctx, limit)
}
