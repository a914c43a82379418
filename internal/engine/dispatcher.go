package engine

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/alert-api/internal/backends"
	"github.com/stanstork/alert-api/internal/event"
	"github.com/stanstork/alert-api/internal/lease"
	"github.com/stanstork/alert-api/internal/models"
	"github.com/stanstork/alert-api/internal/registry"
	"github.com/stanstork/alert-api/internal/repository"
)

// DispatchLeaseKey scopes the single-flight lease for dispatch runs.
const DispatchLeaseKey = "alert:dispatch"

// DefaultLeaseTTL is deliberately generous: it only matters when a run
// crashes without releasing, and it must outlive any plausible batch.
const DefaultLeaseTTL = 24 * time.Hour

// Dispatcher is the batch job that delivers due, unsent alerts. Run is safe
// to invoke concurrently from any number of processes; the lease turns away
// overlapping runs instead of blocking them.
type Dispatcher struct {
	registry    *registry.Registry
	alerts      repository.AlertRepository
	lock        lease.Lease
	bus         *event.Bus
	logger      zerolog.Logger
	leaseTTL    time.Duration
	maxAttempts int
	now         func() time.Time
}

type DispatcherOptions struct {
	// LeaseTTL bounds how long a crashed run can hold the dispatch lease.
	LeaseTTL time.Duration

	// MaxAttempts caps delivery attempts per alert; 0 retries forever.
	MaxAttempts int
}

func NewDispatcher(reg *registry.Registry, alerts repository.AlertRepository, lock lease.Lease, bus *event.Bus, logger zerolog.Logger, opts DispatcherOptions) *Dispatcher {
	ttl := opts.LeaseTTL
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &Dispatcher{
		registry:    reg,
		alerts:      alerts,
		lock:        lock,
		bus:         bus,
		logger:      logger.With().Str("component", "dispatcher").Logger(),
		leaseTTL:    ttl,
		maxAttempts: opts.MaxAttempts,
		now:         time.Now,
	}
}

// Run attempts one dispatch batch. It returns (false, nil) when another run
// holds the lease — that is normal, not a failure. Each alert's attempt is
// committed before the next alert is touched, so a mid-run crash leaves
// completed alerts correctly marked.
func (d *Dispatcher) Run(ctx context.Context) (bool, error) {
	acquired, err := d.lock.Acquire(ctx, DispatchLeaseKey, d.leaseTTL)
	if err != nil {
		return false, errors.Wrap(err, "acquire dispatch lease")
	}
	if !acquired {
		d.logger.Debug().Msg("dispatch already in flight, skipping run")
		return false, nil
	}
	defer func() {
		if err := d.lock.Release(ctx, DispatchLeaseKey); err != nil {
			d.logger.Warn().Err(err).Msg("failed to release dispatch lease")
		}
	}()

	due, err := d.alerts.ListPending(ctx, d.now(), d.maxAttempts)
	if err != nil {
		return true, errors.Wrap(err, "select pending alerts")
	}
	if len(due) == 0 {
		return true, nil
	}

	d.logger.Info().Int("count", len(due)).Msg("dispatching pending alerts")

	for _, alert := range due {
		sent := d.deliver(ctx, alert)

		updated, err := d.alerts.MarkAttempt(ctx, alert.ID, sent, d.now())
		if err != nil {
			return true, errors.Wrapf(err, "mark attempt for alert %s", alert.ID)
		}
		if !updated {
			// Another run settled it after our select; leave it alone.
			d.logger.Warn().Str("alert_id", alert.ID).Msg("alert already settled, skipping")
			continue
		}

		if sent && d.bus != nil {
			if err := d.bus.Publish(ctx, event.Event{
				Kind:    EventAlertSent,
				Source:  alert.AlertType,
				Payload: map[string]interface{}{PayloadAlert: alert},
			}); err != nil {
				d.logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("alert.sent handler failed")
			}
		}
	}
	return true, nil
}

// deliver performs one send attempt and reports success. Delivery failures
// are recovered locally — the alert is marked failed and picked up on a
// later run — and never propagate out of the dispatch loop.
func (d *Dispatcher) deliver(ctx context.Context, alert models.Alert) bool {
	backend, ok := d.registry.Backend(alert.Backend)
	if !ok {
		d.logger.Error().
			Str("alert_id", alert.ID).
			Str("backend", alert.Backend).
			Msg("alert addresses an unregistered backend")
		return false
	}

	err := backend.Send(ctx, alert)
	if err == nil {
		return true
	}

	var delivery *backends.DeliveryError
	if errors.As(err, &delivery) {
		d.logger.Info().
			Str("alert_id", alert.ID).
			Str("backend", alert.Backend).
			Str("reason", delivery.Reason).
			Msg("delivery failed, will retry")
	} else {
		d.logger.Error().
			Err(err).
			Str("alert_id", alert.ID).
			Str("backend", alert.Backend).
			Msg("unexpected send error, will retry")
	}
	return false
}
