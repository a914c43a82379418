package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stanstork/alert-api/internal/models"
)

type AlertRepository interface {
	Create(ctx context.Context, alert models.Alert) (models.Alert, error)

	// ListPending returns alerts due at now, oldest scheduled first. When
	// maxAttempts > 0, alerts that already reached the attempt cap are
	// excluded; 0 means retry forever.
	ListPending(ctx context.Context, now time.Time, maxAttempts int) ([]models.Alert, error)

	// MarkAttempt settles one send attempt: stamps last_attempt, bumps the
	// attempt counter and sets is_sent/failed. The update is conditional on
	// the alert still being unsent; it reports whether a row changed, so a
	// lease-expiry race can never mark the same alert sent twice.
	MarkAttempt(ctx context.Context, alertID string, sent bool, at time.Time) (bool, error)

	// DeleteUnsent removes not-yet-sent alerts for a user, optionally
	// narrowed to specific alert types and backends. Sent alerts are
	// history and are never deleted.
	DeleteUnsent(ctx context.Context, userID string, alertTypes, backends []string) (int64, error)

	ListForUser(ctx context.Context, userID string, limit int) ([]models.Alert, error)
}

type alertRepository struct {
	db *sql.DB
}

func NewAlertRepository(db *sql.DB) AlertRepository {
	return &alertRepository{db: db}
}

const alertColumns = `id, user_id, backend, alert_type, title, body, site, "when", created, last_attempt, is_sent, failed, attempts`

func (r *alertRepository) Create(ctx context.Context, alert models.Alert) (models.Alert, error) {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.When.IsZero() {
		alert.When = time.Now()
	}

	const query = `
		INSERT INTO alert.alerts (id, user_id, backend, alert_type, title, body, site, "when")
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + alertColumns

	row := r.db.QueryRowContext(ctx, query,
		alert.ID,
		alert.UserID,
		alert.Backend,
		alert.AlertType,
		alert.Title,
		alert.Body,
		alert.Site,
		alert.When,
	)
	created, err := scanAlert(row)
	if err != nil {
		return models.Alert{}, errors.Wrap(err, "create alert")
	}
	return created, nil
}

func (r *alertRepository) ListPending(ctx context.Context, now time.Time, maxAttempts int) ([]models.Alert, error) {
	const query = `
		SELECT ` + alertColumns + `
		FROM alert.alerts
		WHERE "when" <= $1
		  AND is_sent = FALSE
		  AND ($2 = 0 OR attempts < $2)
		ORDER BY "when", created
	`

	rows, err := r.db.QueryContext(ctx, query, now, maxAttempts)
	if err != nil {
		return nil, errors.Wrap(err, "list pending alerts")
	}
	defer rows.Close()

	return collectAlerts(rows)
}

func (r *alertRepository) MarkAttempt(ctx context.Context, alertID string, sent bool, at time.Time) (bool, error) {
	const query = `
		UPDATE alert.alerts
		SET is_sent = $2,
		    failed = NOT $2,
		    last_attempt = $3,
		    attempts = attempts + 1
		WHERE id = $1 AND is_sent = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, alertID, sent, at)
	if err != nil {
		return false, errors.Wrap(err, "mark alert attempt")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "mark alert attempt")
	}
	return affected > 0, nil
}

func (r *alertRepository) DeleteUnsent(ctx context.Context, userID string, alertTypes, backends []string) (int64, error) {
	const query = `
		DELETE FROM alert.alerts
		WHERE user_id = $1
		  AND is_sent = FALSE
		  AND (cardinality($2::text[]) = 0 OR alert_type = ANY($2))
		  AND (cardinality($3::text[]) = 0 OR backend = ANY($3))
	`

	result, err := r.db.ExecContext(ctx, query, userID, pq.Array(alertTypes), pq.Array(backends))
	if err != nil {
		return 0, errors.Wrap(err, "delete unsent alerts")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "delete unsent alerts")
	}
	return affected, nil
}

func (r *alertRepository) ListForUser(ctx context.Context, userID string, limit int) ([]models.Alert, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	const query = `
		SELECT ` + alertColumns + `
		FROM alert.alerts
		WHERE user_id = $1
		ORDER BY created DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list alerts for user")
	}
	defer rows.Close()

	return collectAlerts(rows)
}

func collectAlerts(rows *sql.Rows) ([]models.Alert, error) {
	var alerts []models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return alerts, nil
}

func scanAlert(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Alert, error) {
	var (
		alert       models.Alert
		lastAttempt sql.NullTime
	)

	if err := scanner.Scan(
		&alert.ID,
		&alert.UserID,
		&alert.Backend,
		&alert.AlertType,
		&alert.Title,
		&alert.Body,
		&alert.Site,
		&alert.When,
		&alert.Created,
		&lastAttempt,
		&alert.IsSent,
		&alert.Failed,
		&alert.Attempts,
	); err != nil {
		return models.Alert{}, err
	}

	if lastAttempt.Valid {
		t := lastAttempt.Time
		alert.LastAttempt = &t
	}
	return alert, nil
}
