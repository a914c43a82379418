package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stanstork/alert-api/internal/models"
)

// ErrBroadcastSent rejects edits to a broadcast that already fanned out.
var ErrBroadcastSent = errors.New("broadcast has been sent and is immutable")

type BroadcastRepository interface {
	Create(ctx context.Context, broadcast models.AdminAlert) (models.AdminAlert, error)

	// Update persists title/body/recipients/schedule changes. It fails with
	// ErrBroadcastSent once the broadcast has been marked sent.
	Update(ctx context.Context, broadcast models.AdminAlert) (models.AdminAlert, error)

	Get(ctx context.Context, id string) (models.AdminAlert, error)
	List(ctx context.Context, limit int) ([]models.AdminAlert, error)

	// MarkSent flips sent to true exactly once; it reports whether this
	// call performed the transition. The conditional update is what makes
	// re-saving an already-sent broadcast a fan-out no-op.
	MarkSent(ctx context.Context, id string) (bool, error)
}

type broadcastRepository struct {
	db *sql.DB
}

func NewBroadcastRepository(db *sql.DB) BroadcastRepository {
	return &broadcastRepository{db: db}
}

const broadcastColumns = `id, title, body, recipients, send_at, draft, sent, created_at, updated_at`

func (r *broadcastRepository) Create(ctx context.Context, broadcast models.AdminAlert) (models.AdminAlert, error) {
	if broadcast.ID == "" {
		broadcast.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO alert.admin_alerts (id, title, body, recipients, send_at, draft)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + broadcastColumns

	row := r.db.QueryRowContext(ctx, query,
		broadcast.ID,
		broadcast.Title,
		broadcast.Body,
		broadcast.Recipients,
		broadcast.SendAt,
		broadcast.Draft,
	)
	created, err := scanBroadcast(row)
	if err != nil {
		return models.AdminAlert{}, errors.Wrap(err, "create broadcast")
	}
	return created, nil
}

func (r *broadcastRepository) Update(ctx context.Context, broadcast models.AdminAlert) (models.AdminAlert, error) {
	const query = `
		UPDATE alert.admin_alerts
		SET title = $2, body = $3, recipients = $4, send_at = $5, draft = $6, updated_at = NOW()
		WHERE id = $1 AND sent = FALSE
		RETURNING ` + broadcastColumns

	row := r.db.QueryRowContext(ctx, query,
		broadcast.ID,
		broadcast.Title,
		broadcast.Body,
		broadcast.Recipients,
		broadcast.SendAt,
		broadcast.Draft,
	)
	updated, err := scanBroadcast(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Either missing or already sent; distinguish for the caller.
		if _, getErr := r.Get(ctx, broadcast.ID); getErr == nil {
			return models.AdminAlert{}, ErrBroadcastSent
		}
		return models.AdminAlert{}, err
	}
	if err != nil {
		return models.AdminAlert{}, errors.Wrap(err, "update broadcast")
	}
	return updated, nil
}

func (r *broadcastRepository) Get(ctx context.Context, id string) (models.AdminAlert, error) {
	const query = `
		SELECT ` + broadcastColumns + `
		FROM alert.admin_alerts
		WHERE id = $1
	`
	return scanBroadcast(r.db.QueryRowContext(ctx, query, id))
}

func (r *broadcastRepository) List(ctx context.Context, limit int) ([]models.AdminAlert, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	const query = `
		SELECT ` + broadcastColumns + `
		FROM alert.admin_alerts
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list broadcasts")
	}
	defer rows.Close()

	var broadcasts []models.AdminAlert
	for rows.Next() {
		broadcast, err := scanBroadcast(rows)
		if err != nil {
			return nil, err
		}
		broadcasts = append(broadcasts, broadcast)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return broadcasts, nil
}

func (r *broadcastRepository) MarkSent(ctx context.Context, id string) (bool, error) {
	const query = `
		UPDATE alert.admin_alerts
		SET draft = FALSE, sent = TRUE, updated_at = NOW()
		WHERE id = $1 AND sent = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, errors.Wrap(err, "mark broadcast sent")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "mark broadcast sent")
	}
	return affected > 0, nil
}

func scanBroadcast(scanner interface {
	Scan(dest ...interface{}) error
}) (models.AdminAlert, error) {
	var broadcast models.AdminAlert
	if err := scanner.Scan(
		&broadcast.ID,
		&broadcast.Title,
		&broadcast.Body,
		&broadcast.Recipients,
		&broadcast.SendAt,
		&broadcast.Draft,
		&broadcast.Sent,
		&broadcast.CreatedAt,
		&broadcast.UpdatedAt,
	); err != nil {
		return models.AdminAlert{}, err
	}
	return broadcast, nil
}
