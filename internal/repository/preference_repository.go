package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stanstork/alert-api/internal/models"
)

type PreferenceRepository interface {
	// Upsert creates or updates the preference row for the
	// (user, alert type, backend) tuple; the unique constraint on the
	// tuple resolves concurrent writers.
	Upsert(ctx context.Context, pref models.AlertPreference) (models.AlertPreference, error)

	// ListForType loads all explicit rows for one alert type across the
	// given users in a single query.
	ListForType(ctx context.Context, alertType string, userIDs []string) ([]models.AlertPreference, error)

	ListForUser(ctx context.Context, userID string) ([]models.AlertPreference, error)

	// Unsubscribe sets matching preferences to false and deletes matching
	// not-yet-sent alerts in one transaction. Empty type/backend filters
	// match everything.
	Unsubscribe(ctx context.Context, userID string, alertTypes, backends []string) (UnsubscribeResult, error)
}

type UnsubscribeResult struct {
	PreferencesSet int64 `json:"preferences_set"`
	AlertsDeleted  int64 `json:"alerts_deleted"`
}

type preferenceRepository struct {
	db *sql.DB
}

func NewPreferenceRepository(db *sql.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

const preferenceColumns = `id, user_id, alert_type, backend, preference, updated_at`

func (r *preferenceRepository) Upsert(ctx context.Context, pref models.AlertPreference) (models.AlertPreference, error) {
	if pref.ID == "" {
		pref.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO alert.preferences (id, user_id, alert_type, backend, preference)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, alert_type, backend)
		DO UPDATE SET preference = EXCLUDED.preference, updated_at = NOW()
		RETURNING ` + preferenceColumns

	row := r.db.QueryRowContext(ctx, query, pref.ID, pref.UserID, pref.AlertType, pref.Backend, pref.Preference)
	saved, err := scanPreference(row)
	if err != nil {
		return models.AlertPreference{}, errors.Wrap(err, "upsert preference")
	}
	return saved, nil
}

func (r *preferenceRepository) ListForType(ctx context.Context, alertType string, userIDs []string) ([]models.AlertPreference, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	const query = `
		SELECT ` + preferenceColumns + `
		FROM alert.preferences
		WHERE alert_type = $1 AND user_id = ANY($2)
	`

	rows, err := r.db.QueryContext(ctx, query, alertType, pq.Array(userIDs))
	if err != nil {
		return nil, errors.Wrap(err, "list preferences for type")
	}
	defer rows.Close()

	return collectPreferences(rows)
}

func (r *preferenceRepository) ListForUser(ctx context.Context, userID string) ([]models.AlertPreference, error) {
	const query = `
		SELECT ` + preferenceColumns + `
		FROM alert.preferences
		WHERE user_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list preferences for user")
	}
	defer rows.Close()

	return collectPreferences(rows)
}

func (r *preferenceRepository) Unsubscribe(ctx context.Context, userID string, alertTypes, backends []string) (UnsubscribeResult, error) {
	var result UnsubscribeResult

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return result, errors.Wrap(err, "begin unsubscribe")
	}
	defer tx.Rollback()

	const updatePrefs = `
		UPDATE alert.preferences
		SET preference = FALSE, updated_at = NOW()
		WHERE user_id = $1
		  AND (cardinality($2::text[]) = 0 OR alert_type = ANY($2))
		  AND (cardinality($3::text[]) = 0 OR backend = ANY($3))
	`
	updated, err := tx.ExecContext(ctx, updatePrefs, userID, pq.Array(alertTypes), pq.Array(backends))
	if err != nil {
		return result, errors.Wrap(err, "disable preferences")
	}
	if result.PreferencesSet, err = updated.RowsAffected(); err != nil {
		return result, errors.Wrap(err, "disable preferences")
	}

	const deleteAlerts = `
		DELETE FROM alert.alerts
		WHERE user_id = $1
		  AND is_sent = FALSE
		  AND (cardinality($2::text[]) = 0 OR alert_type = ANY($2))
		  AND (cardinality($3::text[]) = 0 OR backend = ANY($3))
	`
	deleted, err := tx.ExecContext(ctx, deleteAlerts, userID, pq.Array(alertTypes), pq.Array(backends))
	if err != nil {
		return result, errors.Wrap(err, "purge unsent alerts")
	}
	if result.AlertsDeleted, err = deleted.RowsAffected(); err != nil {
		return result, errors.Wrap(err, "purge unsent alerts")
	}

	if err := tx.Commit(); err != nil {
		return result, errors.Wrap(err, "commit unsubscribe")
	}
	return result, nil
}

func collectPreferences(rows *sql.Rows) ([]models.AlertPreference, error) {
	var prefs []models.AlertPreference
	for rows.Next() {
		pref, err := scanPreference(rows)
		if err != nil {
			return nil, err
		}
		prefs = append(prefs, pref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return prefs, nil
}

func scanPreference(scanner interface {
	Scan(dest ...interface{}) error
}) (models.AlertPreference, error) {
	var pref models.AlertPreference
	if err := scanner.Scan(
		&pref.ID,
		&pref.UserID,
		&pref.AlertType,
		&pref.Backend,
		&pref.Preference,
		&pref.UpdatedAt,
	); err != nil {
		return models.AlertPreference{}, err
	}
	return pref, nil
}
