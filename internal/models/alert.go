package models

import "time"

// Alert is a concrete, addressed, rendered unit of delivery work. Rows are
// created at fan-out time and mutated only by the dispatch job's send
// attempts.
type Alert struct {
	ID        string `json:"id" db:"id"`
	UserID    string `json:"user_id" db:"user_id"`
	Backend   string `json:"backend" db:"backend"`
	AlertType string `json:"alert_type" db:"alert_type"`

	Title string `json:"title" db:"title"`
	Body  string `json:"body" db:"body"`
	Site  string `json:"site" db:"site"`

	When        time.Time  `json:"when" db:"when"`
	Created     time.Time  `json:"created" db:"created"`
	LastAttempt *time.Time `json:"last_attempt,omitempty" db:"last_attempt"`

	IsSent   bool `json:"is_sent" db:"is_sent"`
	Failed   bool `json:"failed" db:"failed"`
	Attempts int  `json:"attempts" db:"attempts"`
}

// Due reports whether the alert is eligible for dispatch at the given time.
func (a Alert) Due(now time.Time) bool {
	return !a.IsSent && !a.When.After(now)
}

// PrefKey identifies an (alert type, backend) pair in a preference matrix.
type PrefKey struct {
	AlertType string `json:"alert_type"`
	Backend   string `json:"backend"`
}

// AlertPreference is a user's explicit opt-in or opt-out for one
// (alert type, backend) pair. Absence of a row means the alert type's
// declared default applies.
type AlertPreference struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	AlertType  string    `json:"alert_type" db:"alert_type"`
	Backend    string    `json:"backend" db:"backend"`
	Preference bool      `json:"preference" db:"preference"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

func (p AlertPreference) Key() PrefKey {
	return PrefKey{AlertType: p.AlertType, Backend: p.Backend}
}
