package models

import "time"

// AdminAlert is an operator-authored broadcast. While Draft is true the
// record may be edited freely; the first non-draft save marks it sent and
// fans it out to the recipient group exactly once. Once Sent is true the
// title, body, recipients and schedule are immutable.
type AdminAlert struct {
	ID    string `json:"id" db:"id"`
	Title string `json:"title" db:"title"`
	Body  string `json:"body" db:"body"`

	// Recipients names the user group that should receive this message.
	Recipients string `json:"recipients" db:"recipients"`

	SendAt time.Time `json:"send_at" db:"send_at"`
	Draft  bool      `json:"draft" db:"draft"`
	Sent   bool      `json:"sent" db:"sent"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
