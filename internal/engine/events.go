package engine

import "github.com/stanstork/alert-api/internal/event"

// Event kinds raised by the engine itself.
const (
	// EventBroadcastSaved fires exactly once per broadcast, on its first
	// non-draft save. Payload: PayloadBroadcast, PayloadRecipients.
	EventBroadcastSaved event.Kind = "broadcast.saved"

	// EventAlertSent fires after a delivery attempt succeeds and is
	// committed. Payload: PayloadAlert.
	EventAlertSent event.Kind = "alert.sent"

	// EventPreferenceUpdated fires when an explicit preference row changes
	// value. Payload: PayloadUser, PayloadPreference.
	EventPreferenceUpdated event.Kind = "preference.updated"
)

// Well-known payload keys.
const (
	PayloadUser       = "user"
	PayloadBroadcast  = "broadcast"
	PayloadRecipients = "recipients"
	PayloadAlert      = "alert"
	PayloadPreference = "preference"
)
