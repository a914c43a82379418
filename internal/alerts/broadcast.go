package alerts

import (
	"time"

	"github.com/stanstork/alert-api/internal/engine"
	"github.com/stanstork/alert-api/internal/event"
	"github.com/stanstork/alert-api/internal/models"
	"github.com/stanstork/alert-api/internal/registry"
)

// BroadcastAlert fans out operator-authored broadcasts. The broadcast
// service expands the recipient group before publishing, so the event
// payload already carries the user set.
type BroadcastAlert struct{}

func (BroadcastAlert) Title() string { return "Site announcement" }

func (BroadcastAlert) Description() string {
	return "Messages sent directly to the site's users by its operators"
}

// Every user receives announcements on every backend unless they opted out.
func (BroadcastAlert) Default() registry.Default {
	return registry.UniformDefault(true)
}

func (BroadcastAlert) Binding() registry.Binding {
	return registry.Binding{Kind: engine.EventBroadcastSaved}
}

func (BroadcastAlert) ApplicableUsers(evt event.Event) interface{} {
	return evt.Payload[engine.PayloadRecipients]
}

// SendTime honors the broadcast's schedule so operators can queue
// announcements for the future.
func (BroadcastAlert) SendTime(evt event.Event) time.Time {
	if broadcast, ok := evt.Payload[engine.PayloadBroadcast].(models.AdminAlert); ok && !broadcast.SendAt.IsZero() {
		return broadcast.SendAt
	}
	return time.Now()
}

func (BroadcastAlert) Filetype() registry.Filetype { return registry.FiletypeMarkup }

func (BroadcastAlert) TemplateContext(evt event.Event) map[string]interface{} {
	data := make(map[string]interface{}, 1)
	if broadcast, ok := evt.Payload[engine.PayloadBroadcast].(models.AdminAlert); ok {
		data["Broadcast"] = broadcast
	}
	return data
}
