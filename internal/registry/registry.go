// Package registry holds the process-wide catalogs of alert types and
// delivery backends. Both are populated once during startup and read-only
// afterwards; a duplicate identifier at registration time is a programming
// error and aborts initialization.
package registry

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/stanstork/alert-api/internal/event"
	"github.com/stanstork/alert-api/internal/models"
)

// Filetype selects the template extension for an alert type and, for the
// email backend, whether a plain-text alternative is derived from markup.
type Filetype string

const (
	FiletypeText   Filetype = "text"
	FiletypeMarkup Filetype = "markup"
)

// Binding declares which event an alert type reacts to. An empty Source
// matches events from any emitter.
type Binding struct {
	Kind   event.Kind
	Source string
}

// AlertType describes one class of notification-worthy event.
//
// ApplicableUsers returns the candidate recipients for a firing: either a
// single models.User (normalized to a one-element set by the trigger) or a
// []models.User. Any other value is rejected as a misconfigured alert type.
type AlertType interface {
	Title() string
	Default() Default
	Binding() Binding
	ApplicableUsers(evt event.Event) interface{}
}

// Optional alert-type hooks, looked up by the engine at fire time.
type (
	// Describer supplies the human description shown in preference UIs.
	Describer interface {
		Description() string
	}

	// BeforeFilter suppresses a firing when Before returns false
	// (e.g. update-not-create).
	BeforeFilter interface {
		Before(evt event.Event) bool
	}

	// SendTimer schedules delivery in the future; the default is now.
	SendTimer interface {
		SendTime(evt event.Event) time.Time
	}

	// ContextProvider replaces the default template context (the event
	// payload) with a custom one.
	ContextProvider interface {
		TemplateContext(evt event.Event) map[string]interface{}
	}

	// Typed declares a markup template; untyped alert types render text.
	Typed interface {
		Filetype() Filetype
	}
)

// Backend is a delivery transport capable of sending a materialized alert.
// Send returns nil on success or a *DeliveryError (or other error) when the
// alert should be retried on a later dispatch run.
type Backend interface {
	Title() string
	Send(ctx context.Context, alert models.Alert) error
}

// DuplicateError reports a second registration under an already-taken
// identifier. It is fatal at startup, never recoverable at runtime.
type DuplicateError struct {
	Kind string // "alert type" or "backend"
	ID   string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s identifier %q is already registered", e.Kind, e.ID)
}

// AlertTypeEntry pairs a registered alert type with its identifier.
type AlertTypeEntry struct {
	ID   string
	Type AlertType
}

// BackendEntry pairs a registered backend with its identifier.
type BackendEntry struct {
	ID      string
	Backend Backend
}

// Registry is an append-only pair of identifier-keyed maps. It is not safe
// for concurrent registration; populate it single-threaded at startup and
// share it read-only.
type Registry struct {
	types        map[string]AlertType
	typeOrder    []string
	backends     map[string]Backend
	backendOrder []string
}

func New() *Registry {
	return &Registry{
		types:    make(map[string]AlertType),
		backends: make(map[string]Backend),
	}
}

// RegisterAlertType adds t under id. An empty id derives the identifier from
// t's concrete type name, so a new type that embeds an existing one still
// registers under its own name rather than clashing with its parent.
func (r *Registry) RegisterAlertType(id string, t AlertType) error {
	if id == "" {
		id = typeName(t)
	}
	if _, exists := r.types[id]; exists {
		return &DuplicateError{Kind: "alert type", ID: id}
	}
	r.types[id] = t
	r.typeOrder = append(r.typeOrder, id)
	return nil
}

// RegisterBackend adds b under id, deriving the identifier from b's concrete
// type name when id is empty. Same uniqueness rules as alert types.
func (r *Registry) RegisterBackend(id string, b Backend) error {
	if id == "" {
		id = typeName(b)
	}
	if _, exists := r.backends[id]; exists {
		return &DuplicateError{Kind: "backend", ID: id}
	}
	r.backends[id] = b
	r.backendOrder = append(r.backendOrder, id)
	return nil
}

func (r *Registry) AlertType(id string) (AlertType, bool) {
	t, ok := r.types[id]
	return t, ok
}

func (r *Registry) Backend(id string) (Backend, bool) {
	b, ok := r.backends[id]
	return b, ok
}

// AlertTypes returns all registered alert types in registration order.
func (r *Registry) AlertTypes() []AlertTypeEntry {
	entries := make([]AlertTypeEntry, 0, len(r.typeOrder))
	for _, id := range r.typeOrder {
		entries = append(entries, AlertTypeEntry{ID: id, Type: r.types[id]})
	}
	return entries
}

// Backends returns all registered backends in registration order.
func (r *Registry) Backends() []BackendEntry {
	entries := make([]BackendEntry, 0, len(r.backendOrder))
	for _, id := range r.backendOrder {
		entries = append(entries, BackendEntry{ID: id, Backend: r.backends[id]})
	}
	return entries
}

// TypeFiletype resolves the declared template filetype for an alert type,
// falling back to text.
func TypeFiletype(t AlertType) Filetype {
	if typed, ok := t.(Typed); ok {
		return typed.Filetype()
	}
	return FiletypeText
}

func typeName(v interface{}) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
