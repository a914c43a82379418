package engine

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidApplicableUsers reports an alert type whose ApplicableUsers hook
// returned something other than a user or a collection of users. This is a
// programming error in the alert-type definition and is surfaced to the
// triggering code path, never swallowed.
var ErrInvalidApplicableUsers = errors.New("alert type returned an invalid applicable-users value")

// ErrUnknownAlertType and ErrUnknownBackend report lookups of identifiers
// that were never registered.
var (
	ErrUnknownAlertType = errors.New("unknown alert type")
	ErrUnknownBackend   = errors.New("unknown backend")
)

// TemplateNotFoundError reports that neither the backend-specific nor the
// type-level template resolved for a message part.
type TemplateNotFoundError struct {
	AlertType string
	Backend   string
	Part      string
	Searched  []string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("no %s template for alert type %q via backend %q (searched %s)",
		e.Part, e.AlertType, e.Backend, strings.Join(e.Searched, ", "))
}
