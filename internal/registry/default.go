package registry

import (
	"errors"
	"fmt"
)

// ErrNoDefault reports a per-backend default map that lacks an entry for a
// registered backend. It indicates a misconfigured alert type.
var ErrNoDefault = errors.New("no default preference declared for backend")

// Default is an alert type's declared opt-in policy for users without an
// explicit preference row: either one boolean applied to every backend, or a
// per-backend map that must cover every registered backend.
type Default struct {
	uniform    bool
	value      bool
	perBackend map[string]bool
}

// UniformDefault applies the same opt-in value to all backends.
func UniformDefault(value bool) Default {
	return Default{uniform: true, value: value}
}

// PerBackendDefault applies a distinct opt-in value per backend identifier.
func PerBackendDefault(values map[string]bool) Default {
	copied := make(map[string]bool, len(values))
	for id, v := range values {
		copied[id] = v
	}
	return Default{perBackend: copied}
}

// For resolves the default for one backend. A per-backend policy missing the
// backend's entry returns ErrNoDefault.
func (d Default) For(backendID string) (bool, error) {
	if d.uniform {
		return d.value, nil
	}
	value, ok := d.perBackend[backendID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNoDefault, backendID)
	}
	return value, nil
}
