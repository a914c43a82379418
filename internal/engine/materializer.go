package engine

import (
	"fmt"
	"path"

	"github.com/stanstork/alert-api/internal/registry"
	"github.com/stanstork/alert-api/internal/template"
)

// Materializer renders the title and body of a message for an (alert type,
// backend) pair. Each part first probes a backend-specific template and then
// falls back to the type-level one:
//
//	alerts/<type>/<backend>/<part>.<ext>
//	alerts/<type>/<part>.<ext>
type Materializer struct {
	registry *registry.Registry
	source   template.Source
}

func NewMaterializer(reg *registry.Registry, source template.Source) *Materializer {
	return &Materializer{registry: reg, source: source}
}

// Render materializes both parts, returning (title, body).
func (m *Materializer) Render(alertTypeID, backendID string, data map[string]interface{}) (string, string, error) {
	alertType, ok := m.registry.AlertType(alertTypeID)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownAlertType, alertTypeID)
	}

	ext := "txt"
	if registry.TypeFiletype(alertType) == registry.FiletypeMarkup {
		ext = "html"
	}

	title, err := m.renderPart(alertTypeID, backendID, "title", ext, data)
	if err != nil {
		return "", "", err
	}
	body, err := m.renderPart(alertTypeID, backendID, "body", ext, data)
	if err != nil {
		return "", "", err
	}
	return title, body, nil
}

func (m *Materializer) renderPart(alertTypeID, backendID, part, ext string, data map[string]interface{}) (string, error) {
	searched := []string{
		path.Join("alerts", alertTypeID, backendID, part+"."+ext),
		path.Join("alerts", alertTypeID, part+"."+ext),
	}
	for _, name := range searched {
		if m.source.Exists(name) {
			return m.source.Render(name, data)
		}
	}
	return "", &TemplateNotFoundError{
		AlertType: alertTypeID,
		Backend:   backendID,
		Part:      part,
		Searched:  searched,
	}
}
