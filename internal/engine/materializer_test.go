package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanstork/alert-api/internal/registry"
)

type markupAlert struct{ stubAlert }

func (markupAlert) Filetype() registry.Filetype { return registry.FiletypeMarkup }

func TestRender_BackendSpecificTemplateWins(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.RegisterAlertType("order_shipped", stubAlert{def: registry.UniformDefault(true)}))

	source := &stubSource{templates: map[string]string{
		"alerts/order_shipped/email/title.txt": "email title",
		"alerts/order_shipped/title.txt":       "generic title",
		"alerts/order_shipped/body.txt":        "generic body",
	}}
	m := NewMaterializer(reg, source)

	title, body, err := m.Render("order_shipped", "email", nil)
	require.NoError(t, err)
	assert.Equal(t, "email title", title)
	assert.Equal(t, "generic body", body)
}

func TestRender_MarkupTypeUsesHTMLExtension(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.RegisterAlertType("digest", markupAlert{}))

	source := &stubSource{templates: map[string]string{
		"alerts/digest/title.html": "<b>digest</b>",
		"alerts/digest/body.html":  "<p>hello</p>",
		"alerts/digest/body.txt":   "should not be picked",
	}}
	m := NewMaterializer(reg, source)

	title, body, err := m.Render("digest", "email", nil)
	require.NoError(t, err)
	assert.Equal(t, "<b>digest</b>", title)
	assert.Equal(t, "<p>hello</p>", body)
}

func TestRender_MissingTemplateReportsSearchedPaths(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.RegisterAlertType("order_shipped", stubAlert{def: registry.UniformDefault(true)}))

	m := NewMaterializer(reg, &stubSource{templates: map[string]string{}})

	_, _, err := m.Render("order_shipped", "push", nil)
	var notFound *TemplateNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "order_shipped", notFound.AlertType)
	assert.Equal(t, "push", notFound.Backend)
	assert.Equal(t, "title", notFound.Part)
	assert.Equal(t, []string{
		"alerts/order_shipped/push/title.txt",
		"alerts/order_shipped/title.txt",
	}, notFound.Searched)
}

func TestRender_UnknownAlertType(t *testing.T) {
	m := NewMaterializer(registry.New(), &stubSource{})
	_, _, err := m.Render("ghost", "email", nil)
	assert.ErrorIs(t, err, ErrUnknownAlertType)
}
