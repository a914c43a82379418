package template

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSource() *DirSource {
	return NewDirSource(fstest.MapFS{
		"alerts/welcome/title.txt":      {Data: []byte("Welcome, {{.Name}}!")},
		"alerts/digest/body.html":       {Data: []byte("<p>Hi {{.Name}}</p>")},
		"alerts/broken/title.txt":       {Data: []byte("{{.Name")},
		"alerts/welcome/email/body.txt": {Data: []byte("plain body")},
	})
}

func TestExists(t *testing.T) {
	source := newTestSource()

	assert.True(t, source.Exists("alerts/welcome/title.txt"))
	assert.False(t, source.Exists("alerts/welcome/title.html"))
	assert.False(t, source.Exists("alerts/welcome"), "directories are not templates")
}

func TestRender_Text(t *testing.T) {
	source := newTestSource()

	out, err := source.Render("alerts/welcome/title.txt", map[string]interface{}{"Name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Welcome, Ada!", out)
}

func TestRender_MarkupEscapes(t *testing.T) {
	source := newTestSource()

	out, err := source.Render("alerts/digest/body.html", map[string]interface{}{"Name": "<script>"})
	require.NoError(t, err)
	assert.Equal(t, "<p>Hi &lt;script&gt;</p>", out)
}

func TestRender_TextDoesNotEscape(t *testing.T) {
	source := newTestSource()

	out, err := source.Render("alerts/welcome/title.txt", map[string]interface{}{"Name": "<b>Ada</b>"})
	require.NoError(t, err)
	assert.Equal(t, "Welcome, <b>Ada</b>!", out)
}

func TestRender_UnknownName(t *testing.T) {
	source := newTestSource()

	_, err := source.Render("alerts/ghost/title.txt", nil)
	assert.Error(t, err)
}

func TestRender_ParseError(t *testing.T) {
	source := newTestSource()

	_, err := source.Render("alerts/broken/title.txt", nil)
	assert.Error(t, err)
}
