// Package template abstracts the template store the materializer renders
// from. The engine only probes for existence and renders by name; where the
// templates live and how they are parsed is this package's concern.
package template

import (
	htmltemplate "html/template"
	"io/fs"
	"path"
	"strings"
	"sync"
	texttemplate "text/template"

	"github.com/pkg/errors"
)

// Source renders named templates. Render is only called for names that
// Exists reported true for, but implementations must still fail cleanly on
// unknown names.
type Source interface {
	Exists(name string) bool
	Render(name string, data map[string]interface{}) (string, error)
}

// DirSource loads templates from a filesystem tree. Files ending in .html
// are parsed with html/template (contextual escaping); everything else uses
// text/template. Templates are parsed lazily and cached per name.
type DirSource struct {
	fsys fs.FS

	mu     sync.Mutex
	text   map[string]*texttemplate.Template
	markup map[string]*htmltemplate.Template
}

func NewDirSource(fsys fs.FS) *DirSource {
	return &DirSource{
		fsys:   fsys,
		text:   make(map[string]*texttemplate.Template),
		markup: make(map[string]*htmltemplate.Template),
	}
}

func (s *DirSource) Exists(name string) bool {
	info, err := fs.Stat(s.fsys, name)
	return err == nil && !info.IsDir()
}

func (s *DirSource) Render(name string, data map[string]interface{}) (string, error) {
	var sb strings.Builder
	if strings.EqualFold(path.Ext(name), ".html") {
		tmpl, err := s.markupTemplate(name)
		if err != nil {
			return "", err
		}
		if err := tmpl.Execute(&sb, data); err != nil {
			return "", errors.Wrapf(err, "execute template %s", name)
		}
		return sb.String(), nil
	}

	tmpl, err := s.textTemplate(name)
	if err != nil {
		return "", err
	}
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", errors.Wrapf(err, "execute template %s", name)
	}
	return sb.String(), nil
}

func (s *DirSource) textTemplate(name string) (*texttemplate.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tmpl, ok := s.text[name]; ok {
		return tmpl, nil
	}
	raw, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return nil, errors.Wrapf(err, "read template %s", name)
	}
	tmpl, err := texttemplate.New(name).Parse(string(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "parse template %s", name)
	}
	s.text[name] = tmpl
	return tmpl, nil
}

func (s *DirSource) markupTemplate(name string) (*htmltemplate.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tmpl, ok := s.markup[name]; ok {
		return tmpl, nil
	}
	raw, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		return nil, errors.Wrapf(err, "read template %s", name)
	}
	tmpl, err := htmltemplate.New(name).Parse(string(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "parse template %s", name)
	}
	s.markup[name] = tmpl
	return tmpl, nil
}
