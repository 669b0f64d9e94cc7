// Package views renders the site pages from embedded templates.
package views

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/kjstillabower/busan-travel-service/internal/models"
)

//go:embed templates static
var viewsFS embed.FS

// Course is the view model for one travel-course page.
type Course struct {
	Kind  string
	Label string
}

// Page is the view model shared by every page. Weather is set on the index only.
type Page struct {
	Title   string
	Path    string
	Weather *models.WeatherSnapshot
	Course  *Course
}

// Renderer holds one template set per page, each cloned from the shared layout.
type Renderer struct {
	pages  map[string]*template.Template
	static fs.FS
}

// New loads the embedded templates. Call during startup; if it returns an error,
// do not start the server.
func New() (*Renderer, error) {
	return newFromFS(viewsFS, "templates", "static")
}

// newFromFS is also used by tests to feed broken template sets.
func newFromFS(fsys fs.FS, tmplDir, staticDir string) (*Renderer, error) {
	sub, err := fs.Sub(fsys, tmplDir)
	if err != nil {
		return nil, err
	}
	layout, err := template.New("layout").Funcs(funcs).ParseFS(sub, "layout/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	files, err := fs.Glob(sub, "pages/*.html")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no page templates in %s/pages", tmplDir)
	}

	pages := make(map[string]*template.Template, len(files))
	for _, f := range files {
		t, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(sub, f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		pages[strings.TrimSuffix(path.Base(f), ".html")] = t
	}

	static, err := fs.Sub(fsys, staticDir)
	if err != nil {
		return nil, err
	}
	return &Renderer{pages: pages, static: static}, nil
}

var funcs = template.FuncMap{
	"active": func(current, link string) bool { return current == link },
}

// Render executes the named page (file name without .html) into w.
func (r *Renderer) Render(w io.Writer, name string, data *Page) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	return t.ExecuteTemplate(w, "base", data)
}

// Has reports whether a page template named name exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Static returns the embedded static asset tree (css, js).
func (r *Renderer) Static() fs.FS {
	return r.static
}
