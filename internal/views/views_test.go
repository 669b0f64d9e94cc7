package views

import (
	"bytes"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/kjstillabower/busan-travel-service/internal/models"
)

func mustNew(t *testing.T) *Renderer {
	t.Helper()
	r, err := New()
	if err != nil {
		t.Fatalf("New() = %v; want nil", err)
	}
	return r
}

func TestNew_LoadsEveryPage(t *testing.T) {
	r := mustNew(t)
	for _, name := range []string{"index", "festivities", "tourist-attraction", "traffic", "login", "travel-course", "course"} {
		if !r.Has(name) {
			t.Errorf("page %q not loaded", name)
		}
	}
}

func TestNew_FailureNoTemplates(t *testing.T) {
	if _, err := newFromFS(fstest.MapFS{}, "templates", "static"); err == nil {
		t.Fatal("newFromFS(empty) = nil; want error")
	}
}

func TestNew_FailureParse(t *testing.T) {
	badFS := fstest.MapFS{
		"templates/layout/base.html": {Data: []byte(`{{define "base"}}{{template "content" .}}{{end}}`)},
		"templates/pages/index.html": {Data: []byte("{{ .")},
	}
	if _, err := newFromFS(badFS, "templates", "static"); err == nil {
		t.Fatal("newFromFS(badFS) = nil; want error")
	}
}

func TestNew_FromMapFS(t *testing.T) {
	fsys := fstest.MapFS{
		"templates/layout/base.html": {Data: []byte(`{{define "base"}}<title>{{.Title}}</title>{{template "content" .}}{{end}}`)},
		"templates/pages/a.html":     {Data: []byte(`{{define "content"}}A{{end}}`)},
		"templates/pages/b.html":     {Data: []byte(`{{define "content"}}B{{end}}`)},
		"static/css/site.css":        {Data: []byte("body{}")},
	}
	r, err := newFromFS(fsys, "templates", "static")
	if err != nil {
		t.Fatalf("newFromFS() = %v", err)
	}
	var buf bytes.Buffer
	if err := r.Render(&buf, "b", &Page{Title: "T"}); err != nil {
		t.Fatalf("Render(b) = %v", err)
	}
	if got := buf.String(); got != "<title>T</title>B" {
		t.Errorf("Render(b) = %q; each page must keep its own content block", got)
	}
}

func TestRender_UnknownPage(t *testing.T) {
	r := mustNew(t)
	err := r.Render(&bytes.Buffer{}, "missing", &Page{})
	if err == nil || !strings.Contains(err.Error(), "unknown page") {
		t.Fatalf("Render(missing) = %v; want unknown page error", err)
	}
}

func TestRender_IndexShowsWeather(t *testing.T) {
	r := mustNew(t)
	var buf bytes.Buffer
	err := r.Render(&buf, "index", &Page{
		Title: "홈",
		Path:  "/",
		Weather: &models.WeatherSnapshot{
			Current: "18.3",
			Today:   models.DailyTemperatures{Average: "12.0", Max: "14.0", Min: "10.0"},
		},
	})
	if err != nil {
		t.Fatalf("Render(index) = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"18.3", "12.0", "14.0", "10.0", `class="is-active"`} {
		if !strings.Contains(out, want) {
			t.Errorf("index output missing %q", want)
		}
	}
}

func TestRender_IndexAbsentWeather(t *testing.T) {
	r := mustNew(t)
	var buf bytes.Buffer
	snap := models.WeatherSnapshot{Current: models.Absent, Today: models.AbsentTemperatures()}
	if err := r.Render(&buf, "index", &Page{Title: "홈", Path: "/", Weather: &snap}); err != nil {
		t.Fatalf("Render(index) = %v", err)
	}
	if n := strings.Count(buf.String(), models.Absent); n < 4 {
		t.Errorf("output has %d %q markers; want at least 4", n, models.Absent)
	}
}

func TestRender_CoursePage(t *testing.T) {
	r := mustNew(t)
	var buf bytes.Buffer
	err := r.Render(&buf, "course", &Page{Title: "산책", Path: "/travel-course", Course: &Course{Kind: "walk", Label: "산책 코스"}})
	if err != nil {
		t.Fatalf("Render(course) = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `data-kind="walk"`) || !strings.Contains(out, "/static/js/course.js") {
		t.Errorf("course output missing search form wiring: %q", out)
	}
}

func TestStatic_ContainsAssets(t *testing.T) {
	r := mustNew(t)
	for _, p := range []string{"css/site.css", "js/course.js"} {
		if _, err := fs.Stat(r.Static(), p); err != nil {
			t.Errorf("static %s: %v", p, err)
		}
	}
}
