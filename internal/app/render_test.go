package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vitrine/api/internal/config"
	"vitrine/api/internal/content"
	"vitrine/api/internal/docstore"
)

func TestIndexRendersCarousel(t *testing.T) {
	tmplPath := filepath.Join(t.TempDir(), "index.html")
	tmpl := `<ul>{{range .CarouselData.Images}}<li><img src="{{.Src}}" alt="{{.Alt}}"></li>{{end}}</ul>`
	if err := os.WriteFile(tmplPath, []byte(tmpl), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	env := newTestEnv(t, withConfig(func(cfg *config.Config) { cfg.TemplatePath = tmplPath }))

	seed := content.CarouselDocument{Images: []content.ImageEntry{{Src: "/a.png", Alt: "<b>A</b>"}}}
	if err := docstore.Save(env.docs, content.CarouselFile, seed); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("expected html content type, got %q", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `src="/a.png"`) {
		t.Fatalf("expected image in page, got %s", body)
	}
	if strings.Contains(body, "<b>A</b>") {
		t.Fatalf("expected alt text to be escaped, got %s", body)
	}
}

func TestIndexFallsBackToStatic(t *testing.T) {
	env := newTestEnv(t, withConfig(func(cfg *config.Config) {
		cfg.TemplatePath = filepath.Join(t.TempDir(), "missing.html")
	}))
	if err := os.WriteFile(filepath.Join(env.publicDir, "index.html"), []byte("static page"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}

	rr := env.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "static page") {
		t.Fatalf("expected static index, got %d %s", rr.Code, rr.Body.String())
	}
}
