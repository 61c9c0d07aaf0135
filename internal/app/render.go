package app

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"net/http"

	"go.uber.org/zap"

	"vitrine/api/internal/content"
)

type indexData struct {
	CarouselData content.CarouselDocument
}

// loadIndexTemplate returns nil when no template is present so that "/" falls
// through to the static file server.
func loadIndexTemplate(path string, logger *zap.Logger) *template.Template {
	if path == "" {
		return nil
	}
	tmpl, err := template.ParseFiles(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("index template unusable", zap.String("path", path), zap.Error(err))
		}
		return nil
	}
	return tmpl
}

func (s *HTTPServer) renderIndex(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.index.Execute(&buf, indexData{CarouselData: s.service.Carousel()}); err != nil {
		s.logger.Error("render index failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "RENDER_FAILED", "Could not render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(buf.Bytes())
	}
}
