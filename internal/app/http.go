package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"vitrine/api/internal/auth"
	"vitrine/api/internal/session"
)

const sessionCookieName = "vitrine.sid"

// multipartMemory bounds how much of an upload is buffered before spilling to disk.
const multipartMemory = 8 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
	limiter    *loginLimiter
	proxies    []netip.Prefix
	index      *template.Template
	static     http.Handler
	logger     *zap.Logger
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	cfg := service.cfg
	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		service.logger.Warn("ignoring trusted proxies", zap.Error(err))
		proxies = nil
	}
	return &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		limiter:    newLoginLimiter(cfg.LoginRPS, cfg.LoginBurst),
		proxies:    proxies,
		index:      loadIndexTemplate(cfg.TemplatePath, service.logger),
		static:     http.FileServer(noListingFS{http.Dir(cfg.PublicDir)}),
		logger:     service.logger,
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		ready, checks := s.service.Ready(ctx)
		status, statusCode := "ready", http.StatusOK
		if !ready {
			status, statusCode = "not_ready", http.StatusServiceUnavailable
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     ready,
			"status": status,
			"checks": checks,
		})
		return
	}

	// Public routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/login" {
		s.handleLogin(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/logout" {
		s.handleLogout(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/check-auth" {
		writeJSON(w, http.StatusOK, map[string]any{
			"isAuthenticated": s.service.IsAuthenticated(r.Context(), sessionToken(r)),
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/news" {
		writeJSON(w, http.StatusOK, s.service.News())
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/carousel" {
		writeJSON(w, http.StatusOK, s.service.Carousel())
		return
	}

	if route := s.protectedRoute(r); route != nil {
		if !s.requireAuthenticated(w, r) {
			return
		}
		route(w, r)
		return
	}

	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		if r.URL.Path == "/" && s.index != nil {
			s.renderIndex(w, r)
			return
		}
		s.static.ServeHTTP(w, r)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
}

// protectedRoute matches the routes behind the session gate. Matching happens
// before the gate so that nothing about the request is processed for
// unauthenticated callers.
func (s *HTTPServer) protectedRoute(r *http.Request) http.HandlerFunc {
	parts := splitPath(r.URL.Path)

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/upload-image":
		return s.handleUploadImage
	case r.Method == http.MethodPost && r.URL.Path == "/addImage":
		return s.handleAddImage
	case r.Method == http.MethodDelete && len(parts) == 2 && parts[0] == "deleteImage":
		return func(w http.ResponseWriter, r *http.Request) { s.handleDeleteImage(w, r, parts[1]) }
	case r.Method == http.MethodPost && r.URL.Path == "/news":
		return s.handleAddNews
	case r.Method == http.MethodDelete && r.URL.Path == "/news":
		return s.handleRemoveNews
	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "history":
		return func(w http.ResponseWriter, r *http.Request) { s.handleHistory(w, r, parts[1]) }
	case r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "history":
		return func(w http.ResponseWriter, r *http.Request) { s.handleHistoryVersion(w, r, parts[1], parts[2]) }
	}
	return nil
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(clientIP(r, s.proxies)) {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many login attempts")
		return
	}

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	token, err := s.service.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		status, code, message := mapError(err)
		writeError(w, status, code, message)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.service.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.service.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Logout(r.Context(), sessionToken(r)); err != nil {
		status, code, message := mapError(err)
		writeError(w, status, code, message)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.service.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.service.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "NO_FILE", "No file uploaded")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "NO_FILE", "No file uploaded")
		return
	}
	_ = file.Close()

	if _, err := s.service.UploadImage(r.Context(), header); err != nil {
		status, code, message := mapError(err)
		writeError(w, status, code, message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleAddImage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ImageURL string `json:"imageUrl"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if err := s.service.AddImage(body.ImageURL); err != nil {
		status, code, message := mapError(err)
		writeError(w, status, code, message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleDeleteImage(w http.ResponseWriter, r *http.Request, rawIndex string) {
	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INDEX", "Invalid index")
		return
	}
	if err := s.service.DeleteImage(index); err != nil {
		status, code, message := mapError(err)
		writeError(w, status, code, message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleAddNews(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if err := s.service.AddNews(body.Text); err != nil {
		status, code, message := mapError(err)
		writeError(w, status, code, message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleRemoveNews(w http.ResponseWriter, r *http.Request) {
	if err := s.service.RemoveLastNews(); err != nil {
		status, code, message := mapError(err)
		writeError(w, status, code, message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request, document string) {
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	entries, err := s.service.History(document, limit)
	if err != nil {
		status, code, message := mapError(err)
		writeError(w, status, code, message)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *HTTPServer) handleHistoryVersion(w http.ResponseWriter, r *http.Request, document, hash string) {
	data, err := s.service.HistoryVersion(document, hash)
	if err != nil {
		status, code, message := mapError(err)
		writeError(w, status, code, message)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// requireAuthenticated writes 403 and returns false unless the request carries
// a token for an authenticated session.
func (s *HTTPServer) requireAuthenticated(w http.ResponseWriter, r *http.Request) bool {
	token := sessionToken(r)
	if token == "" {
		writeError(w, http.StatusForbidden, "ACCESS_DENIED", "Access denied")
		return false
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusForbidden, "ACCESS_DENIED", "Access denied")
			return false
		}
		s.logger.Error("session lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed")
		return false
	}
	if !sess.Authenticated {
		writeError(w, http.StatusForbidden, "ACCESS_DENIED", "Access denied")
		return false
	}
	return true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"code":    code,
		"message": message,
	})
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

// sessionToken reads the signed session token from the cookie, falling back to a
// bearer header for non-browser clients.
func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error"
}
