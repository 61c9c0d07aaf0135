package app

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"vitrine/api/internal/auth"
	"vitrine/api/internal/authpw"
	"vitrine/api/internal/config"
	"vitrine/api/internal/content"
	"vitrine/api/internal/docstore"
	"vitrine/api/internal/gitrepo"
	"vitrine/api/internal/session"
	"vitrine/api/internal/upload"
)

// historyDocuments maps the public document names used in history routes to files.
var historyDocuments = map[string]string{
	"carousel": content.CarouselFile,
	"news":     content.NewsFile,
}

type credentialVerifier interface {
	Verify(username, password string) error
}

type uploadReceiver interface {
	Receive(ctx context.Context, header *multipart.FileHeader) (string, error)
	Discard(ctx context.Context, src string) error
}

type historyLog interface {
	Log(name string, limit int) ([]gitrepo.Entry, error)
	Show(name, hash string) ([]byte, error)
}

type Options struct {
	Config      config.Config
	Docs        *docstore.Store
	Credentials credentialVerifier
	Sessions    session.Store
	Uploads     uploadReceiver
	// History is optional.
	History historyLog
	Logger  *zap.Logger
}

type Service struct {
	cfg         config.Config
	docs        *docstore.Store
	content     *content.Service
	credentials credentialVerifier
	sessions    session.Store
	uploads     uploadReceiver
	history     historyLog
	logger      *zap.Logger
}

func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:         opts.Config,
		docs:        opts.Docs,
		content:     content.NewService(opts.Docs),
		credentials: opts.Credentials,
		sessions:    opts.Sessions,
		uploads:     opts.Uploads,
		history:     opts.History,
		logger:      logger,
	}
}

// Login verifies the credentials and returns the signed token of a new
// authenticated session.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if err := s.credentials.Verify(username, password); err != nil {
		switch {
		case errors.Is(err, authpw.ErrMissingCredentials):
			return "", domainError(http.StatusBadRequest, "MISSING_CREDENTIALS", "Username and password are required", err)
		case errors.Is(err, authpw.ErrInvalidCredentials):
			return "", domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials", err)
		default:
			return "", domainError(http.StatusInternalServerError, "LOGIN_FAILED", "An error occurred during login", err)
		}
	}

	sess, err := s.sessions.Create(ctx, true)
	if err != nil {
		s.logger.Error("create session failed", zap.Error(err))
		return "", domainError(http.StatusInternalServerError, "LOGIN_FAILED", "An error occurred during login", err)
	}
	return auth.SignValue([]byte(s.cfg.SessionSecret), sess.ID), nil
}

// SessionFromToken resolves a signed token to its session.
func (s *Service) SessionFromToken(ctx context.Context, token string) (session.Session, error) {
	id, err := auth.VerifyValue([]byte(s.cfg.SessionSecret), token)
	if err != nil {
		return session.Session{}, err
	}
	return s.sessions.Lookup(ctx, id)
}

// IsAuthenticated never fails; any lookup problem reads as unauthenticated.
func (s *Service) IsAuthenticated(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	sess, err := s.SessionFromToken(ctx, token)
	return err == nil && sess.Authenticated
}

// Logout destroys the session behind token. Unknown or forged tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	id, err := auth.VerifyValue([]byte(s.cfg.SessionSecret), token)
	if err != nil {
		return nil
	}
	if err := s.sessions.Destroy(ctx, id); err != nil {
		s.logger.Error("destroy session failed", zap.Error(err))
		return domainError(http.StatusInternalServerError, "LOGOUT_FAILED", "Error logging out", err)
	}
	return nil
}

func (s *Service) Carousel() content.CarouselDocument {
	return s.content.Carousel()
}

func (s *Service) News() content.NewsDocument {
	return s.content.News()
}

func (s *Service) AddImage(src string) error {
	_, err := s.content.AppendImage(src, content.DefaultAlt)
	return s.mutationError(content.CarouselFile, err)
}

// UploadImage stores the file and appends it to the carousel.
func (s *Service) UploadImage(ctx context.Context, header *multipart.FileHeader) (string, error) {
	src, err := s.uploads.Receive(ctx, header)
	if err != nil {
		if errors.Is(err, upload.ErrUnsupportedType) {
			return "", domainError(http.StatusBadRequest, "UNSUPPORTED_TYPE", "Unsupported image type", err)
		}
		s.logger.Error("store upload failed", zap.String("filename", header.Filename), zap.Error(err))
		return "", domainError(http.StatusInternalServerError, "UPLOAD_FAILED", "Could not store upload", err)
	}
	if err := s.AddImage(src); err != nil {
		// Nothing references the stored file once the carousel save failed.
		if discardErr := s.uploads.Discard(ctx, src); discardErr != nil {
			s.logger.Error("orphaned upload", zap.String("src", src), zap.Error(discardErr))
		}
		return "", err
	}
	return src, nil
}

func (s *Service) DeleteImage(index int) error {
	_, err := s.content.RemoveImageAt(index)
	return s.mutationError(content.CarouselFile, err)
}

func (s *Service) AddNews(text string) error {
	_, err := s.content.AppendNews(text)
	return s.mutationError(content.NewsFile, err)
}

func (s *Service) RemoveLastNews() error {
	_, err := s.content.PopLastNews()
	return s.mutationError(content.NewsFile, err)
}

func (s *Service) mutationError(document string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, content.ErrIndexOutOfRange):
		return domainError(http.StatusBadRequest, "INVALID_INDEX", "Invalid index", err)
	case errors.Is(err, content.ErrNoNewsItems):
		return domainError(http.StatusBadRequest, "NO_NEWS_ITEMS", "No news items to remove", err)
	default:
		s.logger.Error("save document failed", zap.String("document", document), zap.Error(err))
		return domainError(http.StatusInternalServerError, "SAVE_FAILED", "Could not save changes", err)
	}
}

func (s *Service) History(document string, limit int) ([]gitrepo.Entry, error) {
	file, err := s.historyFile(document)
	if err != nil {
		return nil, err
	}
	entries, err := s.history.Log(file, limit)
	if err != nil {
		s.logger.Error("read history failed", zap.String("document", file), zap.Error(err))
		return nil, domainError(http.StatusInternalServerError, "HISTORY_FAILED", "Could not read history", err)
	}
	return entries, nil
}

func (s *Service) HistoryVersion(document, hash string) ([]byte, error) {
	file, err := s.historyFile(document)
	if err != nil {
		return nil, err
	}
	data, err := s.history.Show(file, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Version not found", err)
	}
	return data, nil
}

func (s *Service) historyFile(document string) (string, error) {
	if s.history == nil {
		return "", domainError(http.StatusNotFound, "HISTORY_DISABLED", "History is not enabled", nil)
	}
	file, ok := historyDocuments[document]
	if !ok {
		return "", domainError(http.StatusNotFound, "NOT_FOUND", "Unknown document", nil)
	}
	return file, nil
}

// Ready reports per-dependency health for the readiness probe.
func (s *Service) Ready(ctx context.Context) (bool, map[string]any) {
	ready := true
	checks := map[string]any{}

	if err := s.sessions.Ping(ctx); err != nil {
		ready = false
		checks["sessions"] = map[string]any{"status": "error", "error": err.Error()}
	} else {
		checks["sessions"] = map[string]any{"status": "ok"}
	}

	if err := s.docs.Check(); err != nil {
		ready = false
		checks["data"] = map[string]any{"status": "error", "error": err.Error()}
	} else {
		checks["data"] = map[string]any{"status": "ok"}
	}

	return ready, checks
}
