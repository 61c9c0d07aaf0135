package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vitrine/api/internal/app"
	"vitrine/api/internal/authpw"
	"vitrine/api/internal/config"
	"vitrine/api/internal/docstore"
	"vitrine/api/internal/gitrepo"
	"vitrine/api/internal/session"
	"vitrine/api/internal/upload"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	service, cleanup, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("vitrine api listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	return nil
}

// buildService wires the stores selected by cfg. The returned cleanup releases
// the session store.
func buildService(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.Service, func(), error) {
	docs := docstore.New(cfg.DataDir, logger.Named("docstore"))
	if err := docs.Check(); err != nil {
		return nil, nil, err
	}

	var history *gitrepo.Service
	if cfg.HistoryEnabled() {
		var err error
		history, err = gitrepo.New(cfg.HistoryDir, cfg.AdminUsername)
		if err != nil {
			return nil, nil, err
		}
		docs.SetRecorder(history)
		logger.Info("document history enabled", zap.String("dir", cfg.HistoryDir))
	}

	var credentials *authpw.Service
	var err error
	if cfg.AdminPasswordHash == "" {
		logger.Warn("VITRINE_ADMIN_PASSWORD_HASH not set, using the development password")
		credentials, err = authpw.NewDevService(cfg.AdminUsername)
	} else {
		credentials, err = authpw.NewService(cfg.AdminUsername, cfg.AdminPasswordHash)
	}
	if err != nil {
		return nil, nil, err
	}

	var sessions session.Store
	if cfg.RedisURL != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		logger.Info("using redis for session storage")
		sessions = redisStore
	} else {
		logger.Info("using in-memory session storage")
		sessions = session.NewMemoryStore(cfg.SessionTTL)
	}
	cleanup := func() {
		if err := sessions.Close(); err != nil {
			logger.Warn("close session store", zap.Error(err))
		}
	}

	var storage upload.Storage
	if cfg.MinioEnabled() {
		minioStorage, err := upload.NewMinioStorage(ctx, upload.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("minio setup failed: %w", err)
		}
		logger.Info("storing uploads in minio", zap.String("bucket", cfg.MinioBucket))
		storage = minioStorage
	} else {
		diskStorage, err := upload.NewDiskStorage(cfg.PublicDir)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		storage = diskStorage
	}

	opts := app.Options{
		Config:      cfg,
		Docs:        docs,
		Credentials: credentials,
		Sessions:    sessions,
		Uploads:     upload.NewReceiver(storage),
		Logger:      logger,
	}
	if history != nil {
		opts.History = history
	}
	return app.New(opts), cleanup, nil
}
