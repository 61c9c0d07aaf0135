// Package docstore persists named JSON documents as flat files.
//
// Every load reads the file and every save rewrites it in full. Load, Save and
// Update on the same document name are serialised by a per-document mutex, so an
// Update's load-transform-save sequence is never interleaved with another
// mutation of that document.
package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Recorder observes every successfully saved document payload.
type Recorder interface {
	Record(name string, payload []byte) error
}

type Store struct {
	dir      string
	logger   *zap.Logger
	recorder Recorder
	lockMu   sync.Mutex
	locks    map[string]*sync.Mutex
}

func New(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		dir:    dir,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// SetRecorder installs a recorder. It must be called before the store is shared.
func (s *Store) SetRecorder(recorder Recorder) {
	s.recorder = recorder
}

func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Check reports whether the data directory is usable.
func (s *Store) Check() error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("stat data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data dir %s is not a directory", s.dir)
	}
	return nil
}

// Load returns the named document. A missing or unparsable file is logged and
// replaced by fallback().
func Load[T any](s *Store, name string, fallback func() T) T {
	lock := s.documentLock(name)
	lock.Lock()
	defer lock.Unlock()
	return read(s, name, fallback)
}

// Save overwrites the named document.
func Save[T any](s *Store, name string, doc T) error {
	lock := s.documentLock(name)
	lock.Lock()
	defer lock.Unlock()
	return s.write(name, doc)
}

// Update loads the named document, applies fn and saves the result while holding
// the document's lock. When fn fails nothing is written and its error is returned.
func Update[T any](s *Store, name string, fallback func() T, fn func(*T) error) (T, error) {
	lock := s.documentLock(name)
	lock.Lock()
	defer lock.Unlock()

	doc := read(s, name, fallback)
	if err := fn(&doc); err != nil {
		return doc, err
	}
	if err := s.write(name, doc); err != nil {
		return doc, err
	}
	return doc, nil
}

func read[T any](s *Store, name string, fallback func() T) T {
	payload, err := os.ReadFile(s.Path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info("document missing, using default", zap.String("document", name))
		} else {
			s.logger.Warn("read document failed, using default", zap.String("document", name), zap.Error(err))
		}
		return fallback()
	}

	var doc T
	if err := json.Unmarshal(payload, &doc); err != nil {
		s.logger.Warn("decode document failed, using default", zap.String("document", name), zap.Error(err))
		return fallback()
	}
	return doc
}

func (s *Store) write(name string, doc any) error {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	payload = append(payload, '\n')

	if err := writeFileAtomic(s.Path(name), payload); err != nil {
		s.logger.Error("write document failed", zap.String("document", name), zap.Error(err))
		return fmt.Errorf("write %s: %w", name, err)
	}

	if s.recorder != nil {
		if err := s.recorder.Record(name, payload); err != nil {
			s.logger.Warn("record document history failed", zap.String("document", name), zap.Error(err))
		}
	}
	return nil
}

func writeFileAtomic(path string, payload []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}

func (s *Store) documentLock(name string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[name]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[name] = lock
	return lock
}
