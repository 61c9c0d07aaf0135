// Package upload stores uploaded carousel images and reports the path the page
// should use to display them.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrUnsupportedType = errors.New("unsupported image type")

var allowedExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".avif": "image/avif",
}

// Storage persists one object and returns its public src.
type Storage interface {
	Put(ctx context.Context, name string, body io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, name string) error
}

type Receiver struct {
	storage Storage
	now     func() time.Time
}

func NewReceiver(storage Storage) *Receiver {
	return &Receiver{storage: storage, now: time.Now}
}

// Receive stores the uploaded file under a fresh name and returns its src.
func (r *Receiver) Receive(ctx context.Context, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType, ok := allowedExtensions[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	name := NewFilename(header.Filename, r.now())
	src, err := r.storage.Put(ctx, name, file, header.Size, contentType)
	if err != nil {
		return "", fmt.Errorf("store upload %s: %w", name, err)
	}
	return src, nil
}

// Discard removes an upload previously returned by Receive.
func (r *Receiver) Discard(ctx context.Context, src string) error {
	name := path.Base(src)
	if name == "." || name == "/" {
		return fmt.Errorf("no upload name in %q", src)
	}
	if err := r.storage.Delete(ctx, name); err != nil {
		return fmt.Errorf("discard upload %s: %w", name, err)
	}
	return nil
}

// NewFilename builds <unix millis>-<random suffix><ext> from the client filename.
func NewFilename(original string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(original))
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), suffix, ext)
}
