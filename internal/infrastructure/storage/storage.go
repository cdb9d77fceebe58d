package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"jan-server/services/vision-api/internal/config"
)

// ErrFrameNotFound is returned when a stored frame does not exist.
var ErrFrameNotFound = errors.New("frame not found")

// FrameStore persists and loads decoded frames.
type FrameStore interface {
	StoreFrame(ctx context.Context, frameID string, data []byte) error
	LoadFrame(ctx context.Context, frameID string) ([]byte, string, error)
}

// New selects the frame store configured by FRAME_STORAGE_PROVIDER.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (FrameStore, error) {
	switch cfg.FrameStorageProvider {
	case config.FrameStorageS3:
		return NewS3Storage(ctx, cfg, log)
	case config.FrameStorageLocal:
		return NewLocalStorage(cfg, log)
	case config.FrameStorageNone:
		log.Info().Msg("frame persistence disabled")
		return NoopStorage{}, nil
	default:
		return nil, fmt.Errorf("unknown frame storage provider %q", cfg.FrameStorageProvider)
	}
}

// frameKey maps "<date>/<token>" to "<date>/<token>.<ext>". Path traversal
// segments are rejected.
func frameKey(frameID, ext string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimSpace(frameID))
	if cleaned == "/" || strings.Contains(frameID, "..") {
		return "", fmt.Errorf("invalid frame id %q", frameID)
	}
	return strings.TrimPrefix(cleaned, "/") + "." + ext, nil
}

func contentType(data []byte) (string, string) {
	mt := mimetype.Detect(data)
	ext := strings.TrimPrefix(mt.Extension(), ".")
	if ext == "" {
		ext = "bin"
	}
	if ext == "jpeg" {
		ext = "jpg"
	}
	return mt.String(), ext
}

// NoopStorage drops frames.
type NoopStorage struct{}

func (NoopStorage) StoreFrame(ctx context.Context, frameID string, data []byte) error {
	return nil
}

func (NoopStorage) LoadFrame(ctx context.Context, frameID string) ([]byte, string, error) {
	return nil, "", ErrFrameNotFound
}
