package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"jan-server/services/vision-api/internal/config"
)

// LocalStorage writes frames below a base directory.
type LocalStorage struct {
	basePath string
	log      zerolog.Logger
}

// NewLocalStorage creates the base directory if needed.
func NewLocalStorage(cfg *config.Config, log zerolog.Logger) (*LocalStorage, error) {
	logger := log.With().Str("component", "local-frame-storage").Logger()

	basePath := strings.TrimSpace(cfg.LocalStoragePath)
	if basePath == "" {
		return nil, errors.New("FRAME_LOCAL_STORAGE_PATH is empty")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory: %w", err)
	}

	logger.Info().Str("path", basePath).Msg("local frame storage initialized")
	return &LocalStorage{basePath: basePath, log: logger}, nil
}

// StoreFrame writes the frame as <base>/<date>/<token>.jpg.
func (l *LocalStorage) StoreFrame(ctx context.Context, frameID string, data []byte) error {
	_, ext := contentType(data)
	key, err := frameKey(frameID, ext)
	if err != nil {
		return err
	}

	fullPath := filepath.Join(l.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// LoadFrame reads a stored JPEG frame.
func (l *LocalStorage) LoadFrame(ctx context.Context, frameID string) ([]byte, string, error) {
	key, err := frameKey(frameID, "jpg")
	if err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(filepath.Join(l.basePath, filepath.FromSlash(key)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", ErrFrameNotFound
		}
		return nil, "", fmt.Errorf("failed to read frame: %w", err)
	}
	mime, _ := contentType(data)
	return data, mime, nil
}
