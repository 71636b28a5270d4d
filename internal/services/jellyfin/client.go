package jellyfin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"showseed/internal/fileutil"
)

// Service defines the library operations used by the organizer.
type Service interface {
	// Place copies sourcePath into targetDir as fileName and returns the
	// final path.
	Place(ctx context.Context, sourcePath, targetDir, fileName string) (string, error)
	Refresh(ctx context.Context) error
}

func removeExistingTarget(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat existing target: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("existing library path %q is a directory", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove existing target %q: %w", path, err)
	}
	return nil
}

// SimpleService copies files into the library directory tree.
type SimpleService struct {
	CopyFunc          func(src, dst string) error
	OverwriteExisting bool
}

// NewSimpleService constructs a copy-only library service.
func NewSimpleService(overwriteExisting bool) *SimpleService {
	return &SimpleService{
		CopyFunc:          fileutil.CopyFileVerified,
		OverwriteExisting: overwriteExisting,
	}
}

func (s *SimpleService) Place(ctx context.Context, sourcePath, targetDir, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("create target directory: %w", err)
	}
	finalPath := filepath.Join(targetDir, fileName)
	if s.OverwriteExisting {
		if err := removeExistingTarget(finalPath); err != nil {
			return "", err
		}
	} else {
		unique, err := fileutil.UniquePath(finalPath)
		if err != nil {
			return "", fmt.Errorf("pick library name: %w", err)
		}
		finalPath = unique
	}
	if err := s.CopyFunc(sourcePath, finalPath); err != nil {
		return "", fmt.Errorf("copy into library: %w", err)
	}
	return finalPath, nil
}

// Refresh is a no-op without Jellyfin credentials.
func (s *SimpleService) Refresh(context.Context) error {
	return nil
}
