package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"blogposts/storage"
)

// FileSink writes exports into a local directory. Files are written to a
// temporary name first and renamed, so readers never see a partial export.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

func (s *FileSink) Write(ctx context.Context, name string, data []byte) (string, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %s %w", err.Error(), storage.UnavailableError)
	}
	path := filepath.Join(s.dir, name)
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	if err := writeAtomic(filepath.Join(s.dir, LatestName), data); err != nil {
		return "", err
	}
	return path, nil
}

func (s *FileSink) Latest(ctx context.Context) ([]byte, error) {
	if err := storage.CheckContext(ctx); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, LatestName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read latest export: %s %w", err.Error(), storage.UnavailableError)
	}
	return data, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %s %w", err.Error(), storage.UnavailableError)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write export: %s %w", err.Error(), storage.UnavailableError)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write export: %s %w", err.Error(), storage.UnavailableError)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move export in place: %s %w", err.Error(), storage.UnavailableError)
	}
	return nil
}
