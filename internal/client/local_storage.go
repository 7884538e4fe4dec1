package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// MediaStore persists finished media files and returns their public URL.
// Remove withdraws a stored name; a name that is not stored is not an error.
type MediaStore interface {
	Store(ctx context.Context, srcPath, name, baseURL string) (string, error)
	Remove(ctx context.Context, name string) error
}

// LocalStorage keeps media in a directory served by the API under /songs
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates the songs directory if needed
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &LocalStorage{dir: dir}, nil
}

// Store moves srcPath into the songs directory as name
func (s *LocalStorage) Store(ctx context.Context, srcPath, name, baseURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkName(name); err != nil {
		return "", err
	}

	dst := filepath.Join(s.dir, name)
	if err := moveFile(srcPath, dst); err != nil {
		return "", fmt.Errorf("failed to store %s: %w", name, err)
	}

	return fmt.Sprintf("%s/songs/%s", strings.TrimRight(baseURL, "/"), name), nil
}

// Remove deletes name from the songs directory
func (s *LocalStorage) Remove(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid media name %q", name)
	}
	return nil
}

// moveFile renames src to dst, copying when they live on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	in.Close()
	return os.Remove(src)
}

func contentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp4":
		return "video/mp4"
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	}
	return "application/octet-stream"
}
