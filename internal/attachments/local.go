package attachments

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStorage writes blobs under a directory served at PublicPrefix.
type LocalStorage struct {
	Dir          string
	PublicPrefix string
}

func NewLocalStorage(dir, publicPrefix string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{Dir: dir, PublicPrefix: strings.TrimSuffix(publicPrefix, "/")}, nil
}

func (s *LocalStorage) Upload(ctx context.Context, file File) (Uploaded, error) {
	if err := ctx.Err(); err != nil {
		return Uploaded{}, err
	}

	src, err := file.Open()
	if err != nil {
		return Uploaded{}, fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer src.Close()

	name := objectName(file.Name)
	dst, err := os.OpenFile(filepath.Join(s.Dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Uploaded{}, fmt.Errorf("create blob: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return Uploaded{}, fmt.Errorf("write blob: %w", err)
	}
	if err := dst.Close(); err != nil {
		return Uploaded{}, fmt.Errorf("close blob: %w", err)
	}

	return Uploaded{URL: s.PublicPrefix + "/" + name}, nil
}

func (s *LocalStorage) Delete(ctx context.Context, url, resourceType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := path.Base(url)
	if name == "." || name == "/" || name == "" {
		return fmt.Errorf("invalid attachment url %q", url)
	}

	err := os.Remove(filepath.Join(s.Dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
