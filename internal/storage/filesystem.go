package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Filesystem stores image blobs under a local directory, one file per key.
type Filesystem struct {
	root string
}

func NewFilesystem(root string) (*Filesystem, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("blob directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve blob directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &Filesystem{root: abs}, nil
}

func (f *Filesystem) Root() string {
	return f.root
}

func (f *Filesystem) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(f.root)
	if err != nil {
		return fmt.Errorf("stat blob directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("blob path %s is not a directory", f.root)
	}
	return nil
}

func (f *Filesystem) WriteObject(ctx context.Context, objectKey string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath := f.pathFor(objectKey)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".put-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write object %s: %w", objectKey, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close object %s: %w", objectKey, err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("commit object %s: %w", objectKey, err)
	}
	return nil
}

func (f *Filesystem) ReadObject(ctx context.Context, objectKey string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.pathFor(objectKey))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read object %s: %w", objectKey, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("read object %s: %w", objectKey, err)
	}
	return data, nil
}

func (f *Filesystem) pathFor(objectKey string) string {
	parts := strings.Split(strings.Trim(objectKey, "/"), "/")
	for i, part := range parts {
		parts[i] = sanitizePathToken(part)
	}
	return filepath.Join(append([]string{f.root}, parts...)...)
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" || in == "." || in == ".." {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
