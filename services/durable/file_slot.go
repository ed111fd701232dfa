package durable

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// FileSlot stores the value as <dir>/<key>.json.
type FileSlot struct {
	fs   afero.Fs
	path string
}

// NewFileSlot creates the directory if needed. A nil fs uses the OS filesystem.
func NewFileSlot(fs afero.Fs, dir, key string) (*FileSlot, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage directory not provided")
	}
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("slot key not provided")
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create slot dir: %w", err)
	}
	return &FileSlot{fs: fs, path: filepath.Join(dir, key+".json")}, nil
}

func (f *FileSlot) Name() string { return "file" }

// Path returns the file backing the slot.
func (f *FileSlot) Path() string { return f.path }

func (f *FileSlot) Load(ctx context.Context) ([]byte, bool, error) {
	data, err := afero.ReadFile(f.fs, f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", f.path, err)
	}
	return data, true, nil
}

// Save writes to a temp file and renames it over the slot.
func (f *FileSlot) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	file, err := f.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		_ = f.fs.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		_ = f.fs.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = f.fs.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := f.fs.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace slot file: %w", err)
	}
	return nil
}
