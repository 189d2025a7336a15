package statestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// YAMLRepository implements Repository with one YAML file per source.
type YAMLRepository struct {
	directory string
}

var _ Repository = (*YAMLRepository)(nil)

// NewYAMLRepository creates a new YAMLRepository storing files under directory.
func NewYAMLRepository(directory string) *YAMLRepository {
	return &YAMLRepository{directory: directory}
}

func (r *YAMLRepository) filePath(source string) string {
	return filepath.Join(r.directory, unsafeFileChars.ReplaceAllString(source, "_")+".yml")
}

// Load returns the record of source, or nil if no file exists.
func (r *YAMLRepository) Load(_ context.Context, source string) (*Record, error) {
	f, err := os.Open(r.filePath(source))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("os.Open > %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var record Record
	if err := yaml.NewDecoder(f).Decode(&record); err != nil {
		return nil, fmt.Errorf("yaml.Decode(%s) > %w", f.Name(), err)
	}
	return &record, nil
}

// Save writes the record to a temporary file and renames it over the previous one.
func (r *YAMLRepository) Save(_ context.Context, record *Record) error {
	if err := os.MkdirAll(r.directory, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	path := r.filePath(record.Source)
	f, err := os.CreateTemp(r.directory, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("os.CreateTemp > %w", err)
	}
	tmp := f.Name()
	defer func() {
		_ = os.Remove(tmp)
	}()

	enc := yaml.NewEncoder(f)
	if err := enc.Encode(record); err != nil {
		_ = f.Close()
		return fmt.Errorf("yaml.Encode > %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("enc.Close > %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("f.Close > %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("os.Rename > %w", err)
	}
	return nil
}
