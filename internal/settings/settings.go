// Package settings reads the enable flag for hot reload from a project
// settings file. The file is read on every call and never cached.
package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultFile = ".devtrigger.yaml"
	DefaultKey  = "defold_hot_reload"
)

// FileSource reads a YAML or JSON settings file. The key is looked up in the
// "settings" block first, then at the top level. Only a boolean true enables.
type FileSource struct {
	path string
	key  string
}

func NewFileSource(path, key string) *FileSource {
	if path == "" {
		path = DefaultFile
	}
	if key == "" {
		key = DefaultKey
	}
	return &FileSource{path: path, key: key}
}

func (s *FileSource) Path() string { return s.path }

// Enabled reports whether the flag is set. A missing file or key is false
// with a nil error.
func (s *FileSource) Enabled(ctx context.Context) (bool, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read settings %s: %w", s.path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return false, fmt.Errorf("parse settings %s: %w", s.path, err)
	}
	return lookup(doc, s.key), nil
}

func lookup(doc map[string]any, key string) bool {
	if block, ok := doc["settings"].(map[string]any); ok {
		if v, ok := block[key]; ok {
			b, isBool := v.(bool)
			return isBool && b
		}
	}
	b, isBool := doc[key].(bool)
	return isBool && b
}

// Static is an enable condition with a fixed value.
type Static bool

func (s Static) Enabled(context.Context) (bool, error) { return bool(s), nil }
