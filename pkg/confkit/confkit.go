// Package confkit holds the small pieces shared by every genetix config file:
// section files referenced from etc/genetix.yaml, env expansion, duration
// parsing and locating the project root.
package confkit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Section is a config block stored in its own file and referenced by path
// from the main config. Value is filled by Hydrate.
type Section[T any] struct {
	File  string `json:",optional"`
	Value *T     `json:"-"`
}

// Hydrate loads File relative to base. An empty File leaves the section untouched.
func (s *Section[T]) Hydrate(base string, loader func(string) (*T, error)) error {
	if strings.TrimSpace(s.File) == "" {
		return nil
	}
	p := ResolvePath(base, s.File)
	v, err := loader(p)
	if err != nil {
		return err
	}
	s.File, s.Value = p, v
	return nil
}

// Loaded reports whether the section carries a value.
func (s Section[T]) Loaded() bool { return s.Value != nil }

// ResolvePath expands env vars in file and joins it to base unless absolute.
func ResolvePath(base, file string) string {
	file = os.ExpandEnv(file)
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(base, file)
}

// BaseDir returns the directory holding the main config file.
func BaseDir(mainPath string) string {
	return filepath.Dir(mainPath)
}

// Expand trims raw after substituting ${VAR} references.
func Expand(raw string) string {
	return strings.TrimSpace(os.ExpandEnv(raw))
}

// PositiveDuration parses raw after env expansion. An empty value yields
// fallback, or an error when fallback is not positive.
func PositiveDuration(scope, field, raw string, fallback time.Duration) (time.Duration, error) {
	raw = Expand(raw)
	if raw == "" {
		if fallback > 0 {
			return fallback, nil
		}
		return 0, fmt.Errorf("%s: %s is required", scope, field)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid %s %q: %w", scope, field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: %s must be positive, got %s", scope, field, d)
	}
	return d, nil
}
