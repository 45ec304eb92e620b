// Package library manages the directory of named plan files.
package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Ext is the file extension of plans in the library.
const Ext = ".plan"

var (
	ErrNotFound    = errors.New("plan not found")
	ErrInvalidName = errors.New("invalid plan name")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// Plan describes one stored plan file.
type Plan struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Library stores plans as {dir}/{name}.plan on fs.
type Library struct {
	fs  afero.Fs
	dir string
}

// New returns a Library rooted at dir on fs.
func New(fs afero.Fs, dir string) *Library {
	return &Library{fs: fs, dir: dir}
}

// NewOS returns a Library on the real filesystem.
func NewOS(dir string) *Library {
	return New(afero.NewOsFs(), dir)
}

// Dir returns the library directory.
func (l *Library) Dir() string {
	return l.dir
}

// ValidateName normalises name, dropping a trailing .plan, and rejects
// anything that could escape the library directory.
func ValidateName(name string) (string, error) {
	name = strings.TrimSuffix(name, Ext)
	if !namePattern.MatchString(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return name, nil
}

// Path returns the file path for a validated name.
func (l *Library) Path(name string) string {
	return filepath.Join(l.dir, name+Ext)
}

// List returns the plans in the library sorted by name. A missing directory
// is an empty library.
func (l *Library) List() ([]Plan, error) {
	entries, err := afero.ReadDir(l.fs, l.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read library: %w", err)
	}

	var plans []Plan
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Ext) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), Ext)
		if _, err := ValidateName(name); err != nil {
			continue
		}
		plans = append(plans, Plan{Name: name, Size: e.Size(), ModTime: e.ModTime().UTC()})
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Name < plans[j].Name })
	return plans, nil
}

// Read returns a plan's text.
func (l *Library) Read(name string) (string, error) {
	name, err := ValidateName(name)
	if err != nil {
		return "", err
	}
	data, err := afero.ReadFile(l.fs, l.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("read plan %s: %w", name, err)
	}
	return string(data), nil
}

// Stat returns metadata for one plan.
func (l *Library) Stat(name string) (*Plan, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, err
	}
	info, err := l.fs.Stat(l.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("stat plan %s: %w", name, err)
	}
	return &Plan{Name: name, Size: info.Size(), ModTime: info.ModTime().UTC()}, nil
}

// Write stores content under name, replacing any existing plan. The file is
// written to a temporary name and renamed into place.
func (l *Library) Write(name, content string) (*Plan, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, err
	}
	if err := l.fs.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create library dir: %w", err)
	}

	tmp := filepath.Join(l.dir, "."+name+Ext+".tmp")
	if err := afero.WriteFile(l.fs, tmp, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write plan %s: %w", name, err)
	}
	if err := l.fs.Rename(tmp, l.Path(name)); err != nil {
		l.fs.Remove(tmp)
		return nil, fmt.Errorf("write plan %s: %w", name, err)
	}
	return l.Stat(name)
}

// Remove deletes a plan.
func (l *Library) Remove(name string) error {
	name, err := ValidateName(name)
	if err != nil {
		return err
	}
	err = l.fs.Remove(l.Path(name))
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("remove plan %s: %w", name, err)
	}
	return nil
}
