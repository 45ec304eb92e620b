// Package watch re-renders library plans when their files change.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rcliao/devplan/internal/library"
	"github.com/rcliao/devplan/internal/logging"
	"github.com/rcliao/devplan/internal/pipeline"
)

// DefaultDebounce collapses the burst of events editors emit for one save.
const DefaultDebounce = 100 * time.Millisecond

// Result reports one re-render.
type Result struct {
	Name        string         `json:"name"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Cached      bool           `json:"cached"`
	Class       pipeline.Class `json:"class,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Watcher renders plans in a library directory as they are written.
type Watcher struct {
	lib      *library.Library
	svc      *pipeline.Service
	options  map[string]string
	debounce time.Duration
	onResult func(Result)
	log      *logging.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithOptions sets the render options applied to every plan.
func WithOptions(opts map[string]string) Option {
	return func(w *Watcher) { w.options = opts }
}

// WithDebounce sets the quiet period before pending changes are rendered.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithResultCallback sets the function called after each render attempt.
func WithResultCallback(cb func(Result)) Option {
	return func(w *Watcher) { w.onResult = cb }
}

// WithLogger sets the watcher logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// New creates a Watcher over lib. The library must live on the OS
// filesystem.
func New(lib *library.Library, svc *pipeline.Service, opts ...Option) *Watcher {
	w := &Watcher{
		lib:      lib,
		svc:      svc,
		debounce: DefaultDebounce,
		onResult: func(Result) {},
		log:      logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is done. ready, if non-nil, is closed once the
// directory is being watched.
func (w *Watcher) Run(ctx context.Context, ready chan<- struct{}) error {
	if err := os.MkdirAll(w.lib.Dir(), 0o755); err != nil {
		return fmt.Errorf("create library dir: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.lib.Dir()); err != nil {
		return fmt.Errorf("watch %s: %w", w.lib.Dir(), err)
	}
	w.log.Info("watching library", "dir", w.lib.Dir())
	if ready != nil {
		close(ready)
	}

	debounce := time.NewTimer(0)
	<-debounce.C
	defer debounce.Stop()
	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name, ok := planName(event.Name)
			if !ok {
				continue
			}
			pending[name] = true
			debounce.Reset(w.debounce)

		case <-debounce.C:
			for name := range pending {
				w.onResult(w.render(ctx, name))
			}
			pending = make(map[string]bool)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// planName returns the library name for a path, skipping temp files and
// other extensions.
func planName(path string) (string, bool) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, library.Ext) {
		return "", false
	}
	name, err := library.ValidateName(base)
	if err != nil {
		return "", false
	}
	return name, true
}

func (w *Watcher) render(ctx context.Context, name string) Result {
	res := Result{Name: name}
	src, err := w.lib.Read(name)
	if err != nil {
		res.Error = err.Error()
		res.Class = pipeline.ClassInternal
		return res
	}
	out, err := w.svc.RenderPlan(ctx, src, w.options)
	if err != nil {
		res.Error = err.Error()
		res.Class = pipeline.Classify(err)
		w.log.Warn("plan render failed", "name", name, "class", res.Class, "error", err)
		return res
	}
	res.Fingerprint = out.Fingerprint
	res.Cached = out.Cached
	w.log.Info("plan rendered", "name", name, "fingerprint", out.Fingerprint, "cached", out.Cached)
	return res
}
