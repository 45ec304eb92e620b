// Package pipeline runs plan text through parsing, building, rendering and
// storage.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rcliao/devplan/internal/builder"
	"github.com/rcliao/devplan/internal/logging"
	"github.com/rcliao/devplan/internal/model"
	"github.com/rcliao/devplan/internal/parser"
	"github.com/rcliao/devplan/internal/renderer"
	"github.com/rcliao/devplan/internal/store"
)

// Renderer produces media for a render request.
type Renderer interface {
	Render(ctx context.Context, req *model.RenderRequest, timeout time.Duration) (*model.RenderResult, error)
}

// Render states reported by Status.
const (
	StateRendered    = "rendered"
	StateNotRendered = "not_rendered"
)

// Status reports whether a plan's artifact already exists.
type Status struct {
	Fingerprint string        `json:"fingerprint"`
	Format      model.Format  `json:"format"`
	Diagram     model.Diagram `json:"diagram"`
	State       string        `json:"state"`
}

// Service is the parse, build, render and store pipeline.
type Service struct {
	store    store.Store
	renderer Renderer
	timeout  time.Duration
	defaults map[string]string
	log      *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout sets the per-render engine timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithDefaults sets option values used when a request omits them.
func WithDefaults(defaults map[string]string) Option {
	return func(s *Service) {
		for k, v := range defaults {
			if v != "" {
				s.defaults[k] = v
			}
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a Service.
func NewService(st store.Store, r Renderer, opts ...Option) *Service {
	s := &Service{
		store:    st,
		renderer: r,
		timeout:  renderer.DefaultTimeout,
		defaults: map[string]string{},
		log:      logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Inspect parses source without rendering.
func (s *Service) Inspect(source string) (*model.PlanDocument, error) {
	return parser.ParseText(source)
}

// Prepare parses source and builds the render request, applying the
// service defaults under the caller's options.
func (s *Service) Prepare(source string, options map[string]string) (*model.PlanDocument, *model.RenderRequest, error) {
	doc, err := parser.ParseText(source)
	if err != nil {
		return nil, nil, err
	}
	merged := make(map[string]string, len(s.defaults)+len(options))
	for k, v := range s.defaults {
		merged[k] = v
	}
	for k, v := range options {
		merged[k] = v
	}
	req, err := builder.Build(doc, merged)
	if err != nil {
		return nil, nil, err
	}
	return doc, req, nil
}

// RenderPlan returns the artifact for source, rendering it only when no
// artifact with the same fingerprint is stored. Nothing is stored unless
// the engine succeeds.
func (s *Service) RenderPlan(ctx context.Context, source string, options map[string]string) (*model.RenderResult, error) {
	_, req, err := s.Prepare(source, options)
	if err != nil {
		s.log.Debug("plan rejected", "class", Classify(err), "error", err)
		return nil, err
	}
	log := s.log.WithFingerprint(req.Fingerprint)

	rec, created, err := s.store.GetOrCreate(ctx, req.Fingerprint, func(ctx context.Context) (*model.ArtifactRecord, error) {
		res, err := s.renderer.Render(ctx, req, s.timeout)
		if err != nil {
			return nil, err
		}
		return &model.ArtifactRecord{
			Format:   req.Format,
			Diagram:  req.Diagram,
			MimeType: res.MimeType,
			Media:    res.MediaBytes,
		}, nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			var re *renderer.Error
			if !errors.As(err, &re) {
				err = &renderer.Error{Kind: renderer.Canceled, Err: err}
			}
		}
		log.Warn("render failed", "class", Classify(err), "error", err)
		return nil, err
	}

	log.Info("plan rendered", "cached", !created, "size", rec.Size)
	return &model.RenderResult{
		Fingerprint: rec.Fingerprint,
		MediaBytes:  rec.Media,
		MimeType:    rec.MimeType,
		Size:        rec.Size,
		GeneratedAt: rec.CreatedAt,
		Cached:      !created,
	}, nil
}

// Status reports whether source has been rendered with options, without
// invoking the engine.
func (s *Service) Status(ctx context.Context, source string, options map[string]string) (*Status, error) {
	_, req, err := s.Prepare(source, options)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.Has(ctx, req.Fingerprint)
	if err != nil {
		return nil, err
	}
	st := &Status{Fingerprint: req.Fingerprint, Format: req.Format, Diagram: req.Diagram, State: StateNotRendered}
	if ok {
		st.State = StateRendered
	}
	return st, nil
}
