package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rcliao/devplan/internal/builder"
	"github.com/rcliao/devplan/internal/model"
	"github.com/rcliao/devplan/internal/parser"
	"github.com/rcliao/devplan/internal/renderer"
	"github.com/rcliao/devplan/internal/store"
)

// fakeRenderer returns the request's source as media and records calls.
type fakeRenderer struct {
	mu    sync.Mutex
	calls []*model.RenderRequest
	err   error
}

func (f *fakeRenderer) Render(ctx context.Context, req *model.RenderRequest, timeout time.Duration) (*model.RenderResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	media := []byte("rendered:" + req.SourceText)
	return &model.RenderResult{
		Fingerprint: req.Fingerprint,
		MediaBytes:  media,
		MimeType:    req.Format.MimeType(),
		Size:        len(media),
	}, nil
}

func (f *fakeRenderer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestService(t *testing.T, r Renderer, opts ...Option) (*Service, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewService(st, r, opts...), st
}

const twoTasks = "Task A\nTask B depends-on A"

func TestRenderPlan_Idempotent(t *testing.T) {
	ctx := context.Background()
	fr := &fakeRenderer{}
	svc, _ := newTestService(t, fr)

	first, err := svc.RenderPlan(ctx, twoTasks, nil)
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	if first.Cached {
		t.Error("first render should not be cached")
	}

	second, err := svc.RenderPlan(ctx, twoTasks, nil)
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if !second.Cached {
		t.Error("second render should be served from the store")
	}
	if second.Fingerprint != first.Fingerprint || string(second.MediaBytes) != string(first.MediaBytes) {
		t.Error("second render returned a different artifact")
	}
	if fr.count() != 1 {
		t.Errorf("engine called %d times, want 1", fr.count())
	}
	if first.MimeType != "image/png" {
		t.Errorf("mime = %q, want image/png", first.MimeType)
	}
}

func TestRenderPlan_ConcurrentSameSource(t *testing.T) {
	fr := &fakeRenderer{}
	svc, _ := newTestService(t, fr)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	fresh := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.RenderPlan(context.Background(), twoTasks, map[string]string{"format": "svg"})
			errs <- err
			if err == nil {
				fresh <- !res.Cached
			}
		}()
	}
	wg.Wait()
	close(errs)
	close(fresh)
	for err := range errs {
		if err != nil {
			t.Fatalf("render: %v", err)
		}
	}
	if fr.count() != 1 {
		t.Errorf("engine called %d times, want 1", fr.count())
	}
	rendered := 0
	for f := range fresh {
		if f {
			rendered++
		}
	}
	if rendered != 1 {
		t.Errorf("%d results reported a fresh render, want 1", rendered)
	}
}

func TestRenderPlan_ParseErrorStoresNothing(t *testing.T) {
	ctx := context.Background()
	fr := &fakeRenderer{}
	svc, st := newTestService(t, fr)

	_, err := svc.RenderPlan(ctx, "Task B depends-on A", nil)
	var pe *parser.Error
	if !errors.As(err, &pe) || pe.Kind != parser.DanglingReference || pe.ReferencedID != "A" {
		t.Fatalf("expected dangling reference to A, got %v", err)
	}
	if Classify(err) != ClassParse {
		t.Errorf("class = %q, want parse", Classify(err))
	}
	if fr.count() != 0 {
		t.Error("engine should not run for an invalid plan")
	}
	stats, _ := st.Stats(ctx)
	if stats.TotalArtifacts != 0 {
		t.Errorf("expected no artifacts, got %d", stats.TotalArtifacts)
	}
}

func TestRenderPlan_ConfigErrorBeforeRender(t *testing.T) {
	fr := &fakeRenderer{}
	svc, _ := newTestService(t, fr)

	_, err := svc.RenderPlan(context.Background(), twoTasks, map[string]string{"forma t": "svg"})
	var ce *builder.ConfigError
	if !errors.As(err, &ce) || ce.Key != "forma t" {
		t.Fatalf("expected ConfigError for %q, got %v", "forma t", err)
	}
	if Classify(err) != ClassConfig {
		t.Errorf("class = %q, want config", Classify(err))
	}
	if fr.count() != 0 {
		t.Error("engine should not run when options are invalid")
	}
}

func TestRenderPlan_RenderErrorStoresNothing(t *testing.T) {
	ctx := context.Background()
	fr := &fakeRenderer{err: &renderer.Error{Kind: renderer.EngineFailure, ExitCode: 1, Stderr: "boom"}}
	svc, st := newTestService(t, fr)

	_, err := svc.RenderPlan(ctx, twoTasks, nil)
	if !renderer.IsKind(err, renderer.EngineFailure) {
		t.Fatalf("expected EngineFailure, got %v", err)
	}
	if Classify(err) != ClassRender {
		t.Errorf("class = %q, want render", Classify(err))
	}

	status, err := svc.Status(ctx, twoTasks, nil)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != StateNotRendered {
		t.Errorf("state = %q, want not_rendered", status.State)
	}
	stats, _ := st.Stats(ctx)
	if stats.TotalArtifacts != 0 {
		t.Errorf("expected no artifacts, got %d", stats.TotalArtifacts)
	}
}

func TestRenderPlan_CanceledCaller(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	svc, _ := newTestService(t, blockingRenderer(block))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	_, err := svc.RenderPlan(ctx, twoTasks, nil)
	if !renderer.IsKind(err, renderer.Canceled) {
		t.Fatalf("expected Canceled render error, got %v", err)
	}
	if Classify(err) != ClassRender {
		t.Errorf("class = %q, want render", Classify(err))
	}
}

type blockingRenderer chan struct{}

func (b blockingRenderer) Render(ctx context.Context, req *model.RenderRequest, timeout time.Duration) (*model.RenderResult, error) {
	<-b
	return &model.RenderResult{MediaBytes: []byte("late"), MimeType: "image/png"}, nil
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &fakeRenderer{})

	before, err := svc.Status(ctx, twoTasks, nil)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if before.State != StateNotRendered {
		t.Errorf("state = %q, want not_rendered", before.State)
	}

	res, _ := svc.RenderPlan(ctx, twoTasks, nil)
	after, _ := svc.Status(ctx, twoTasks, nil)
	if after.State != StateRendered || after.Fingerprint != res.Fingerprint {
		t.Errorf("after = %+v, want rendered %s", after, res.Fingerprint)
	}

	other, _ := svc.Status(ctx, twoTasks, map[string]string{"diagram": "graph"})
	if other.State != StateNotRendered {
		t.Error("a different diagram should not count as rendered")
	}
}

func TestWithDefaults(t *testing.T) {
	fr := &fakeRenderer{}
	svc, _ := newTestService(t, fr, WithDefaults(map[string]string{"format": "svg", "diagram": "graph"}))

	res, err := svc.RenderPlan(context.Background(), twoTasks, map[string]string{"diagram": "gantt"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if res.MimeType != "image/svg+xml" {
		t.Errorf("mime = %q, want the svg default", res.MimeType)
	}
	if fr.calls[0].Diagram != model.DiagramGantt {
		t.Errorf("caller options should override defaults, got %s", fr.calls[0].Diagram)
	}
}

func TestInspect(t *testing.T) {
	svc, _ := newTestService(t, &fakeRenderer{})
	doc, err := svc.Inspect(twoTasks)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if doc.Count(model.KindTask) != 2 {
		t.Errorf("tasks = %d", doc.Count(model.KindTask))
	}
}

func TestClassify(t *testing.T) {
	_, lexErr := parser.ParseText("Task a {")
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassNone},
		{"lex", lexErr, ClassLex},
		{"parse", &parser.Error{Kind: parser.UnknownNodeType}, ClassParse},
		{"config", &builder.ConfigError{Key: "x"}, ClassConfig},
		{"backpressure", fmt.Errorf("render: %w", renderer.ErrBackpressure), ClassBackpressure},
		{"render", &renderer.Error{Kind: renderer.Timeout}, ClassRender},
		{"store", &store.Error{Kind: store.IOFailure, Err: errors.New("disk")}, ClassStore},
		{"other", errors.New("mystery"), ClassInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
}
