package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/devplan/internal/library"
	"github.com/rcliao/devplan/internal/model"
	"github.com/rcliao/devplan/internal/pipeline"
	"github.com/rcliao/devplan/internal/store"
)

type echoRenderer struct{}

func (echoRenderer) Render(ctx context.Context, req *model.RenderRequest, timeout time.Duration) (*model.RenderResult, error) {
	return &model.RenderResult{MediaBytes: []byte(req.SourceText), MimeType: req.Format.MimeType()}, nil
}

func startWatcher(t *testing.T) (*library.Library, <-chan Result) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	lib := library.NewOS(filepath.Join(t.TempDir(), "plans"))
	results := make(chan Result, 16)
	w := New(lib, pipeline.NewService(st, echoRenderer{}),
		WithDebounce(20*time.Millisecond),
		WithResultCallback(func(r Result) { results <- r }))

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, ready) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("run: %v", err)
		}
	})

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher not ready")
	}
	return lib, results
}

func waitResult(t *testing.T, results <-chan Result) Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no render result")
	}
	return Result{}
}

func TestWatcherRendersWrittenPlan(t *testing.T) {
	lib, results := startWatcher(t)

	if _, err := lib.Write("release", "Task A\nTask B depends-on A\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := waitResult(t, results)
	if r.Name != "release" || r.Error != "" || r.Fingerprint == "" {
		t.Fatalf("result = %+v", r)
	}
	if r.Cached {
		t.Error("first render should not be cached")
	}
}

func TestWatcherReportsInvalidPlan(t *testing.T) {
	lib, results := startWatcher(t)

	if _, err := lib.Write("broken", "Task B depends-on A\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := waitResult(t, results)
	if r.Class != pipeline.ClassParse || r.Error == "" {
		t.Fatalf("result = %+v", r)
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	lib, results := startWatcher(t)

	if err := os.WriteFile(filepath.Join(lib.Dir(), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	lib.Write("ok", "Task A\n")

	r := waitResult(t, results)
	if r.Name != "ok" {
		t.Errorf("expected only the plan to render, got %+v", r)
	}
}

func TestPlanName(t *testing.T) {
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"/p/release.plan", "release", true},
		{"/p/.release.plan.tmp", "", false},
		{"/p/.hidden.plan", "", false},
		{"/p/notes.txt", "", false},
	}
	for _, tt := range tests {
		got, ok := planName(tt.path)
		if got != tt.want || ok != tt.ok {
			t.Errorf("planName(%q) = %q, %v", tt.path, got, ok)
		}
	}
}
