package renderer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/rcliao/devplan/internal/model"
)

// useHelper swaps CommandContext for one that re-runs the test binary as a
// fake engine in the given mode.
func useHelper(t *testing.T, mode string, env ...string) {
	t.Helper()
	original := CommandContext
	t.Cleanup(func() { CommandContext = original })

	CommandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", mode}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(append(os.Environ(), "GO_WANT_HELPER_PROCESS=1"), env...)
		return cmd
	}
}

// TestHelperProcess is the fake engine. It is not a real test.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		os.Exit(2)
	}
	mode, rest := args[1], args[2:]

	switch mode {
	case "echo":
		io.Copy(os.Stdout, os.Stdin)
	case "args":
		io.Copy(io.Discard, os.Stdin)
		fmt.Print(strings.Join(rest, " "))
	case "empty":
		io.Copy(io.Discard, os.Stdin)
		fmt.Fprint(os.Stderr, "nothing to draw")
	case "fail":
		fmt.Fprint(os.Stderr, "Syntax Error? line 2")
		os.Exit(3)
	case "noisy":
		fmt.Fprint(os.Stderr, strings.Repeat("x", 10000))
		os.Exit(1)
	case "sleep":
		time.Sleep(time.Minute)
	case "spawn":
		// Start a grandchild in the same process group, record its pid,
		// then hang.
		child := exec.Command(os.Args[0], "-test.run=TestHelperProcess", "--", "sleep")
		child.Env = os.Environ()
		if err := child.Start(); err != nil {
			os.Exit(4)
		}
		os.WriteFile(os.Getenv("HELPER_PID_FILE"), []byte(fmt.Sprint(child.Process.Pid)), 0644)
		time.Sleep(time.Minute)
	}
	os.Exit(0)
}

func newTestGateway(s Settings) *Gateway {
	if s.Command == "" {
		s.Command = "fake-engine"
		s.Args = []string{"-pipe", "-t" + FormatPlaceholder}
	}
	if s.WaitDelay == 0 {
		s.WaitDelay = time.Second
	}
	return NewGateway(s, nil)
}

func testRequest() *model.RenderRequest {
	return &model.RenderRequest{
		Format:      model.FormatSVG,
		Diagram:     model.DiagramGantt,
		SourceText:  "@startgantt\n[A] lasts 1 day\n@endgantt\n",
		Fingerprint: "fp-test",
	}
}

func TestRender_Success(t *testing.T) {
	useHelper(t, "echo")
	g := newTestGateway(Settings{})

	res, err := g.Render(context.Background(), testRequest(), 10*time.Second)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(res.MediaBytes) != testRequest().SourceText {
		t.Errorf("media = %q, want the echoed source", res.MediaBytes)
	}
	if res.MimeType != "image/svg+xml" {
		t.Errorf("mime = %q", res.MimeType)
	}
	if res.Size != len(res.MediaBytes) || res.Fingerprint != "fp-test" {
		t.Errorf("result = %+v", res)
	}
}

func TestRender_FormatPlaceholder(t *testing.T) {
	useHelper(t, "args")
	g := newTestGateway(Settings{})

	res, err := g.Render(context.Background(), testRequest(), 10*time.Second)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := string(res.MediaBytes); got != "-pipe -tsvg" {
		t.Errorf("engine args = %q, want %q", got, "-pipe -tsvg")
	}
}

func TestRender_EmptyOutput(t *testing.T) {
	useHelper(t, "empty")
	g := newTestGateway(Settings{})

	_, err := g.Render(context.Background(), testRequest(), 10*time.Second)
	if !IsKind(err, EmptyOutput) {
		t.Fatalf("expected EmptyOutput, got %v", err)
	}
}

func TestRender_EngineFailure(t *testing.T) {
	useHelper(t, "fail")
	g := newTestGateway(Settings{})

	_, err := g.Render(context.Background(), testRequest(), 10*time.Second)
	var re *Error
	if !errors.As(err, &re) || re.Kind != EngineFailure {
		t.Fatalf("expected EngineFailure, got %v", err)
	}
	if re.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", re.ExitCode)
	}
	if !strings.Contains(re.Stderr, "Syntax Error") {
		t.Errorf("stderr = %q", re.Stderr)
	}
}

func TestRender_StderrIsCapped(t *testing.T) {
	useHelper(t, "noisy")
	g := newTestGateway(Settings{StderrLimit: 100})

	_, err := g.Render(context.Background(), testRequest(), 10*time.Second)
	var re *Error
	if !errors.As(err, &re) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if !strings.HasPrefix(re.Stderr, strings.Repeat("x", 100)+" [truncated") {
		t.Errorf("stderr not capped: %d bytes", len(re.Stderr))
	}
}

func TestRender_Timeout(t *testing.T) {
	useHelper(t, "sleep")
	g := newTestGateway(Settings{})

	start := time.Now()
	_, err := g.Render(context.Background(), testRequest(), 200*time.Millisecond)
	elapsed := time.Since(start)

	var re *Error
	if !errors.As(err, &re) || re.Kind != Timeout {
		t.Fatalf("expected Timeout, got %v", err)
	}
	if re.Timeout != 200*time.Millisecond {
		t.Errorf("timeout = %s", re.Timeout)
	}
	if elapsed > 5*time.Second {
		t.Errorf("render returned after %s, want close to the timeout", elapsed)
	}
}

func TestRender_Canceled(t *testing.T) {
	useHelper(t, "sleep")
	g := newTestGateway(Settings{})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := g.Render(ctx, testRequest(), 30*time.Second)
	if !IsKind(err, Canceled) {
		t.Fatalf("expected Canceled, got %v", err)
	}
}

func TestRender_EngineUnavailable(t *testing.T) {
	g := newTestGateway(Settings{Command: "/nonexistent/devplan-engine"})

	_, err := g.Render(context.Background(), testRequest(), time.Second)
	if !IsKind(err, EngineUnavailable) {
		t.Fatalf("expected EngineUnavailable, got %v", err)
	}
	if g.Available() == nil {
		t.Error("Available should report the missing engine")
	}
}

func TestRender_Backpressure(t *testing.T) {
	useHelper(t, "echo")
	ctx := context.Background()

	t.Run("no queueing", func(t *testing.T) {
		g := newTestGateway(Settings{MaxConcurrent: 1})
		g.sem.Acquire(ctx, 1)

		_, err := g.Render(ctx, testRequest(), time.Second)
		if !errors.Is(err, ErrBackpressure) {
			t.Fatalf("expected ErrBackpressure, got %v", err)
		}

		g.sem.Release(1)
		if _, err := g.Render(ctx, testRequest(), 10*time.Second); err != nil {
			t.Fatalf("render after release: %v", err)
		}
	})

	t.Run("queue timeout", func(t *testing.T) {
		g := newTestGateway(Settings{MaxConcurrent: 1, QueueTimeout: 50 * time.Millisecond})
		g.sem.Acquire(ctx, 1)
		defer g.sem.Release(1)

		start := time.Now()
		_, err := g.Render(ctx, testRequest(), time.Second)
		if !errors.Is(err, ErrBackpressure) {
			t.Fatalf("expected ErrBackpressure, got %v", err)
		}
		if time.Since(start) < 50*time.Millisecond {
			t.Error("expected Render to wait for the queue timeout")
		}
	})

	t.Run("slot frees while queued", func(t *testing.T) {
		g := newTestGateway(Settings{MaxConcurrent: 1, QueueTimeout: 5 * time.Second})
		g.sem.Acquire(ctx, 1)
		time.AfterFunc(50*time.Millisecond, func() { g.sem.Release(1) })

		if _, err := g.Render(ctx, testRequest(), 10*time.Second); err != nil {
			t.Fatalf("render: %v", err)
		}
	})
}

func TestLimitedBuffer(t *testing.T) {
	b := &limitedBuffer{limit: 5}
	n, err := b.Write([]byte("abc"))
	if n != 3 || err != nil {
		t.Fatalf("write = %d, %v", n, err)
	}
	b.Write([]byte("defgh"))
	b.Write([]byte("ij"))
	if got := b.String(); got != "abcde [truncated at 5 bytes]" {
		t.Errorf("String() = %q", got)
	}
}
