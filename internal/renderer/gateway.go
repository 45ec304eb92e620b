// Package renderer runs the external diagram engine as a subprocess.
package renderer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rcliao/devplan/internal/logging"
	"github.com/rcliao/devplan/internal/model"
)

// CommandContext is the function used to create exec.Cmd instances.
// It can be replaced in tests to mock command execution.
var CommandContext = exec.CommandContext

// FormatPlaceholder in an engine argument is replaced by the request format.
const FormatPlaceholder = "{format}"

const (
	DefaultCommand       = "java"
	DefaultTimeout       = 60 * time.Second
	DefaultStderrLimit   = 4096
	DefaultWaitDelay     = 2 * time.Second
	defaultMaxConcurrent = 2
)

// DefaultArgs runs PlantUML in pipe mode.
var DefaultArgs = []string{
	"-Djava.awt.headless=true",
	"-jar", "/opt/plantuml/plantuml.jar",
	"-pipe",
	"-t" + FormatPlaceholder,
	"-charset", "UTF-8",
}

// Settings configures the engine invocation.
type Settings struct {
	Command       string
	Args          []string
	MaxConcurrent int
	// QueueTimeout is how long Render waits for a free slot. Zero fails
	// immediately when all slots are busy.
	QueueTimeout time.Duration
	StderrLimit  int
	// WaitDelay bounds how long Wait drains pipes after the engine is killed.
	WaitDelay time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.Command == "" {
		s.Command = DefaultCommand
		if s.Args == nil {
			s.Args = DefaultArgs
		}
	}
	if s.MaxConcurrent <= 0 {
		s.MaxConcurrent = defaultMaxConcurrent
	}
	if s.StderrLimit <= 0 {
		s.StderrLimit = DefaultStderrLimit
	}
	if s.WaitDelay <= 0 {
		s.WaitDelay = DefaultWaitDelay
	}
	return s
}

// Gateway admits renders up to MaxConcurrent at a time and runs each in a
// fresh engine process.
type Gateway struct {
	settings Settings
	sem      *semaphore.Weighted
	log      *logging.Logger
}

// NewGateway creates a Gateway. A nil logger discards output.
func NewGateway(s Settings, log *logging.Logger) *Gateway {
	s = s.withDefaults()
	if log == nil {
		log = logging.NopLogger()
	}
	return &Gateway{
		settings: s,
		sem:      semaphore.NewWeighted(int64(s.MaxConcurrent)),
		log:      log,
	}
}

// Settings returns the effective settings.
func (g *Gateway) Settings() Settings {
	return g.settings
}

// Available checks that the engine command can be found.
func (g *Gateway) Available() error {
	if _, err := exec.LookPath(g.settings.Command); err != nil {
		return &Error{Kind: EngineUnavailable, Err: err}
	}
	return nil
}

// Render feeds req.SourceText to the engine and returns its stdout. A
// non-positive timeout uses DefaultTimeout. The engine process and anything
// it spawned are gone by the time Render returns.
func (g *Gateway) Render(ctx context.Context, req *model.RenderRequest, timeout time.Duration) (*model.RenderResult, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := g.admit(ctx); err != nil {
		return nil, err
	}
	defer g.sem.Release(1)

	log := g.log.WithFingerprint(req.Fingerprint)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := CommandContext(runCtx, g.settings.Command, g.args(req.Format)...)
	cmd.Stdin = strings.NewReader(req.SourceText)
	var stdout bytes.Buffer
	stderr := &limitedBuffer{limit: g.settings.StderrLimit}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = g.settings.WaitDelay
	configureProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return nil, g.contextError(ctx, timeout)
		}
		log.Error("engine start failed", "command", g.settings.Command, "error", err)
		return nil, &Error{Kind: EngineUnavailable, Err: err}
	}
	err := cmd.Wait()
	elapsed := time.Since(start)

	if err != nil || runCtx.Err() != nil {
		if ctx.Err() != nil {
			rerr := g.contextError(ctx, timeout)
			log.Warn("render aborted", "kind", rerr.Kind, "elapsed", elapsed)
			return nil, rerr
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			log.Warn("render timed out", "timeout", timeout, "elapsed", elapsed)
			return nil, &Error{Kind: Timeout, Timeout: timeout, Err: runCtx.Err()}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			rerr := &Error{Kind: EngineFailure, ExitCode: exitErr.ExitCode(), Stderr: stderr.String(), Err: err}
			log.Warn("engine failed", "exit_code", rerr.ExitCode, "stderr", rerr.Stderr)
			return nil, rerr
		}
		log.Error("engine wait failed", "error", err)
		return nil, &Error{Kind: EngineFailure, ExitCode: -1, Stderr: stderr.String(), Err: err}
	}

	if stdout.Len() == 0 {
		log.Warn("engine produced no output", "stderr", stderr.String())
		return nil, &Error{Kind: EmptyOutput, Stderr: stderr.String()}
	}

	media := stdout.Bytes()
	log.Info("rendered", "format", req.Format, "size", len(media), "elapsed", elapsed)
	return &model.RenderResult{
		Fingerprint: req.Fingerprint,
		MediaBytes:  media,
		MimeType:    req.Format.MimeType(),
		Size:        len(media),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// admit takes a render slot, waiting at most QueueTimeout.
func (g *Gateway) admit(ctx context.Context) error {
	if g.sem.TryAcquire(1) {
		return nil
	}
	if g.settings.QueueTimeout <= 0 {
		return ErrBackpressure
	}
	qctx, cancel := context.WithTimeout(ctx, g.settings.QueueTimeout)
	defer cancel()
	if err := g.sem.Acquire(qctx, 1); err != nil {
		if ctx.Err() != nil {
			return g.contextError(ctx, 0)
		}
		return ErrBackpressure
	}
	return nil
}

// contextError maps the caller's context failure to a render error.
func (g *Gateway) contextError(ctx context.Context, timeout time.Duration) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: Timeout, Timeout: timeout, Err: ctx.Err()}
	}
	return &Error{Kind: Canceled, Err: ctx.Err()}
}

func (g *Gateway) args(format model.Format) []string {
	out := make([]string, len(g.settings.Args))
	for i, a := range g.settings.Args {
		out[i] = strings.ReplaceAll(a, FormatPlaceholder, string(format))
	}
	return out
}

// limitedBuffer keeps the first limit bytes written and drops the rest
// without failing the writer.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
			b.truncated = true
		} else {
			b.buf.Write(p)
		}
	} else if len(p) > 0 {
		b.truncated = true
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	s := strings.TrimSpace(b.buf.String())
	if b.truncated {
		s += fmt.Sprintf(" [truncated at %d bytes]", b.limit)
	}
	return s
}
