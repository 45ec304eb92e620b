//go:build unix

package renderer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"
)

func TestRender_TimeoutKillsProcessGroup(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "child.pid")
	useHelper(t, "spawn", "HELPER_PID_FILE="+pidFile)
	g := newTestGateway(Settings{})

	_, err := g.Render(context.Background(), testRequest(), 2*time.Second)
	if !IsKind(err, Timeout) {
		t.Fatalf("expected Timeout, got %v", err)
	}

	data, err := os.ReadFile(pidFile)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("parse pid: %v", err)
	}

	// The orphaned grandchild is reaped by init shortly after the kill.
	deadline := time.Now().Add(5 * time.Second)
	for {
		err := syscall.Kill(pid, 0)
		if errors.Is(err, syscall.ESRCH) {
			return
		}
		if time.Now().After(deadline) {
			syscall.Kill(pid, syscall.SIGKILL)
			t.Fatalf("grandchild %d still alive after render returned", pid)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
