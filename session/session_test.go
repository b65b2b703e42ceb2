package session

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"bavini/config"
	"bavini/pty"
)

func TestNewDefaultSession(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close(ctx)

	if s.ID == "" {
		t.Error("session has no ID")
	}
	if len(s.Mounts.Mounts()) != 1 {
		t.Errorf("mounts = %d, want 1", len(s.Mounts.Mounts()))
	}
	if s.PTY.State().Cwd != "/home" {
		t.Errorf("cwd = %q", s.PTY.State().Cwd)
	}
}

func TestConfiguredMounts(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()
	cfg := config.Default()
	cfg.Mounts = []config.MountSpec{
		{Path: "/", Backend: config.BackendMemory},
		{Path: "/data", Backend: config.BackendBolt, DB: filepath.Join(tmp, "data.db")},
		{Path: "/host", Backend: config.BackendDir, Root: filepath.Join(tmp, "host")},
	}

	s, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close(ctx)

	if got := len(s.Mounts.Mounts()); got != 3 {
		t.Fatalf("mounts = %d, want 3", got)
	}
	// Both persistent backends are reachable through the manager.
	if err := s.Mounts.WriteTextFile(ctx, "/data/f", "x"); err != nil {
		t.Errorf("write to bolt mount failed: %v", err)
	}
	if err := s.Mounts.WriteTextFile(ctx, "/host/g", "y"); err != nil {
		t.Errorf("write to dir mount failed: %v", err)
	}
}

func TestSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close(ctx)

	var out strings.Builder
	s.PTY.SetOutput(func(ev pty.Event) {
		if ev.Kind == pty.EventStdout {
			out.WriteString(ev.Data)
		}
	})
	s.PTY.Write([]byte("echo kernel up\r"))
	s.PTY.WaitIdle()

	if !strings.Contains(out.String(), "kernel up") {
		t.Errorf("output = %q", out.String())
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close(ctx)

	if err := s.Mounts.WriteTextFile(ctx, "/leftover", "x"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if ok, _ := s.Mounts.Exists(ctx, "/leftover"); ok {
		t.Error("state survived Reset on a volatile mount")
	}
}

func TestUnknownBackendRejected(t *testing.T) {
	cfg := config.Default()
	cfg.Mounts = []config.MountSpec{{Path: "/", Backend: "tape"}}
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatal("unknown backend accepted")
	}
}
