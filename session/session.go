// Package session assembles the kernel pieces for one shell session: the
// mount manager built from configuration, the command registry, and a
// virtual PTY that owns the shell state. Nothing here is a singleton;
// callers own the session and can reset or close it at will.
package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"bavini/builtins"
	"bavini/config"
	"bavini/log"
	"bavini/mount"
	"bavini/pty"
	"bavini/shell"
	"bavini/vfs"
	"bavini/vfs/boltfs"
	"bavini/vfs/dirfs"
	"bavini/vfs/memfs"
)

// Session bundles the owned kernel state for one terminal.
type Session struct {
	ID       string
	Mounts   *mount.Manager
	Registry *builtins.Registry
	PTY      *pty.PTY

	cfg    *config.Config
	logger log.LibraryLogger
}

// New builds a session from configuration: every configured mount is
// created and initialized, outermost first, and a PTY is attached.
func New(ctx context.Context, cfg *config.Config, logger log.LibraryLogger) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = log.NoOpLogger{}
	}

	s := &Session{
		ID:     uuid.New().String(),
		cfg:    cfg,
		logger: logger,
	}
	if err := s.build(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) build(ctx context.Context) error {
	s.Mounts = mount.NewManager(s.logger)
	for _, spec := range s.cfg.Mounts {
		backend, err := newBackend(spec)
		if err != nil {
			return err
		}
		if err := s.Mounts.Mount(ctx, spec.Path, backend, spec.ReadOnly); err != nil {
			return err
		}
	}
	s.Registry = builtins.NewRegistry()
	s.PTY = pty.New(s.Mounts, s.Registry, shell.NewState(s.cfg.EnvOverrides()), s.logger)
	return nil
}

// newBackend constructs the backend for one mount spec. Init happens in
// Manager.Mount.
func newBackend(spec config.MountSpec) (vfs.Backend, error) {
	switch spec.Backend {
	case config.BackendMemory:
		return memfs.New(), nil
	case config.BackendBolt:
		return boltfs.New(spec.DB), nil
	case config.BackendDir:
		return dirfs.New(spec.Root), nil
	default:
		return nil, fmt.Errorf("unknown backend %q for mount %s", spec.Backend, spec.Path)
	}
}

// Reset tears the session down and rebuilds it from the same
// configuration. Tests use this instead of sharing module-level state.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.Mounts.UnmountAll(ctx); err != nil {
		return err
	}
	return s.build(ctx)
}

// Close releases every backend.
func (s *Session) Close(ctx context.Context) error {
	return s.Mounts.UnmountAll(ctx)
}
