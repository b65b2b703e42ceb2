// Package config loads the kernel configuration: which backends to mount
// where, shell defaults, and host-side paths for the persistent backends.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/ini.v1"
)

// Backend kinds accepted in a mount section.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendDir    = "dir"
)

// MountSpec describes one configured mount.
type MountSpec struct {
	// Path is the virtual mount point.
	Path string

	// Backend is one of the Backend* kinds.
	Backend string

	// ReadOnly rejects every write through this mount.
	ReadOnly bool

	// DB is the host path of the bolt database (bolt backend only).
	DB string

	// Root is the host directory backing the mount (dir backend only).
	Root string
}

// Config is the loaded configuration.
type Config struct {
	// Home and User seed the shell environment.
	Home string
	User string

	// Env carries extra environment overrides.
	Env map[string]string

	// Mounts lists the mount table, outermost first.
	Mounts []MountSpec

	// Verbose enables stdout logging in the CLI.
	Verbose bool
}

// Default returns the zero-configuration setup: one writable memory
// backend at "/".
func Default() *Config {
	return &Config{
		Home: "/home",
		User: "user",
		Env:  map[string]string{},
		Mounts: []MountSpec{
			{Path: "/", Backend: BackendMemory},
		},
	}
}

// EnvOverrides folds Home/User and the extra variables into the override
// map handed to shell state construction.
func (c *Config) EnvOverrides() map[string]string {
	env := map[string]string{}
	for k, v := range c.Env {
		env[k] = v
	}
	if c.Home != "" {
		env["HOME"] = c.Home
	}
	if c.User != "" {
		env["USER"] = c.User
	}
	return env
}

// Load reads an INI configuration file. A missing path returns defaults.
//
// Layout:
//
//	[shell]
//	home = /home
//	user = alice
//
//	[env]
//	EDITOR = nano
//
//	[mount "/"]
//	backend = memory
//
//	[mount "/data"]
//	backend = bolt
//	db = /var/lib/bavini/data.db
//
//	[mount "/host"]
//	backend = dir
//	root = ./host-files
//	readonly = true
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return cfg, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	shellSec := file.Section("shell")
	if v := shellSec.Key("home").String(); v != "" {
		cfg.Home = v
	}
	if v := shellSec.Key("user").String(); v != "" {
		cfg.User = v
	}

	for _, key := range file.Section("env").Keys() {
		cfg.Env[key.Name()] = key.String()
	}

	var mounts []MountSpec
	for _, sec := range file.Sections() {
		name := sec.Name()
		if !strings.HasPrefix(name, "mount ") {
			continue
		}
		spec := MountSpec{
			Path:     strings.Trim(strings.TrimPrefix(name, "mount "), `"`),
			Backend:  sec.Key("backend").MustString(BackendMemory),
			ReadOnly: sec.Key("readonly").MustBool(false),
			DB:       sec.Key("db").String(),
			Root:     sec.Key("root").String(),
		}
		if err := spec.validate(); err != nil {
			return nil, err
		}
		mounts = append(mounts, spec)
	}
	if len(mounts) > 0 {
		ensureRoot(&mounts)
		cfg.Mounts = mounts
	}
	return cfg, nil
}

func (s *MountSpec) validate() error {
	switch s.Backend {
	case BackendMemory:
	case BackendBolt:
		if s.DB == "" {
			return fmt.Errorf("mount %s: bolt backend requires db", s.Path)
		}
	case BackendDir:
		if s.Root == "" {
			return fmt.Errorf("mount %s: dir backend requires root", s.Path)
		}
	default:
		return fmt.Errorf("mount %s: unknown backend %q", s.Path, s.Backend)
	}
	return nil
}

// ensureRoot guarantees a "/" mount and keeps the list outermost-first
// for deterministic mounting.
func ensureRoot(mounts *[]MountSpec) {
	hasRoot := false
	for _, m := range *mounts {
		if m.Path == "/" {
			hasRoot = true
			break
		}
	}
	if !hasRoot {
		*mounts = append(*mounts, MountSpec{Path: "/", Backend: BackendMemory})
	}
	sort.SliceStable(*mounts, func(i, j int) bool {
		return len((*mounts)[i].Path) < len((*mounts)[j].Path)
	})
}
