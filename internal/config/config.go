package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sigreer/devolume/internal/handles"
	"github.com/sigreer/devolume/internal/history"
	"github.com/sigreer/devolume/internal/terminate"
	"github.com/sigreer/devolume/internal/volume"
)

type Config struct {
	LogLevel  string    `yaml:"log_level"`
	Volumes   Volumes   `yaml:"volumes"`
	Probe     Probe     `yaml:"probe"`
	Terminate Terminate `yaml:"terminate"`
	History   History   `yaml:"history"`
}

type Volumes struct {
	// Mount locations that qualify a volume as external regardless of its properties
	ExternalPrefixes []string `yaml:"external_prefixes"`
}

type Probe struct {
	// Backend: "auto", "lsof", or "procfs"
	Backend  string        `yaml:"backend"`
	LsofPath string        `yaml:"lsof_path"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Terminate struct {
	WaitTimeout  time.Duration `yaml:"wait_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Parallelism  int           `yaml:"parallelism"`
}

type History struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// Default returns the built-in settings used when no config file exists.
func Default() Config {
	return Config{
		LogLevel: "info",
		Volumes: Volumes{
			ExternalPrefixes: volume.DefaultExternalPrefixes(),
		},
		Probe: Probe{
			Backend:  handles.BackendAuto,
			LsofPath: "lsof",
			Timeout:  handles.DefaultTimeout,
		},
		Terminate: Terminate{
			WaitTimeout:  terminate.DefaultWaitTimeout,
			PollInterval: terminate.DefaultPollInterval,
			Parallelism:  1,
		},
		History: History{
			Path: history.DefaultPath(),
		},
	}
}

// Candidates lists the config locations tried when no path is given.
func Candidates() []string {
	return []string{
		"/etc/devolume/config.yaml",
		filepath.Join(os.Getenv("HOME"), ".config/devolume/config.yaml"),
		"config.yaml",
	}
}

func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		for _, c := range Candidates() {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err != nil && explicit:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills zero-valued fields from Default.
func (c *Config) applyDefaults() {
	def := Default()

	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if len(c.Volumes.ExternalPrefixes) == 0 {
		c.Volumes.ExternalPrefixes = def.Volumes.ExternalPrefixes
	}
	if c.Probe.Backend == "" {
		c.Probe.Backend = def.Probe.Backend
	}
	if c.Probe.LsofPath == "" {
		c.Probe.LsofPath = def.Probe.LsofPath
	}
	if c.Probe.Timeout == 0 {
		c.Probe.Timeout = def.Probe.Timeout
	}
	if c.Terminate.WaitTimeout == 0 {
		c.Terminate.WaitTimeout = def.Terminate.WaitTimeout
	}
	if c.Terminate.PollInterval == 0 {
		c.Terminate.PollInterval = def.Terminate.PollInterval
	}
	if c.Terminate.Parallelism == 0 {
		c.Terminate.Parallelism = def.Terminate.Parallelism
	}
	if c.History.Path == "" {
		c.History.Path = def.History.Path
	}
}

// Validate rejects settings the components cannot run with.
func (c *Config) Validate() error {
	switch c.Probe.Backend {
	case handles.BackendAuto, handles.BackendLsof, handles.BackendProcfs:
	default:
		return fmt.Errorf("invalid probe.backend %q (want auto, lsof or procfs)", c.Probe.Backend)
	}
	if c.Probe.Timeout < 0 {
		return fmt.Errorf("probe.timeout must be positive, got %s", c.Probe.Timeout)
	}
	if c.Terminate.WaitTimeout < 0 {
		return fmt.Errorf("terminate.wait_timeout must be positive, got %s", c.Terminate.WaitTimeout)
	}
	if c.Terminate.PollInterval < 0 {
		return fmt.Errorf("terminate.poll_interval must be positive, got %s", c.Terminate.PollInterval)
	}
	if c.Terminate.Parallelism < 1 {
		return fmt.Errorf("terminate.parallelism must be at least 1, got %d", c.Terminate.Parallelism)
	}
	return nil
}
