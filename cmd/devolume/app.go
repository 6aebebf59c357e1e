package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/sigreer/devolume/internal/command"
	"github.com/sigreer/devolume/internal/config"
	"github.com/sigreer/devolume/internal/handles"
	"github.com/sigreer/devolume/internal/history"
	"github.com/sigreer/devolume/internal/logging"
	"github.com/sigreer/devolume/internal/terminate"
	"github.com/sigreer/devolume/internal/volume"
	"github.com/sigreer/devolume/internal/workflow"
)

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	lister   *volume.Lister
	prober   *handles.Prober
	executor *terminate.Executor
	history  *history.DB
}

// setup loads config, configures logging and builds the components.
// It exits the process on failure.
func setup() *app {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if verbose {
		level = "debug"
	}
	if err := logging.Setup(level, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %v\n", err)
		os.Exit(1)
	}

	source, err := handles.NewSource(cfg.Probe.Backend, cfg.Probe.LsofPath, command.Real{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring probe: %v\n", err)
		os.Exit(1)
	}

	return &app{
		cfg:    cfg,
		lister: volume.NewLister(volume.NewSystemEnumerator(), cfg.Volumes.ExternalPrefixes),
		prober: handles.NewProber(source, cfg.Probe.Timeout),
		executor: terminate.NewExecutor(
			terminate.NewProcessKiller(cfg.Terminate.PollInterval),
			terminate.WithWaitTimeout(cfg.Terminate.WaitTimeout),
			terminate.WithParallelism(cfg.Terminate.Parallelism),
		),
	}
}

// openHistory opens the audit log when it is enabled. A failure to open
// it is logged and terminations proceed unrecorded.
func (a *app) openHistory() *history.DB {
	if !a.cfg.History.Enabled || a.history != nil {
		return a.history
	}
	db, err := history.New(a.cfg.History.Path)
	if err != nil {
		log.Warn().Err(err).Str("path", a.cfg.History.Path).Msg("history disabled for this run")
		return nil
	}
	a.history = db
	return db
}

// session returns a new workflow session, recording batches when the
// audit log is enabled.
func (a *app) session() *workflow.Session {
	s := workflow.NewSession(a.lister, a.prober, a.executor)
	if db := a.openHistory(); db != nil {
		s.SetRecorder(db)
	}
	return s
}

func (a *app) close() {
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close history database")
		}
		a.history = nil
	}
}
