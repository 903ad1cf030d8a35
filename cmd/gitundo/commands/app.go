// Package commands implements the gitundo CLI subcommands.
package commands

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/tikihq/gitundo/internal/checkpoint"
	"github.com/tikihq/gitundo/internal/config"
	intobs "github.com/tikihq/gitundo/internal/observability"
	"github.com/tikihq/gitundo/internal/provenance"
	"github.com/tikihq/gitundo/internal/rollback"
	"github.com/tikihq/gitundo/internal/vcs"
	"github.com/tikihq/gitundo/pkg/observability"
	"github.com/tikihq/gitundo/pkg/version"
)

// Application modes passed to newApp.
const (
	modeCLI = observability.ModeCLI
	modeMCP = observability.ModeMCP
)

// commonFlags are the flags shared by every repository-touching command.
type commonFlags struct {
	repoPath   string
	configPath string
	format     string
}

// register adds the shared flags to a command.
func (f *commonFlags) register(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&f.repoPath, "repo", "r", ".", "path to the git repository")
	cmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "config file (default .gitundo.yaml in repo or $HOME)")
	cmd.PersistentFlags().StringVarP(&f.format, "format", "f", formatTable, "output format: table, json, or yaml")
}

// app bundles the wired dependencies of one CLI invocation.
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	adapter     *vcs.Git
	store       *provenance.Store
	checkpoints *checkpoint.Manager
	engine      *rollback.Engine
	metrics     *intobs.REDMetrics
	tracer      trace.Tracer
	shutdown    func(ctx context.Context)
}

// newApp loads configuration, initializes observability, and wires the
// adapter, stores, and engine for one repository.
func newApp(flags *commonFlags, mode observability.AppMode) (*app, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	level, err := config.ParseLogLevel(cfg.Observability.LogLevel)
	if err != nil {
		return nil, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = cfg.Observability.Environment
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Observability.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.DebugTrace = cfg.Observability.DebugTrace
	obsCfg.SampleRatio = cfg.Observability.SampleRatio
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Observability.LogJSON

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, err
	}

	metrics, err := intobs.NewREDMetrics(providers.Meter)
	if err != nil {
		return nil, err
	}

	adapter, err := vcs.Open(flags.repoPath, vcs.RunnerOptions{
		Binary:  cfg.Git.Binary,
		Timeout: time.Duration(cfg.Git.TimeoutSec) * time.Second,
		Logger:  providers.Logger,
	})
	if err != nil {
		return nil, err
	}

	stateDir := cfg.StateDir
	if !filepath.IsAbs(stateDir) {
		stateDir = filepath.Join(flags.repoPath, stateDir)
	}

	store := provenance.NewStore(stateDir, adapter, providers.Logger)
	checkpoints := checkpoint.NewManager(stateDir, adapter, providers.Logger)

	engine := rollback.NewEngine(adapter, store, checkpoints, rollback.EngineOptions{
		Logger:       providers.Logger,
		Metrics:      metrics,
		Tracer:       providers.Tracer,
		BackupPrefix: cfg.Rollback.BackupPrefix,
	})

	return &app{
		cfg:         cfg,
		logger:      providers.Logger,
		adapter:     adapter,
		store:       store,
		checkpoints: checkpoints,
		engine:      engine,
		metrics:     metrics,
		tracer:      providers.Tracer,
		shutdown: func(ctx context.Context) {
			adapter.Close()

			shutdownErr := providers.Shutdown(ctx)
			if shutdownErr != nil {
				providers.Logger.Warn("observability shutdown failed", slog.Any("error", shutdownErr))
			}
		},
	}, nil
}
