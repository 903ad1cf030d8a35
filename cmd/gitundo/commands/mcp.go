package commands

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/tikihq/gitundo/internal/mcp"
	"github.com/tikihq/gitundo/pkg/observability"
)

// metricsReadTimeout bounds request header reads on the metrics listener.
const metricsReadTimeout = 5 * time.Second

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	common := &commonFlags{}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes gitundo operations as tools that agents and UI
layers can discover and invoke:
  - rollback_preview / rollback_execute
  - checkpoint_create / checkpoint_list / checkpoint_delete
  - provenance_track / provenance_status`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := newApp(common, modeMCP)
			if err != nil {
				return err
			}
			defer application.shutdown(cmd.Context())

			if listen := application.cfg.Observability.MetricsListen; listen != "" {
				serveMetrics(listen, application.logger)
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Engine:      application.engine,
				Store:       application.store,
				Checkpoints: application.checkpoints,
				Adapter:     application.adapter,
				Logger:      application.logger,
				Metrics:     application.metrics,
				Tracer:      application.tracer,
			})

			return srv.Run(cmd.Context())
		},
	}

	common.register(cmd)

	return cmd
}

// serveMetrics starts the /metrics and /healthz listener in the
// background. Failures are logged, not fatal: telemetry never blocks the
// stdio server.
func serveMetrics(listen string, logger *slog.Logger) {
	handler, err := observability.PrometheusHandler()
	if err != nil {
		logger.Warn("metrics endpoint disabled", slog.Any("error", err))

		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	mux.Handle("/healthz", observability.HealthHandler())

	server := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadTimeout,
	}

	go func() {
		serveErr := server.ListenAndServe()
		if serveErr != nil {
			logger.Warn("metrics listener stopped", slog.Any("error", serveErr))
		}
	}()
}
