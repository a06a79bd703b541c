package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/ppiankov/verity/internal/observability"
	"github.com/ppiankov/verity/internal/pipeline"
	"github.com/ppiankov/verity/internal/server"
)

var (
	serveAddr   string
	serveNoAuth bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the fact-check HTTP service",
	Long: `Serve starts the HTTP service:
- POST /v1/check    check a claim (X-API-Key or Authorization: Bearer)
- GET  /v1/quota    remaining quota for a key
- POST /v1/keys     assign a key from the pool
- DELETE /v1/keys/:key  revoke a key (X-Admin-Token)
- GET  /health and /metrics

Example:
  verity serve
  verity serve --addr :9090
  VERITY_AUTH_STORE=postgres DATABASE_URL=postgres://... verity serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveNoAuth, "no-auth", false, "disable key validation and quotas (local testing only)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveNoAuth {
		cfg.Auth.Enabled = false
	}

	logger := newLogger(true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	comps, err := pipeline.Build(ctx, cfg, logger, metrics, true)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer comps.Close()

	if !cfg.Auth.Enabled {
		logger.Warn("authentication disabled, every request is accepted without quota")
	}

	srv := server.New(comps.Coordinator, comps.Auth, reg, server.Config{
		Addr:           cfg.Server.Addr,
		RequestTimeout: cfg.Server.RequestTimeout,
		AdminToken:     cfg.Auth.AdminToken,
	}, logger)

	return srv.Run(ctx)
}
