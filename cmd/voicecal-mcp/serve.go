package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"voicecal-mcp/internal/alert"
	"voicecal-mcp/internal/config"
	"voicecal-mcp/internal/logging"
	"voicecal-mcp/internal/server"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, cmd.ErrOrStderr())
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logOut io.Writer) error {
	a, err := newApp(cfg, logOut)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Alerts.MemoryThresholdMB > 0 {
		w := alert.NewMemoryWatcher(cfg.Alerts.MemoryThresholdMB, cfg.Alerts.MemoryCheckSchedule, a.sink, logging.Component(a.logger, "memory"))
		if err := w.Start(ctx); err != nil {
			return err
		}
	}

	srv := server.New(server.Config{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Token:          cfg.Server.Token,
		RequestTimeout: cfg.Server.RequestTimeout,
		CertFile:       cfg.Server.TLS.CertFile,
		KeyFile:        cfg.Server.TLS.KeyFile,
	}, a.dispatcher,
		server.WithLogs(a.logs),
		server.WithErrorRecorder(a.monitor),
		server.WithLogger(logging.Component(a.logger, "server")),
	)
	if cfg.Server.Token == "" {
		a.logger.Warn("MCP_TOKEN not set; /mcp and /logs are open")
	}
	a.logger.Info("starting voicecal-mcp", "version", version, "port", cfg.Server.Port, "tls", cfg.Server.TLS.Enabled())
	return srv.ListenAndServe(ctx)
}
