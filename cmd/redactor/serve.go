package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hfi/llm-secret-redactor/internal/audit"
	"github.com/hfi/llm-secret-redactor/internal/config"
	"github.com/hfi/llm-secret-redactor/internal/pattern"
	"github.com/hfi/llm-secret-redactor/internal/redact"
	"github.com/hfi/llm-secret-redactor/internal/server"
	"github.com/hfi/llm-secret-redactor/internal/session"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the management server",
		Long: `Start the redactor with its management HTTP surface: Prometheus
metrics, health/readiness probes and a redaction statistics endpoint.

Configuration is read from CONFIG_PATH (default config.yaml); missing
files fall back to built-in defaults.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "management listen address (overrides config)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log := newLogger(cfg.Logging)

	store, err := newStore(cfg.Sessions)
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}
	defer store.Close()

	auditLog, err := audit.NewLogger(&cfg.Audit)
	if err != nil {
		return fmt.Errorf("creating audit logger: %w", err)
	}
	defer auditLog.Close()

	mw := redact.New(cfg, pattern.NewRegistry(), store, auditLog, log)

	srvCfg := cfg.Server
	srvCfg.Version = version
	srv := server.New(&srvCfg, func(ctx context.Context) any {
		return mw.GetMetrics(ctx)
	})
	srv.RegisterHealthCheck("session_store", func() (bool, string) {
		checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := store.Stats(checkCtx); err != nil {
			return false, err.Error()
		}
		return true, ""
	})

	log.Info().
		Str("version", version).
		Str("addr", srv.Addr()).
		Str("backend", cfg.Sessions.Backend).
		Float64("rollout_percentage", cfg.Redaction.RolloutPercentage).
		Msg("starting redactor")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	select {
	case err := <-errCh:
		return fmt.Errorf("management server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("management server shutdown error")
	}

	log.Info().Msg("redactor stopped")
	return nil
}

// newStore builds the configured session store backend.
func newStore(cfg config.SessionsConfig) (session.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return session.NewMemoryStore(cfg.MaxSessions, cfg.MaxSecretsPerSession, cfg.TTL()), nil
	case "redis":
		return session.NewRedisStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.MaxSecretsPerSession, cfg.TTL())
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
