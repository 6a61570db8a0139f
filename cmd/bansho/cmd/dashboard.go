package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Microck/bansho/internal/adapter/inbound/dashboard"
	"github.com/Microck/bansho/internal/adapter/outbound/postgres"
	"github.com/Microck/bansho/internal/config"
	"github.com/Microck/bansho/internal/domain/auth"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve the audit event viewer",
	Long: `Serve the read-only audit dashboard on DASHBOARD_HOST:DASHBOARD_PORT.

The dashboard reads audit events from PostgreSQL and requires an admin
API key. It runs as its own process so the proxy's stdio stream stays
untouched.`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("Config error: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := newLogger(settings.LogLevel)

	if err := runDashboardServer(ctx, settings, logger); err != nil {
		return fmt.Errorf("Dashboard error: %w", err)
	}
	logger.Info("dashboard stopped")
	return nil
}

func runDashboardServer(ctx context.Context, settings config.Settings, logger *slog.Logger) error {
	pool, err := postgres.Connect(ctx, settings.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	server := dashboard.NewServer(
		auth.NewAPIKeyService(postgres.NewKeyStore(pool)),
		postgres.NewAuditStore(pool),
		dashboard.WithAddr(settings.DashboardAddr()),
		dashboard.WithLogger(logger),
	)
	return server.Start(ctx)
}
