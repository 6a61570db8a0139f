package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/Microck/bansho/internal/adapter/inbound/ops"
	mcpclient "github.com/Microck/bansho/internal/adapter/outbound/mcp"
	"github.com/Microck/bansho/internal/adapter/outbound/postgres"
	"github.com/Microck/bansho/internal/adapter/outbound/redis"
	"github.com/Microck/bansho/internal/config"
	"github.com/Microck/bansho/internal/domain/auth"
	"github.com/Microck/bansho/internal/domain/policy"
	"github.com/Microck/bansho/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the stdio proxy",
	Long: `Run the bansho proxy on stdio in front of the configured upstream.

The proxy speaks MCP on stdin/stdout, so an MCP client launches it the
way it would launch the upstream server directly. The upstream is
selected by UPSTREAM_TRANSPORT:

  stdio   Spawn UPSTREAM_CMD as a subprocess (default)
  http    Connect to the streamable HTTP endpoint at UPSTREAM_URL

Health checks and Prometheus metrics are served on a separate HTTP
listener at BANSHO_LISTEN_HOST:BANSHO_LISTEN_PORT.

Examples:
  # Proxy a local stdio MCP server
  UPSTREAM_CMD="npx @modelcontextprotocol/server-filesystem /tmp" bansho serve

  # Proxy a remote MCP server over streamable HTTP
  UPSTREAM_TRANSPORT=http UPSTREAM_URL=http://127.0.0.1:8081/mcp bansho serve`,
	RunE: runServe,
}

var printSettings bool

func init() {
	serveCmd.Flags().BoolVar(&printSettings, "print-settings", false, "Print the effective settings as JSON and exit")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("Config error: %w", err)
	}

	if printSettings {
		out, err := json.MarshalIndent(settings, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	// stop() restores default signal handling so a second Ctrl+C is an
	// immediate exit.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := newLogger(settings.LogLevel)

	if err := runGateway(ctx, settings, logger); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("Serve error: %w", err)
	}
	logger.Info("bansho stopped")
	return nil
}

// runGateway wires the full proxy and serves MCP on stdio until the
// context is canceled or the client disconnects.
func runGateway(ctx context.Context, settings config.Settings, logger *slog.Logger) error {
	pol, err := policy.Load(settings.PolicyPath)
	if err != nil {
		return err
	}
	logger.Info("policy loaded", "path", settings.PolicyPath)

	pool, err := postgres.Connect(ctx, settings.PostgresDSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	logger.Info("postgres connected")

	rdb, err := redis.Connect(ctx, settings.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()
	logger.Info("redis connected")

	upstream := mcpclient.NewConnector(mcpclient.Config{
		Transport: settings.UpstreamTransport,
		Command:   settings.UpstreamCmd,
		URL:       settings.UpstreamURL,
	})
	defer upstream.Close()

	registry := ops.NewRegistry()
	metrics := ops.NewMetrics(registry)

	gateway := service.NewGateway(service.GatewayDeps{
		Credentials: auth.NewAPIKeyService(postgres.NewKeyStore(pool)),
		Policy:      pol,
		Limiter:     redis.NewLimiter(rdb),
		AuditLog:    postgres.NewAuditStore(pool),
		Upstream:    upstream,
		Recorder:    metrics,
		Logger:      logger,
	})

	if _, err := gateway.Assemble(ctx); err != nil {
		return err
	}
	logger.Info("upstream connected",
		"transport", settings.UpstreamTransport,
		"target", settings.UpstreamTarget(),
		"tools", len(gateway.Tools()),
	)

	health := ops.NewHealthChecker()
	health.AddProbe("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	health.AddProbe("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	listener := ops.NewListener(registry,
		ops.WithAddr(settings.ListenAddr()),
		ops.WithHealthChecker(health),
		ops.WithLogger(logger),
	)
	defer listener.Close()
	// The ops listener is auxiliary: losing /health and /metrics should
	// not take down the proxy itself.
	go func() {
		if err := listener.Start(ctx); err != nil {
			logger.Error("ops listener failed", "error", err)
		}
	}()

	fmt.Fprintf(os.Stderr,
		"bansho_proxy_start listen_addr=%s upstream_transport=%s upstream_target=%s policy_path=%s\n",
		settings.ListenAddr(),
		settings.UpstreamTransport,
		settings.UpstreamTarget(),
		settings.PolicyPath,
	)

	logger.Info("transport mode: stdio")
	return gateway.Run(ctx, &mcp.StdioTransport{})
}
