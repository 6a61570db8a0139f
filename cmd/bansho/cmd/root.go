// Package cmd provides the CLI commands for bansho.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bansho",
	Short: "bansho - MCP security gateway",
	Long: `bansho is a security gateway for Model Context Protocol (MCP) servers.

It sits between an MCP client and one upstream MCP server and wraps
every tools/call with API key authentication, role-based tool
authorization, rate limiting, and audit logging. The upstream server
needs no changes.

Commands:
  serve       Run the stdio proxy in front of the configured upstream
  dashboard   Serve the read-only audit event viewer
  keys        Create, list, and revoke API keys
  version     Print version information

Configuration is environment-driven: BANSHO_LISTEN_HOST, BANSHO_LISTEN_PORT,
UPSTREAM_TRANSPORT, UPSTREAM_CMD, UPSTREAM_URL, POSTGRES_DSN, REDIS_URL,
BANSHO_POLICY_PATH, BANSHO_LOG_LEVEL, DASHBOARD_HOST, DASHBOARD_PORT.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// usageError marks operator mistakes (bad arguments rather than runtime
// failures) so Execute exits 2 instead of 1.
type usageError struct {
	msg string
}

func (e usageError) Error() string {
	return e.msg
}

// exitCode maps an Execute error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var uerr usageError
	if errors.As(err, &uerr) {
		return 2
	}
	return 1
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// newLogger builds the process logger. Output goes to stderr so stdout
// stays reserved for the MCP stdio stream.
func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	}))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
