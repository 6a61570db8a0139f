package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"
)

func TestCommandsRegistered(t *testing.T) {
	want := []string{"serve", "dashboard", "keys", "version"}
	registered := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range want {
		if !registered[name] {
			t.Errorf("%s command not registered with rootCmd", name)
		}
	}
}

func TestKeysSubcommandsRegistered(t *testing.T) {
	want := []string{"create", "list", "revoke"}
	registered := map[string]bool{}
	for _, cmd := range keysCmd.Commands() {
		registered[cmd.Name()] = true
	}
	for _, name := range want {
		if !registered[name] {
			t.Errorf("keys %s subcommand not registered", name)
		}
	}
}

func TestKeysCreateRoleFlagDefault(t *testing.T) {
	flag := keysCreateCmd.Flags().Lookup("role")
	if flag == nil {
		t.Fatal("role flag not registered on keys create")
	}
	if flag.DefValue != "readonly" {
		t.Errorf("role default = %q, want %q", flag.DefValue, "readonly")
	}
}

func TestServePrintSettingsFlag(t *testing.T) {
	flag := serveCmd.Flags().Lookup("print-settings")
	if flag == nil {
		t.Fatal("print-settings flag not registered on serve")
	}
	if flag.DefValue != "false" {
		t.Errorf("print-settings default = %q, want %q", flag.DefValue, "false")
	}
}

func TestKeysRevokeRequiresArg(t *testing.T) {
	err := keysRevokeCmd.Args(keysRevokeCmd, nil)
	if err == nil {
		t.Fatal("keys revoke without args should return error")
	}
	if err.Error() != "Missing api_key_id" {
		t.Errorf("error = %q, want %q", err.Error(), "Missing api_key_id")
	}
	if got := exitCode(err); got != 2 {
		t.Errorf("exitCode = %d, want 2", got)
	}

	if err := keysRevokeCmd.Args(keysRevokeCmd, []string{"some-id"}); err != nil {
		t.Errorf("keys revoke with an arg should pass validation, got %v", err)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "runtime error", err: errors.New("boom"), want: 1},
		{name: "usage error", err: usageError{"Missing api_key_id"}, want: 2},
		{name: "wrapped usage error", err: fmt.Errorf("keys: %w", usageError{"bad"}), want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"garbage", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.input); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
