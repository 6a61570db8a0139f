package mcp

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/shlex"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// buildTransport turns the config into an SDK transport. Stdio spawns
// the upstream command in its own process group so terminal signals
// reach only the proxy.
func buildTransport(cfg Config) (mcp.Transport, error) {
	if cfg.Transport == TransportHTTP {
		if strings.TrimSpace(cfg.URL) == "" {
			return nil, fmt.Errorf("UPSTREAM_URL is required when UPSTREAM_TRANSPORT=http")
		}
		return &mcp.StreamableClientTransport{Endpoint: cfg.URL}, nil
	}

	cmdText := strings.TrimSpace(cfg.Command)
	if cmdText == "" {
		return nil, fmt.Errorf("UPSTREAM_CMD is required when UPSTREAM_TRANSPORT=stdio")
	}
	parts, err := shlex.Split(cmdText)
	if err != nil {
		return nil, fmt.Errorf("UPSTREAM_CMD parse failed: %w", err)
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("UPSTREAM_CMD is required when UPSTREAM_TRANSPORT=stdio")
	}

	cmd := exec.Command(parts[0], parts[1:]...)
	setSpawnAttrs(cmd)
	return &mcp.CommandTransport{Command: cmd}, nil
}
