// Package config provides environment-driven settings for bansho.
package config

import "fmt"

// Upstream transport selectors.
const (
	UpstreamTransportStdio = "stdio"
	UpstreamTransportHTTP  = "http"
)

// Settings is the resolved runtime configuration. Every field comes
// from an environment variable with a documented default; no config
// file is required.
type Settings struct {
	ListenHost string `json:"listen_host" validate:"required"`
	ListenPort int    `json:"listen_port" validate:"min=1,max=65535"`

	DashboardHost string `json:"dashboard_host" validate:"required"`
	DashboardPort int    `json:"dashboard_port" validate:"min=1,max=65535"`

	UpstreamTransport string `json:"upstream_transport" validate:"oneof=stdio http"`
	UpstreamCmd       string `json:"upstream_cmd"`
	UpstreamURL       string `json:"upstream_url"`

	PostgresDSN string `json:"postgres_dsn" validate:"required"`
	RedisURL    string `json:"redis_url" validate:"required"`

	PolicyPath string `json:"policy_path" validate:"required"`
	LogLevel   string `json:"log_level"`
}

// ListenAddr is the ops listener address.
func (s Settings) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.ListenHost, s.ListenPort)
}

// DashboardAddr is the dashboard server address.
func (s Settings) DashboardAddr() string {
	return fmt.Sprintf("%s:%d", s.DashboardHost, s.DashboardPort)
}

// UpstreamTarget names the configured upstream for log output.
func (s Settings) UpstreamTarget() string {
	if s.UpstreamTransport == UpstreamTransportHTTP {
		return s.UpstreamURL
	}
	return s.UpstreamCmd
}
