package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
[upstream]
base_url = "https://a.example.com"
`

func TestLoad_Minimal(t *testing.T) {
	cli := &CLI{Config: writeConfig(t, minimalConfig)}

	cfg, err := Load(cli)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Upstream.BaseURL != "https://a.example.com" {
		t.Errorf("BaseURL = %q, want %q", cfg.Upstream.BaseURL, "https://a.example.com")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cli := &CLI{Config: writeConfig(t, minimalConfig)}

	cfg, err := Load(cli)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"host", cfg.Server.Host, "0.0.0.0"},
		{"port", cfg.Server.Port, 8000},
		{"body max bytes", cfg.Server.BodyMaxBytes, int64(100 * 1024 * 1024)},
		{"connect timeout", cfg.Upstream.ConnectTimeoutSeconds, 10},
		{"total timeout", cfg.Upstream.TimeoutSeconds, 600},
		{"max connections", cfg.Upstream.MaxConnections, 100},
		{"max connections per host", cfg.Upstream.MaxConnectionsPerHost, 30},
		{"idle conn timeout", cfg.Upstream.IdleConnTimeoutSeconds, 300},
		{"log level", cfg.Log.Level, "info"},
		{"log format", cfg.Log.Format, "json"},
		{"metrics path", cfg.Metrics.Path, "/metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoad_FullConfig(t *testing.T) {
	content := `
[server]
host = "127.0.0.1"
port = 9000
body_max_bytes = 1048576

[server.rate_limit]
enabled = true
requests_per_second = 25.5

[upstream]
base_url = "https://a.example.com/"
connect_timeout_seconds = 20
timeout_seconds = 300
max_connections = 50
max_connections_per_host = 15
idle_conn_timeout_seconds = 120

[log]
level = "debug"
format = "text"

[metrics]
enabled = true
path = "/internal/metrics"
`
	cli := &CLI{Config: writeConfig(t, content)}

	cfg, err := Load(cli)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr() != "127.0.0.1:9000" {
		t.Errorf("Addr() = %q, want %q", cfg.Server.Addr(), "127.0.0.1:9000")
	}
	if !cfg.Server.RateLimit.Enabled || cfg.Server.RateLimit.RequestsPerSecond != 25.5 {
		t.Errorf("rate limit = %+v, want enabled at 25.5 rps", cfg.Server.RateLimit)
	}
	if cfg.Upstream.ConnectTimeout() != 20*time.Second {
		t.Errorf("ConnectTimeout() = %v, want 20s", cfg.Upstream.ConnectTimeout())
	}
	if cfg.Upstream.Timeout() != 300*time.Second {
		t.Errorf("Timeout() = %v, want 300s", cfg.Upstream.Timeout())
	}
	if cfg.Metrics.Path != "/internal/metrics" {
		t.Errorf("metrics path = %q, want %q", cfg.Metrics.Path, "/internal/metrics")
	}
}

func TestLoad_CLIOverrides(t *testing.T) {
	cli := &CLI{
		Config:   writeConfig(t, minimalConfig),
		Host:     "10.0.0.1",
		Port:     8080,
		Upstream: "https://b.example.com",
		LogLevel: "debug",
	}

	cfg, err := Load(cli)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "10.0.0.1" {
		t.Errorf("Host = %q, want CLI override", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want CLI override", cfg.Server.Port)
	}
	if cfg.Upstream.BaseURL != "https://b.example.com" {
		t.Errorf("BaseURL = %q, want CLI override", cfg.Upstream.BaseURL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q, want CLI override", cfg.Log.Level)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing upstream base_url",
			content: `[server]` + "\n" + `port = 8000`,
			wantErr: "base_url is required",
		},
		{
			name: "non-http scheme",
			content: `
[upstream]
base_url = "ftp://a.example.com"
`,
			wantErr: "must be http or https",
		},
		{
			name: "port out of range",
			content: minimalConfig + `
[server]
port = 70000
`,
			wantErr: "server.port",
		},
		{
			name: "negative timeout",
			content: `
[upstream]
base_url = "https://a.example.com"
timeout_seconds = -1
`,
			wantErr: "timeout_seconds",
		},
		{
			name: "rate limit enabled without rps",
			content: minimalConfig + `
[server.rate_limit]
enabled = true
`,
			wantErr: "requests_per_second",
		},
		{
			name: "bad log level",
			content: minimalConfig + `
[log]
level = "verbose"
`,
			wantErr: "log.level",
		},
		{
			name: "bad log format",
			content: minimalConfig + `
[log]
format = "xml"
`,
			wantErr: "log.format",
		},
		{
			name: "metrics path without slash",
			content: minimalConfig + `
[metrics]
enabled = true
path = "metrics"
`,
			wantErr: "metrics.path",
		},
		{
			name: "metrics path conflicts with API route",
			content: minimalConfig + `
[metrics]
enabled = true
path = "/v1/metrics"
`,
			wantErr: "conflicts with reserved route",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli := &CLI{Config: writeConfig(t, tt.content)}
			_, err := Load(cli)
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cli := &CLI{Config: filepath.Join(t.TempDir(), "nope.toml")}
	if _, err := Load(cli); err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
}

func TestLoad_MalformedTOML(t *testing.T) {
	cli := &CLI{Config: writeConfig(t, `[upstream`)}
	if _, err := Load(cli); err == nil {
		t.Fatal("Load() expected error for malformed TOML, got nil")
	}
}

func TestFindConfigInPaths(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "present.toml")
	if err := os.WriteFile(existing, []byte(minimalConfig), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := findConfigInPaths([]string{
		filepath.Join(dir, "missing.toml"),
		existing,
	})
	if got != existing {
		t.Errorf("findConfigInPaths() = %q, want %q", got, existing)
	}

	if got := findConfigInPaths([]string{filepath.Join(dir, "missing.toml")}); got != "" {
		t.Errorf("findConfigInPaths() = %q, want empty", got)
	}
}
