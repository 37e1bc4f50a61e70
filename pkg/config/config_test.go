package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-supply-dashboard/pkg/config"
)

func newFakeConfig() config.Config {
	return config.Config{
		API: config.API{
			BaseURL:        "http://localhost:5000",
			TimeoutSeconds: 10,
		},
		Server: config.Server{
			Address:    ":9090",
			HubAddress: ":9091",
			BasePath:   "/dashboard",
		},
		Session: config.Session{
			Dir:            "/tmp/supply",
			PersistentFile: "local.json",
			SessionFile:    "session.json",
		},
		Cache: config.Cache{
			Dir:             "/tmp/supply/cache",
			ChartTTLSeconds: 30,
		},
		Messaging: config.Messaging{
			URL:              "ws://localhost:5000/ws",
			TypingTTLSeconds: 3,
		},
		Metrics: config.Metrics{
			Enabled: true,
			Path:    "/metrics",
		},
		ManifestPath: "entities.yaml",
		LogLevel:     "debug",
		LogFormat:    "json",
	}
}

func writeConfig(t *testing.T, dir string, v any) string {
	t.Helper()

	data, err := yaml.Marshal(v)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return path
}

func TestValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		config    config.Config
		expectErr bool
	}{
		{
			name:   "Valid config",
			config: newFakeConfig(),
		},
		{
			name: "Missing base url",
			config: func() config.Config {
				cfg := newFakeConfig()
				cfg.API.BaseURL = ""
				return cfg
			}(),
			expectErr: true,
		},
		{
			name: "Base url is not a url",
			config: func() config.Config {
				cfg := newFakeConfig()
				cfg.API.BaseURL = "not a url"
				return cfg
			}(),
			expectErr: true,
		},
		{
			name: "Unknown log level",
			config: func() config.Config {
				cfg := newFakeConfig()
				cfg.LogLevel = "loud"
				return cfg
			}(),
			expectErr: true,
		},
		{
			name: "Relative base path",
			config: func() config.Config {
				cfg := newFakeConfig()
				cfg.Server.BasePath = "dashboard"
				return cfg
			}(),
			expectErr: true,
		},
		{
			name: "Hub shares the app address",
			config: func() config.Config {
				cfg := newFakeConfig()
				cfg.Server.HubAddress = cfg.Server.Address
				return cfg
			}(),
			expectErr: true,
		},
		{
			name: "Metrics enabled without path",
			config: func() config.Config {
				cfg := newFakeConfig()
				cfg.Metrics.Path = ""
				return cfg
			}(),
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if err != nil && !tc.expectErr {
				t.Errorf("unexpected error: %v", err)
			}

			if err == nil && tc.expectErr {
				t.Errorf("expected error, got none")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	testCases := []struct {
		name   string
		envs   map[string]string
		binder config.Binder
		expect config.Config
	}{
		{
			name:   "Standard config",
			expect: newFakeConfig(),
		},
		{
			name: "Prefixed env override",
			envs: map[string]string{
				"SUPPLY_SERVER_ADDRESS": ":7070",
			},
			expect: func() config.Config {
				cfg := newFakeConfig()
				cfg.Server.Address = ":7070"
				return cfg
			}(),
		},
		{
			name:   "Bound env override",
			binder: config.NewDefaultEnvBinder(),
			envs: map[string]string{
				"SUPPLY_API_URL": "https://api.example.com",
			},
			expect: func() config.Config {
				cfg := newFakeConfig()
				cfg.API.BaseURL = "https://api.example.com"
				return cfg
			}(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.envs {
				t.Setenv(k, v)
			}

			dir := t.TempDir()
			writeConfig(t, dir, newFakeConfig())

			got, err := config.NewFileSystemLoader().Load("config", dir, config.DefaultEnvPrefix, tc.binder)
			if err != nil {
				t.Fatalf("load: %v", err)
			}

			if diff := cmp.Diff(tc.expect, got); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadFileFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, map[string]any{
		"api": map[string]any{"base_url": "http://backend:5000"},
	})

	cfg, err := config.LoadFile(path, nil)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}

	if cfg.Server.Address != ":8080" || cfg.Server.HubAddress != ":8081" || cfg.Server.BasePath != "/dashboard" {
		t.Fatalf("expected server defaults, got %+v", cfg.Server)
	}
	if cfg.Session.PersistentPath() != filepath.Join(".supply", "local.json") {
		t.Fatalf("unexpected persistent path %q", cfg.Session.PersistentPath())
	}
	if cfg.Messaging.TypingTTL().Seconds() != 3 {
		t.Fatalf("expected 3s typing ttl, got %s", cfg.Messaging.TypingTTL())
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected info log level, got %q", cfg.LogLevel)
	}
}

func TestProcessConfigPath(t *testing.T) {
	if _, err := config.ProcessConfigPath("settings.json"); err == nil {
		t.Fatal("expected extension error")
	}

	parts, err := config.ProcessConfigPath("conf/dashboard.yaml")
	if err != nil {
		t.Fatalf("process path: %v", err)
	}
	if parts.FileName != "dashboard" || filepath.Base(parts.Path) != "conf" {
		t.Fatalf("unexpected parts %+v", parts)
	}
}
