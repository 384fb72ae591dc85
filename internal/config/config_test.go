package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Port:               "8080",
		DataBackend:        BackendSQLite,
		SQLiteDBPath:       filepath.Join(t.TempDir(), "paylog.db"),
		SessionTTL:         8 * time.Hour,
		MaxSessions:        100,
		LoginRatePerMinute: 10,
		BcryptCost:         12,
		MaxUploadBytes:     1 << 20,
		LogFormat:          "text",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errorString string
	}{
		{name: "valid sqlite config", mutate: func(*Config) {}},
		{
			name:   "valid postgres config",
			mutate: func(c *Config) { c.DataBackend = BackendPostgres; c.DatabaseURL = "postgres://u:p@localhost:5432/paylog" },
		},
		{name: "valid memory config", mutate: func(c *Config) { c.DataBackend = BackendMemory; c.SQLiteDBPath = "" }},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range",
			mutate:      func(c *Config) { c.Port = "70000" },
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "unknown backend",
			mutate:      func(c *Config) { c.DataBackend = "sheets" },
			errorString: "invalid data backend 'sheets'",
		},
		{
			name:        "postgres without url",
			mutate:      func(c *Config) { c.DataBackend = BackendPostgres },
			errorString: "DATABASE_URL is required",
		},
		{
			name:        "postgres with wrong scheme",
			mutate:      func(c *Config) { c.DataBackend = BackendPostgres; c.DatabaseURL = "mysql://x" },
			errorString: "invalid DATABASE_URL scheme 'mysql'",
		},
		{
			name:        "bad amqp scheme",
			mutate:      func(c *Config) { c.AMQPURL = "http://localhost"; c.AMQPExchange = "x" },
			errorString: "invalid AMQP URL scheme 'http'",
		},
		{
			name:        "amqp without exchange",
			mutate:      func(c *Config) { c.AMQPURL = "amqp://localhost"; c.AMQPExchange = "" },
			errorString: "AMQP exchange name cannot be empty",
		},
		{
			name:        "short session ttl",
			mutate:      func(c *Config) { c.SessionTTL = time.Second },
			errorString: "invalid session TTL",
		},
		{
			name:        "bad trusted proxy",
			mutate:      func(c *Config) { c.TrustedProxies = []string{"10.0.0.0/8", "not-an-ip"} },
			errorString: "invalid trusted proxy 'not-an-ip'",
		},
		{
			name:        "bad log format",
			mutate:      func(c *Config) { c.LogFormat = "xml" },
			errorString: "invalid log format 'xml'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errorString == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.errorString)
			}
			if !strings.Contains(err.Error(), tt.errorString) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.errorString)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.Port = "x"
	cfg.MaxSessions = 0
	cfg.BcryptCost = 2

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if n := strings.Count(err.Error(), "\n- "); n != 3 {
		t.Errorf("expected 3 problems, got %d: %v", n, err)
	}
}

func TestConfig_ValidateCreatesSQLiteDir(t *testing.T) {
	cfg := validConfig(t)
	cfg.SQLiteDBPath = filepath.Join(t.TempDir(), "nested", "dir", "paylog.db")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Chdir(t.TempDir()) // no stray .env
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1,192.168.0.0/16")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "9090" || cfg.DataBackend != BackendMemory {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if len(cfg.TrustedProxies) != 2 {
		t.Errorf("TrustedProxies = %v", cfg.TrustedProxies)
	}
	if cfg.AMQPExchange != "paylog.events" || cfg.LogLevel != "info" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
