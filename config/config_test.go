package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// scribeEnv lists every environment variable LoadConfig reads.
var scribeEnv = []string{
	"SCRIBE_BACKEND_URL",
	"SCRIBE_UPLOAD_PATH",
	"SCRIBE_TIMEOUT",
	"SCRIBE_OUTPUT_FORMAT",
	"SCRIBE_LISTEN_ADDRESS",
	"SCRIBE_MAX_UPLOAD_MB",
	"SCRIBE_DEBUG",
	"SCRIBE_LOG_JSON",
	"SCRIBE_TLS_CA_CERT",
	"SCRIBE_TLS_SKIP_VERIFY",
	"SCRIBE_REDIS_ADDR",
	"SCRIBE_COMMAND_LOG_HOST",
	"SCRIBE_COMMAND_LOG_DATABASE",
	"SCRIBE_COMMAND_LOG_USER",
	"SCRIBE_COMMAND_LOG_PORT",
	"SCRIBE_COMMAND_LOG_SSLMODE",
}

// isolateEnv points the config dir at a temp dir and clears overrides.
func isolateEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SCRIBE_CONFIG_DIR", dir)
	for _, key := range scribeEnv {
		t.Setenv(key, "")
	}
	return dir
}

// TestDefaultConfig verifies default configuration values.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.BackendURL != "http://localhost:8000" {
		t.Errorf("BackendURL = %v, want http://localhost:8000", cfg.BackendURL)
	}
	if cfg.UploadPath != "/upload" {
		t.Errorf("UploadPath = %v, want /upload", cfg.UploadPath)
	}
	if cfg.Timeout != 10*time.Minute {
		t.Errorf("Timeout = %v, want 10m", cfg.Timeout)
	}
	if cfg.OutputFormat != OutputFormatText {
		t.Errorf("OutputFormat = %v, want text", cfg.OutputFormat)
	}
	if cfg.MaxUploadMB != 50 {
		t.Errorf("MaxUploadMB = %v, want 50", cfg.MaxUploadMB)
	}
	if cfg.Debug {
		t.Error("Debug should be false by default")
	}
	if cfg.Redis != nil || cfg.CommandLog != nil {
		t.Error("optional integrations should be nil by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

// TestOutputFormat_IsValid verifies output format validation.
func TestOutputFormat_IsValid(t *testing.T) {
	tests := []struct {
		format OutputFormat
		valid  bool
	}{
		{OutputFormatText, true},
		{OutputFormatJSON, true},
		{OutputFormatYAML, true},
		{"invalid", false},
		{"", false},
		{"JSON", false}, // Case sensitive
	}

	for _, tc := range tests {
		if got := tc.format.IsValid(); got != tc.valid {
			t.Errorf("OutputFormat(%q).IsValid() = %v, want %v", tc.format, got, tc.valid)
		}
	}
}

// TestCLIConfig_Validate verifies configuration validation.
func TestCLIConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CLIConfig)
		errMsg string
	}{
		{name: "valid config", mutate: func(*CLIConfig) {}},
		{name: "https backend", mutate: func(c *CLIConfig) { c.BackendURL = "https://scribe.example.com" }},
		{name: "empty backend", mutate: func(c *CLIConfig) { c.BackendURL = "" }, errMsg: "backend_url is required"},
		{name: "backend without scheme", mutate: func(c *CLIConfig) { c.BackendURL = "localhost:8000" }, errMsg: "invalid backend_url"},
		{name: "ftp backend", mutate: func(c *CLIConfig) { c.BackendURL = "ftp://host" }, errMsg: "invalid backend_url"},
		{name: "relative upload path", mutate: func(c *CLIConfig) { c.UploadPath = "upload" }, errMsg: "upload_path must start with /"},
		{name: "zero timeout", mutate: func(c *CLIConfig) { c.Timeout = 0 }, errMsg: "timeout must be positive"},
		{name: "negative max upload", mutate: func(c *CLIConfig) { c.MaxUploadMB = -1 }, errMsg: "max_upload_mb must be positive"},
		{name: "empty listen address", mutate: func(c *CLIConfig) { c.ListenAddress = "" }, errMsg: "listen_address is required"},
		{name: "invalid output format", mutate: func(c *CLIConfig) { c.OutputFormat = "xml" }, errMsg: "invalid output_format"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.errMsg == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.errMsg) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tc.errMsg)
			}
		})
	}
}

// TestConfigDir verifies config directory path resolution.
func TestConfigDir(t *testing.T) {
	t.Run("with env var", func(t *testing.T) {
		t.Setenv("SCRIBE_CONFIG_DIR", "/tmp/test-scribe-config")

		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error = %v", err)
		}
		if dir != "/tmp/test-scribe-config" {
			t.Errorf("ConfigDir() = %v, want /tmp/test-scribe-config", dir)
		}
	})

	t.Run("default without env var", func(t *testing.T) {
		t.Setenv("SCRIBE_CONFIG_DIR", "")

		dir, err := ConfigDir()
		if err != nil {
			t.Fatalf("ConfigDir() error = %v", err)
		}

		home, _ := os.UserHomeDir()
		if want := filepath.Join(home, ".scribe"); dir != want {
			t.Errorf("ConfigDir() = %v, want %v", dir, want)
		}
	})
}

// TestLoadConfig_Defaults verifies default values when no config exists.
func TestLoadConfig_Defaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.BackendURL != DefaultBackendURL {
		t.Errorf("BackendURL = %v, want %v", cfg.BackendURL, DefaultBackendURL)
	}
	if cfg.UploadURL() != "http://localhost:8000/upload" {
		t.Errorf("UploadURL() = %v", cfg.UploadURL())
	}
	if cfg.MaxUploadBytes() != 50*1024*1024 {
		t.Errorf("MaxUploadBytes() = %v", cfg.MaxUploadBytes())
	}
}

// TestLoadConfig_WithEnvOverrides verifies environment variable overrides.
func TestLoadConfig_WithEnvOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv("SCRIBE_BACKEND_URL", "https://scribe.example.com/")
	t.Setenv("SCRIBE_TIMEOUT", "45s")
	t.Setenv("SCRIBE_OUTPUT_FORMAT", "json")
	t.Setenv("SCRIBE_MAX_UPLOAD_MB", "20")
	t.Setenv("SCRIBE_DEBUG", "true")
	t.Setenv("SCRIBE_LOG_JSON", "1")
	t.Setenv("SCRIBE_REDIS_ADDR", "localhost:6379")
	t.Setenv("SCRIBE_COMMAND_LOG_HOST", "db.internal")
	t.Setenv("SCRIBE_COMMAND_LOG_DATABASE", "scribe")
	t.Setenv("SCRIBE_COMMAND_LOG_USER", "scribe")
	t.Setenv("SCRIBE_COMMAND_LOG_PORT", "6543")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.UploadURL() != "https://scribe.example.com/upload" {
		t.Errorf("UploadURL() = %v", cfg.UploadURL())
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", cfg.Timeout)
	}
	if cfg.OutputFormat != OutputFormatJSON {
		t.Errorf("OutputFormat = %v, want json", cfg.OutputFormat)
	}
	if cfg.MaxUploadMB != 20 {
		t.Errorf("MaxUploadMB = %v, want 20", cfg.MaxUploadMB)
	}
	if !cfg.Debug || !cfg.LogJSON {
		t.Error("Debug and LogJSON should be true")
	}
	if !cfg.Redis.IsConfigured() || cfg.Redis.GetChannelPrefix() != DefaultEventsPrefix {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if !cfg.CommandLog.IsConfigured() || cfg.CommandLog.Port != 6543 {
		t.Errorf("CommandLog = %+v", cfg.CommandLog)
	}
}

// TestLoadFromEnv_InvalidTimeout verifies a bad timeout keeps the previous value.
func TestLoadFromEnv_InvalidTimeout(t *testing.T) {
	isolateEnv(t)
	t.Setenv("SCRIBE_TIMEOUT", "soon")

	cfg := DefaultConfig()
	loadFromEnv(cfg)

	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
}

// TestSaveConfig verifies configuration saving and reloading.
func TestSaveConfig(t *testing.T) {
	dir := isolateEnv(t)

	cfg := DefaultConfig()
	cfg.BackendURL = "http://transcriber:9000"
	cfg.Timeout = 90 * time.Second
	cfg.OutputFormat = OutputFormatYAML
	cfg.Debug = true
	cfg.Redis = &RedisConfig{Addr: "redis:6379", ChannelPrefix: "events.meetings"}

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, DefaultConfigFile))
	if err != nil {
		t.Fatalf("config file was not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file permissions = %o, want 600", perm)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if loaded.BackendURL != cfg.BackendURL {
		t.Errorf("BackendURL = %v, want %v", loaded.BackendURL, cfg.BackendURL)
	}
	if loaded.Timeout != cfg.Timeout {
		t.Errorf("Timeout = %v, want %v", loaded.Timeout, cfg.Timeout)
	}
	if loaded.OutputFormat != cfg.OutputFormat {
		t.Errorf("OutputFormat = %v, want %v", loaded.OutputFormat, cfg.OutputFormat)
	}
	if !loaded.Debug {
		t.Error("Debug should round-trip")
	}
	if loaded.Redis.GetChannelPrefix() != "events.meetings" {
		t.Errorf("Redis prefix = %v, want events.meetings", loaded.Redis.GetChannelPrefix())
	}
}

// TestLoadConfig_FromFile verifies loading from a hand-written YAML file.
func TestLoadConfig_FromFile(t *testing.T) {
	dir := isolateEnv(t)

	content := `backend_url: http://gpu-box:8000
upload_path: /v1/upload
timeout: 2m
output_format: json
max_upload_mb: 100
command_log:
  host: pg.local
  database: audit
  user: scribe
  sslmode: disable
`
	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.UploadURL() != "http://gpu-box:8000/v1/upload" {
		t.Errorf("UploadURL() = %v", cfg.UploadURL())
	}
	if cfg.Timeout != 2*time.Minute {
		t.Errorf("Timeout = %v, want 2m", cfg.Timeout)
	}
	if cfg.MaxUploadMB != 100 {
		t.Errorf("MaxUploadMB = %v, want 100", cfg.MaxUploadMB)
	}
	if cfg.ListenAddress != DefaultListenAddress {
		t.Errorf("ListenAddress = %v, want default", cfg.ListenAddress)
	}
	want := "host=pg.local port=5432 dbname=audit user=scribe sslmode=disable"
	if got := cfg.CommandLog.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}
}

// TestLoadConfig_InvalidTimeout verifies a malformed file timeout is an error.
func TestLoadConfig_InvalidTimeout(t *testing.T) {
	dir := isolateEnv(t)

	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("timeout: forever\n"), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() expected error for invalid timeout")
	}
}

// TestCommandLogConfig_NotConfigured verifies nil and partial configs.
func TestCommandLogConfig_NotConfigured(t *testing.T) {
	var nilCfg *CommandLogConfig
	if nilCfg.IsConfigured() {
		t.Error("nil config should not be configured")
	}
	if nilCfg.ConnectionString() != "" {
		t.Error("nil config should have empty connection string")
	}

	partial := &CommandLogConfig{Host: "pg.local"}
	if partial.IsConfigured() {
		t.Error("partial config should not be configured")
	}

	withAgent := &CommandLogConfig{Agent: "ci-runner"}
	if withAgent.GetAgent() != "ci-runner" {
		t.Errorf("GetAgent() = %v, want ci-runner", withAgent.GetAgent())
	}
}

// TestEnsureConfigDir verifies the directory is created with private permissions.
func TestEnsureConfigDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "scribe")
	t.Setenv("SCRIBE_CONFIG_DIR", dir)

	if err := EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected a directory")
	}
}
