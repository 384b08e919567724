package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/otherjamesbrown/scribe-cli/config"
)

func TestVersionCommand(t *testing.T) {
	if versionCmd == nil {
		t.Fatal("versionCmd is nil")
	}

	if versionCmd.Use != "version" {
		t.Errorf("Unexpected Use: %s", versionCmd.Use)
	}

	if versionCmd.Short != "Print version information" {
		t.Errorf("Unexpected Short: %s", versionCmd.Short)
	}
}

func TestVersionFlags(t *testing.T) {
	outputJSONFlag := versionCmd.Flags().Lookup("output-json")
	if outputJSONFlag == nil {
		t.Error("--output-json flag not found on version command")
	}
}

func TestVersionOutput(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	if err := versionCmd.RunE(versionCmd, nil); err != nil {
		t.Fatalf("version failed: %v", err)
	}

	output := buf.String()
	if !strings.HasPrefix(output, "scribe version ") {
		t.Errorf("Expected output to start with 'scribe version', got: %s", output)
	}
	if !strings.Contains(output, "user agent: scribe/") {
		t.Errorf("Expected user agent line, got: %s", output)
	}
}

func TestVersionJSON(t *testing.T) {
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	versionOutputJSON = true
	defer func() { versionOutputJSON = false }()

	if err := versionCmd.RunE(versionCmd, nil); err != nil {
		t.Fatalf("version --output-json failed: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Failed to parse JSON output: %v\nOutput: %s", err, buf.String())
	}

	if result["service_name"] != "scribe" {
		t.Errorf("Expected service_name scribe, got %v", result["service_name"])
	}
	for _, key := range []string{"version", "commit", "build_time", "go_version"} {
		if _, ok := result[key]; !ok {
			t.Errorf("JSON output missing %q field", key)
		}
	}
}

func TestGlobalFlags(t *testing.T) {
	for _, name := range []string{"backend", "timeout", "format", "debug"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("--%s persistent flag not registered", name)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]string{
		"upload":     "meetings",
		"open":       "meetings",
		"export":     "meetings",
		"serve":      "meetings",
		"status":     "ops",
		"history":    "ops",
		"config":     "setup",
		"auth":       "setup",
		"completion": "setup",
		"version":    "setup",
	}

	got := make(map[string]string)
	for _, c := range rootCmd.Commands() {
		got[c.Name()] = c.GroupID
	}

	for name, group := range want {
		g, ok := got[name]
		if !ok {
			t.Errorf("command %q not registered", name)
			continue
		}
		if g != group {
			t.Errorf("command %q in group %q, want %q", name, g, group)
		}
	}
}

func TestSetConfigValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		check   func(*config.CLIConfig) bool
		wantErr bool
	}{
		{key: "backend_url", value: "http://gpu-box:8000", check: func(c *config.CLIConfig) bool { return c.BackendURL == "http://gpu-box:8000" }},
		{key: "upload_path", value: "/v2/upload", check: func(c *config.CLIConfig) bool { return c.UploadPath == "/v2/upload" }},
		{key: "timeout", value: "15m", check: func(c *config.CLIConfig) bool { return c.Timeout == 15*time.Minute }},
		{key: "timeout", value: "soon", wantErr: true},
		{key: "output_format", value: "yaml", check: func(c *config.CLIConfig) bool { return c.OutputFormat == config.OutputFormatYAML }},
		{key: "output_format", value: "xml", wantErr: true},
		{key: "listen_address", value: ":9000", check: func(c *config.CLIConfig) bool { return c.ListenAddress == ":9000" }},
		{key: "max_upload_mb", value: "250", check: func(c *config.CLIConfig) bool { return c.MaxUploadMB == 250 }},
		{key: "max_upload_mb", value: "lots", wantErr: true},
		{key: "debug", value: "true", check: func(c *config.CLIConfig) bool { return c.Debug }},
		{key: "log_json", value: "1", check: func(c *config.CLIConfig) bool { return c.LogJSON }},
		{key: "debug", value: "maybe", wantErr: true},
		{key: "redis_addr", value: "localhost:6379", check: func(c *config.CLIConfig) bool { return c.Redis.IsConfigured() }},
		{key: "redis_addr", value: "", check: func(c *config.CLIConfig) bool { return c.Redis == nil }},
		{key: "colour", value: "blue", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := config.DefaultConfig()
			err := setConfigValue(cfg, tt.key, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Errorf("setConfigValue(%q, %q) expected error", tt.key, tt.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("setConfigValue(%q, %q) unexpected error: %v", tt.key, tt.value, err)
			}
			if !tt.check(cfg) {
				t.Errorf("setConfigValue(%q, %q) did not apply", tt.key, tt.value)
			}
		})
	}
}

func TestConfigSetPersists(t *testing.T) {
	t.Setenv("SCRIBE_CONFIG_DIR", t.TempDir())

	var buf bytes.Buffer
	configSetCmd.SetOut(&buf)
	defer configSetCmd.SetOut(nil)

	if err := configSetCmd.RunE(configSetCmd, []string{"timeout", "12m"}); err != nil {
		t.Fatalf("config set failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Set timeout = 12m") {
		t.Errorf("unexpected output: %s", buf.String())
	}

	loaded, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Timeout != 12*time.Minute {
		t.Errorf("Timeout = %s, want 12m", loaded.Timeout)
	}

	if err := configSetCmd.RunE(configSetCmd, []string{"max_upload_mb", "-5"}); err == nil {
		t.Error("expected validation error for negative max_upload_mb")
	}
}

func TestApplyFlags(t *testing.T) {
	defer func() {
		backendURL, timeout, outputFormat, debug = "", 0, "", false
	}()

	backendURL = "http://override:9000"
	timeout = 2 * time.Minute
	outputFormat = "json"
	debug = true

	cfg := config.DefaultConfig()
	if err := applyFlags(cfg); err != nil {
		t.Fatalf("applyFlags failed: %v", err)
	}
	if cfg.BackendURL != "http://override:9000" || cfg.Timeout != 2*time.Minute ||
		cfg.OutputFormat != config.OutputFormatJSON || !cfg.Debug {
		t.Errorf("flags not applied: %+v", cfg)
	}

	outputFormat = "csv"
	if err := applyFlags(config.DefaultConfig()); err == nil {
		t.Error("expected error for invalid --format")
	}
}

func TestGetCommandName(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"scribe"}, "scribe"},
		{[]string{"scribe", "upload", "a.mp3"}, "upload"},
		{[]string{"scribe", "--debug", "export", "transcript", "a.json"}, "export"},
	}
	for _, tt := range tests {
		if got := getCommandName(tt.args); got != tt.want {
			t.Errorf("getCommandName(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestGetCommandArgs(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"scribe"}, nil},
		{[]string{"scribe", "status"}, nil},
		{[]string{"scribe", "upload", "a.mp3", "-r", "A=Alice"}, []string{"a.mp3", "-r", "A=Alice"}},
	}
	for _, tt := range tests {
		got := getCommandArgs(tt.args)
		if strings.Join(got, " ") != strings.Join(tt.want, " ") || len(got) != len(tt.want) {
			t.Errorf("getCommandArgs(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

func TestLogCommandExecution_SkipsWithoutCommandLog(t *testing.T) {
	original := cfg
	defer func() { cfg = original }()

	// Neither call may reach the global logger, which is unset here.
	cfg = nil
	logCommandExecution([]string{"scribe", "status"}, nil)

	cfg = config.DefaultConfig()
	logCommandExecution([]string{"scribe", "status"}, nil)
}

func TestSkipsConfig(t *testing.T) {
	if !skipsConfig(versionCmd) {
		t.Error("version should not load configuration")
	}
	if !skipsConfig(configSetCmd) {
		t.Error("config set should not load configuration")
	}
	if skipsConfig(configShowCmd) {
		t.Error("config show should load configuration")
	}
}
