// Package config provides CLI configuration management for the scribe command-line tool.
// It supports loading configuration from YAML files, environment variables, and command-line flags.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Default configuration values.
const (
	DefaultBackendURL    = "http://localhost:8000"
	DefaultUploadPath    = "/upload"
	DefaultTimeout       = 10 * time.Minute
	DefaultOutputFormat  = OutputFormatText
	DefaultListenAddress = "127.0.0.1:8787"
	DefaultMaxUploadMB   = 50
	DefaultConfigDir     = ".scribe"
	DefaultConfigFile    = "config.yaml"
	DefaultEventsPrefix  = "events.scribe"
)

// TLSConfig holds client TLS settings for talking to an HTTPS backend.
type TLSConfig struct {
	// CACert is the path to a CA certificate for verifying the backend.
	CACert string `yaml:"ca_cert,omitempty"`

	// ClientCert is the path to the client certificate for mTLS authentication.
	ClientCert string `yaml:"client_cert,omitempty"`

	// ClientKey is the path to the client private key for mTLS authentication.
	ClientKey string `yaml:"client_key,omitempty"`

	// SkipVerify disables server certificate verification (insecure, for testing only).
	SkipVerify bool `yaml:"skip_verify,omitempty"`
}

// IsZero reports whether no TLS setting is present.
func (c TLSConfig) IsZero() bool {
	return c == TLSConfig{}
}

// ResolvePaths expands ~ in certificate paths.
func (c *TLSConfig) ResolvePaths() {
	c.CACert = expandPath(c.CACert)
	c.ClientCert = expandPath(c.ClientCert)
	c.ClientKey = expandPath(c.ClientKey)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path // Return original if home dir lookup fails.
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// RedisConfig holds the connection settings for event publishing.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string `yaml:"addr,omitempty"`

	// Password is the optional Redis password.
	Password string `yaml:"password,omitempty"`

	// DB selects the Redis logical database.
	DB int `yaml:"db,omitempty"`

	// ChannelPrefix namespaces the pub/sub channels (default: events.scribe).
	ChannelPrefix string `yaml:"channel_prefix,omitempty"`
}

// IsConfigured returns true if an address is set.
func (c *RedisConfig) IsConfigured() bool {
	return c != nil && c.Addr != ""
}

// GetChannelPrefix returns the channel prefix, defaulting to DefaultEventsPrefix.
func (c *RedisConfig) GetChannelPrefix() string {
	if c == nil || c.ChannelPrefix == "" {
		return DefaultEventsPrefix
	}
	return c.ChannelPrefix
}

// CommandLogConfig holds PostgreSQL connection settings for the command audit log.
type CommandLogConfig struct {
	// Host is the database server hostname.
	Host string `yaml:"host,omitempty"`

	// Port is the database server port (default: 5432).
	Port int `yaml:"port,omitempty"`

	// Database is the database name.
	Database string `yaml:"database,omitempty"`

	// User is the database username.
	User string `yaml:"user,omitempty"`

	// SSLMode is the SSL connection mode (disable, require, verify-ca, verify-full).
	SSLMode string `yaml:"sslmode,omitempty"`

	// SSLRootCert is the path to the SSL root certificate file.
	// Defaults to ~/.postgresql/root.crt if not specified and sslmode requires verification.
	SSLRootCert string `yaml:"sslrootcert,omitempty"`

	// Agent is the identity recorded alongside each logged command.
	Agent string `yaml:"agent,omitempty"`
}

// ConnectionString returns the PostgreSQL connection string for the command log.
// Returns empty string if the command log is not configured.
func (c *CommandLogConfig) ConnectionString() string {
	if !c.IsConfigured() {
		return ""
	}

	port := c.Port
	if port == 0 {
		port = 5432
	}

	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "require"
	}

	connStr := fmt.Sprintf("host=%s port=%d dbname=%s user=%s sslmode=%s",
		c.Host, port, c.Database, c.User, sslmode)

	// Add sslrootcert if SSL verification is required.
	if sslmode == "verify-ca" || sslmode == "verify-full" {
		sslrootcert := c.SSLRootCert
		if sslrootcert == "" {
			if home, err := os.UserHomeDir(); err == nil {
				defaultCert := filepath.Join(home, ".postgresql", "root.crt")
				if _, err := os.Stat(defaultCert); err == nil {
					sslrootcert = defaultCert
				}
			}
		}
		if sslrootcert != "" {
			connStr += fmt.Sprintf(" sslrootcert=%s", sslrootcert)
		}
	}

	return connStr
}

// IsConfigured returns true if the command log is configured with required fields.
func (c *CommandLogConfig) IsConfigured() bool {
	return c != nil && c.Host != "" && c.Database != "" && c.User != ""
}

// GetAgent returns the agent name, defaulting to the local user name.
func (c *CommandLogConfig) GetAgent() string {
	if c != nil && c.Agent != "" {
		return c.Agent
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "scribe"
}

// CLIConfig holds the CLI configuration settings.
type CLIConfig struct {
	// BackendURL is the base URL of the transcription backend.
	BackendURL string `yaml:"backend_url"`

	// UploadPath is the path of the upload endpoint, relative to BackendURL.
	UploadPath string `yaml:"upload_path"`

	// Timeout bounds each backend request, including the upload.
	Timeout time.Duration `yaml:"timeout"`

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// ListenAddress is where `scribe serve` binds the local web UI.
	ListenAddress string `yaml:"listen_address"`

	// MaxUploadMB is the largest audio file accepted for upload.
	MaxUploadMB int `yaml:"max_upload_mb"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`

	// LogJSON switches log output from the console writer to JSON lines.
	LogJSON bool `yaml:"log_json,omitempty"`

	// TLS contains optional settings for an HTTPS backend.
	TLS TLSConfig `yaml:"tls,omitempty"`

	// Redis enables publishing of transcript and export events.
	Redis *RedisConfig `yaml:"redis,omitempty"`

	// CommandLog enables the PostgreSQL command audit log.
	CommandLog *CommandLogConfig `yaml:"command_log,omitempty"`
}

// DefaultConfig returns a CLIConfig with default values.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		BackendURL:    DefaultBackendURL,
		UploadPath:    DefaultUploadPath,
		Timeout:       DefaultTimeout,
		OutputFormat:  DefaultOutputFormat,
		ListenAddress: DefaultListenAddress,
		MaxUploadMB:   DefaultMaxUploadMB,
	}
}

// ConfigDir returns the configuration directory path.
// Uses $SCRIBE_CONFIG_DIR if set, otherwise ~/.scribe
func ConfigDir() (string, error) {
	if dir := os.Getenv("SCRIBE_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the CLI configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (~/.scribe/config.yaml or $SCRIBE_CONFIG_DIR/config.yaml)
// 3. Environment variables (SCRIBE_BACKEND_URL, SCRIBE_TIMEOUT, ...)
func LoadConfig() (*CLIConfig, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// configFile mirrors CLIConfig with the timeout as a duration string.
type configFile struct {
	BackendURL    string            `yaml:"backend_url"`
	UploadPath    string            `yaml:"upload_path,omitempty"`
	Timeout       string            `yaml:"timeout"`
	OutputFormat  OutputFormat      `yaml:"output_format"`
	ListenAddress string            `yaml:"listen_address,omitempty"`
	MaxUploadMB   int               `yaml:"max_upload_mb,omitempty"`
	Debug         bool              `yaml:"debug,omitempty"`
	LogJSON       bool              `yaml:"log_json,omitempty"`
	TLS           TLSConfig         `yaml:"tls,omitempty"`
	Redis         *RedisConfig      `yaml:"redis,omitempty"`
	CommandLog    *CommandLogConfig `yaml:"command_log,omitempty"`
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.BackendURL != "" {
		cfg.BackendURL = fileCfg.BackendURL
	}
	if fileCfg.UploadPath != "" {
		cfg.UploadPath = fileCfg.UploadPath
	}
	if fileCfg.Timeout != "" {
		timeout, err := time.ParseDuration(fileCfg.Timeout)
		if err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
		cfg.Timeout = timeout
	}
	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = fileCfg.OutputFormat
	}
	if fileCfg.ListenAddress != "" {
		cfg.ListenAddress = fileCfg.ListenAddress
	}
	if fileCfg.MaxUploadMB != 0 {
		cfg.MaxUploadMB = fileCfg.MaxUploadMB
	}
	if fileCfg.Redis != nil {
		cfg.Redis = fileCfg.Redis
	}
	if fileCfg.CommandLog != nil {
		cfg.CommandLog = fileCfg.CommandLog
	}
	cfg.Debug = fileCfg.Debug
	cfg.LogJSON = fileCfg.LogJSON
	cfg.TLS = fileCfg.TLS

	return nil
}

// envBool reports whether an environment flag is set to true or 1.
func envBool(key string) bool {
	v := os.Getenv(key)
	return v == "true" || v == "1"
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *CLIConfig) {
	if v := os.Getenv("SCRIBE_BACKEND_URL"); v != "" {
		cfg.BackendURL = v
	}

	if v := os.Getenv("SCRIBE_UPLOAD_PATH"); v != "" {
		cfg.UploadPath = v
	}

	if v := os.Getenv("SCRIBE_TIMEOUT"); v != "" {
		if timeout, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = timeout
		}
	}

	if v := os.Getenv("SCRIBE_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}

	if v := os.Getenv("SCRIBE_LISTEN_ADDRESS"); v != "" {
		cfg.ListenAddress = v
	}

	if v := os.Getenv("SCRIBE_MAX_UPLOAD_MB"); v != "" {
		if mb, err := strconv.Atoi(v); err == nil {
			cfg.MaxUploadMB = mb
		}
	}

	if envBool("SCRIBE_DEBUG") {
		cfg.Debug = true
	}

	if envBool("SCRIBE_LOG_JSON") {
		cfg.LogJSON = true
	}

	if v := os.Getenv("SCRIBE_TLS_CA_CERT"); v != "" {
		cfg.TLS.CACert = v
	}

	if envBool("SCRIBE_TLS_SKIP_VERIFY") {
		cfg.TLS.SkipVerify = true
	}

	if v := os.Getenv("SCRIBE_REDIS_ADDR"); v != "" {
		if cfg.Redis == nil {
			cfg.Redis = &RedisConfig{}
		}
		cfg.Redis.Addr = v
	}

	loadCommandLogFromEnv(cfg)
}

// loadCommandLogFromEnv overlays command log environment variables.
func loadCommandLogFromEnv(cfg *CLIConfig) {
	host := os.Getenv("SCRIBE_COMMAND_LOG_HOST")
	database := os.Getenv("SCRIBE_COMMAND_LOG_DATABASE")
	user := os.Getenv("SCRIBE_COMMAND_LOG_USER")

	if host == "" && database == "" && user == "" {
		return
	}

	if cfg.CommandLog == nil {
		cfg.CommandLog = &CommandLogConfig{}
	}

	if host != "" {
		cfg.CommandLog.Host = host
	}
	if database != "" {
		cfg.CommandLog.Database = database
	}
	if user != "" {
		cfg.CommandLog.User = user
	}
	if v := os.Getenv("SCRIBE_COMMAND_LOG_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.CommandLog.Port = port
		}
	}
	if v := os.Getenv("SCRIBE_COMMAND_LOG_SSLMODE"); v != "" {
		cfg.CommandLog.SSLMode = v
	}
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("backend_url is required")
	}

	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend_url: %q (must be an http or https URL)", c.BackendURL)
	}

	if !strings.HasPrefix(c.UploadPath, "/") {
		return fmt.Errorf("upload_path must start with /")
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive")
	}

	if c.ListenAddress == "" {
		return fmt.Errorf("listen_address is required")
	}

	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	return nil
}

// UploadURL returns the full URL of the upload endpoint.
func (c *CLIConfig) UploadURL() string {
	return strings.TrimRight(c.BackendURL, "/") + c.UploadPath
}

// MaxUploadBytes returns MaxUploadMB in bytes.
func (c *CLIConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *CLIConfig) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)

	fileCfg := configFile{
		BackendURL:    cfg.BackendURL,
		UploadPath:    cfg.UploadPath,
		Timeout:       cfg.Timeout.String(),
		OutputFormat:  cfg.OutputFormat,
		ListenAddress: cfg.ListenAddress,
		MaxUploadMB:   cfg.MaxUploadMB,
		Debug:         cfg.Debug,
		LogJSON:       cfg.LogJSON,
		TLS:           cfg.TLS,
		Redis:         cfg.Redis,
		CommandLog:    cfg.CommandLog,
	}

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
