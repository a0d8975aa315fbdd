package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/gm-agent-org/gm-gate/pkg/audit"
	"github.com/gm-agent-org/gm-gate/pkg/policy"
	"github.com/gm-agent-org/gm-gate/pkg/ratelimit"
	"github.com/gm-agent-org/gm-gate/pkg/security"
	"github.com/gm-agent-org/gm-gate/pkg/types"
)

// EnvPrefix prefixes every environment override, e.g. GMGATE_HTTP_ADDR.
const EnvPrefix = "GMGATE"

// SecurityConfig controls who may answer requests and what is hidden from them.
type SecurityConfig struct {
	// AuthorizedUsers may respond to requests. Empty allows everyone.
	AuthorizedUsers         []string `yaml:"authorized_users" envconfig:"AUTHORIZED_USERS"`
	RedactPatterns          []string `yaml:"redact_patterns" envconfig:"REDACT_PATTERNS"`
	LogUnauthorizedAttempts bool     `yaml:"log_unauthorized_attempts" envconfig:"LOG_UNAUTHORIZED_ATTEMPTS"`
	// WorkDir anchors path risk classification.
	WorkDir string `yaml:"work_dir" envconfig:"WORK_DIR"`
}

type TimeoutConfig struct {
	PermissionTimeoutSeconds int                 `yaml:"permission_timeout_seconds" envconfig:"PERMISSION_TIMEOUT_SECONDS" validate:"min=30,max=3600"`
	DefaultAction            types.DefaultAction `yaml:"default_action" envconfig:"DEFAULT_ACTION" validate:"oneof=approve deny"`
}

type RateLimitConfig struct {
	RequestsPerMinute int     `yaml:"requests_per_minute" envconfig:"REQUESTS_PER_MINUTE" validate:"min=1,max=100"`
	DenialBackoffBase float64 `yaml:"denial_backoff_base" envconfig:"DENIAL_BACKOFF_BASE" validate:"gte=1"`
	DenialBackoffMax  float64 `yaml:"denial_backoff_max" envconfig:"DENIAL_BACKOFF_MAX" validate:"gtefield=DenialBackoffBase"`
	DenialThreshold   int     `yaml:"denial_threshold" envconfig:"DENIAL_THRESHOLD" validate:"min=1"`
}

type AuditConfig struct {
	Enabled       bool   `yaml:"enabled" envconfig:"ENABLED"`
	LogPath       string `yaml:"log_path" envconfig:"LOG_PATH" validate:"required_if=Enabled true"`
	MaxFileSizeMB int    `yaml:"max_file_size_mb" envconfig:"MAX_FILE_SIZE_MB" validate:"min=1,max=1000"`
	RotateCount   int    `yaml:"rotate_count" envconfig:"ROTATE_COUNT" validate:"min=1,max=20"`
}

// NotifyConfig selects the notifiers pending requests are delivered to.
type NotifyConfig struct {
	Inbox         bool `yaml:"inbox" envconfig:"INBOX"`
	InboxCapacity int  `yaml:"inbox_capacity" envconfig:"INBOX_CAPACITY" validate:"gte=0"`
	Log           bool `yaml:"log" envconfig:"LOG"`
}

// HTTPConfig contains HTTP API related settings.
type HTTPConfig struct {
	Addr   string `yaml:"addr" envconfig:"ADDR" validate:"required"`
	APIKey string `yaml:"api_key" envconfig:"API_KEY"`
	// ApproverAPIKey authorizes respond, callback and the notification
	// stream. Empty leaves those routes disabled.
	ApproverAPIKey string `yaml:"approver_api_key" envconfig:"APPROVER_API_KEY"`
	// ThrottleRPS limits mutating requests per client. Zero disables it.
	ThrottleRPS   float64 `yaml:"throttle_rps" envconfig:"THROTTLE_RPS" validate:"gte=0"`
	ThrottleBurst int     `yaml:"throttle_burst" envconfig:"THROTTLE_BURST" validate:"gte=0"`
}

// Config is the root configuration structure.
type Config struct {
	// LogLevel controls structured logging verbosity (DEBUG, INFO, WARN, ERROR).
	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	// DevMode enables development features like Swagger UI.
	DevMode bool `yaml:"dev_mode" envconfig:"DEV_MODE"`

	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Timeouts  TimeoutConfig   `yaml:"timeouts" envconfig:"TIMEOUTS"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	Audit     AuditConfig     `yaml:"audit" envconfig:"AUDIT"`
	Notify    NotifyConfig    `yaml:"notify" envconfig:"NOTIFY"`
	HTTP      HTTPConfig      `yaml:"http" envconfig:"HTTP"`

	// Policies are evaluated in order; the first enabled match auto-approves.
	Policies []policy.Policy `yaml:"policies" ignored:"true"`
}

// Default returns the configuration used for keys absent from the file.
func Default() *Config {
	return &Config{
		LogLevel: "INFO",
		Security: SecurityConfig{
			RedactPatterns:          append([]string(nil), security.DefaultRedactPatterns...),
			LogUnauthorizedAttempts: true,
			WorkDir:                 ".",
		},
		Timeouts: TimeoutConfig{
			PermissionTimeoutSeconds: 300,
			DefaultAction:            types.DefaultDeny,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 30,
			DenialBackoffBase: 5,
			DenialBackoffMax:  300,
			DenialThreshold:   3,
		},
		Audit: AuditConfig{
			Enabled:       true,
			LogPath:       "gmgate-audit.jsonl",
			MaxFileSizeMB: 100,
			RotateCount:   5,
		},
		Notify: NotifyConfig{
			Inbox:         true,
			InboxCapacity: 1000,
			Log:           true,
		},
		HTTP: HTTPConfig{
			Addr:          ":8080",
			ThrottleRPS:   5,
			ThrottleBurst: 10,
		},
	}
}

var (
	ErrMissingEnvVar = errors.New("environment variable is not set")
	// ErrSharedAPIKey is returned when the agent and approver keys are equal,
	// which would let the agent answer its own requests.
	ErrSharedAPIKey = errors.New("http.approver_api_key must differ from http.api_key")
)

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnv replaces ${NAME} with the value of NAME. Unset or empty
// variables are an error.
func expandEnv(data []byte) ([]byte, error) {
	var missing []string
	out := envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		name := string(envRef.FindSubmatch(m)[1])
		v := os.Getenv(name)
		if v == "" {
			missing = append(missing, name)
		}
		return []byte(v)
	})
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissingEnvVar, missing)
	}
	return out, nil
}

// DefaultPath returns the config file Load uses when given no path, or
// "" when none exists. A file in the working directory wins over the one
// in the home directory.
func DefaultPath() string {
	localPath := "gmgate.yaml"
	if _, err := os.Stat(localPath); err == nil {
		return localPath
	}
	if home, err := os.UserHomeDir(); err == nil {
		defaultPath := filepath.Join(home, ".gm-gate", "config.yaml")
		if _, err := os.Stat(defaultPath); err == nil {
			return defaultPath
		}
	}
	return ""
}

// Load reads configuration from the specified path, or the default
// locations if path is empty, then validates it.
// Priority: Env Vars > Config File > Defaults
func Load(path string) (*Config, error) {
	// Try loading .env files (ignore error if not present)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		data, err = expandEnv(data)
		if err != nil {
			return nil, fmt.Errorf("failed to expand config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Process Env Vars (GMGATE_ prefix)
	// This will override values from config file if set in Env
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process env vars: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks value ranges and compiles policies and redact patterns.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.HTTP.ApproverAPIKey != "" && c.HTTP.ApproverAPIKey == c.HTTP.APIKey {
		return fmt.Errorf("invalid config: %w", ErrSharedAPIKey)
	}
	if _, err := c.PolicyEngine(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Redactor(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) PolicyEngine() (*policy.Engine, error) {
	return policy.NewEngine(c.Policies)
}

func (c *Config) Redactor() (*security.Redactor, error) {
	return security.NewRedactor(c.Security.RedactPatterns)
}

func (c *Config) PermissionTimeout() time.Duration {
	return time.Duration(c.Timeouts.PermissionTimeoutSeconds) * time.Second
}

func (r RateLimitConfig) Limiter() ratelimit.Config {
	return ratelimit.Config{
		RequestsPerMinute: r.RequestsPerMinute,
		DenialBackoffBase: seconds(r.DenialBackoffBase),
		DenialBackoffMax:  seconds(r.DenialBackoffMax),
		DenialThreshold:   r.DenialThreshold,
	}
}

func (a AuditConfig) Logger() audit.Config {
	return audit.Config{
		Path:        a.LogPath,
		MaxFileSize: int64(a.MaxFileSizeMB) * 1024 * 1024,
		RotateCount: a.RotateCount,
	}
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
