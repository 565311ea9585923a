// Package config provides configuration management for SemperVigil.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (standard names like DATABASE_URL, SERVER_PORT)
// 3. Default values
//
// This is bootstrap configuration only: ports, DSNs, data directories, pool
// sizes, and secrets fixed at process start. Operational knobs an admin can
// tune while the process is running (pause thresholds, clustering window,
// fail-open/closed) live in the database as domain.RuntimeConfig instead.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	River    RiverConfig    `mapstructure:"river"`
	Security SecurityConfig `mapstructure:"security"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	NVD      NVDConfig      `mapstructure:"nvd"`
	Publish  PublishConfig  `mapstructure:"publish"`
	LLM      LLMConfig      `mapstructure:"llm"`
}

// ServerConfig contains the admin command API's HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	AllowedOrigins        []string `mapstructure:"allowed_origins"`
	AllowCredentials      bool     `mapstructure:"allow_credentials"`
	UnsafeAllowAllOrigins bool     `mapstructure:"unsafe_allow_all_origins"`
}

// DatabaseConfig contains PostgreSQL connection settings. The same pool
// backs River, the sqlx repository layer, and goose migrations.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`

	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode,
	)
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// RiverConfig contains River queue settings.
type RiverConfig struct {
	MaxWorkers                  int           `mapstructure:"max_workers"`
	CompletedJobRetentionPeriod time.Duration `mapstructure:"completed_job_retention_period"`
}

// SecurityConfig contains security-related settings. Secrets absent on
// first boot are auto-generated and logged as a warning so the operator
// knows to pin them via env var for future restarts.
type SecurityConfig struct {
	// AdminJWTSecret signs the single-admin-identity bearer token the
	// command API accepts.
	AdminJWTSecret string `mapstructure:"admin_jwt_secret"`

	// LLMMasterKey is the root key internal/secrets derives per-record
	// AES-GCM subkeys from when sealing stored LLM provider credentials.
	LLMMasterKey string `mapstructure:"llm_master_key"`
}

// WorkerConfig contains worker pool settings (spec.md §5 concurrency model)
// and the periodic scheduler tick intervals.
type WorkerConfig struct {
	FetchPoolSize int `mapstructure:"fetch_pool_size"`
	LLMPoolSize   int `mapstructure:"llm_pool_size"`

	// IngestTickInterval is how often ingest_due_sources runs (spec.md §4.C
	// scheduler). CVESyncInterval is the periodic cve_sync cadence (spec.md
	// §4.D), independent of the admin-triggered on-demand sync.
	IngestTickInterval time.Duration `mapstructure:"ingest_tick_interval"`
	CVESyncInterval    time.Duration `mapstructure:"cve_sync_interval"`
}

// LLMProfile names one configured provider/model pairing a pipeline stage
// can be routed to (spec.md §4.C: "looks up the routed profile for the
// stage").
type LLMProfile struct {
	Provider    string  `mapstructure:"provider"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LLMConfig maps pipeline stages to the profile that serves them.
type LLMConfig struct {
	Profiles map[string]LLMProfile `mapstructure:"profiles"`
	// StageRouting maps a stage name (domain.LLMStage) to a profile key in
	// Profiles.
	StageRouting map[string]string `mapstructure:"stage_routing"`
}

// NVDConfig configures the CVE sync client.
type NVDConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	PageSize        int           `mapstructure:"page_size"`
	RequestInterval time.Duration `mapstructure:"request_interval"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// PublishConfig configures the Markdown/JSON output and the external
// static-site-builder invocation (spec.md §4.E, §6).
type PublishConfig struct {
	DataDir       string `mapstructure:"data_dir"`
	SiteSrcDir    string `mapstructure:"site_src_dir"`
	SitePublicDir string `mapstructure:"site_public_dir"`
	CacheDir      string `mapstructure:"cache_dir"`

	SiteBuilderCmd    []string `mapstructure:"site_builder_cmd"`
	SiteBuilderConfig string   `mapstructure:"site_builder_config"`
	BaseURL           string   `mapstructure:"base_url"`
	Minify            bool     `mapstructure:"minify"`
	GC                bool     `mapstructure:"gc"`
	CleanDestination  bool     `mapstructure:"clean_destination_dir"`
	BuildTimeout      time.Duration `mapstructure:"build_timeout"`
}

var (
	bootstrapLoggerOnce sync.Once
	bootstrapLogger     *zap.Logger
)

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/sempervigil")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file is optional, use defaults and env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.ensureSecrets(); err != nil {
		return nil, fmt.Errorf("ensure secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if c.Security.AdminJWTSecret == "" {
		return fmt.Errorf("security.admin_jwt_secret must not be empty")
	}
	if len(c.Security.AdminJWTSecret) < 32 {
		return fmt.Errorf("security.admin_jwt_secret must be at least 32 characters")
	}
	return nil
}

// ensureSecrets auto-generates missing secrets on first boot.
func (c *Config) ensureSecrets() error {
	if c.Security.AdminJWTSecret == "" {
		secret, err := generateSecureRandomHex(32)
		if err != nil {
			return fmt.Errorf("auto-generate admin jwt secret: %w", err)
		}
		c.Security.AdminJWTSecret = secret
		logBootstrapWarn(
			"auto-generated admin_jwt_secret; set SECURITY_ADMIN_JWT_SECRET env var for persistence",
			zap.Int("length", len(secret)),
		)
	}
	if c.Security.LLMMasterKey == "" {
		key, err := generateSecureRandomHex(32)
		if err != nil {
			return fmt.Errorf("auto-generate llm master key: %w", err)
		}
		c.Security.LLMMasterKey = key
		logBootstrapWarn(
			"auto-generated llm_master_key; set SECURITY_LLM_MASTER_KEY env var for persistence "+
				"(rotating it without migrating sealed credentials makes them unrecoverable)",
			zap.Int("length", len(key)),
		)
	}
	return nil
}

func logBootstrapWarn(msg string, fields ...zap.Field) {
	bootstrapLoggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

		l, err := cfg.Build()
		if err != nil {
			bootstrapLogger = zap.NewNop()
			return
		}
		bootstrapLogger = l
	})

	bootstrapLogger.Warn(msg, fields...)
}

// generateSecureRandomHex produces a hex-encoded string of n random bytes.
func generateSecureRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allow_credentials", true)
	v.SetDefault("server.unsafe_allow_all_origins", false)
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "sempervigil")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "sempervigil")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("security.admin_jwt_secret", "")
	v.SetDefault("security.llm_master_key", "")

	v.SetDefault("river.max_workers", 10)
	v.SetDefault("river.completed_job_retention_period", "24h")

	v.SetDefault("worker.fetch_pool_size", 20)
	v.SetDefault("worker.llm_pool_size", 4)
	v.SetDefault("worker.ingest_tick_interval", "1m")
	v.SetDefault("worker.cve_sync_interval", "1h")

	v.SetDefault("nvd.base_url", "https://services.nvd.nist.gov/rest/json/cves/2.0")
	v.SetDefault("nvd.page_size", 2000)
	v.SetDefault("nvd.request_interval", "6s")
	v.SetDefault("nvd.request_timeout", "30s")

	v.SetDefault("publish.data_dir", "./data")
	v.SetDefault("publish.site_src_dir", "./data/site-src")
	v.SetDefault("publish.site_public_dir", "./data/site-public")
	v.SetDefault("publish.cache_dir", "./data/site-cache")
	v.SetDefault("publish.site_builder_config", "./data/site-builder.yaml")
	v.SetDefault("publish.site_builder_cmd", []string{"hugo"})
	v.SetDefault("publish.minify", true)
	v.SetDefault("publish.gc", true)
	v.SetDefault("publish.clean_destination_dir", true)
	v.SetDefault("publish.build_timeout", "5m")

	v.SetDefault("llm.stage_routing", map[string]string{
		"summarize_article": "default",
		"event_summary":     "default",
	})
	v.SetDefault("llm.profiles", map[string]interface{}{
		"default": map[string]interface{}{
			"provider": "anthropic",
			"model":    "claude-3-5-haiku-latest",
			"max_tokens": 1024,
			"temperature": 0.2,
			"timeout": "60s",
		},
	})
}
