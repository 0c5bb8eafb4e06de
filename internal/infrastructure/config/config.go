package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
	Payment   PaymentConfig
	Tranzila  TranzilaConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite
	Path            string // sqlite file path, ":memory:" for tests
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// CacheConfig selects the idempotency store backend
type CacheConfig struct {
	Backend   string // memory, redis
	KeyPrefix string
}

// JWTConfig holds JWT settings. Tokens are issued by the console's
// identity service; this service only verifies them.
type JWTConfig struct {
	Secret string
	Issuer string
	Leeway time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	HSTSEnabled      bool
	// card tokenization requests allowed per operator per window
	TokenizeRateLimit  int
	TokenizeRateWindow time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces and metrics
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration
}

// PaymentConfig holds payment session settings
type PaymentConfig struct {
	SessionTTL             time.Duration // idle time before a session is discarded
	SweepInterval          time.Duration
	GatewayTimeout         time.Duration // how long the gateway frame may take to answer
	DefaultVATPercent      float64
	PurgeUnrememberedCards bool     // delete cards the payer did not ask to keep after a successful charge
	ConsoleOrigins         []string // origins allowed to relay wrapped frame messages
	InvoiceLanguage        string   // BCP 47 tag used to format invoices
	InvoiceCurrency        string   // ISO 4217 code shown on invoices
}

// TranzilaConfig holds gateway credentials and endpoints
type TranzilaConfig struct {
	Terminal      string
	TokenTerminal string
	FrameBaseURL  string
	APIBaseURL    string
	GatewayDomain string
	AppKey        string
	Secret        string
	Currency      int
	Language      string
	HTTPTimeout   time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with CONSOLE_ prefix (e.g., CONSOLE_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/community-console")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("CONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := fromViper(v)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Path:            v.GetString("database.path"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Cache: CacheConfig{
			Backend:   v.GetString("cache.backend"),
			KeyPrefix: v.GetString("cache.key_prefix"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
			Leeway: v.GetDuration("jwt.leeway"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			HSTSEnabled:      v.GetBool("http.hsts_enabled"),

			TokenizeRateLimit:  v.GetInt("http.tokenize_rate_limit"),
			TokenizeRateWindow: v.GetDuration("http.tokenize_rate_window"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
		},
		Payment: PaymentConfig{
			SessionTTL:             v.GetDuration("payment.session_ttl"),
			SweepInterval:          v.GetDuration("payment.sweep_interval"),
			GatewayTimeout:         v.GetDuration("payment.gateway_timeout"),
			DefaultVATPercent:      v.GetFloat64("payment.default_vat_percent"),
			PurgeUnrememberedCards: v.GetBool("payment.purge_unremembered_cards"),
			ConsoleOrigins:         v.GetStringSlice("payment.console_origins"),
			InvoiceLanguage:        v.GetString("payment.invoice_language"),
			InvoiceCurrency:        v.GetString("payment.invoice_currency"),
		},
		Tranzila: TranzilaConfig{
			Terminal:      v.GetString("tranzila.terminal"),
			TokenTerminal: v.GetString("tranzila.token_terminal"),
			FrameBaseURL:  v.GetString("tranzila.frame_base_url"),
			APIBaseURL:    v.GetString("tranzila.api_base_url"),
			GatewayDomain: v.GetString("tranzila.gateway_domain"),
			AppKey:        v.GetString("tranzila.app_key"),
			Secret:        v.GetString("tranzila.secret"),
			Currency:      v.GetInt("tranzila.currency"),
			Language:      v.GetString("tranzila.language"),
			HTTPTimeout:   v.GetDuration("tranzila.http_timeout"),
		},
	}
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "community-console"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "console.db"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "console"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "console:"
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "community-console"
	}
	if cfg.JWT.Leeway == 0 {
		cfg.JWT.Leeway = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// Submitting a charge waits for the gateway
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if cfg.HTTP.TokenizeRateLimit == 0 {
		cfg.HTTP.TokenizeRateLimit = 10
	}
	if cfg.HTTP.TokenizeRateWindow == 0 {
		cfg.HTTP.TokenizeRateWindow = time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "community-console"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 30 * time.Second
	}
	if cfg.Payment.SessionTTL == 0 {
		cfg.Payment.SessionTTL = 30 * time.Minute
	}
	if cfg.Payment.SweepInterval == 0 {
		cfg.Payment.SweepInterval = time.Minute
	}
	if cfg.Payment.GatewayTimeout == 0 {
		cfg.Payment.GatewayTimeout = 10 * time.Minute
	}
	if cfg.Payment.DefaultVATPercent == 0 {
		cfg.Payment.DefaultVATPercent = 18
	}
	if cfg.Payment.InvoiceLanguage == "" {
		cfg.Payment.InvoiceLanguage = "he"
	}
	if cfg.Payment.InvoiceCurrency == "" {
		cfg.Payment.InvoiceCurrency = "ILS"
	}
	if cfg.Tranzila.FrameBaseURL == "" {
		cfg.Tranzila.FrameBaseURL = "https://direct.tranzila.com"
	}
	if cfg.Tranzila.APIBaseURL == "" {
		cfg.Tranzila.APIBaseURL = "https://api.tranzila.com"
	}
	if cfg.Tranzila.GatewayDomain == "" {
		cfg.Tranzila.GatewayDomain = "tranzila.com"
	}
	if cfg.Tranzila.Currency == 0 {
		cfg.Tranzila.Currency = 1
	}
	if cfg.Tranzila.Language == "" {
		cfg.Tranzila.Language = "il"
	}
	if cfg.Tranzila.HTTPTimeout == 0 {
		cfg.Tranzila.HTTPTimeout = 30 * time.Second
	}
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}

	if c.Payment.SessionTTL < 0 || c.Payment.GatewayTimeout < 0 || c.Payment.SweepInterval < 0 {
		return fmt.Errorf("payment durations cannot be negative")
	}
	if c.Payment.DefaultVATPercent < 0 || c.Payment.DefaultVATPercent > 100 {
		return fmt.Errorf("payment.default_vat_percent must be between 0 and 100, got %v", c.Payment.DefaultVATPercent)
	}
	for _, origin := range c.Payment.ConsoleOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("payment.console_origins entry %q is not an origin", origin)
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Driver == "sqlite" {
			return fmt.Errorf("database.driver cannot be sqlite in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Tranzila.Terminal == "" || c.Tranzila.AppKey == "" || c.Tranzila.Secret == "" {
			return fmt.Errorf("tranzila.terminal, tranzila.app_key and tranzila.secret are required in production")
		}
	}

	return nil
}

// GatewayEnabled reports whether Tranzila credentials are configured
func (c *Config) GatewayEnabled() bool {
	return c.Tranzila.Terminal != "" && c.Tranzila.AppKey != "" && c.Tranzila.Secret != ""
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
