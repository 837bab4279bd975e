package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	CORS       CORSConfig       `mapstructure:"cors"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Evidence   EvidenceConfig   `mapstructure:"evidence"`
	Submission SubmissionConfig `mapstructure:"submission"`
	Geocoder   GeocoderConfig   `mapstructure:"geocoder"`
	Heatmap    HeatmapConfig    `mapstructure:"heatmap"`
	Salary     SalaryConfig     `mapstructure:"salary"`
	SOS        SOSConfig        `mapstructure:"sos"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Version     string `mapstructure:"version"`
	Debug       bool   `mapstructure:"debug"`
	AdminKey    string `mapstructure:"admin_key"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the complaint store. Driver is "postgres" or "sqlite".
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Schema          string        `mapstructure:"schema"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&search_path=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode, c.Schema,
	)
}

type RedisConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
	TLS       bool   `mapstructure:"tls"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	Enabled    bool               `mapstructure:"enabled"`
	URL        string             `mapstructure:"url"`
	StreamName string             `mapstructure:"stream_name"`
	Subjects   NATSSubjectsConfig `mapstructure:"subjects"`
}

type NATSSubjectsConfig struct {
	ComplaintSubmitted string `mapstructure:"complaint_submitted"`
	SOSTriggered       string `mapstructure:"sos_triggered"`
}

// JWTConfig signs the anonymous session tokens.
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
	Issuer     string        `mapstructure:"issuer"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	RequestsPerHour   int  `mapstructure:"requests_per_hour"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	TimeFormat string `mapstructure:"time_format"`
}

// LLMConfig configures the chat completion provider behind the relay.
// Provider "openai" speaks the OpenAI-compatible chat completions API
// (the Hugging Face router by default); "claude" uses the Anthropic SDK.
type LLMConfig struct {
	Provider       string        `mapstructure:"provider"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	AnthropicKey   string        `mapstructure:"anthropic_key"`
	AnthropicModel string        `mapstructure:"anthropic_model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Temperature    float64       `mapstructure:"temperature"`
}

// EvidenceConfig selects where uploaded evidence files go. Backend is "s3" or "disk".
type EvidenceConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	PublicURL string `mapstructure:"public_url"`
}

type SubmissionConfig struct {
	MaxFiles       int   `mapstructure:"max_files"`
	MaxFileSize    int64 `mapstructure:"max_file_size"`
	MaxMemory      int64 `mapstructure:"max_memory"`
	CaseIDAttempts int   `mapstructure:"case_id_attempts"`
}

type GeocoderConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type HeatmapConfig struct {
	DefaultRadiusKm float64       `mapstructure:"default_radius_km"`
	MaxRadiusKm     float64       `mapstructure:"max_radius_km"`
	ZoneCellKm      float64       `mapstructure:"zone_cell_km"`
	Lookback        time.Duration `mapstructure:"lookback"`
}

type SalaryConfig struct {
	Signature string `mapstructure:"signature"`
}

type SOSConfig struct {
	AppName      string `mapstructure:"app_name"`
	Timezone     string `mapstructure:"timezone"`
	ContactsFile string `mapstructure:"contacts_file"`
}

type JobsConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	HotspotSchedule string        `mapstructure:"hotspot_schedule"`
	SweepSchedule   string        `mapstructure:"sweep_schedule"`
	StaleAfter      time.Duration `mapstructure:"stale_after"`
	LockTTL         time.Duration `mapstructure:"lock_ttl"`
}

// Load reads configuration from file and environment variables. A missing
// config file is not an error; defaults and BEACON_* variables still apply.
func Load(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/beacon")
	}

	v.SetEnvPrefix("BEACON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Nested keys without a default are not picked up by AutomaticEnv on Unmarshal.
	v.BindEnv("database.password", "BEACON_DATABASE_PASSWORD")
	v.BindEnv("redis.password", "BEACON_REDIS_PASSWORD")
	v.BindEnv("jwt.secret", "BEACON_JWT_SECRET")
	v.BindEnv("app.admin_key", "BEACON_APP_ADMIN_KEY")
	v.BindEnv("llm.api_key", "BEACON_LLM_API_KEY", "HF_TOKEN")
	v.BindEnv("llm.anthropic_key", "BEACON_LLM_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("evidence.access_key", "BEACON_EVIDENCE_ACCESS_KEY")
	v.BindEnv("evidence.secret_key", "BEACON_EVIDENCE_SECRET_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadDefault loads configuration with default path
func LoadDefault() (*Config, error) {
	return Load("")
}

// Defaults returns a runnable configuration without reading files or env.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// defaults are all plain values; Unmarshal cannot fail on them
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var problems []string

	switch c.Database.Driver {
	case "postgres", "":
	case "sqlite":
		if c.Database.SQLitePath == "" {
			problems = append(problems, "database.sqlite_path is required for the sqlite driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown database.driver %q", c.Database.Driver))
	}

	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			problems = append(problems, "llm.api_key (or HF_TOKEN) is required for the openai provider")
		}
	case "claude":
		if c.LLM.AnthropicKey == "" {
			problems = append(problems, "llm.anthropic_key (or ANTHROPIC_API_KEY) is required for the claude provider")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown llm.provider %q", c.LLM.Provider))
	}

	switch c.Evidence.Backend {
	case "disk":
		if c.Evidence.LocalDir == "" {
			problems = append(problems, "evidence.local_dir is required for the disk backend")
		}
	case "s3":
		if c.Evidence.Bucket == "" {
			problems = append(problems, "evidence.bucket is required for the s3 backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown evidence.backend %q", c.Evidence.Backend))
	}

	if c.JWT.Secret == "" {
		problems = append(problems, "jwt.secret is required")
	}
	if c.Submission.MaxFiles < 0 || c.Submission.MaxFileSize <= 0 {
		problems = append(problems, "submission limits must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "beacon")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 5000)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "beacon")
	v.SetDefault("database.dbname", "beacon")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.schema", "public")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.sqlite_path", "beacon.db")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.key_prefix", "beacon:")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.stream_name", "BEACON_EVENTS")
	v.SetDefault("nats.subjects.complaint_submitted", "beacon.complaints")
	v.SetDefault("nats.subjects.sos_triggered", "beacon.sos")

	v.SetDefault("jwt.secret", "change-me")
	v.SetDefault("jwt.expiration", 30*24*time.Hour)
	v.SetDefault("jwt.issuer", "beacon")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Admin-Key", "Accept-Language"})
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_minute", 60)
	v.SetDefault("ratelimit.requests_per_hour", 1000)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.time_format", time.RFC3339)

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.base_url", "https://router.huggingface.co/v1")
	v.SetDefault("llm.model", "meta-llama/Meta-Llama-3-8B-Instruct")
	v.SetDefault("llm.anthropic_model", "claude-3-5-haiku-latest")
	v.SetDefault("llm.timeout", 30*time.Second)

	v.SetDefault("evidence.backend", "disk")
	v.SetDefault("evidence.local_dir", "uploads")
	v.SetDefault("evidence.region", "ap-south-1")

	v.SetDefault("submission.max_files", 10)
	v.SetDefault("submission.max_file_size", 50<<20)
	v.SetDefault("submission.max_memory", 32<<20)
	v.SetDefault("submission.case_id_attempts", 5)

	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "beacon/1.0")
	v.SetDefault("geocoder.timeout", 10*time.Second)

	v.SetDefault("heatmap.default_radius_km", 25.0)
	v.SetDefault("heatmap.max_radius_km", 200.0)
	v.SetDefault("heatmap.zone_cell_km", 2.0)
	v.SetDefault("heatmap.lookback", 90*24*time.Hour)

	v.SetDefault("salary.signature", "Employee")

	v.SetDefault("sos.app_name", "InvisiblePeople App")
	v.SetDefault("sos.timezone", "Asia/Kolkata")

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.hotspot_schedule", "@every 15m")
	v.SetDefault("jobs.sweep_schedule", "@daily")
	v.SetDefault("jobs.stale_after", 7*24*time.Hour)
	v.SetDefault("jobs.lock_ttl", 10*time.Minute)
}
