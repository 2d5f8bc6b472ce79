package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all the configuration for the application.
type Config struct {
	Env          string `yaml:"env" env:"ENV" env-default:"production"`
	HTTPServer   `yaml:"http_server"`
	Database     `yaml:"database"`
	Redis        `yaml:"redis"`
	URLShortener `yaml:"url_shortener"`
	Analytics    `yaml:"analytics"`
	Reaper       `yaml:"reaper"`
	Geo          `yaml:"geo"`
	JWT          `yaml:"jwt"`
	CORS         `yaml:"cors"`
	RateLimit    `yaml:"rate_limit"`
}

// HTTPServer holds HTTP listener settings.
type HTTPServer struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"30s"`
}

// Database holds storage settings. Driver is one of postgres, sqlite or memory.
type Database struct {
	Driver          string `yaml:"driver" env:"DB_DRIVER" env-default:"postgres"`
	Host            string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port            int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User            string `yaml:"user" env:"DB_USER" env-default:"postgres"`
	Password        string `yaml:"password" env:"DB_PASSWORD"`
	DBName          string `yaml:"dbname" env:"DB_NAME" env-default:"linksnap"`
	SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE" env-default:"disable"`
	Timezone        string `yaml:"timezone" env:"DB_TIMEZONE" env-default:"UTC"`
	SQLitePath      string `yaml:"sqlite_path" env:"DB_SQLITE_PATH" env-default:"linksnap.db"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"50"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"1h"`
	AutoMigrate     bool   `yaml:"auto_migrate" env:"DB_AUTO_MIGRATE" env-default:"true"`
}

// Redis holds the redirect cache settings.
type Redis struct {
	Enabled  bool          `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Address  string        `yaml:"address" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"REDIS_CACHE_TTL" env-default:"1h"`
}

// Границы длины короткого кода.
const (
	MinCodeLength = 6
	MaxCodeLength = 8
)

// URLShortener holds service-specific configuration.
type URLShortener struct {
	// BaseURL is prepended to short codes. Empty means "derive from the request".
	BaseURL               string        `yaml:"base_url" env:"BASE_URL"`
	CodeLength            int           `yaml:"code_length" env:"CODE_LENGTH" env-default:"6"`
	MaxURLsPerUser        int           `yaml:"max_urls_per_user" env:"MAX_URLS_PER_USER" env-default:"100"`
	LinkTTL               time.Duration `yaml:"link_ttl" env:"LINK_TTL" env-default:"720h"`
	MaxAllocationAttempts int           `yaml:"max_allocation_attempts" env:"MAX_ALLOCATION_ATTEMPTS" env-default:"10"`
}

// Analytics holds the click retry queue settings.
type Analytics struct {
	WorkerCount   int           `yaml:"worker_count" env:"ANALYTICS_WORKER_COUNT" env-default:"3"`
	BufferSize    int           `yaml:"buffer_size" env:"ANALYTICS_BUFFER_SIZE" env-default:"1000"`
	RetryAttempts int           `yaml:"retry_attempts" env:"ANALYTICS_RETRY_ATTEMPTS" env-default:"3"`
	RetryDelay    time.Duration `yaml:"retry_delay" env:"ANALYTICS_RETRY_DELAY" env-default:"1s"`
}

// Reaper holds the expired-link purge settings.
type Reaper struct {
	Enabled   bool          `yaml:"enabled" env:"REAPER_ENABLED" env-default:"true"`
	Interval  time.Duration `yaml:"interval" env:"REAPER_INTERVAL" env-default:"10m"`
	Grace     time.Duration `yaml:"grace" env:"REAPER_GRACE" env-default:"24h"`
	BatchSize int           `yaml:"batch_size" env:"REAPER_BATCH_SIZE" env-default:"100"`
}

// Geo holds the country lookup settings.
type Geo struct {
	Enabled  bool          `yaml:"enabled" env:"GEO_ENABLED" env-default:"false"`
	Endpoint string        `yaml:"endpoint" env:"GEO_ENDPOINT" env-default:"https://ipwho.is/"`
	Timeout  time.Duration `yaml:"timeout" env:"GEO_TIMEOUT" env-default:"2s"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"GEO_CACHE_TTL" env-default:"24h"`
}

// JWT holds token signing settings.
type JWT struct {
	Secret          string        `yaml:"secret" env:"JWT_SECRET" env-default:"change-me"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"JWT_ACCESS_TOKEN_TTL" env-default:"24h"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"JWT_REFRESH_TOKEN_TTL" env-default:"168h"`
	Issuer          string        `yaml:"issuer" env:"JWT_ISSUER" env-default:"LinkSnap-Backend"`
	BcryptCost      int           `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"12"`
}

// CORS holds the browser origins allowed to call the API.
type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:5173,http://localhost:3000"`
}

// RateLimit holds the per-IP request budgets.
type RateLimit struct {
	Enabled         bool          `yaml:"enabled" env:"RATE_LIMIT_ENABLED" env-default:"true"`
	CreateURLLimit  int           `yaml:"create_url_limit" env:"RATE_LIMIT_CREATE_URL" env-default:"50"`
	CreateURLWindow time.Duration `yaml:"create_url_window" env:"RATE_LIMIT_CREATE_URL_WINDOW" env-default:"15m"`
	AuthLimit       int           `yaml:"auth_limit" env:"RATE_LIMIT_AUTH" env-default:"10"`
	AuthWindow      time.Duration `yaml:"auth_window" env:"RATE_LIMIT_AUTH_WINDOW" env-default:"1h"`
}

// MustLoad loads the application configuration.
func MustLoad() *Config {
	// Try to load .env file (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment variables")
	}

	var cfg Config

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/local.yml"
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			log.Fatalf("cannot read config: %s", err)
		}
	} else {
		log.Println("Config file not found, using environment variables only")
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("cannot read config from environment: %s", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %s", err)
	}

	return &cfg
}

// Validate checks values cleanenv cannot constrain by itself.
func (c *Config) Validate() error {
	return c.URLShortener.Validate()
}

// Validate rejects a code length outside MinCodeLength..MaxCodeLength.
func (u *URLShortener) Validate() error {
	if u.CodeLength < MinCodeLength || u.CodeLength > MaxCodeLength {
		return fmt.Errorf("code_length must be between %d and %d, got %d", MinCodeLength, MaxCodeLength, u.CodeLength)
	}
	return nil
}
