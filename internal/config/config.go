package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Cache    CacheConfig
	MarketDB MarketDBConfig
	Payout   PayoutConfig
	Notify   NotifyConfig
	Frontend FrontendConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"gamekey-market-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Debug       bool   `envconfig:"APP_DEBUG" default:"false"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// CacheConfig holds Redis settings (session tokens, event publishing).
type CacheConfig struct {
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// MarketDBConfig holds market database settings.
type MarketDBConfig struct {
	Type string `envconfig:"MARKET_DB_TYPE" default:"sqlite"` // sqlite, postgres, mysql, leveldb, or memory
	Path string `envconfig:"MARKET_DB_PATH" default:"./data/market.db"`
	// PostgreSQL settings
	Host     string `envconfig:"MARKET_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"MARKET_DB_PORT" default:"5432"`
	Name     string `envconfig:"MARKET_DB_NAME" default:"gamekey"`
	User     string `envconfig:"MARKET_DB_USER" default:"postgres"`
	Password string `envconfig:"MARKET_DB_PASS" default:""`
	SSLMode  string `envconfig:"MARKET_DB_SSLMODE" default:"disable"`
	// MySQL settings
	MySQLHost string `envconfig:"MARKET_MYSQL_HOST" default:"localhost"`
	MySQLPort int    `envconfig:"MARKET_MYSQL_PORT" default:"3306"`
	MySQLName string `envconfig:"MARKET_MYSQL_NAME" default:"gamekey"`
	MySQLUser string `envconfig:"MARKET_MYSQL_USER" default:"root"`
	MySQLPass string `envconfig:"MARKET_MYSQL_PASS" default:""`
	// LevelDB settings
	LevelDBPath string `envconfig:"MARKET_LEVELDB_PATH" default:"./data/market.ldb"`
}

// PayoutConfig holds payout gateway settings.
type PayoutConfig struct {
	WebhookURL string        `envconfig:"PAYOUT_WEBHOOK_URL" default:""`
	Timeout    time.Duration `envconfig:"PAYOUT_TIMEOUT" default:"10s"`
}

// NotifyConfig holds sale notification settings.
type NotifyConfig struct {
	RedisChannel   string `envconfig:"NOTIFY_REDIS_CHANNEL" default:"gamekey:events"`
	TelegramToken  string `envconfig:"NOTIFY_TELEGRAM_TOKEN" default:""`
	TelegramChatID int64  `envconfig:"NOTIFY_TELEGRAM_CHAT_ID" default:"0"`
}

// FrontendConfig holds frontend artifact export settings.
type FrontendConfig struct {
	Update        bool   `envconfig:"UPDATE_FRONTEND" default:"false"`
	ContractsFile string `envconfig:"FRONTEND_CONTRACTS_FILE" default:""`
	AbiFile       string `envconfig:"FRONTEND_ABI_FILE" default:""`
}

// PostgresDSN returns the PostgreSQL connection string.
func (m *MarketDBConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		m.User, m.Password, m.Host, m.Port, m.Name, m.SSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (m *MarketDBConfig) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		m.MySQLUser, m.MySQLPass, m.MySQLHost, m.MySQLPort, m.MySQLName)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
