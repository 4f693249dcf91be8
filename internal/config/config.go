package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Batch    BatchConfig
	Browser  BrowserConfig
	Gemini   GeminiConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Email    EmailConfig
	Logging  LoggingConfig
	DataDir  string
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type BatchConfig struct {
	BatchSize     int
	MaxRuntime    time.Duration
	ScrapeTimeout time.Duration
	LockFile      string
}

type BrowserConfig struct {
	Headless    bool
	NavTimeout  time.Duration
	SettleDelay time.Duration
}

type GeminiConfig struct {
	APIKey        string
	Model         string
	RetryAttempts int
	BaseDelay     time.Duration
	CallDelay     time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type EmailConfig struct {
	Sender    string
	Password  string
	Recipient string
	SMTPHost  string
	SMTPPort  int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// Secrets usually live in a .env file next to the binary; absence is fine.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Batch: BatchConfig{
			BatchSize:     getIntOrDefault("BATCH_SIZE", 10),
			MaxRuntime:    getDurationOrDefault("BATCH_MAX_RUNTIME", time.Hour),
			ScrapeTimeout: getDurationOrDefault("BATCH_SCRAPE_TIMEOUT", 90*time.Second),
			LockFile:      getEnvOrDefault("BATCH_LOCK_FILE", "/tmp/batch_analyze.lock"),
		},
		Browser: BrowserConfig{
			Headless:    getBoolOrDefault("BROWSER_HEADLESS", true),
			NavTimeout:  getDurationOrDefault("BROWSER_NAV_TIMEOUT", 40*time.Second),
			SettleDelay: getDurationOrDefault("BROWSER_SETTLE_DELAY", 3*time.Second),
		},
		Gemini: GeminiConfig{
			APIKey:        os.Getenv("GEMINI_API_KEY"),
			Model:         getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
			RetryAttempts: getIntOrDefault("GEMINI_RETRY_ATTEMPTS", 3),
			BaseDelay:     getDurationOrDefault("GEMINI_BASE_DELAY", 2*time.Second),
			CallDelay:     getDurationOrDefault("GEMINI_CALL_DELAY", 4*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   getEnvOrDefault("DB_NAME", "dropwatch"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getIntOrDefault("REDIS_DB", 0),
			CacheTTL: getDurationOrDefault("REDIS_CACHE_TTL", 5*time.Minute),
		},
		Email: EmailConfig{
			Sender:    os.Getenv("EMAIL_SENDER"),
			Password:  os.Getenv("EMAIL_PASSWORD"),
			Recipient: os.Getenv("EMAIL_RECIPIENT"),
			SMTPHost:  getEnvOrDefault("SMTP_SERVER", "smtp.gmail.com"),
			SMTPPort:  getIntOrDefault("SMTP_PORT", 587),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
		DataDir: getEnvOrDefault("DATA_DIR", "data"),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Batch.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be at least 1")
	}

	if c.Batch.ScrapeTimeout <= c.Browser.NavTimeout {
		return fmt.Errorf("BATCH_SCRAPE_TIMEOUT must exceed BROWSER_NAV_TIMEOUT")
	}

	if c.Gemini.RetryAttempts < 1 {
		return fmt.Errorf("GEMINI_RETRY_ATTEMPTS must be at least 1")
	}

	return nil
}

// DSN builds a pgx connection string from the database settings.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User, c.Database.Password, c.Database.Host,
		c.Database.Port, c.Database.DBName, c.Database.SSLMode)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
