package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	Plaid      PlaidConfig
	Scheduler  SchedulerConfig
	TLS        TLSConfig
	Firebase   FirebaseConfig
	Telemetry  TelemetryConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	AllowedHosts []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	Secret string
}

// EncryptionConfig holds the base64 vault key. An empty key leaves bank
// linking disabled instead of failing startup.
type EncryptionConfig struct {
	Key string
}

type PlaidConfig struct {
	Env                 string
	ClientID            string
	Secret              string
	BaseURL             string // overrides the URL derived from Env when set
	ClientName          string
	CountryCodes        []string
	Language            string
	RequestTimeout      time.Duration
	PageSize            int
	InitialLookbackDays int
}

type SchedulerConfig struct {
	Enabled      bool
	Cron         string
	WorkerCount  int
	JobDelay     time.Duration
	JobTimeout   time.Duration
	QueueSize    int
	RunOnStartup bool
}

type TLSConfig struct {
	Enabled      bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
}

type FirebaseConfig struct {
	CredentialsFile string
	MessagesFile    string
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

var plaidEnvs = map[string]struct{}{
	"sandbox":     {},
	"development": {},
	"production":  {},
}

func Load() (*Config, error) {
	// A missing .env file is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	plaidTimeout, err := time.ParseDuration(getEnv("PLAID_REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLAID_REQUEST_TIMEOUT: %w", err)
	}
	plaidPageSize, err := strconv.Atoi(getEnv("PLAID_SYNC_PAGE_SIZE", "500"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLAID_SYNC_PAGE_SIZE: %w", err)
	}
	plaidLookback, err := strconv.Atoi(getEnv("PLAID_INITIAL_LOOKBACK_DAYS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLAID_INITIAL_LOOKBACK_DAYS: %w", err)
	}

	schedulerWorkers, err := strconv.Atoi(getEnv("SCHEDULER_WORKERS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_WORKERS: %w", err)
	}
	schedulerJobDelay, err := time.ParseDuration(getEnv("SCHEDULER_JOB_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_JOB_DELAY: %w", err)
	}
	schedulerJobTimeout, err := time.ParseDuration(getEnv("SCHEDULER_JOB_TIMEOUT", "2m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_JOB_TIMEOUT: %w", err)
	}
	schedulerQueueSize, err := strconv.Atoi(getEnv("SCHEDULER_QUEUE_SIZE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_QUEUE_SIZE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Host:         getEnv("HOST", "0.0.0.0"),
			AllowedHosts: getListEnv("ALLOWED_HOSTS", nil),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "finsync"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "finsync"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		Plaid: PlaidConfig{
			Env:                 strings.ToLower(getEnv("PLAID_ENV", "sandbox")),
			ClientID:            getEnv("PLAID_CLIENT_ID", ""),
			Secret:              getEnv("PLAID_SECRET", ""),
			BaseURL:             getEnv("PLAID_BASE_URL", ""),
			ClientName:          getEnv("PLAID_CLIENT_NAME", "Finance Tracker"),
			CountryCodes:        getListEnv("PLAID_COUNTRY_CODES", []string{"US"}),
			Language:            getEnv("PLAID_LANGUAGE", "en"),
			RequestTimeout:      plaidTimeout,
			PageSize:            plaidPageSize,
			InitialLookbackDays: plaidLookback,
		},
		Scheduler: SchedulerConfig{
			Enabled:      getBoolEnv("SCHEDULER_ENABLED", true),
			Cron:         getEnv("SCHEDULER_CRON", "0 0 5,14,20 * * *"),
			WorkerCount:  schedulerWorkers,
			JobDelay:     schedulerJobDelay,
			JobTimeout:   schedulerJobTimeout,
			QueueSize:    schedulerQueueSize,
			RunOnStartup: getBoolEnv("SCHEDULER_RUN_ON_STARTUP", false),
		},
		TLS: TLSConfig{
			Enabled:      getBoolEnv("TLS_ENABLED", false),
			CertPath:     getEnv("TLS_CERT_PATH", ""),
			KeyPath:      getEnv("TLS_KEY_PATH", ""),
			RedirectHTTP: getBoolEnv("TLS_REDIRECT_HTTP", false),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			MessagesFile:    getEnv("NOTIFICATION_MESSAGES_FILE", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "finsync-api"),
			Environment:  getEnv("OTEL_ENVIRONMENT", "development"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9464"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getBoolEnv("LOG_PRETTY", false),
		},
	}

	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if _, ok := plaidEnvs[cfg.Plaid.Env]; !ok {
		return nil, fmt.Errorf("PLAID_ENV must be one of sandbox, development, production (got %q)", cfg.Plaid.Env)
	}
	if cfg.Plaid.RequestTimeout <= 0 {
		return nil, fmt.Errorf("PLAID_REQUEST_TIMEOUT must be positive")
	}
	if cfg.Plaid.PageSize < 1 || cfg.Plaid.PageSize > 500 {
		return nil, fmt.Errorf("PLAID_SYNC_PAGE_SIZE must be between 1 and 500")
	}
	if cfg.Plaid.InitialLookbackDays < 1 {
		return nil, fmt.Errorf("PLAID_INITIAL_LOOKBACK_DAYS must be positive")
	}
	if cfg.Scheduler.WorkerCount < 1 {
		return nil, fmt.Errorf("SCHEDULER_WORKERS must be at least 1")
	}

	if cfg.TLS.Enabled {
		if cfg.TLS.CertPath == "" {
			return nil, fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if cfg.TLS.KeyPath == "" {
			return nil, fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}

	return cfg, nil
}

// PlaidConfigured reports whether bank linking can run: provider
// credentials and the vault key must all be present.
func (c *Config) PlaidConfigured() bool {
	return c.Plaid.ClientID != "" && c.Plaid.Secret != "" && c.Encryption.Key != ""
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

// getListEnv splits a comma-separated variable, dropping empty entries.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
