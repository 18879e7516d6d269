package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Port     string
	LogLevel string

	JWTSecret      string
	JWTExpiryHours int
	Argon2         Argon2Config

	Scheduler SchedulerConfig
	Currency  CurrencyConfig
	BankCards BankCardsConfig

	VaultMasterKey string
	VaultSalt      string
}

type Argon2Config struct {
	Time       uint32
	Memory     uint32
	Threads    uint8
	KeyLength  uint32
	SaltLength uint32
}

type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
}

type CurrencyConfig struct {
	APIKey      string
	BaseURL     string
	CacheFile   string
	RateTTL     time.Duration
	HTTPTimeout time.Duration
	MaxRetries  int
	Backoff     time.Duration
}

type BankCardsConfig struct {
	BaseURL     string
	HTTPTimeout time.Duration
	MaxRetries  int
	Backoff     time.Duration
}

var bindings = map[string]string{
	"server.port":             "PORT",
	"log.level":               "LOG_LEVEL",
	"database.host":           "DATABASE_HOST",
	"database.port":           "DATABASE_PORT",
	"database.user":           "DATABASE_USER",
	"database.password":       "DATABASE_PASSWORD",
	"database.name":           "DATABASE_NAME",
	"database.ssl_mode":       "DATABASE_SSL_MODE",
	"redis.host":              "REDIS_HOST",
	"redis.port":              "REDIS_PORT",
	"redis.password":          "REDIS_PASSWORD",
	"redis.db":                "REDIS_DB",
	"jwt.secret_key":          "JWT_SECRET_KEY",
	"jwt.expiry_hours":        "JWT_EXPIRY_HOURS",
	"argon2.time":             "ARGON2_TIME",
	"argon2.memory":           "ARGON2_MEMORY",
	"argon2.threads":          "ARGON2_THREADS",
	"argon2.key_length":       "ARGON2_KEY_LENGTH",
	"argon2.salt_length":      "ARGON2_SALT_LENGTH",
	"scheduler.enabled":       "RECURRING_SCHEDULER_ENABLED",
	"scheduler.interval":      "RECURRING_SCHEDULER_INTERVAL",
	"currency.api_key":        "EXCHANGE_RATE_API_KEY",
	"currency.base_url":       "EXCHANGE_RATE_API_URL",
	"currency.cache_file":     "CURRENCIES_CACHE_FILE",
	"currency.rate_ttl":       "EXCHANGE_RATE_CACHE_TTL",
	"currency.http_timeout":   "EXCHANGE_RATE_HTTP_TIMEOUT",
	"currency.max_retries":    "EXCHANGE_RATE_MAX_RETRIES",
	"currency.backoff":        "EXCHANGE_RATE_BACKOFF",
	"bank_cards.base_url":     "BANK_CARDS_API_URL",
	"bank_cards.http_timeout": "BANK_CARDS_API_HTTP_TIMEOUT",
	"bank_cards.max_retries":  "BANK_CARDS_API_MAX_RETRIES",
	"bank_cards.backoff":      "BANK_CARDS_API_BACKOFF",
	"vault.master_key":        "CARD_VAULT_MASTER_KEY",
	"vault.salt":              "CARD_VAULT_SALT",
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.interval", 30*time.Second)
	viper.SetDefault("currency.base_url", "https://v6.exchangerate-api.com/v6")
	viper.SetDefault("currency.cache_file", "currencies_cache.json")
	viper.SetDefault("currency.rate_ttl", 10*time.Minute)
	viper.SetDefault("currency.http_timeout", 5*time.Second)
	viper.SetDefault("currency.max_retries", 2)
	viper.SetDefault("currency.backoff", 200*time.Millisecond)
	viper.SetDefault("bank_cards.base_url", "http://127.0.0.1:8001")
	viper.SetDefault("bank_cards.http_timeout", 10*time.Second)
	viper.SetDefault("bank_cards.max_retries", 2)
	viper.SetDefault("bank_cards.backoff", 200*time.Millisecond)
}

// Load reads .env and the environment into viper and returns the typed config.
// Database and Redis settings stay in viper and are read by the database package.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return nil, err
		}
	}
	setDefaults()

	// a missing .env is fine, the environment wins anyway
	_ = viper.ReadInConfig()

	return FromViper(), nil
}

// FromViper builds a Config from the current viper state.
func FromViper() *Config {
	return &Config{
		Port:           viper.GetString("server.port"),
		LogLevel:       viper.GetString("log.level"),
		JWTSecret:      viper.GetString("jwt.secret_key"),
		JWTExpiryHours: viper.GetInt("jwt.expiry_hours"),
		Argon2: Argon2Config{
			Time:       viper.GetUint32("argon2.time"),
			Memory:     viper.GetUint32("argon2.memory"),
			Threads:    uint8(viper.GetUint("argon2.threads")),
			KeyLength:  viper.GetUint32("argon2.key_length"),
			SaltLength: viper.GetUint32("argon2.salt_length"),
		},
		Scheduler: SchedulerConfig{
			Enabled:  viper.GetBool("scheduler.enabled"),
			Interval: viper.GetDuration("scheduler.interval"),
		},
		Currency: CurrencyConfig{
			APIKey:      viper.GetString("currency.api_key"),
			BaseURL:     viper.GetString("currency.base_url"),
			CacheFile:   viper.GetString("currency.cache_file"),
			RateTTL:     viper.GetDuration("currency.rate_ttl"),
			HTTPTimeout: viper.GetDuration("currency.http_timeout"),
			MaxRetries:  viper.GetInt("currency.max_retries"),
			Backoff:     viper.GetDuration("currency.backoff"),
		},
		BankCards: BankCardsConfig{
			BaseURL:     viper.GetString("bank_cards.base_url"),
			HTTPTimeout: viper.GetDuration("bank_cards.http_timeout"),
			MaxRetries:  viper.GetInt("bank_cards.max_retries"),
			Backoff:     viper.GetDuration("bank_cards.backoff"),
		},
		VaultMasterKey: viper.GetString("vault.master_key"),
		VaultSalt:      viper.GetString("vault.salt"),
	}
}
