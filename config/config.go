package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	AppName                       string `mapstructure:"APP_NAME"`
	Port                          int    `mapstructure:"PORT"`
	LogLevel                      string `mapstructure:"LOG_LEVEL"`
	PrettyLogs                    bool   `mapstructure:"PRETTY_LOGS"`
	HttpServerWriteTimeoutSeconds int    `mapstructure:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS"`
	HttpServerReadTimeoutSeconds  int    `mapstructure:"HTTP_SERVER_READ_TIMEOUT_SECONDS"`
	HttpServerIdleTimeoutSeconds  int    `mapstructure:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS"`
	AllowOrigins                  string `mapstructure:"HTTP_SERVER_ALLOW_ORIGINS"`

	// Shared-secret API authentication. Requests must present this value in the
	// X-API-Key header (or api_key query parameter for legacy sync clients).
	APIKey string `mapstructure:"API_KEY"`

	// PostgreSQL
	DatabaseHost                string        `mapstructure:"DB_HOST"`
	DatabasePort                string        `mapstructure:"DB_PORT"`
	DatabaseUserName            string        `mapstructure:"DB_USER_NAME"`
	DatabasePassword            string        `mapstructure:"DB_PASSWORD"`
	DatabaseName                string        `mapstructure:"DB_NAME"`
	DatabaseSSLMode             string        `mapstructure:"DB_SSL_MODE"`
	DatabaseMaxOpenConns        int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DatabaseMaxIdleConns        int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DatabaseConnMaxLifetime     time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`
	DatabaseMigrationFolderPath string        `mapstructure:"DB_MIGRATION_FOLDER_PATH"`

	// Lookup / paging
	MaxPageSize     int `mapstructure:"MAX_PAGE_SIZE"`
	DefaultPageSize int `mapstructure:"DEFAULT_PAGE_SIZE"`

	// Batch processing
	ClearBatchSize  int  `mapstructure:"CLEAR_BATCH_SIZE"`
	RepairBatchSize int  `mapstructure:"REPAIR_BATCH_SIZE"`
	StrictBatchMode bool `mapstructure:"STRICT_BATCH_MODE"`
}

// Load reads configuration from environment variables and an optional .env file.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("APP_NAME", "packtrack-api")
	viper.SetDefault("PORT", 3004)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("PRETTY_LOGS", false)
	viper.SetDefault("HTTP_SERVER_WRITE_TIMEOUT_SECONDS", 10)
	viper.SetDefault("HTTP_SERVER_READ_TIMEOUT_SECONDS", 10)
	viper.SetDefault("HTTP_SERVER_IDLE_TIMEOUT_SECONDS", 10)
	viper.SetDefault("HTTP_SERVER_ALLOW_ORIGINS", "*")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER_NAME", "")
	viper.SetDefault("DB_PASSWORD", "")
	viper.SetDefault("DB_NAME", "packtrack")
	viper.SetDefault("DB_SSL_MODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 10)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "10s")
	viper.SetDefault("DB_MIGRATION_FOLDER_PATH", "db/pg")

	viper.SetDefault("MAX_PAGE_SIZE", 20)
	viper.SetDefault("DEFAULT_PAGE_SIZE", 20)

	viper.SetDefault("CLEAR_BATCH_SIZE", 1000)
	viper.SetDefault("REPAIR_BATCH_SIZE", 1000)
	viper.SetDefault("STRICT_BATCH_MODE", false)

	// Optional .env file for local development; missing file is fine.
	_ = viper.ReadInConfig()

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
