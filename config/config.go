package config

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server   Server
	Database Database
	Redis    Redis
	Engine   Engine
	LogLevel string
}

type Server struct {
	Port string
}

type Database struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string `json:"-"`
	Name       string
	SSLMode    string
	SQLitePath string
}

// Redis is optional. Draft checkpoints stay in process memory when Addr is empty.
type Redis struct {
	Addr     string
	Password string `json:"-"`
	DB       int
}

type Engine struct {
	FinalizeRetries int
	RetryBackoff    time.Duration
	CheckpointTTL   time.Duration
	// FeedInterval is the tick of the remaining-time event stream.
	FeedInterval time.Duration
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DATABASE_DRIVER", "postgres")
	viper.SetDefault("DATABASE_PORT", "5432")
	viper.SetDefault("DATABASE_SSLMODE", "disable")
	viper.SetDefault("SQLITE_PATH", "file:timedtest.db?cache=shared&_pragma=busy_timeout(5000)")
	viper.SetDefault("ENGINE_FINALIZE_RETRIES", 3)
	viper.SetDefault("ENGINE_RETRY_BACKOFF", "250ms")
	viper.SetDefault("ENGINE_CHECKPOINT_TTL", "24h")
	viper.SetDefault("ENGINE_FEED_INTERVAL", "1s")
	viper.SetDefault("LOG_LEVEL", "info")

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Driver = viper.GetString("DATABASE_DRIVER")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")
	config.Database.SSLMode = viper.GetString("DATABASE_SSLMODE")
	config.Database.SQLitePath = viper.GetString("SQLITE_PATH")

	config.Redis.Addr = viper.GetString("REDIS_ADDR")
	config.Redis.Password = viper.GetString("REDIS_PASSWORD")
	config.Redis.DB = viper.GetInt("REDIS_DB")

	config.Engine.FinalizeRetries = viper.GetInt("ENGINE_FINALIZE_RETRIES")
	config.Engine.RetryBackoff = viper.GetDuration("ENGINE_RETRY_BACKOFF")
	config.Engine.CheckpointTTL = viper.GetDuration("ENGINE_CHECKPOINT_TTL")
	config.Engine.FeedInterval = viper.GetDuration("ENGINE_FEED_INTERVAL")

	config.LogLevel = viper.GetString("LOG_LEVEL")

	log.Info().Interface("config", config).Msg("Config loaded")
	return &config, nil
}
