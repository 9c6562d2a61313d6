package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Game   GameConfig   `mapstructure:"game"`
	Limits LimitsConfig `mapstructure:"limits"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

// StoreConfig selects and configures the durable key/value backend.
// Backend is one of "redis", "postgres", "gorm".
type StoreConfig struct {
	Backend  string         `mapstructure:"backend"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type GameConfig struct {
	GraceWindowSeconds int `mapstructure:"grace_window_seconds"`
	HeartbeatSeconds   int `mapstructure:"heartbeat_seconds"`
	DrawBatchWindowMs  int `mapstructure:"draw_batch_window_ms"`
	DrawBatchMax       int `mapstructure:"draw_batch_max"`
}

type LimitsConfig struct {
	ChatPerMinute  int `mapstructure:"chat_per_minute"`
	DrawsPerSecond int `mapstructure:"draws_per_second"`
}

func (g GameConfig) GraceWindow() time.Duration {
	return time.Duration(g.GraceWindowSeconds) * time.Second
}

func (g GameConfig) Heartbeat() time.Duration {
	return time.Duration(g.HeartbeatSeconds) * time.Second
}

func (g GameConfig) DrawBatchWindow() time.Duration {
	return time.Duration(g.DrawBatchWindowMs) * time.Millisecond
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":8081")
	viper.SetDefault("server.metrics_address", ":9100")
	viper.SetDefault("store.backend", "redis")
	viper.SetDefault("store.redis.address", "localhost:6379")
	viper.SetDefault("game.grace_window_seconds", 30)
	viper.SetDefault("game.heartbeat_seconds", 30)
	viper.SetDefault("game.draw_batch_window_ms", 50)
	viper.SetDefault("game.draw_batch_max", 64)
	viper.SetDefault("limits.chat_per_minute", 30)
	viper.SetDefault("limits.draws_per_second", 20)

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = viper.Unmarshal(&config)
	return
}
