package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"`
	Room        RoomConfig        `mapstructure:"room"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int    `mapstructure:"expire"` // hours
}

type MatchmakingConfig struct {
	ScanIntervalMs int `mapstructure:"scanIntervalMs"`
	BaseWindow     int `mapstructure:"baseWindow"`
	WindowGrowth   int `mapstructure:"windowGrowth"`
	MaxWaitMs      int `mapstructure:"maxWaitMs"`
}

type RoomConfig struct {
	TurnSeconds  int `mapstructure:"turnSeconds"`
	GraceSeconds int `mapstructure:"graceSeconds"`
}

var GlobalConfig *Config

func LoadConfig(path string) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetDefault("matchmaking.scanIntervalMs", 2000)
	viper.SetDefault("matchmaking.baseWindow", 200)
	viper.SetDefault("matchmaking.windowGrowth", 50)
	viper.SetDefault("matchmaking.maxWaitMs", 30000)
	viper.SetDefault("room.turnSeconds", 60)
	viper.SetDefault("room.graceSeconds", 120)

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file, %s", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
	GlobalConfig = &cfg
}

func (c MatchmakingConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalMs) * time.Millisecond
}

func (c MatchmakingConfig) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitMs) * time.Millisecond
}
