package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	JWT    JWTConfig    `mapstructure:"jwt"`
	Game   GameConfig   `mapstructure:"game"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"` // debug, release
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int    `mapstructure:"expire"` // hours
}

type GameConfig struct {
	Testing             bool `mapstructure:"testing"`
	DefaultEndingScore  int  `mapstructure:"defaultEndingScore"`  // hearts
	DefaultWinThreshold int  `mapstructure:"defaultWinThreshold"` // spades
	SweepSeconds        int  `mapstructure:"sweepSeconds"`
}

var GlobalConfig *Config

func LoadConfig(path string) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("jwt.expire", 72)
	viper.SetDefault("game.defaultEndingScore", 50)
	viper.SetDefault("game.defaultWinThreshold", 300)
	viper.SetDefault("game.sweepSeconds", 60)

	viper.SetEnvPrefix("masa")
	viper.AutomaticEnv()
	_ = viper.BindEnv("server.port", "PORT")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("config file not read (%v), using defaults and env", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
	GlobalConfig = &cfg
}

// EndingScore returns the Hearts default ending score, lowered in
// testing mode so games finish quickly.
func (c *Config) EndingScore() int {
	if c.Game.Testing {
		return 20
	}
	if c.Game.DefaultEndingScore > 0 {
		return c.Game.DefaultEndingScore
	}
	return 50
}
