package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config carries everything the server needs at startup. Values come from
// config.yaml with environment overrides.
type Config struct {
	Addr     string `mapstructure:"addr"`
	Database struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"database"`
	Auth struct {
		BcryptCost int `mapstructure:"bcrypt_cost"`
	} `mapstructure:"auth"`
	RateLimit struct {
		LoginBurst     int `mapstructure:"login_burst"`
		LoginPerSecond int `mapstructure:"login_per_second"`
	} `mapstructure:"rate_limit"`
}

// Load reads config.yaml (current or parent directory) and applies env
// overrides (ADDR, DATABASE_URL, BCRYPT_COST, ...).
func Load() (Config, error) {
	viper.SetDefault("addr", ":8000")
	viper.SetDefault("auth.bcrypt_cost", 12)
	viper.SetDefault("rate_limit.login_burst", 5)
	viper.SetDefault("rate_limit.login_per_second", 1)

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	_ = viper.ReadInConfig()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("addr", "ADDR")
	_ = viper.BindEnv("database.url", "DATABASE_URL")
	_ = viper.BindEnv("auth.bcrypt_cost", "BCRYPT_COST")
	_ = viper.BindEnv("rate_limit.login_burst", "LOGIN_RATE_BURST")
	_ = viper.BindEnv("rate_limit.login_per_second", "LOGIN_RATE_PER_SECOND")

	var c Config
	if err := viper.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if c.Database.URL == "" {
		return Config{}, fmt.Errorf("config: database.url/DATABASE_URL required")
	}
	return c, nil
}
