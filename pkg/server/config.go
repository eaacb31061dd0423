package server

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds service configuration.
type Config struct {
	ListenAddr        string  `mapstructure:"listen_addr"`
	SignificanceLevel float64 `mapstructure:"significance_level"`
	RequestTimeoutSec int     `mapstructure:"request_timeout_sec"`
	RedisAddr         string  `mapstructure:"redis_addr"`
	CacheEnabled      bool    `mapstructure:"cache_enabled"`
	CacheTTLSec       int     `mapstructure:"cache_ttl_sec"`
}

// LoadConfig loads configuration from an optional config file and the
// environment. Precedence: env > config file > defaults. Environment
// variables use the CROSSTAB prefix, e.g. CROSSTAB_LISTEN_ADDR.
func LoadConfig(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CROSSTAB")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8000")
	v.SetDefault("significance_level", 0.05)
	v.SetDefault("request_timeout_sec", 30)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("cache_enabled", false)
	v.SetDefault("cache_ttl_sec", 3600)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}
