package config

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Coach     CoachConfig     `mapstructure:"coach"`
	Email     EmailConfig     `mapstructure:"email"`
	AMQP      AMQPConfig      `mapstructure:"amqp"`
}

// ServerConfig HTTP server
type ServerConfig struct {
	Port    string `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
	BaseURL string `mapstructure:"base_url"`
}

// Addr is the listen address; a bare port gets a leading colon.
func (s ServerConfig) Addr() string {
	if strings.Contains(s.Port, ":") {
		return s.Port
	}
	return ":" + s.Port
}

// DatabaseConfig MySQL connection
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Charset  string `mapstructure:"charset"`
}

// DSN builds the go-sql-driver DSN.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.DBName, d.Charset)
}

// JWTConfig token verification
type JWTConfig struct {
	Secret      string        `mapstructure:"secret"`
	ExpireHours int           `mapstructure:"expire_hours"`
	ExpireTime  time.Duration `mapstructure:"-"`
}

// AnalyticsConfig aggregation engine settings
type AnalyticsConfig struct {
	LookbackMonths   int                `mapstructure:"lookback_months"`
	LeaderboardLimit int                `mapstructure:"leaderboard_limit"`
	Timezone         string             `mapstructure:"timezone"`
	CacheSize        int                `mapstructure:"cache_size"`
	CacheTTL         time.Duration      `mapstructure:"cache_ttl"`
	DefaultBudgets   map[string]float64 `mapstructure:"default_budgets"`
}

// Location resolves Timezone, falling back to the process local zone.
func (a AnalyticsConfig) Location() *time.Location {
	if a.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		log.Printf("warning: unknown timezone %q, using local: %v", a.Timezone, err)
		return time.Local
	}
	return loc
}

// CoachConfig OpenAI-compatible narrative endpoint
type CoachConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// EmailConfig budget alert mail
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
}

// AMQPConfig snapshot change events
type AMQPConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
}

var (
	// GlobalConfig global config instance
	GlobalConfig *Config
)

// LoadConfig loads configuration.
// Precedence: environment > external file > embedded defaults.
// configPath: optional external file
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	// 1. embedded defaults
	if err := v.ReadConfig(bytes.NewReader(DefaultConfigYAML)); err != nil {
		return nil, fmt.Errorf("read embedded config: %w", err)
	}
	log.Println("loaded embedded default config")

	// 2. external file overrides
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.MergeInConfig(); err != nil {
			log.Printf("warning: cannot read config file %s: %v", configPath, err)
		} else {
			log.Printf("merged config file: %s", configPath)
		}
	} else {
		externalViper := viper.New()
		externalViper.SetConfigName("config")
		externalViper.SetConfigType("yaml")
		externalViper.AddConfigPath(".")
		externalViper.AddConfigPath("./config")
		externalViper.AddConfigPath("/etc/expensight")
		externalViper.AddConfigPath("$HOME/.expensight")

		if err := externalViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(externalViper.AllSettings()); err != nil {
				log.Printf("warning: merge external config: %v", err)
			} else {
				log.Printf("merged config file: %s", externalViper.ConfigFileUsed())
			}
		}
	}

	// 3. environment
	v.SetEnvPrefix("EXPENSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	GlobalConfig = &cfg

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.JWT.ExpireHours <= 0 {
		c.JWT.ExpireHours = 24
	}
	c.JWT.ExpireTime = time.Duration(c.JWT.ExpireHours) * time.Hour

	if c.Analytics.LookbackMonths <= 0 {
		c.Analytics.LookbackMonths = 24
	}
	if c.Analytics.LeaderboardLimit <= 0 {
		c.Analytics.LeaderboardLimit = 5
	}
	if c.Analytics.CacheSize <= 0 {
		c.Analytics.CacheSize = 256
	}
	if c.Analytics.CacheTTL <= 0 {
		c.Analytics.CacheTTL = 10 * time.Minute
	}
	if c.Coach.Timeout <= 0 {
		c.Coach.Timeout = 60 * time.Second
	}
}

// MustLoadConfig loads configuration or panics.
func MustLoadConfig(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}
	return cfg
}

// GetConfig returns the global configuration.
func GetConfig() *Config {
	if GlobalConfig == nil {
		panic("config not initialized, call LoadConfig first")
	}
	return GlobalConfig
}

// PrintConfig logs the current configuration without secrets.
func PrintConfig() {
	if GlobalConfig == nil {
		return
	}
	log.Printf("current config:")
	log.Printf("  server: %s (mode: %s)", GlobalConfig.Server.Port, GlobalConfig.Server.Mode)
	log.Printf("  database: %s@%s:%s/%s",
		GlobalConfig.Database.Username,
		GlobalConfig.Database.Host,
		GlobalConfig.Database.Port,
		GlobalConfig.Database.DBName)
	log.Printf("  analytics: lookback=%d months, leaderboard=%d, tz=%q",
		GlobalConfig.Analytics.LookbackMonths,
		GlobalConfig.Analytics.LeaderboardLimit,
		GlobalConfig.Analytics.Timezone)
	log.Printf("  coach: %v  email: %v  amqp: %v",
		GlobalConfig.Coach.Enabled, GlobalConfig.Email.Enabled, GlobalConfig.AMQP.Enabled)
}
