package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   Server
	Database Database
	JWT      JWT
	Redis    Redis
	Mail     Mail
	Uploads  Uploads
	App      App
	Log      Log
}

type Server struct {
	Port        string
	Environment string
}

type Database struct {
	Driver   string
	URL      string
	User     string
	Password string
	Host     string
	Port     string
	Name     string
	MaxConns int32 `mapstructure:"max_conns"`
}

type JWT struct {
	Secret string
}

type Redis struct {
	Addr string
}

type Mail struct {
	Provider string
	ReplyTo  string `mapstructure:"reply_to"`
	SMTP     SMTP
	Plunk    Plunk
}

type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type Plunk struct {
	APIKey string `mapstructure:"api_key"`
	From   string
	APIURL string `mapstructure:"api_url"`
}

type Uploads struct {
	Dir      string
	MaxBytes int64 `mapstructure:"max_bytes"`
}

type App struct {
	URL string
}

type Log struct {
	Level string
}

// env variable names for every key; the defaults match a local docker-compose setup.
var envKeys = map[string]string{
	"server.port":        "PORT",
	"server.environment": "APP_ENV",
	"database.driver":    "DB_DRIVER",
	"database.url":       "DATABASE_URL",
	"database.user":      "DB_USER",
	"database.password":  "DB_PASSWORD",
	"database.host":      "DB_HOST",
	"database.port":      "DB_PORT",
	"database.name":      "DB_NAME",
	"database.max_conns": "DB_MAX_CONNS",
	"jwt.secret":         "JWT_SECRET",
	"redis.addr":         "REDIS_ADDR",
	"mail.provider":      "MAIL_PROVIDER",
	"mail.reply_to":      "MAIL_REPLY_TO",
	"mail.smtp.host":     "SMTP_HOST",
	"mail.smtp.port":     "SMTP_PORT",
	"mail.smtp.username": "SMTP_USERNAME",
	"mail.smtp.password": "SMTP_PASSWORD",
	"mail.smtp.from":     "SMTP_FROM",
	"mail.plunk.api_key": "PLUNK_API_KEY",
	"mail.plunk.from":    "PLUNK_FROM",
	"mail.plunk.api_url": "PLUNK_API_URL",
	"uploads.dir":        "UPLOAD_DIR",
	"uploads.max_bytes":  "UPLOAD_MAX_BYTES",
	"app.url":            "APP_URL",
	"log.level":          "LOG_LEVEL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("mail.provider", "log")
	v.SetDefault("mail.plunk.api_url", "https://api.useplunk.com/v1/send")
	v.SetDefault("uploads.dir", "./uploads")
	v.SetDefault("uploads.max_bytes", 10<<20)
	v.SetDefault("app.url", "http://localhost:3000")
	v.SetDefault("log.level", "info")
}

// Load reads an optional .env file, an optional config/<name>.yaml and the
// environment, in increasing order of precedence.
func Load(name string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	return Parse(v)
}

// Parse unmarshals and validates a populated viper instance.
func Parse(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		slog.Error("Unable to unmarshal config", "err", err)
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN() == "" {
			return errors.New("config: DATABASE_URL or DB_HOST/DB_NAME is required")
		}
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	if c.Uploads.MaxBytes <= 0 {
		return errors.New("config: uploads.max_bytes must be positive")
	}
	return nil
}

// DSN returns DATABASE_URL or assembles one from the discrete DB_* values.
func (d Database) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	if d.Host == "" || d.Name == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", d.User, d.Password, d.Host, d.Port, d.Name)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// SlogLevel parses Log.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
