package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type EngineConfig struct {
	LockedPolicy string
	OutputFormat string
	ExportToDB   bool
}

type LogConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	Port         string
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Config is the full runtime configuration of the engine.
type Config struct {
	Engine   EngineConfig
	Log      LogConfig
	Server   ServerConfig
	Redis    RedisConfig
	Database DatabaseConfig
	AuthKey  string
}

// envBindings maps viper keys to the environment variables that override them.
var envBindings = map[string]string{
	"engine.locked_policy":       "ENGINE_LOCKED_POLICY",
	"output.format":              "OUTPUT_FORMAT",
	"export.database":            "EXPORT_DATABASE",
	"log.level":                  "LOG_LEVEL",
	"log.format":                 "LOG_FORMAT",
	"server.port":                "PORT",
	"server.max_body_bytes":      "SERVER_MAX_BODY_BYTES",
	"server.read_timeout":        "SERVER_READ_TIMEOUT",
	"server.write_timeout":       "SERVER_WRITE_TIMEOUT",
	"auth.secret_key":            "AUTH_SECRET_KEY",
	"cache.ttl":                  "CACHE_TTL",
	"redis.host":                 "REDIS_HOST",
	"redis.port":                 "REDIS_PORT",
	"redis.password":             "REDIS_PASSWORD",
	"redis.db":                   "REDIS_DB",
	"database.host":              "DATABASE_HOST",
	"database.port":              "DATABASE_PORT",
	"database.user":              "DATABASE_USER",
	"database.password":          "DATABASE_PASSWORD",
	"database.name":              "DATABASE_NAME",
	"database.ssl_mode":          "DATABASE_SSL_MODE",
	"database.max_open_conns":    "DATABASE_MAX_OPEN_CONNS",
	"database.max_idle_conns":    "DATABASE_MAX_IDLE_CONNS",
	"database.conn_max_lifetime": "DATABASE_CONN_MAX_LIFETIME",
}

// flagBindings maps viper keys to command line flag names.
var flagBindings = map[string]string{
	"engine.locked_policy": "locked-policy",
	"output.format":        "output",
	"export.database":      "export-db",
	"log.level":            "log-level",
	"log.format":           "log-format",
	"server.port":          "port",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.locked_policy", "reject")
	v.SetDefault("output.format", "csv")
	v.SetDefault("export.database", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.max_body_bytes", 32<<20)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "payments_engine")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
}

// RegisterFlags adds the flags Load understands to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", ".env", "path to an optional env-style config file")
	flags.String("locked-policy", "reject", "records for locked accounts: reject or flag")
	flags.StringP("output", "o", "csv", "report format: csv or json")
	flags.Bool("export-db", false, "also write the final snapshot to Postgres")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "console", "log encoding: console or json")
	flags.String("port", "8080", "HTTP port for serve")
}

// Load reads defaults, then the config file, then the environment, then any
// flags that were explicitly set. Later sources win. A missing config file is
// not an error.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	configFile := ".env"
	if flags != nil {
		if f := flags.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("reading config %s: %w", configFile, err)
			}
		}
		// The env file yields flat keys such as log_level; lift them onto the
		// dotted keys so the real environment and flags still override them.
		for key, env := range envBindings {
			if fileKey := strings.ToLower(env); v.InConfig(fileKey) {
				v.SetDefault(key, v.Get(fileKey))
			}
		}
	}

	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}
	if flags != nil {
		for key, name := range flagBindings {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Engine: EngineConfig{
			LockedPolicy: v.GetString("engine.locked_policy"),
			OutputFormat: v.GetString("output.format"),
			ExportToDB:   v.GetBool("export.database"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Server: ServerConfig{
			Port:         v.GetString("server.port"),
			MaxBodyBytes: v.GetInt64("server.max_body_bytes"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetString("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			CacheTTL: v.GetDuration("cache.ttl"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetString("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			Name:            v.GetString("database.name"),
			SSLMode:         v.GetString("database.ssl_mode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		AuthKey: v.GetString("auth.secret_key"),
	}
}
