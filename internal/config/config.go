package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Address string `mapstructure:"address"`
		Port    string `mapstructure:"port"`
	} `mapstructure:"server"`

	Log struct {
		Level string `mapstructure:"level"` // debug|info|warn|error
	} `mapstructure:"log"`

	Database struct {
		Driver string `mapstructure:"driver"` // postgres|mysql|sqlite
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Auth struct {
		JWTSecret  string        `mapstructure:"jwt_secret"`
		SessionTTL time.Duration `mapstructure:"session_ttl"`
	} `mapstructure:"auth"`

	Mail struct {
		From          string        `mapstructure:"from"`
		BaseURL       string        `mapstructure:"base_url"`
		APIKeyEnv     string        `mapstructure:"api_key_env"`
		FunctionURL   string        `mapstructure:"function_url"`   // empty: deliver in-process
		FunctionToken string        `mapstructure:"function_token"` // empty: the mail function rejects every call
		CORSOrigin    string        `mapstructure:"cors_origin"`
		Timeout       time.Duration `mapstructure:"timeout"`
	} `mapstructure:"mail"`

	Alerts struct {
		PollInterval time.Duration `mapstructure:"poll_interval"`
		BatchSize    int           `mapstructure:"batch_size"`
		MaxAttempts  int           `mapstructure:"max_attempts"`
	} `mapstructure:"alerts"`

	Redis struct {
		Addr     string `mapstructure:"addr"` // empty: in-process session events
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Seed struct {
		AdminEmail    string `mapstructure:"admin_email"`
		AdminPassword string `mapstructure:"admin_password"`
		CompanyName   string `mapstructure:"company_name"`
	} `mapstructure:"seed"`
}

func (c *Config) ListenAddr() string {
	return c.Server.Address + ":" + c.Server.Port
}

// Load reads configuration from defaults, an optional yaml file and the environment.
// DATABASE_URL, JWT_SECRET and HTTP_PORT are honoured for compatibility with older deployments.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_ttl", "24h")
	v.SetDefault("mail.from", "Stockroom <alerts@stockroom.local>")
	v.SetDefault("mail.base_url", "https://api.resend.com")
	v.SetDefault("mail.api_key_env", "RESEND_API_KEY")
	v.SetDefault("mail.function_url", "")
	v.SetDefault("mail.function_token", "")
	v.SetDefault("mail.cors_origin", "*")
	v.SetDefault("mail.timeout", "10s")
	v.SetDefault("alerts.poll_interval", "2s")
	v.SetDefault("alerts.batch_size", 20)
	v.SetDefault("alerts.max_attempts", 1)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("seed.admin_email", "")
	v.SetDefault("seed.admin_password", "")
	v.SetDefault("seed.company_name", "Default Company")

	_ = v.BindEnv("database.dsn", "DATABASE_DSN", "DATABASE_URL")
	_ = v.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("server.port", "SERVER_PORT", "HTTP_PORT")

	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func validate(c *Config) error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn must be set")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth.jwt_secret must be set")
	}
	if c.Auth.SessionTTL <= 0 {
		return errors.New("auth.session_ttl must be positive")
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		return errors.New("server.port must not be empty")
	}
	if strings.TrimSpace(c.Mail.APIKeyEnv) == "" {
		return errors.New("mail.api_key_env must not be empty")
	}
	if c.Alerts.BatchSize <= 0 {
		return errors.New("alerts.batch_size must be positive")
	}
	if c.Alerts.MaxAttempts < 1 {
		return errors.New("alerts.max_attempts must be at least 1")
	}
	return nil
}
