package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Database DatabaseConfig `mapstructure:"database"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type BackupConfig struct {
	RootDir    string   `mapstructure:"root_dir"`
	OutputPath string   `mapstructure:"output_path"`
	Exclusions []string `mapstructure:"exclusions"`
	// Policy is "strict" or "best-effort".
	Policy   string `mapstructure:"policy"`
	Schedule string `mapstructure:"schedule"`
}

type DatabaseConfig struct {
	Name     string `mapstructure:"name"`
	Type     string `mapstructure:"type"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`

	// MySQL specific
	Charset string `mapstructure:"charset"`

	// SQLite specific
	Path string `mapstructure:"path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
	// OnlyFailures suppresses success messages.
	OnlyFailures bool `mapstructure:"only_failures"`
}

// Load reads the YAML file at path. Any key may be overridden from the
// environment, e.g. WPBACKUP_DATABASE_PASSWORD.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("wpbackup")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDerived()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "wpbackup")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("backup.policy", "strict")
	v.SetDefault("database.name", "wordpress")
	v.SetDefault("database.type", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.charset", "utf8mb4")

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{
		"backup.root_dir", "backup.output_path", "backup.schedule",
		"database.username", "database.password", "database.database", "database.path",
		"notify.telegram.enabled", "notify.telegram.bot_token", "notify.telegram.chat_id",
	} {
		_ = v.BindEnv(key)
	}
}

// applyDerived fills values computed from other settings. The output path
// defaults to wpbackup.zip in the root directory.
func (c *Config) applyDerived() {
	if c.Backup.OutputPath == "" && c.Backup.RootDir != "" {
		c.Backup.OutputPath = filepath.Join(c.Backup.RootDir, "wpbackup.zip")
	}
}

func (c *Config) Validate() error {
	if c.Backup.RootDir == "" {
		return fmt.Errorf("backup.root_dir is required")
	}
	if c.Backup.OutputPath == "" {
		return fmt.Errorf("backup.output_path is required")
	}
	if c.Backup.Policy != "strict" && c.Backup.Policy != "best-effort" {
		return fmt.Errorf("backup.policy must be strict or best-effort, got %q", c.Backup.Policy)
	}

	switch c.Database.Type {
	case "mysql":
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required for mysql")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required for mysql")
		}
	case "sqlite", "sqlite3":
		if c.Database.Path == "" && c.Database.Database == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case "":
		return fmt.Errorf("database.type is required")
	}

	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" {
			return fmt.Errorf("notify.telegram.bot_token is required when enabled")
		}
		if c.Notify.Telegram.ChatID == 0 {
			return fmt.Errorf("notify.telegram.chat_id is required when enabled")
		}
	}

	return nil
}
