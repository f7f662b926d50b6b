package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	AI       AIConfig       `mapstructure:"ai"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Log      LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type AIConfig struct {
	Provider        string `mapstructure:"provider"`
	APIKey          string `mapstructure:"api_key"`
	Model           string `mapstructure:"model"`
	MaxOutputTokens int    `mapstructure:"max_output_tokens"`
}

type IngestConfig struct {
	Marker          string `mapstructure:"marker"`
	DPI             int    `mapstructure:"dpi"`
	MaxImagePx      int    `mapstructure:"max_image_px"`
	WorkDir         string `mapstructure:"work_dir"`
	MaxHeadingLevel int    `mapstructure:"max_heading_level"`
	ToCPages        int    `mapstructure:"toc_pages"`
	ToCPageOffset   int    `mapstructure:"toc_page_offset"`
}

type LogConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Load reads configuration from path, or from an optional exbank.yaml in the
// working directory when path is empty. Environment variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("EXBANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("ai.api_key", "EXBANK_AI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("database.dsn", "EXBANK_DATABASE_DSN", "DATABASE_DSN")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("exbank")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "exercises.db")
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.max_output_tokens", 8192)
	v.SetDefault("ingest.marker", "(esx10)")
	v.SetDefault("ingest.dpi", 150)
	v.SetDefault("ingest.max_image_px", 2000)
	v.SetDefault("ingest.work_dir", os.TempDir())
	v.SetDefault("ingest.max_heading_level", 1)
	v.SetDefault("ingest.toc_pages", 16)
	v.SetDefault("ingest.toc_page_offset", 0)
	v.SetDefault("log.mode", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if c.Ingest.DPI <= 0 {
		return fmt.Errorf("ingest.dpi must be positive, got %d", c.Ingest.DPI)
	}
	if c.Ingest.MaxHeadingLevel < 0 {
		return fmt.Errorf("ingest.max_heading_level must not be negative")
	}
	return nil
}
