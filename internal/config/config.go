// Package config loads annotate settings from annotate.yaml, .env and
// ANNOTATE_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sbenjam1n/annotate/internal/engine"
)

// FileName is the project configuration file looked up in the project root.
const FileName = "annotate.yaml"

// Config holds all configuration for the annotate CLI.
type Config struct {
	ProjectRoot string `mapstructure:"project_root"`

	// Name identifies the saved annotations; User is stamped on every row.
	Name string `mapstructure:"name"`
	User string `mapstructure:"user"`

	TasksFile   string   `mapstructure:"tasks_file"`
	DataFile    string   `mapstructure:"data_file"`
	IDColumn    string   `mapstructure:"id_column"`
	ItemColumns []string `mapstructure:"item_columns"`

	Backend     string `mapstructure:"backend"`
	StoreDir    string `mapstructure:"store_dir"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	DatabaseURL string `mapstructure:"database_url"`

	RedisURL string `mapstructure:"redis_url"`
	Events   bool   `mapstructure:"events"`

	Listen string `mapstructure:"listen"`

	Keys    engine.Keys `mapstructure:"keys"`
	Display Display     `mapstructure:"display"`
}

// Display tunes the terminal presenter.
type Display struct {
	ClearScreen   bool     `mapstructure:"clear_screen"`
	Width         int      `mapstructure:"width"`
	TruncateWords int      `mapstructure:"truncate_words"`
	Phrases       []string `mapstructure:"phrases"`
	IgnoreCase    bool     `mapstructure:"ignore_case"`
}

func setDefaults(v *viper.Viper, root string) {
	keys := engine.DefaultKeys()
	v.SetDefault("project_root", root)
	v.SetDefault("name", "HUMANNOTATOR")
	v.SetDefault("user", "")
	v.SetDefault("tasks_file", "tasks.yaml")
	v.SetDefault("data_file", "")
	v.SetDefault("id_column", "")
	v.SetDefault("item_columns", []string{})
	v.SetDefault("backend", "csv")
	v.SetDefault("store_dir", "annotations")
	v.SetDefault("sqlite_path", filepath.Join("annotations", "annotations.db"))
	v.SetDefault("database_url", "postgres://localhost:5432/annotate?sslmode=disable")
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("events", false)
	v.SetDefault("listen", "127.0.0.1:8080")
	v.SetDefault("keys.exit", keys.Exit)
	v.SetDefault("keys.previous", keys.Previous)
	v.SetDefault("keys.next", keys.Next)
	v.SetDefault("keys.null", keys.Null)
	v.SetDefault("display.clear_screen", true)
	v.SetDefault("display.width", 80)
	v.SetDefault("display.truncate_words", 0)
	v.SetDefault("display.phrases", []string{})
	v.SetDefault("display.ignore_case", false)
}

// Load reads configuration with sensible defaults.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	root := getEnv("ANNOTATE_PROJECT_ROOT", cwd)

	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v, root)
	v.SetEnvPrefix("ANNOTATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := filepath.Join(root, FileName)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", FileName, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Keys.Validate(); err != nil {
		return nil, fmt.Errorf("keys: %w", err)
	}
	return cfg, nil
}

// Path resolves p against the project root unless it is absolute.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectRoot, p)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
