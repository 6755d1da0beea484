// Package config loads linkvm settings from defaults, an optional TOML file
// and LINKVM_* environment variables, in increasing precedence.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// AppName is the application name.
	AppName = "linkvm"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "linkvm"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "toml"
	// EnvPrefix prefixes environment overrides: cache.dir is LINKVM_CACHE_DIR.
	EnvPrefix = "LINKVM"
)

// Config is the complete linkvm configuration.
type Config struct {
	Cache CacheConfig `mapstructure:"cache" toml:"cache"`
	GC    GCConfig    `mapstructure:"gc" toml:"gc"`
	Debug DebugConfig `mapstructure:"debug" toml:"debug"`
	I18n  I18nConfig  `mapstructure:"i18n" toml:"i18n"`
	Log   LogConfig   `mapstructure:"log" toml:"log"`
}

// CacheConfig selects the persistent unit cache.
type CacheConfig struct {
	Dir           string `mapstructure:"dir" toml:"dir"`
	Backend       string `mapstructure:"backend" toml:"backend"`
	CompressLevel int    `mapstructure:"compress_level" toml:"compress_level"`
	NoSync        bool   `mapstructure:"no_sync" toml:"no_sync"`
}

// GCConfig tunes the heap.
type GCConfig struct {
	// Threshold is the allocation count between collections; negative
	// disables automatic collection.
	Threshold int `mapstructure:"threshold" toml:"threshold"`
}

// DebugConfig enables diagnostics.
type DebugConfig struct {
	// ShowBytecode dumps every unit after it is populated.
	ShowBytecode bool `mapstructure:"show_bytecode" toml:"show_bytecode"`
}

// I18nConfig selects the translation catalog.
type I18nConfig struct {
	Language string `mapstructure:"language" toml:"language"`
	Catalog  string `mapstructure:"catalog" toml:"catalog"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level" toml:"level"`
	Development bool   `mapstructure:"development" toml:"development"`
}

// DefaultCacheDir returns the per-user cache directory.
func DefaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), AppName)
	}
	return filepath.Join(dir, AppName)
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			Dir:           DefaultCacheDir(),
			Backend:       "bolt",
			CompressLevel: 3,
		},
		GC:   GCConfig{Threshold: 4096},
		I18n: I18nConfig{Language: "en"},
		Log:  LogConfig{Level: "info"},
	}
}

// LoadOptions selects where configuration is read from.
type LoadOptions struct {
	// ConfigFilePath is used exclusively when set and must exist.
	ConfigFilePath string
	// SearchPaths are tried in order for linkvm.toml when no explicit path
	// is given. Empty means the working directory and the user config dir.
	SearchPaths []string
}

// Load reads the configuration. It returns the path of the file that was
// used, or "" when only defaults and the environment applied.
func Load(opts LoadOptions) (*Config, string, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType(ConfigFileExt)

	resolvedPath := ""
	if opts.ConfigFilePath != "" {
		v.SetConfigFile(opts.ConfigFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, "", fmt.Errorf("read config %s: %w", opts.ConfigFilePath, err)
		}
		resolvedPath = opts.ConfigFilePath
	} else {
		paths := opts.SearchPaths
		if len(paths) == 0 {
			paths = defaultSearchPaths()
		}
		for _, dir := range paths {
			candidate := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
			if _, err := os.Stat(candidate); err != nil {
				continue
			}
			v.SetConfigFile(candidate)
			if err := v.ReadInConfig(); err != nil {
				return nil, "", fmt.Errorf("read config %s: %w", candidate, err)
			}
			resolvedPath = candidate
			break
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.compress_level", d.Cache.CompressLevel)
	v.SetDefault("cache.no_sync", d.Cache.NoSync)
	v.SetDefault("gc.threshold", d.GC.Threshold)
	v.SetDefault("debug.show_bytecode", d.Debug.ShowBytecode)
	v.SetDefault("i18n.language", d.I18n.Language)
	v.SetDefault("i18n.catalog", d.I18n.Catalog)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
}

func defaultSearchPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, AppName))
	}
	return paths
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Cache.Backend) {
	case "bolt", "bbolt", "badger", "none":
	default:
		return fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend)
	}
	if c.Cache.CompressLevel < 0 || c.Cache.CompressLevel > 22 {
		return fmt.Errorf("cache.compress_level: %d is outside 0..22", c.Cache.CompressLevel)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Marshal renders the configuration as TOML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes the configuration to path. An existing file is only
// replaced when force is set.
func (c *Config) WriteFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

// NewLogger builds the zap logger described by the log section.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	var zc zap.Config
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
