// Package config provides application configuration management with support for
// command-line flags, environment variables, .env files and a TOML config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Configuration keys. Command-line flags use the same keys, lower-cased with
// dashes (LIBRARY_PATH becomes --library-path).
const (
	KeyEnv              = "ENV"
	KeyLogLevel         = "LOG_LEVEL"
	KeyLogFormat        = "LOG_FORMAT"
	KeyLogFile          = "LOG_FILE"
	KeyLibraryPath      = "LIBRARY_PATH"
	KeyDBPath           = "DB_PATH"
	KeyStoreDriver      = "STORE_DRIVER"
	KeyDefaultExtension = "DEFAULT_EXTENSION"
	KeyUploadDir        = "UPLOAD_DIR"
	KeyExifToolPath     = "EXIFTOOL_PATH"
	KeyTaggerEnabled    = "TAGGER_ENABLED"
	KeyTaggerExtensions = "TAGGER_EXTENSIONS"
)

// Store drivers.
const (
	DriverBadger = "badger"
	DriverSQLite = "sqlite"
)

// DataDirName is the default metadata directory inside the library root.
const DataDirName = ".tometrove"

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Library LibraryConfig
	Store   StoreConfig
	Tagger  TaggerConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // "", "pretty" or "json"; "" picks by environment
	File   string // optional rotating log file
}

// LibraryConfig holds the library tree configuration.
type LibraryConfig struct {
	Path             string
	DefaultExtension string
	UploadDir        string // watched inbox, optional
}

// StoreConfig holds metadata storage configuration.
type StoreConfig struct {
	Driver string
	Path   string // data directory
}

// Location returns where the selected driver keeps its data.
func (s StoreConfig) Location() string {
	if s.Driver == DriverSQLite {
		return filepath.Join(s.Path, "library.db")
	}
	return filepath.Join(s.Path, "badger")
}

// TaggerConfig holds embedded-metadata tagging configuration.
type TaggerConfig struct {
	Enabled      bool
	ExifToolPath string
	Extensions   []string
}

// Options tells Load where to look.
type Options struct {
	// Flags holds values set on the command line, by key.
	Flags map[string]string
	// EnvFile is the .env file; missing files are ignored. Default ".env".
	EnvFile string
	// ConfigFile is the TOML file. When empty the default location is used
	// if it exists; an explicit path must exist.
	ConfigFile string
}

// fileConfig mirrors the TOML layout.
type fileConfig struct {
	Env string `toml:"env"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
		File   string `toml:"file"`
	} `toml:"log"`
	Library struct {
		Path             string `toml:"path"`
		DefaultExtension string `toml:"default_extension"`
		UploadDir        string `toml:"upload_dir"`
	} `toml:"library"`
	Store struct {
		Driver string `toml:"driver"`
		Path   string `toml:"path"`
	} `toml:"store"`
	Tagger struct {
		Enabled      *bool    `toml:"enabled"`
		ExifToolPath string   `toml:"exiftool_path"`
		Extensions   []string `toml:"extensions"`
	} `toml:"tagger"`
}

func (f *fileConfig) values() map[string]string {
	v := map[string]string{
		KeyEnv:              f.Env,
		KeyLogLevel:         f.Log.Level,
		KeyLogFormat:        f.Log.Format,
		KeyLogFile:          f.Log.File,
		KeyLibraryPath:      f.Library.Path,
		KeyDefaultExtension: f.Library.DefaultExtension,
		KeyUploadDir:        f.Library.UploadDir,
		KeyStoreDriver:      f.Store.Driver,
		KeyDBPath:           f.Store.Path,
		KeyExifToolPath:     f.Tagger.ExifToolPath,
		KeyTaggerExtensions: strings.Join(f.Tagger.Extensions, ","),
	}
	if f.Tagger.Enabled != nil {
		v[KeyTaggerEnabled] = fmt.Sprint(*f.Tagger.Enabled)
	}
	return v
}

// sources resolves a key through every configuration layer.
type sources struct {
	flags  map[string]string
	dotenv map[string]string
	file   map[string]string
}

// get returns the first non-empty value from flag, env var, .env, file or default.
func (s *sources) get(key, defaultValue string) string {
	if v := s.flags[key]; v != "" {
		return v
	}
	if v := os.Getenv(key); v != "" {
		return v
	}
	if v := s.dotenv[key]; v != "" {
		return v
	}
	if v := s.file[key]; v != "" {
		return v
	}
	return defaultValue
}

// getBool accepts "true", "1", "yes" (case-insensitive) as true; anything else is false.
func (s *sources) getBool(key string, defaultValue bool) bool {
	v := s.get(key, "")
	if v == "" {
		return defaultValue
	}
	v = strings.ToLower(v)
	return v == "true" || v == "1" || v == "yes"
}

// DefaultConfigFile returns $XDG_CONFIG_HOME/tometrove/config.toml or the
// platform equivalent.
func DefaultConfigFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tometrove", "config.toml")
}

// Load loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. TOML config file.
// 5. Default values (lowest priority).
func Load(opts Options) (*Config, error) {
	src := &sources{flags: opts.Flags}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	dotenv, err := godotenv.Read(envFile)
	switch {
	case err == nil:
		src.dotenv = dotenv
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
	}

	configFile, explicit := opts.ConfigFile, opts.ConfigFile != ""
	if !explicit {
		configFile = DefaultConfigFile()
	}
	if configFile != "" {
		var fc fileConfig
		_, err := toml.DecodeFile(configFile, &fc)
		switch {
		case err == nil:
			src.file = fc.values()
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Environment: src.get(KeyEnv, "development"),
		},
		Logger: LoggerConfig{
			Level:  src.get(KeyLogLevel, "info"),
			Format: src.get(KeyLogFormat, ""),
			File:   src.get(KeyLogFile, ""),
		},
		Library: LibraryConfig{
			Path:             src.get(KeyLibraryPath, ""),
			DefaultExtension: src.get(KeyDefaultExtension, ".epub"),
			UploadDir:        src.get(KeyUploadDir, ""),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(src.get(KeyStoreDriver, DriverBadger)),
			Path:   src.get(KeyDBPath, ""),
		},
		Tagger: TaggerConfig{
			Enabled:      src.getBool(KeyTaggerEnabled, true),
			ExifToolPath: src.get(KeyExifToolPath, "exiftool"),
			Extensions:   splitList(src.get(KeyTaggerExtensions, ".pdf,.epub,.docx")),
		},
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Logger.Format {
	case "", "pretty", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be pretty or json)", c.Logger.Format)
	}

	if c.Library.Path == "" {
		return errors.New("library path is required (set LIBRARY_PATH or --library-path)")
	}

	if !strings.HasPrefix(c.Library.DefaultExtension, ".") || len(c.Library.DefaultExtension) < 2 {
		return fmt.Errorf("invalid default extension: %q", c.Library.DefaultExtension)
	}

	switch c.Store.Driver {
	case DriverBadger, DriverSQLite:
	default:
		return fmt.Errorf("invalid store driver: %s (must be %s or %s)", c.Store.Driver, DriverBadger, DriverSQLite)
	}

	if c.Store.Path == "" {
		return errors.New("store path cannot be empty after expansion")
	}

	return nil
}

// expandPaths expands every path setting and fills derived defaults.
func (c *Config) expandPaths() error {
	var err error
	if c.Library.Path, err = expandPath(c.Library.Path, ""); err != nil {
		return fmt.Errorf("invalid library path: %w", err)
	}

	defaultStore := ""
	if c.Library.Path != "" {
		defaultStore = filepath.Join(c.Library.Path, DataDirName)
	}
	if c.Store.Path, err = expandPath(c.Store.Path, defaultStore); err != nil {
		return fmt.Errorf("invalid store path: %w", err)
	}

	if c.Library.UploadDir, err = expandPath(c.Library.UploadDir, ""); err != nil {
		return fmt.Errorf("invalid upload directory: %w", err)
	}
	if c.Logger.File, err = expandPath(c.Logger.File, ""); err != nil {
		return fmt.Errorf("invalid log file: %w", err)
	}

	c.Library.DefaultExtension = normalizeExt(c.Library.DefaultExtension)
	for i, ext := range c.Tagger.Extensions {
		c.Tagger.Extensions[i] = strings.ToLower(normalizeExt(ext))
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, strings.TrimPrefix(path[1:], "/"))
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
