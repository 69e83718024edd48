// Package config loads streamdl settings from a YAML file, the environment
// and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is prepended to every environment override, e.g. STREAMDL_REMUX.
	EnvPrefix = "STREAMDL"
	// FileName is the config file name inside the config directory.
	FileName = "config.yml"
)

// Config is the complete, read-only runtime configuration.
type Config struct {
	Language      string           `yaml:"language" mapstructure:"language"`
	DefaultFormat string           `yaml:"default_format" mapstructure:"default_format"`
	Stream        bool             `yaml:"stream" mapstructure:"stream"`
	Remux         bool             `yaml:"remux" mapstructure:"remux"`
	Convert       ConvertConfig    `yaml:"convert" mapstructure:"convert"`
	Downloader    DownloaderConfig `yaml:"downloader" mapstructure:"downloader"`
	Server        ServerConfig     `yaml:"server" mapstructure:"server"`
	Log           LogConfig        `yaml:"log" mapstructure:"log"`
}

// ConvertConfig gates the conversion features.
type ConvertConfig struct {
	Enabled         bool     `yaml:"enabled" mapstructure:"enabled"`
	Advanced        bool     `yaml:"advanced" mapstructure:"advanced"`
	AdvancedFormats []string `yaml:"advanced_formats" mapstructure:"advanced_formats"`
	Seek            bool     `yaml:"seek" mapstructure:"seek"`
	AudioBitrate    int      `yaml:"audio_bitrate" mapstructure:"audio_bitrate"`
}

// DownloaderConfig locates the external binaries.
type DownloaderConfig struct {
	YoutubeDL       string   `yaml:"youtubedl" mapstructure:"youtubedl"`
	Params          []string `yaml:"params" mapstructure:"params"`
	FFmpeg          string   `yaml:"ffmpeg" mapstructure:"ffmpeg"`
	FFmpegVerbosity string   `yaml:"ffmpeg_verbosity" mapstructure:"ffmpeg_verbosity"`
	Retries         uint64   `yaml:"retries" mapstructure:"retries"`
}

type ServerConfig struct {
	Port   int    `yaml:"port" mapstructure:"port"`
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// EnvKeyReplacer maps config keys to environment variable names.
var EnvKeyReplacer = strings.NewReplacer(".", "_")

var (
	fs    = afero.NewOsFs()
	flags = map[string]*pflag.Flag{}
)

// SetFs swaps the filesystem used to read and write the config file.
func SetFs(f afero.Fs) {
	fs = f
}

// BindFlag makes a command-line flag override the given key.
func BindFlag(key string, flag *pflag.Flag) {
	if flag != nil {
		flags[key] = flag
	}
}

// Dir returns the directory holding the config file.
func Dir() string {
	if dir := os.Getenv(EnvPrefix + "_CONFIG_DIR"); dir != "" {
		return dir
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, "streamdl")
}

// Path returns the full path of the config file.
func Path() string {
	return filepath.Join(Dir(), FileName)
}

// Exists reports whether a config file is present.
func Exists() bool {
	return lo.Must(afero.Exists(fs, Path()))
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigFile(Path())
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(EnvKeyReplacer)
	v.AutomaticEnv()
	for key, value := range Defaults {
		v.SetDefault(key, value)
	}
	for key, flag := range flags {
		lo.Must0(v.BindPFlag(key, flag))
	}
	return v
}

// Load reads the config file (if any), .env and the environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := newViper()
	exists, err := afero.Exists(fs, Path())
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if exists {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", Path(), err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads the config and falls back to defaults on any error.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Save writes cfg as YAML to Path.
func Save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := fs.MkdirAll(Dir(), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := afero.WriteFile(fs, Path(), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
