package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Defaults holds the factory value of every known key.
var Defaults = map[string]any{
	"language":                    "en",
	"default_format":              "best/bestvideo",
	"stream":                      false,
	"remux":                       false,
	"convert.enabled":             false,
	"convert.advanced":            false,
	"convert.advanced_formats":    []string{"mp3", "avi", "flv", "wav", "ogg"},
	"convert.seek":                false,
	"convert.audio_bitrate":       128,
	"downloader.youtubedl":        "yt-dlp",
	"downloader.params":           []string{"--no-warnings", "--ignore-errors", "--flat-playlist", "--restrict-filenames", "--no-playlist"},
	"downloader.ffmpeg":           "ffmpeg",
	"downloader.ffmpeg_verbosity": "error",
	"downloader.retries":          3,
	"server.port":                 8080,
	"server.api_key":              "",
	"log.level":                   "info",
	"log.json":                    false,
}

// Default returns a Config holding only factory values, decoded from
// Defaults the same way Load decodes them.
func Default() *Config {
	v := viper.New()
	for key, value := range Defaults {
		v.SetDefault(key, value)
	}
	var cfg Config
	lo.Must0(v.Unmarshal(&cfg))
	return &cfg
}

// Set assigns value to the field named by key.
func Set(cfg *Config, key, value string) error {
	var err error
	switch key {
	case "language":
		cfg.Language = value
	case "default_format":
		cfg.DefaultFormat = value
	case "stream":
		cfg.Stream, err = strconv.ParseBool(value)
	case "remux":
		cfg.Remux, err = strconv.ParseBool(value)
	case "convert.enabled":
		cfg.Convert.Enabled, err = strconv.ParseBool(value)
	case "convert.advanced":
		cfg.Convert.Advanced, err = strconv.ParseBool(value)
	case "convert.advanced_formats":
		cfg.Convert.AdvancedFormats = splitList(value)
	case "convert.seek":
		cfg.Convert.Seek, err = strconv.ParseBool(value)
	case "convert.audio_bitrate":
		cfg.Convert.AudioBitrate, err = strconv.Atoi(value)
	case "downloader.youtubedl":
		cfg.Downloader.YoutubeDL = value
	case "downloader.params":
		cfg.Downloader.Params = strings.Fields(value)
	case "downloader.ffmpeg":
		cfg.Downloader.FFmpeg = value
	case "downloader.ffmpeg_verbosity":
		cfg.Downloader.FFmpegVerbosity = value
	case "downloader.retries":
		cfg.Downloader.Retries, err = strconv.ParseUint(value, 10, 64)
	case "server.port":
		cfg.Server.Port, err = strconv.Atoi(value)
	case "server.api_key":
		cfg.Server.APIKey = value
	case "log.level":
		cfg.Log.Level = value
	case "log.json":
		cfg.Log.JSON, err = strconv.ParseBool(value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %s", key, value)
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
