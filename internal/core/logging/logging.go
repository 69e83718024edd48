// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"

	"github.com/guiyumin/streamdl/internal/core/config"
	"github.com/sirupsen/logrus"
)

// Setup applies level and format from cfg. Unknown levels fall back to info.
func Setup(cfg config.LogConfig) {
	SetupWriter(cfg, os.Stderr)
}

// SetupWriter is Setup with an explicit output.
func SetupWriter(cfg config.LogConfig, w io.Writer) {
	logrus.SetOutput(w)

	if cfg.JSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
