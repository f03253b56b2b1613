// Package logging - Logger construction shared by every entry point.
package logging

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-freshness/config"
)

// New builds a logrus logger from the log configuration.
//
// Arguments:
//   - cfg: The log configuration.
//
// Returns:
//   - *logrus.Logger: The configured logger.
//   - func(): Closes the log file, if one was opened. Always non-nil.
//   - error: An error if the level is unknown or the file cannot be opened.
func New(cfg config.LogConfig) (*logrus.Logger, func(), error) {
	logger := logrus.New()
	closer := func() {}

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, closer, errors.Wrap(err, "parse log level")
	}
	logger.SetLevel(lvl)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closer, errors.Wrapf(err, "open log file %s", cfg.File)
		}
		logger.SetOutput(io.MultiWriter(os.Stderr, file))
		closer = func() { _ = file.Close() }
	}

	return logger, closer, nil
}

// Discard returns a logger that drops everything. Used by tests and library callers
// that pass no logger.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
