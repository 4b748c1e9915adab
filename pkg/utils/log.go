package utils

import (
	"fmt"

	"github.com/ghettovoice/gosip/log"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var (
	loggers         map[string]*log.LogrusLogger
	DefaultLogLevel = log.InfoLevel
)

func init() {
	loggers = make(map[string]*log.LogrusLogger)
}

// NewLogrusLogger returns a gosip logger backed by logrus with the
// prefixed text formatter, one shared instance per prefix.
func NewLogrusLogger(level log.Level, prefix string, fields log.Fields) log.Logger {
	if logger, found := loggers[prefix]; found {
		return logger.WithPrefix(prefix)
	}
	l := logrus.New()
	l.Formatter = &prefixed.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
		ForceColors:     true,
		ForceFormatting: true,
	}
	logger := log.NewLogrusLogger(l, "main", fields)
	logger.SetLevel(level)
	loggers[prefix] = logger
	return logger.WithPrefix(prefix)
}

func SetLogLevel(prefix string, level log.Level) error {
	if logger, found := loggers[prefix]; found {
		logger.SetLevel(level)
		return nil
	}
	return fmt.Errorf("logger [%v] not found", prefix)
}
