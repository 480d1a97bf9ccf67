package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DreamCats/vecload/internal/config"
)

// New builds the process logger from config. Output goes to out (stderr when nil);
// when cfg.Dir is set a per-run log file named after the command is tee'd in as well.
// The returned close func releases the log file and is safe to call when none was opened.
func New(cfg config.LogConfig, command string, out io.Writer) (*logrus.Logger, func() error, error) {
	if out == nil {
		out = os.Stderr
	}

	log := logrus.New()
	log.Out = out

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			DisableColors: false,
			FullTimestamp: true,
			PadLevelText:  true,
		})
	}

	closeFn := func() error { return nil }
	if cfg.Dir == "" {
		return log, closeFn, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return log, closeFn, err
	}
	timestamp := time.Now().Format("20060102-150405")
	logPath := filepath.Join(cfg.Dir, fmt.Sprintf("vecload-%s-%s.log", command, timestamp))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return log, closeFn, err
	}

	log.Out = io.MultiWriter(out, logFile)
	log.WithField("path", logPath).Debug("log file opened")
	return log, logFile.Close, nil
}

// Discard returns a logger that drops everything. Used by tests and library callers
// that do not care about log output.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}

// LeveledLogger is the logging interface retryablehttp expects.
type LeveledLogger interface {
	Error(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

var _ LeveledLogger = &LeveledLogrus{}

// NewLeveledLogrus wraps a logrus logger so it satisfies LeveledLogger.
func NewLeveledLogrus(log logrus.FieldLogger) *LeveledLogrus {
	return &LeveledLogrus{log: log}
}

type LeveledLogrus struct {
	log logrus.FieldLogger
}

func (l *LeveledLogrus) fields(keysAndValues ...interface{}) logrus.Fields {
	fields := make(logrus.Fields)

	for i := 0; i < len(keysAndValues)-1; i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields[key] = keysAndValues[i+1]
		}
	}

	return fields
}

func (l *LeveledLogrus) Error(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(l.fields(keysAndValues...)).Error(msg)
}

func (l *LeveledLogrus) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(l.fields(keysAndValues...)).Info(msg)
}

func (l *LeveledLogrus) Warn(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(l.fields(keysAndValues...)).Warn(msg)
}

func (l *LeveledLogrus) Debug(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(l.fields(keysAndValues...)).Debug(msg)
}
