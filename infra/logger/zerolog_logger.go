package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the level, format and destination of the process logs.
type Config struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

var (
	mu     sync.RWMutex
	output io.Writer = os.Stdout
	pretty bool
)

// Configure applies cfg to every logger created afterwards. An empty format
// falls back to APP_ENV: console output in dev, JSON otherwise.
func Configure(cfg Config) error {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return err
		}
		level = l
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = os.Stdout
	if cfg.File != "" {
		size := cfg.MaxSizeMB
		if size <= 0 {
			size = 100
		}
		w = &lumberjack.Logger{Filename: cfg.File, MaxSize: size, MaxBackups: cfg.MaxBackups}
	}
	format := strings.ToLower(cfg.Format)
	if format == "" && strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		format = "console"
	}
	mu.Lock()
	output, pretty = w, format == "console"
	mu.Unlock()
	return nil
}

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger creates a ZerologLogger writing to the configured
// output. All logs include the provided component field.
func NewZerologLogger(component string) Logger {
	mu.RLock()
	w, console := output, pretty
	mu.RUnlock()
	if !console && strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		console = true
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	z := zerolog.New(w).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

// NewWithWriter creates a JSON logger on w. It is meant for tests.
func NewWithWriter(component string, w io.Writer) Logger {
	return &ZerologLogger{log: zerolog.New(w).With().Str("component", component).Logger()}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	ev := l.log.Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
