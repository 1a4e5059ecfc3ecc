// Package logger はサブシステムごとの *slog.Logger を提供します。
//
// レベルと形式は環境変数で設定します。
//
//	DUPLEX_LOG_LEVEL=endpoint=debug,warn   # endpoint は debug、それ以外は warn
//	DUPLEX_LOG_FORMAT=json                 # text (既定) または json
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const (
	envLevel  = "DUPLEX_LOG_LEVEL"
	envFormat = "DUPLEX_LOG_FORMAT"
)

// Config はログの設定です。
type Config struct {
	DefaultLevel    slog.Level
	SubsystemLevels map[string]slog.Level
	JSON            bool
}

// LevelFor はサブシステムのログレベルを返します。
func (c Config) LevelFor(subsystem string) slog.Level {
	if level, ok := c.SubsystemLevels[subsystem]; ok {
		return level
	}
	return c.DefaultLevel
}

var (
	loggers sync.Map // map[string]*slog.Logger

	outputMu sync.RWMutex
	output   io.Writer = os.Stderr

	configOnce sync.Once
	config     Config
)

// Logger はサブシステムのLoggerを返します。同じサブシステムには同じインスタンスを返します。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}
	configOnce.Do(func() {
		config = ParseConfig(os.Getenv(envLevel), os.Getenv(envFormat))
	})
	l := New(subsystem, config, writerFunc(write))
	actual, _ := loggers.LoadOrStore(subsystem, l)
	return actual.(*slog.Logger)
}

// New はcfgに従ってwへ出力するLoggerを作成します。
func New(subsystem string, cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LevelFor(subsystem)}
	var h slog.Handler
	if cfg.JSON {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("subsystem", subsystem)
}

// Discard は全てのログを捨てるLoggerを返します。
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// SetOutput は出力先を変更します。作成済みのLoggerにも反映されます。
func SetOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

// ParseConfig はレベル指定 (例: "endpoint=debug,info") と形式からConfigを作ります。
// 解釈できない値は無視されます。
func ParseConfig(levels, format string) Config {
	cfg := Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: make(map[string]slog.Level),
		JSON:            strings.EqualFold(strings.TrimSpace(format), "json"),
	}
	for _, part := range strings.Split(levels, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, levelName, scoped := strings.Cut(part, "=")
		if !scoped {
			if level, ok := parseLevel(name); ok {
				cfg.DefaultLevel = level
			}
			continue
		}
		if level, ok := parseLevel(levelName); ok {
			cfg.SubsystemLevels[strings.TrimSpace(name)] = level
		}
	}
	return cfg
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func write(p []byte) (int, error) {
	outputMu.RLock()
	w := output
	outputMu.RUnlock()
	return w.Write(p)
}
