package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Journal bool              `toml:"journal"`
	Modules map[string]string `toml:"modules"`
}

type moduleLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

var (
	mu          sync.RWMutex
	modules     = make(map[string]*moduleLogger)
	current     Config
	initialized bool

	// output is where text/json records go. Tests swap it.
	output io.Writer = os.Stdout
)

// Initialize sets up the logging system. Loggers handed out before the call
// keep working: their levels and handlers are updated in place.
func Initialize(config Config) {
	mu.Lock()
	defer mu.Unlock()

	current = config
	initialized = true

	for name, m := range modules {
		m.level.Set(levelFor(config, name))
		m.logger = newModuleLogger(config, name, m.level)
	}

	root := &slog.LevelVar{}
	root.Set(levelFor(config, ""))
	slog.SetDefault(slog.New(buildHandler(config, root)))
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	m, ok := modules[module]
	mu.RUnlock()
	if ok {
		return m.logger
	}

	mu.Lock()
	defer mu.Unlock()
	if m, ok := modules[module]; ok {
		return m.logger
	}

	cfg := current
	if !initialized {
		cfg = Config{Format: "text"}
	}

	level := &slog.LevelVar{}
	level.Set(levelFor(cfg, module))
	m = &moduleLogger{level: level, logger: newModuleLogger(cfg, module, level)}
	modules[module] = m
	return m.logger
}

// SetModuleLevel changes a module's level at runtime.
func SetModuleLevel(module, level string) bool {
	lvl, ok := parseLevel(level)
	if !ok {
		return false
	}
	GetLogger(module)

	mu.RLock()
	defer mu.RUnlock()
	modules[module].level.Set(lvl)
	return true
}

func newModuleLogger(cfg Config, module string, level slog.Leveler) *slog.Logger {
	return slog.New(buildHandler(cfg, level)).With("module", module)
}

// levelFor resolves the effective level: module override, then global, then info.
func levelFor(cfg Config, module string) slog.Level {
	if s, ok := cfg.Modules[module]; ok && module != "" {
		if lvl, ok := parseLevel(s); ok {
			return lvl
		}
	}
	if lvl, ok := parseLevel(cfg.Level); ok {
		return lvl
	}
	return slog.LevelInfo
}

// buildHandler writes to stdout and, when enabled and reachable, the journal.
func buildHandler(cfg Config, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var console slog.Handler
	if cfg.Format == "json" {
		console = slog.NewJSONHandler(output, opts)
	} else {
		console = slog.NewTextHandler(output, opts)
	}

	if !cfg.Journal || !IsJournalAvailable() {
		return console
	}
	if output == os.Stdout && !isStdoutAvailable() {
		return NewJournalHandler(level)
	}
	return NewMultiHandler(console, NewJournalHandler(level))
}

// isStdoutAvailable reports false when stdout is /dev/null or closed.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
