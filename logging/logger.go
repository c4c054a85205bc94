package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/grovetools/fsdispatch/config"
	"github.com/grovetools/fsdispatch/internal/paths"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

const (
	envLevel  = "FSDISPATCH_LOG_LEVEL"
	envCaller = "FSDISPATCH_LOG_CALLER"
	envDebug  = "FSDISPATCH_DEBUG"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex

	loadConfig = sync.OnceValue(func() Config {
		var logCfg Config
		cfg, err := config.LoadDefault()
		if err != nil {
			return logCfg
		}
		// Use UnmarshalExtension to safely decode the logging part
		if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
			logrus.Warnf("Failed to parse 'logging' config: %v", err)
		}
		return logCfg
	})
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logger := logrus.New()
	configure(logger, component, loadConfig())

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// Configure reapplies cfg to every logger created so far and to loggers
// created later in the process. Environment variables still take precedence.
func Configure(cfg Config) {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	loadConfig = func() Config { return cfg }
	for component, entry := range loggers {
		configure(entry.Logger, component, cfg)
	}
}

func configure(logger *logrus.Logger, component string, logCfg Config) {
	// Configure Level
	levelStr := "info"
	if os.Getenv(envLevel) != "" {
		levelStr = os.Getenv(envLevel)
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Configure Caller Reporting
	logger.SetReportCaller(os.Getenv(envCaller) == "true" || logCfg.ReportCaller)

	// Configure Formatter
	switch logCfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: logCfg.Format})
	}

	var writers []io.Writer

	// The file sink is opt-in.
	if logCfg.File.Enabled {
		path := logFilePath(component, logCfg.File.Path)
		if w, err := openLogFile(path); err != nil {
			logger.Warnf("Failed to open log file %s: %v", path, err)
		} else {
			writers = append(writers, w)
		}
	}

	if shouldLogToStderr(logCfg.Format.StructuredToStderr, logger.GetLevel()) {
		writers = append(writers, GetGlobalOutput())
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}
}

// shouldLogToStderr resolves the structured_to_stderr mode. In "auto" mode
// logs reach stderr when debugging or when stderr is not a terminal.
func shouldLogToStderr(mode string, level logrus.Level) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	isDebug := os.Getenv(envDebug) == "1" || level >= logrus.DebugLevel
	isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	return isDebug || !isInteractive
}

func logFilePath(component, configured string) string {
	if configured != "" {
		return expandPath(configured)
	}
	if dir := paths.StateDir(); dir != "" {
		return filepath.Join(dir, component+".log")
	}
	return filepath.Join(os.TempDir(), "fsdispatch", component+".log")
}

var (
	logFiles   = make(map[string]*os.File)
	logFilesMu sync.Mutex
)

// openLogFile opens path for appending, sharing one handle per path across
// components.
func openLogFile(path string) (*os.File, error) {
	logFilesMu.Lock()
	defer logFilesMu.Unlock()

	if f, ok := logFiles[path]; ok {
		return f, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	logFiles[path] = f
	return f, nil
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
