package cli

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dioko-ai/bob/internal/config"
	"github.com/dioko-ai/bob/internal/constants"
	"github.com/dioko-ai/bob/internal/logging"
)

// logFileWriter holds the log file writer for cleanup purposes.
var logFileWriter io.WriteCloser //nolint:gochecknoglobals // Needed for cleanup

// globalLogger stores the initialized logger for use by subcommands.
// Set during PersistentPreRunE; access via GetLogger.
var (
	globalLogger   zerolog.Logger //nolint:gochecknoglobals // CLI logger requires global access
	globalLoggerMu sync.RWMutex   //nolint:gochecknoglobals // Protects globalLogger
)

// GetLogger returns the initialized logger for use by subcommands.
// It MUST only be called after the root command's PersistentPreRunE has
// executed; earlier calls return a zero-value logger that discards output.
// Safe for concurrent use.
func GetLogger() zerolog.Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

// InitLogger creates and configures a zerolog.Logger based on verbosity flags.
//
// Log levels:
//   - verbose=true: Debug level
//   - quiet=true: Warn level
//   - default: Info level
//
// Console output goes to stderr (pretty on a TTY, JSON otherwise); all
// output is additionally written to ~/.bob/logs/bob.log with rotation, and
// the file writer is wrapped so sensitive values are redacted on disk. If
// the log file cannot be created, logging continues console-only.
func InitLogger(verbose, quiet bool) zerolog.Logger {
	console := selectConsole()
	writer := console
	if fileWriter := createLogFileWriter(); fileWriter != nil {
		logFileWriter = fileWriter
		writer = zerolog.MultiLevelWriter(console, logging.NewFilteringWriter(fileWriter))
	}

	logger := zerolog.New(writer).
		Level(selectLevel(verbose, quiet)).
		Hook(logging.NewSensitiveDataHook()).
		With().Timestamp().Logger()

	setGlobalLogger(logger)
	return logger
}

// InitLoggerWithWriter creates a logger with a custom writer.
// This is primarily intended for testing purposes.
func InitLoggerWithWriter(verbose, quiet bool, w io.Writer) zerolog.Logger {
	logger := zerolog.New(w).
		Level(selectLevel(verbose, quiet)).
		Hook(logging.NewSensitiveDataHook()).
		With().Timestamp().Logger()
	setGlobalLogger(logger)
	return logger
}

// CloseLogFile closes the global log file writer if it was opened.
// Called during application shutdown.
func CloseLogFile() {
	if logFileWriter != nil {
		_ = logFileWriter.Close()
		logFileWriter = nil
	}
}

func setGlobalLogger(cliLogger zerolog.Logger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = cliLogger
	log.Logger = cliLogger
}

func selectLevel(verbose, quiet bool) zerolog.Level {
	switch {
	case verbose:
		return zerolog.DebugLevel
	case quiet:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// selectConsole picks the console writer: pretty output on a TTY without
// NO_COLOR, raw JSON to stderr otherwise.
func selectConsole() io.Writer {
	if os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stderr.Fd())) {
		return zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return os.Stderr
}

// createLogFileWriter opens the rotating global log file, or returns nil
// when the logs directory cannot be created.
func createLogFileWriter() io.WriteCloser {
	dir, err := config.GlobalConfigDir()
	if err != nil {
		return nil
	}
	logsDir := filepath.Join(dir, constants.LogsDir)
	if err := os.MkdirAll(logsDir, 0o750); err != nil {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(logsDir, constants.CLILogFileName),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
		Compress:   true,
	}
}
