package output

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/pterm/pterm"
)

// Logger wraps slog.Logger with context-aware methods
type Logger interface {
	// Component returns a logger for a specific component
	Component(name string) Logger
	// With returns a logger with additional attributes
	With(args ...any) Logger

	// Standard log levels
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// OutputLogger handles both user output and structured logging
type OutputLogger struct {
	Logger
	jsonMode bool
}

// AssetState represents the state of one resolved asset
type AssetState int

const (
	StateCached AssetState = iota
	StateFetched
	StateDownloaded
	StateSkipped
	StateError
)

// ActivityInfo summarizes how one activity's assets were resolved
type ActivityInfo struct {
	DetailCached bool
	PhotosCached bool
	Downloaded   int
	OnDisk       int
	Skipped      int
	Err          error
}

// New creates a new OutputLogger.
// If jsonMode is true, structured logs go to stdout as JSON.
// If jsonMode is false, structured logs go to file and user messages use pterm.
func New(jsonMode bool) (*OutputLogger, error) {
	var slogLogger *slog.Logger

	if jsonMode {
		handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: getLogLevel(),
		})
		slogLogger = slog.New(handler)
	} else {
		logFile, err := getLogFilePath()
		if err != nil {
			return nil, fmt.Errorf("failed to get log file path: %w", err)
		}

		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		handler := slog.NewTextHandler(file, &slog.HandlerOptions{
			Level: getLogLevel(),
		})
		slogLogger = slog.New(handler)

		// pterm will automatically detect TTY and color support
	}

	logger := &loggerImpl{slog: slogLogger}

	return &OutputLogger{
		Logger:   logger,
		jsonMode: jsonMode,
	}, nil
}

// getLogLevel returns the log level from LOG_LEVEL env var, defaulting to info
func getLogLevel() slog.Level {
	level := os.Getenv("LOG_LEVEL")
	switch level {
	case "trace":
		return slog.LevelDebug - 4 // Trace is lower than debug
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getLogFilePath returns the path to the log file
func getLogFilePath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".stravadump", "stravadump.log"), nil
}

// ActivityLine shows the resolution result for one activity
func (ol *OutputLogger) ActivityLine(activityID int64, info ActivityInfo) {
	if ol.jsonMode {
		ol.Logger.Info("activity_status",
			"activity_id", activityID,
			"detail_cached", info.DetailCached,
			"photos_cached", info.PhotosCached,
			"downloaded", info.Downloaded,
			"on_disk", info.OnDisk,
			"skipped", info.Skipped,
			"error", errString(info.Err))
		return
	}

	pterm.Println(ol.buildActivityLine(activityID, info))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// buildActivityLine creates a formatted activity line
func (ol *OutputLogger) buildActivityLine(activityID int64, info ActivityInfo) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("%d", activityID))

	if info.Err != nil {
		parts = append(parts, pterm.NewStyle(pterm.FgRed).Sprint("❌ "+info.Err.Error()))
		return strings.Join(parts, " ")
	}

	if info.DetailCached {
		parts = append(parts, ol.formatAsset("detail", StateCached))
	} else {
		parts = append(parts, ol.formatAsset("detail", StateFetched))
	}

	if info.Downloaded > 0 {
		parts = append(parts, pterm.NewStyle(pterm.FgGreen).Sprintf("📷 %d downloaded", info.Downloaded))
	}
	if info.OnDisk > 0 {
		parts = append(parts, pterm.NewStyle(pterm.FgGray).Sprintf("%d already on disk", info.OnDisk))
	}
	if info.Skipped > 0 {
		parts = append(parts, pterm.NewStyle(pterm.FgYellow).Sprintf("%d skipped", info.Skipped))
	}

	return strings.Join(parts, " ")
}

// formatAsset formats a single asset with appropriate styling
func (ol *OutputLogger) formatAsset(name string, state AssetState) string {
	switch state {
	case StateCached:
		return pterm.NewStyle(pterm.FgGray).Sprint(name)
	case StateFetched, StateDownloaded:
		return pterm.NewStyle(pterm.FgGreen).Sprint(name)
	case StateSkipped:
		return pterm.NewStyle(pterm.FgYellow).Sprint(name)
	case StateError:
		return pterm.NewStyle(pterm.FgRed).Sprint(name)
	default:
		return name
	}
}

// Progress shows ongoing operations
func (ol *OutputLogger) Progress(format string, args ...any) {
	if ol.jsonMode {
		ol.Logger.Info("progress", "message", fmt.Sprintf(format, args...))
	} else {
		pterm.Info.Printf(format+"\n", args...)
	}
}

// Status shows important state changes
func (ol *OutputLogger) Status(format string, args ...any) {
	if ol.jsonMode {
		ol.Logger.Info("status", "message", fmt.Sprintf(format, args...))
	} else {
		pterm.Success.Printf(format+"\n", args...)
	}
}

// Result shows final results/summaries
func (ol *OutputLogger) Result(format string, args ...any) {
	if ol.jsonMode {
		ol.Logger.Info("result", "message", fmt.Sprintf(format, args...))
	} else {
		pterm.Success.Printf("🎯 "+format+"\n", args...)
	}
}

// Error shows user-facing errors
func (ol *OutputLogger) Error(format string, args ...any) {
	if ol.jsonMode {
		ol.Logger.Error("user_error", "message", fmt.Sprintf(format, args...))
	} else {
		pterm.Error.Printf(format+"\n", args...)
	}
}

// JSON outputs structured data (only in JSON mode)
func (ol *OutputLogger) JSON(data any) error {
	if !ol.jsonMode {
		return nil
	}

	encoder := json.NewEncoder(os.Stdout)
	return encoder.Encode(data)
}

// LogAndShowError logs an error with full context and shows a user-friendly message
func (ol *OutputLogger) LogAndShowError(err error, userMsg string, args ...any) {
	ol.Logger.Error("operation_failed", "error", err.Error(), "user_message", fmt.Sprintf(userMsg, args...))
	ol.Error(userMsg, args...)
}

// loggerImpl implements Logger interface
type loggerImpl struct {
	slog *slog.Logger
}

func (l *loggerImpl) Component(name string) Logger {
	return &loggerImpl{slog: l.slog.With("component", name)}
}

func (l *loggerImpl) With(args ...any) Logger {
	return &loggerImpl{slog: l.slog.With(args...)}
}

func (l *loggerImpl) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

func (l *loggerImpl) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

func (l *loggerImpl) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

func (l *loggerImpl) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}
