// File: internal/observability/logger.go
package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xkilldash9x/raidpilot/internal/config"
)

var (
	// globalLogger stores the global logger instance safely across goroutines.
	globalLogger atomic.Pointer[zap.Logger]
	// once ensures that initialization happens exactly once.
	once sync.Once
)

// ANSI color codes for the terminal.
const (
	colorBlack   = "\x1b[30m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorWhite   = "\x1b[37m"
	colorReset   = "\x1b[0m"
)

// colorMap translates friendly names to ANSI codes.
var colorMap = map[string]string{
	"black":   colorBlack,
	"red":     colorRed,
	"green":   colorGreen,
	"yellow":  colorYellow,
	"blue":    colorBlue,
	"magenta": colorMagenta,
	"cyan":    colorCyan,
	"white":   colorWhite,
}

// defaultColors is applied level by level wherever the config leaves a color empty.
var defaultColors = config.ColorConfig{
	Debug:  "blue",
	Info:   "green",
	Warn:   "yellow",
	Error:  "red",
	DPanic: "magenta",
	Panic:  "magenta",
	Fatal:  "magenta",
}

// Build constructs a logger from cfg without touching the global state. Console output goes
// to consoleWriter; when LogFile is set a rotated JSON copy is written there as well.
func Build(cfg config.LoggerConfig, consoleWriter zapcore.WriteSyncer) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	cores := []zapcore.Core{zapcore.NewCore(getEncoder(cfg), consoleWriter, level)}

	if cfg.LogFile != "" {
		fileWriter, err := rotatingFile(cfg)
		if err != nil {
			return nil, err
		}
		// File output is always JSON so it can be grepped and parsed later.
		fileEncoder := getEncoder(config.LoggerConfig{Format: "json"})
		cores = append(cores, zapcore.NewCore(fileEncoder, fileWriter, level))
	}

	options := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
	if cfg.AddSource {
		options = append(options, zap.AddCaller())
	}

	logger := zap.New(zapcore.NewTee(cores...), options...)
	if cfg.ServiceName != "" {
		logger = logger.Named(cfg.ServiceName)
	}
	return logger, nil
}

// rotatingFile prepares the log directory and returns a lumberjack writer for it.
func rotatingFile(cfg config.LoggerConfig) (zapcore.WriteSyncer, error) {
	path, err := homedir.Expand(cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to expand log file path %q: %w", cfg.LogFile, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory for %q: %w", path, err)
	}
	// lumberjack handles file rotation and thread-safe writes.
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}), nil
}

// Initialize sets up the global logger. Only the first call has any effect; later calls
// return the error of the first, if any.
func Initialize(cfg config.LoggerConfig, consoleWriter zapcore.WriteSyncer) error {
	var initErr error
	once.Do(func() {
		logger, err := Build(cfg, consoleWriter)
		if err != nil {
			initErr = err
			return
		}
		globalLogger.Store(logger)

		// Replace the standard library logger and Zap's global loggers.
		zap.ReplaceGlobals(logger)
		zap.RedirectStdLog(logger)
	})
	return initErr
}

// InitializeLogger is a convenience wrapper around Initialize for production use.
// Console output goes to a locked Stderr so stdout stays free for command output.
func InitializeLogger(cfg config.LoggerConfig) error {
	return Initialize(cfg, zapcore.Lock(os.Stderr))
}

// ResetForTest resets the sync.Once and clears the global logger.
// This function should ONLY be used in tests to ensure isolation.
func ResetForTest() {
	globalLogger.Store(nil)
	once = sync.Once{}
}

// newColorizedLevelEncoder creates a zapcore.LevelEncoder that colorizes the log level.
func newColorizedLevelEncoder(colors config.ColorConfig) zapcore.LevelEncoder {
	pick := func(configured, fallback string) string {
		if configured == "" {
			configured = fallback
		}
		return colorMap[configured]
	}
	byLevel := map[zapcore.Level]string{
		zapcore.DebugLevel:  pick(colors.Debug, defaultColors.Debug),
		zapcore.InfoLevel:   pick(colors.Info, defaultColors.Info),
		zapcore.WarnLevel:   pick(colors.Warn, defaultColors.Warn),
		zapcore.ErrorLevel:  pick(colors.Error, defaultColors.Error),
		zapcore.DPanicLevel: pick(colors.DPanic, defaultColors.DPanic),
		zapcore.PanicLevel:  pick(colors.Panic, defaultColors.Panic),
		zapcore.FatalLevel:  pick(colors.Fatal, defaultColors.Fatal),
	}

	return func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		levelStr := strings.ToUpper(level.String())
		if color := byLevel[level]; color != "" {
			enc.AppendString(color + levelStr + colorReset)
			return
		}
		enc.AppendString(levelStr)
	}
}

// getEncoder picks the encoder for cfg.Format: a colorized single-line console format, or
// JSON for anything else.
func getEncoder(cfg config.LoggerConfig) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.000Z07:00")

	if cfg.Format == "console" {
		encoderConfig.EncodeLevel = newColorizedLevelEncoder(cfg.Colors)
		// Suffix the component name so "raidpilot.automation." stands apart from the message.
		encoderConfig.EncodeName = func(loggerName string, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(loggerName + ".")
		}
		return zapcore.NewConsoleEncoder(encoderConfig)
	}

	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}

// GetLogger returns the initialized global logger instance.
func GetLogger() *zap.Logger {
	logger := globalLogger.Load()
	if logger == nil {
		// Fallback mechanism if InitializeLogger hasn't been called.
		l, err := zap.NewDevelopment()
		if err != nil {
			return zap.NewNop()
		}
		l.Warn("Global logger requested before initialization; using fallback.")
		return l.Named("fallback")
	}
	return logger
}

// Sync flushes any buffered log entries. Applications should call this before exiting.
func Sync() {
	logger := globalLogger.Load()
	if logger == nil {
		return
	}
	if err := logger.Sync(); err != nil && !benignSyncError(err) {
		fmt.Fprintln(os.Stderr, "Error: failed to sync logger:", err)
	}
}

// benignSyncError matches the errors returned when syncing a terminal or a closed pipe.
func benignSyncError(err error) bool {
	msg := err.Error()
	for _, s := range []string{"sync /dev/stdout", "sync /dev/stderr", "invalid argument", "operation not supported", "inappropriate ioctl"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
