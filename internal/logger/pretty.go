// internal/logger/pretty.go
package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Colors for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
)

// FileConfig configures the rotated JSON log file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultFileConfig returns rotation settings for path.
func DefaultFileConfig(path string) FileConfig {
	return FileConfig{
		Path:       path,
		MaxSizeMB:  20,
		MaxBackups: 5,
		MaxAgeDays: 14,
		Compress:   true,
	}
}

func prettyEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		CallerKey:      "",
		StacktraceKey:  "",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    customLevelEncoder,
		EncodeTime:     customTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

// customLevelEncoder formats log levels with colors
func customLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch level {
	case zapcore.DebugLevel:
		enc.AppendString(fmt.Sprintf("%s[DEBUG]%s", ColorCyan, ColorReset))
	case zapcore.InfoLevel:
		enc.AppendString(fmt.Sprintf("%s[INFO]%s", ColorGreen, ColorReset))
	case zapcore.WarnLevel:
		enc.AppendString(fmt.Sprintf("%s[WARN]%s", ColorYellow, ColorReset))
	case zapcore.ErrorLevel:
		enc.AppendString(fmt.Sprintf("%s[ERROR]%s", ColorRed, ColorReset))
	case zapcore.FatalLevel:
		enc.AppendString(fmt.Sprintf("%s[FATAL]%s", ColorRed+ColorBold, ColorReset))
	default:
		enc.AppendString(fmt.Sprintf("[%s]", level.CapitalString()))
	}
}

func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("15:04:05"))
}

func levelFor(debug bool) zapcore.Level {
	if debug {
		return zap.DebugLevel
	}
	return zap.InfoLevel
}

// fileCore returns a JSON core writing to a lumberjack-rotated file, or nil when cfg.Path is empty.
func fileCore(cfg FileConfig, level zapcore.Level) zapcore.Core {
	if cfg.Path == "" {
		return nil
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level)
}

// CreatePrettyLogger creates the CLI logger: coloured console output plus an optional rotated JSON file.
func CreatePrettyLogger(debug bool, file FileConfig) (*zap.Logger, error) {
	level := levelFor(debug)

	console := zapcore.NewCore(
		zapcore.NewConsoleEncoder(prettyEncoderConfig()),
		zapcore.AddSync(zapcore.Lock(os.Stderr)),
		level,
	)
	cores := []zapcore.Core{&PrettyCore{core: console}}
	if fc := fileCore(file, level); fc != nil {
		cores = append(cores, fc)
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}

// CreateTUILogger creates a logger that never writes to the terminal: entries go
// to the in-memory buffer and, optionally, to the rotated file.
func CreateTUILogger(debug bool, buffer *LogBuffer, file FileConfig) (*zap.Logger, error) {
	if buffer == nil {
		return nil, fmt.Errorf("buffer is required for TUI logger")
	}
	level := levelFor(debug)

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(buffer), level),
	}
	if fc := fileCore(file, level); fc != nil {
		cores = append(cores, fc)
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}

// FormatMessage rewrites well-known lifecycle messages for the console.
func FormatMessage(msg string, fields []zapcore.Field) string {
	switch {
	case strings.Contains(msg, "Approval required"):
		return fmt.Sprintf("%s🔐 Approving %s %s%s", ColorYellow, extractField(fields, "amount"), extractField(fields, "token"), ColorReset)

	case strings.Contains(msg, "Transaction sent"):
		return fmt.Sprintf("%s📤 %s sent: %s%s", ColorYellow, extractField(fields, "label"), shortenHash(extractField(fields, "tx_hash")), ColorReset)

	case strings.Contains(msg, "Transaction confirmed"):
		return fmt.Sprintf("%s✅ %s confirmed in block %s%s", ColorGreen, extractField(fields, "label"), extractField(fields, "block"), ColorReset)

	case strings.Contains(msg, "Transaction failed"):
		return fmt.Sprintf("%s❌ %s failed (%s): %s%s", ColorRed, extractField(fields, "label"), extractField(fields, "kind"), extractField(fields, "error"), ColorReset)

	case strings.Contains(msg, "Operation completed"):
		return fmt.Sprintf("%s🎉 %s successful!%s", ColorGreen+ColorBold, extractField(fields, "operation"), ColorReset)

	default:
		return msg
	}
}

func extractField(fields []zapcore.Field, key string) string {
	for _, field := range fields {
		if field.Key != key {
			continue
		}
		switch field.Type {
		case zapcore.StringType:
			return field.String
		case zapcore.Int64Type, zapcore.Int32Type, zapcore.Uint64Type, zapcore.Uint32Type:
			return fmt.Sprintf("%d", field.Integer)
		case zapcore.ErrorType:
			if err, ok := field.Interface.(error); ok {
				return err.Error()
			}
		}
		if field.Interface != nil {
			return fmt.Sprintf("%v", field.Interface)
		}
		return field.String
	}
	return ""
}

func shortenHash(hash string) string {
	if len(hash) > 18 {
		return hash[:10] + "..." + hash[len(hash)-6:]
	}
	return hash
}

// PrettyCore wraps a console core: known messages are rewritten and fields are dropped.
type PrettyCore struct {
	core   zapcore.Core
	fields []zapcore.Field
}

func (c *PrettyCore) Enabled(level zapcore.Level) bool {
	return c.core.Enabled(level)
}

func (c *PrettyCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &PrettyCore{core: c.core, fields: merged}
}

func (c *PrettyCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *PrettyCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	all := append(append([]zapcore.Field{}, c.fields...), fields...)
	entry.Message = FormatMessage(entry.Message, all)
	entry.LoggerName = ""
	return c.core.Write(entry, nil)
}

func (c *PrettyCore) Sync() error {
	return c.core.Sync()
}
