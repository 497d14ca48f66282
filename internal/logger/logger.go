package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var Log = slog.Default()

// Init 初始化全局日志
func Init(level string, logFile string) error {
	writers := []io.Writer{os.Stdout}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		writers = append(writers, f)
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String("time", a.Value.Time().Format("15:04:05"))
			}
			return a
		},
	})

	Log = slog.New(handler)
	slog.SetDefault(Log)
	return nil
}

// ParseLevel 解析日志级别,未知值按 info 处理
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With 返回带组件标签的子 logger
func With(component string) *slog.Logger {
	return Log.With("component", component)
}

func Debug(msg string, args ...any) { Log.Debug(msg, args...) }

func Info(msg string, args ...any) { Log.Info(msg, args...) }

func Warn(msg string, args ...any) { Log.Warn(msg, args...) }

func Error(msg string, args ...any) { Log.Error(msg, args...) }
