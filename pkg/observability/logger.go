// Package observability wires logging and metrics for ttdialogue processes.
package observability

import (
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
    "gopkg.in/natefinch/lumberjack.v2"

    "ttdialogue/pkg/config"
)

// SetupLogger builds the process logger from c, tags it with app and installs
// it as the zap global so dialogue.New picks it up. Callers defer Sync.
func SetupLogger(c config.LogConfig, app string) (*zap.Logger, error) {
    level := zap.NewAtomicLevelAt(ParseLevel(c.Level))
    encoder := newEncoder(c)

    outputs := c.Outputs
    if len(outputs) == 0 {
        outputs = []string{"stdout"}
    }
    cores := make([]zapcore.Core, 0, len(outputs))
    for _, out := range outputs {
        ws, err := openSink(out, c)
        if err != nil { return nil, err }
        cores = append(cores, zapcore.NewCore(encoder, ws, level))
    }

    opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)}
    if c.Development {
        opts = append(opts, zap.Development())
    }
    logger := zap.New(zapcore.NewTee(cores...), opts...)
    if app != "" {
        logger = logger.With(zap.String("app", app))
    }
    zap.ReplaceGlobals(logger)
    _, _ = zap.RedirectStdLogAt(logger, zap.InfoLevel)
    return logger, nil
}

// ParseLevel maps a config level name to a zap level; unknown names are info.
func ParseLevel(s string) zapcore.Level {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "debug":
        return zap.DebugLevel
    case "warn", "warning":
        return zap.WarnLevel
    case "error":
        return zap.ErrorLevel
    default:
        return zap.InfoLevel
    }
}

func newEncoder(c config.LogConfig) zapcore.Encoder {
    var ec zapcore.EncoderConfig
    if c.Development {
        ec = zap.NewDevelopmentEncoderConfig()
    } else {
        ec = zap.NewProductionEncoderConfig()
        ec.EncodeTime = zapcore.ISO8601TimeEncoder
    }
    if strings.EqualFold(c.Format, "json") {
        return zapcore.NewJSONEncoder(ec)
    }
    if c.Development {
        ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
    }
    return zapcore.NewConsoleEncoder(ec)
}

func openSink(out string, c config.LogConfig) (zapcore.WriteSyncer, error) {
    switch strings.ToLower(out) {
    case "stdout":
        return zapcore.Lock(os.Stdout), nil
    case "stderr":
        return zapcore.Lock(os.Stderr), nil
    }
    if c.Rotation.Enable {
        name := out
        if f := strings.TrimSpace(c.Rotation.Filename); f != "" {
            name = f
        }
        return zapcore.AddSync(&lumberjack.Logger{
            Filename:   name,
            MaxSize:    atLeast(c.Rotation.MaxSizeMB, 10),
            MaxBackups: atLeast(c.Rotation.MaxBackups, 1),
            MaxAge:     atLeast(c.Rotation.MaxAgeDays, 7),
            Compress:   c.Rotation.Compress,
        }), nil
    }
    if dir := filepath.Dir(out); dir != "." {
        if err := os.MkdirAll(dir, 0o755); err != nil { return nil, fmt.Errorf("log dir %s: %w", dir, err) }
    }
    f, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
    if err != nil { return nil, fmt.Errorf("log output %s: %w", out, err) }
    return zapcore.AddSync(f), nil
}

func atLeast(v, floor int) int {
    if v < floor {
        return floor
    }
    return v
}
