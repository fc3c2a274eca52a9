package zlog

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger pairs a zap logger with its runtime-adjustable level.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// New creates a logger writing to stderr. It does not replace the zap globals.
func New(cfg Config, opts ...zap.Option) (*Logger, error) {
	return NewWithSyncer(cfg, zapcore.Lock(os.Stderr), opts...)
}

// NewWithSyncer creates a logger writing to ws.
func NewWithSyncer(cfg Config, ws zapcore.WriteSyncer, opts ...zap.Option) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder

	var encoder zapcore.Encoder
	if cfg.Encoding == "console" {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	allOpts := append([]zap.Option{
		zap.AddCaller(),
		zap.Fields(zap.String("service", cfg.Service)),
	}, opts...)

	return &Logger{
		Logger: zap.New(zapcore.NewCore(encoder, ws, level), allOpts...),
		level:  level,
	}, nil
}

// SetLevel changes the level at runtime. Unknown names select info.
func (l *Logger) SetLevel(name string) {
	l.level.SetLevel(parseLevel(name))
}

// Level returns the current level name.
func (l *Logger) Level() string {
	return l.level.Level().String()
}

func parseLevel(name string) zapcore.Level {
	switch name {
	case "debug":
		return zap.DebugLevel
	case "warn":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}
