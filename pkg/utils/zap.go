package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.SugaredLogger
	level  = zap.NewAtomicLevelAt(zapcore.DebugLevel)
)

func init() {
	logger = NewLogger()
}

func GetLogger() *zap.SugaredLogger {
	return logger
}

// SetLevel changes the level of every logger handed out by GetLogger.
func SetLevel(l string) error {
	return level.UnmarshalText([]byte(l))
}

func NewLogger() *zap.SugaredLogger {
	cfg := zap.Config{
		Level:    level,
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:  "msg",
			LevelKey:    "level",
			TimeKey:     "time",
			EncodeLevel: zapcore.CapitalLevelEncoder,
			EncodeTime:  zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		},
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return l.Sugar()
}
