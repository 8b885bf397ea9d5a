package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLoggerFor builds a JSON production logger for "production" and a
// console development logger for anything else.
func NewLoggerFor(appEnv string) *zap.Logger {
	loggerConfig := zap.NewDevelopmentConfig()
	if appEnv == "production" {
		loggerConfig = zap.NewProductionConfig()
	}
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := loggerConfig.Build()
	if nil != err {
		panic(err)
	}

	return logger
}
