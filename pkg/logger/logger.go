package logger

import (
	"fmt"

	"go.uber.org/zap"
)

var InfoLogger, FatalLogger *zap.Logger

var (
	serviceName = "default"
)

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

// Init собирает продакшн-логгеры. Зовётся один раз из main;
// без Init пишем в nop (удобно в тестах).
func Init() error {
	l, err := zap.NewProduction(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	InfoLogger = l
	FatalLogger = l
	return nil
}

func info() *zap.Logger {
	if InfoLogger == nil {
		InfoLogger = zap.NewNop()
	}
	return InfoLogger
}

func fatal() *zap.Logger {
	if FatalLogger == nil {
		FatalLogger = zap.NewNop()
	}
	return FatalLogger
}

func Info(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	info().With(
		zap.String("service", serviceName),
	).Info(msg)
}

func Error(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	info().With(
		zap.String("service", serviceName),
	).Error(msg)
}

func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fatal().With(
		zap.String("service", serviceName),
	).Fatal(msg)
}
