// Package logging builds the engine's structured logger: JSON to a file,
// tee'd to a human-readable console core, following the pack's zap
// conventions rather than the stdlib log package.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a *zap.Logger that writes JSON lines to logPath and a
// console-encoded copy to stderr. pid is attached to every entry so
// concurrent processes sharing one log file can be told apart.
func New(logPath string) (*zap.Logger, error) {
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	jsonCore := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zapcore.InfoLevel)
	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(os.Stderr), zapcore.InfoLevel)

	core := zapcore.NewTee(jsonCore, consoleCore)
	return zap.New(core, zap.Fields(zap.Int("pid", os.Getpid()))), nil
}
