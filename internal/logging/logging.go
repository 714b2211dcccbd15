// Package logging builds the zap logger shared by the CLI and the refresh
// pipeline.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Verbose bool
	Quiet   bool
	// Out defaults to stderr so log lines never mix with command output.
	Out io.Writer
}

// Level returns the minimum level for the given options.
func (o Options) Level() zapcore.Level {
	switch {
	case o.Verbose:
		return zapcore.DebugLevel
	case o.Quiet:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// New returns a console logger writing to o.Out.
func New(o Options) *zap.Logger {
	out := o.Out
	if out == nil {
		out = os.Stderr
	}
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.TimeKey = ""
	encoderCfg.CallerKey = ""
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(out),
		o.Level(),
	)
	return zap.New(core)
}
