// Package logger provides a convience function to constructing a logger
// for use. This is required not just for applications but for testing.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New constructs a Sugared Logger that writes to stdout and
// provides human readable timestamps. Alternate output paths such
// as "stderr" can be provided.
func New(service string, outputPaths ...string) (*zap.SugaredLogger, error) {
	if len(outputPaths) == 0 {
		outputPaths = []string{"stdout"}
	}

	config := zap.NewProductionConfig()
	config.OutputPaths = outputPaths
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	config.InitialFields = map[string]any{
		"service": service,
	}

	log, err := config.Build()
	if err != nil {
		return nil, err
	}

	return log.Sugar(), nil
}
