// Package logging builds the engine's zap logger and scrubs credentials
// from anything that might carry them before it reaches a log line.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New returns a logger for the given environment. "local" gets the
// development config (console encoder, debug level); everything else gets
// production JSON.
func New(env string) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error
	if env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
