// Package logging builds the process logger.
package logging

import (
	"go.uber.org/zap"
)

// New returns a development logger at debug level when debug is set and a
// JSON production logger otherwise. Both write to stderr, which keeps stdout
// free for the MCP transport and CLI output.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// NewQuiet is New for one-shot CLI commands: nothing is logged unless debug is set.
func NewQuiet(debug bool) (*zap.Logger, error) {
	if !debug {
		return zap.NewNop(), nil
	}
	return New(true)
}
