// Package logging wires up the node's structured logger, injected into each
// subsystem constructor rather than used as a package-global.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a human-readable console logger tagged with the owning node's
// id.
func New(nodeID string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(console).With().Timestamp().Str("node", nodeID).Logger()
}
