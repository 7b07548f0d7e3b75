// Package modkit provides module wiring and core deps
package modkit

import (
	"io"
	"os"

	"thoughtsd/internal/platform/config"
	"thoughtsd/internal/platform/logger"
	"thoughtsd/internal/platform/metrics"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log     logger.Logger
	Cfg     config.Conf
	Metrics *metrics.Collector

	// Out is the report sink; nil means os.Stdout
	Out io.Writer
}

// Output returns the report sink, defaulting to stdout
func (d Deps) Output() io.Writer {
	if d.Out == nil {
		return os.Stdout
	}
	return d.Out
}
