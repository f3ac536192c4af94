package main

import (
	"io"

	"github.com/sirupsen/logrus"
)

// newLogger writes diagnostics to stderr. The header itself never goes
// through the logger.
func newLogger(w io.Writer, opts options) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableColors:    true,
	})

	switch {
	case opts.trace:
		l.SetLevel(logrus.TraceLevel)
	case opts.verbose:
		l.SetLevel(logrus.DebugLevel)
	default:
		l.SetLevel(logrus.WarnLevel)
	}
	return l
}
