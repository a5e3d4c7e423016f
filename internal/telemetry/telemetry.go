// Package telemetry wraps logrus with the fields the CLI harness needs to
// trace: journal head/tail/epoch position and recovery state. The journal
// and map packages themselves never import this package — they are pure
// libraries. Its only caller is the CLI's fill subcommand; the
// block-device adapter and the test harness do not log.
package telemetry

import (
	"github.com/sirupsen/logrus"

	"github.com/nandftl/dhara-go/journal"
)

// Logger is a thin facade over *logrus.Logger so callers don't need to
// import logrus directly just to log a journal-shaped event.
type Logger struct {
	*logrus.Logger
}

// New creates a Logger writing structured (text by default, JSON when
// asJSON is true) output.
func New(asJSON bool) *Logger {
	l := logrus.New()
	if asJSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return &Logger{Logger: l}
}

// JournalFields returns a logrus.Fields snapshot of a journal's position,
// suitable for WithFields on any log line about a journal operation.
func JournalFields(j *journal.Journal) logrus.Fields {
	return logrus.Fields{
		"head":       j.Head(),
		"tail":       j.Tail(),
		"root":       j.Root(),
		"epoch":      j.Epoch(),
		"bb_current": j.BBCurrent(),
		"bb_last":    j.BBLast(),
		"recovering": j.InRecovery(),
	}
}
