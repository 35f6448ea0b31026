package build

import (
	"io"

	"github.com/btcsuite/btclog/v2"
)

// LogLevel is the level of the stdout loggers handed out to packages when the
// binary is built with the stdlog tag, which is how unit tests see log output.
const LogLevel = "info"

// LogType selects where package loggers write before SetupLoggers replaces
// them. It's fixed at compile time through the stdlog and nolog build tags.
type LogType byte

const (
	// LogTypeNone discards all output.
	LogTypeNone LogType = iota

	// LogTypeStdOut writes straight to stdout without a rotator.
	LogTypeStdOut

	// LogTypeDefault writes to stdout and the rotating log file.
	LogTypeDefault
)

// String returns the build tag name of the log type.
func (t LogType) String() string {
	switch t {
	case LogTypeNone:
		return "nolog"

	case LogTypeStdOut:
		return "stdlog"

	case LogTypeDefault:
		return "default"
	}

	return "unknown"
}

// LogWriter is the writer behind stdout loggers. Its Write method depends on
// the build tags: by default it mirrors to RotatorPipe, with stdlog it only
// writes to stdout and with nolog it drops everything.
type LogWriter struct {
	// RotatorPipe optionally receives a copy of every write.
	RotatorPipe *io.PipeWriter
}

// NewSubLogger returns the logger for subsystem. With the default build the
// logger comes from genSubLogger, and is disabled while genSubLogger is still
// nil, which is the case for the package level placeholders set up before the
// config has been read.
func NewSubLogger(subsystem string,
	genSubLogger func(string) btclog.Logger) btclog.Logger {

	switch LoggingType {
	case LogTypeStdOut:
		handler := btclog.NewDefaultHandler(&LogWriter{})
		logger := btclog.NewSLogger(handler.SubSystem(subsystem))

		level, _ := btclog.LevelFromString(LogLevel)
		logger.SetLevel(level)

		return logger

	case LogTypeDefault:
		if genSubLogger != nil {
			return genSubLogger(subsystem)
		}
	}

	return btclog.Disabled
}
