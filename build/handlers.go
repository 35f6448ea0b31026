package build

import (
	"io"
	"os"

	"github.com/btcsuite/btclog/v2"
)

// NewDefaultLogHandler returns the log handler that all subsystem loggers
// share. Log lines go to stdout and to the rotating log file, unless either of
// them is disabled in the config. A nil rotator leaves file logging off.
func NewDefaultLogHandler(cfg *LogConfig,
	rotator *RotatingLogWriter) btclog.Handler {

	var (
		writers []io.Writer
		opts    []btclog.HandlerOption
	)
	if !cfg.Console.Disable {
		writers = append(writers, os.Stdout)
		opts = cfg.Console.HandlerOptions()
	}
	if rotator != nil && !cfg.File.Disable {
		writers = append(writers, rotator)
		if len(opts) == 0 {
			opts = cfg.File.HandlerOptions()
		}
	}

	if len(writers) == 0 {
		return btclog.NewDefaultHandler(io.Discard)
	}

	return btclog.NewDefaultHandler(io.MultiWriter(writers...), opts...)
}
