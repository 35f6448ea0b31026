package build

import (
	"fmt"

	"github.com/btcsuite/btclog/v2"
)

const (
	// Gzip compresses rolled log files with gzip.
	Gzip = "gzip"

	// Zstd compresses rolled log files with zstd.
	Zstd = "zstd"

	// DefaultMaxLogFiles is the number of rolled log files kept around.
	DefaultMaxLogFiles = 10

	// DefaultMaxLogFileSize is the size in MB at which the log file is
	// rolled.
	DefaultMaxLogFileSize = 20
)

// Values accepted by the call-site options.
const (
	callSiteOff   = "off"
	callSiteShort = "short"
	callSiteLong  = "long"
)

// logCompressors maps each supported compressor to the file suffix of the
// logs it rolls.
var logCompressors = map[string]string{
	Gzip: "gz",
	Zstd: "zst",
}

// SupportedLogCompressor reports whether name is a known log compressor.
func SupportedLogCompressor(name string) bool {
	_, ok := logCompressors[name]
	return ok
}

// LoggerConfig holds the options shared by the console and file loggers.
//
//nolint:lll
type LoggerConfig struct {
	Disable      bool   `long:"disable" description:"Disable this logger."`
	NoTimestamps bool   `long:"no-timestamps" description:"Omit timestamps from log lines."`
	CallSite     string `long:"call-site" description:"Include the call-site of each log line." choice:"off" choice:"short" choice:"long"`
}

// FileLoggerConfig adds the rotation options of the log file.
//
//nolint:lll
type FileLoggerConfig struct {
	LoggerConfig
	Compressor     string `long:"compressor" description:"Compression algorithm to use when rotating logs." choice:"gzip" choice:"zstd"`
	MaxLogFiles    int    `long:"max-files" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"max-file-size" description:"Maximum logfile size in MB"`
}

// LogConfig groups the console and log file options.
//
//nolint:lll
type LogConfig struct {
	Console *LoggerConfig     `group:"console" namespace:"console" description:"The logger writing to stdout."`
	File    *FileLoggerConfig `group:"file" namespace:"file" description:"The logger writing to the rotating log file."`
}

// DefaultLogConfig returns a LogConfig with both loggers enabled, no
// call-sites, and gzip compressed rolls.
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Console: &LoggerConfig{CallSite: callSiteOff},
		File: &FileLoggerConfig{
			LoggerConfig:   LoggerConfig{CallSite: callSiteOff},
			Compressor:     Gzip,
			MaxLogFiles:    DefaultMaxLogFiles,
			MaxLogFileSize: DefaultMaxLogFileSize,
		},
	}
}

// Validate checks the options go-flags can't check on its own, which matters
// when the config was built in code rather than parsed.
func (c *LogConfig) Validate() error {
	if !SupportedLogCompressor(c.File.Compressor) {
		return fmt.Errorf("invalid log compressor: %v",
			c.File.Compressor)
	}

	for _, logger := range []*LoggerConfig{c.Console, &c.File.LoggerConfig} {
		switch logger.CallSite {
		case "", callSiteOff, callSiteShort, callSiteLong:
		default:
			return fmt.Errorf("invalid call-site option: %v",
				logger.CallSite)
		}
	}

	if c.File.MaxLogFiles < 0 || c.File.MaxLogFileSize < 0 {
		return fmt.Errorf("log file limits must not be negative")
	}

	return nil
}

// HandlerOptions translates the config into btclog handler options.
func (c *LoggerConfig) HandlerOptions() []btclog.HandlerOption {
	var opts []btclog.HandlerOption
	if c.NoTimestamps {
		opts = append(opts, btclog.WithNoTimestamp())
	}

	switch c.CallSite {
	case callSiteShort:
		opts = append(opts, btclog.WithCallerFlags(btclog.Lshortfile))

	case callSiteLong:
		opts = append(opts, btclog.WithCallerFlags(btclog.Llongfile))
	}

	return opts
}
