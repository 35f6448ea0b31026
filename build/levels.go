package build

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btclog/v2"
)

// SubLoggers maps a subsystem tag to its logger.
type SubLoggers map[string]btclog.Logger

// LeveledSubLogger is a set of subsystem loggers whose levels can be changed
// one at a time or all together.
type LeveledSubLogger interface {
	// SubLoggers returns every registered subsystem logger.
	SubLoggers() SubLoggers

	// SupportedSubsystems returns the sorted subsystem tags.
	SupportedSubsystems() []string

	// SetLogLevel changes the level of a single subsystem.
	SetLogLevel(subsystemID string, logLevel string)

	// SetLogLevels changes the level of all subsystems.
	SetLogLevels(logLevel string)
}

// logLevels are the level names accepted by --debuglevel.
var logLevels = map[string]struct{}{
	"trace":    {},
	"debug":    {},
	"info":     {},
	"warn":     {},
	"error":    {},
	"critical": {},
	"off":      {},
}

// validLogLevel reports whether logLevel names a known level.
func validLogLevel(logLevel string) bool {
	_, ok := logLevels[logLevel]
	return ok
}

// ParseAndSetDebugLevels applies a --debuglevel value to logger. The value is
// either a bare level for all subsystems, a comma separated list of
// <subsystem>=<level> pairs, or a bare level followed by such pairs.
func ParseAndSetDebugLevels(level string, logger LeveledSubLogger) error {
	entries := strings.Split(level, ",")

	// A leading entry without a subsystem sets the default for everyone,
	// the pairs after it override that default.
	if !strings.Contains(entries[0], "=") {
		if !validLogLevel(entries[0]) {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", entries[0])
		}

		logger.SetLogLevels(entries[0])
		entries = entries[1:]
	}

	subLoggers := logger.SubLoggers()
	for _, entry := range entries {
		subsystem, subLevel, err := splitLevelPair(entry)
		if err != nil {
			return err
		}

		if _, ok := subLoggers[subsystem]; !ok {
			return fmt.Errorf("the specified subsystem [%v] is "+
				"invalid, supported subsystems are %v",
				subsystem, logger.SupportedSubsystems())
		}

		logger.SetLogLevel(subsystem, subLevel)
	}

	return nil
}

// splitLevelPair splits and checks a single <subsystem>=<level> entry.
func splitLevelPair(entry string) (string, string, error) {
	subsystem, level, found := strings.Cut(entry, "=")
	switch {
	case !found:
		return "", "", fmt.Errorf("the specified debug level contains "+
			"an invalid subsystem/level pair [%v]", entry)

	case strings.Contains(level, "="):
		return "", "", fmt.Errorf("the specified debug level has an "+
			"invalid format [%v], use subsystem1=level1,"+
			"subsystem2=level2", entry)

	case !validLogLevel(level):
		return "", "", fmt.Errorf("the specified debug level [%v] is "+
			"invalid", level)
	}

	return subsystem, level, nil
}
