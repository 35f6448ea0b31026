package chanrescue

import (
	"github.com/btcsuite/btclog/v2"
	"github.com/lightningnetwork/chanrescue/build"
	"github.com/lightningnetwork/chanrescue/chanbackup"
	"github.com/lightningnetwork/chanrescue/forceclose"
	"github.com/lightningnetwork/chanrescue/peer"
	"github.com/lightningnetwork/chanrescue/signal"
)

// Subsystem defines the logging code for the main package.
const Subsystem = "RSCU"

// rscuLog is used by the main package. It's replaced once SetupLoggers runs.
var rscuLog = build.NewSubLogger(Subsystem, nil)

// SetupLoggers initializes all package-global logger variables.
func SetupLoggers(root *build.SubLoggerManager) {
	// Now that we have the proper root logger, we can replace the
	// placeholder main logger.
	rscuLog = build.NewSubLogger(Subsystem, root.GenSubLogger)
	root.RegisterSubLogger(Subsystem, rscuLog)

	AddSubLogger(root, signal.Subsystem, signal.UseLogger)
	AddSubLogger(root, forceclose.Subsystem, forceclose.UseLogger)
	AddSubLogger(root, peer.Subsystem, peer.UseLogger)
	AddSubLogger(root, chanbackup.Subsystem, chanbackup.UseLogger)
}

// AddSubLogger is a helper method to conveniently create and register the
// logger of one or more sub systems.
func AddSubLogger(root *build.SubLoggerManager, subsystem string,
	useLoggers ...func(btclog.Logger)) {

	// Create and register just a single logger to prevent them from
	// overwriting each other internally.
	logger := build.NewSubLogger(subsystem, root.GenSubLogger)
	SetSubLogger(root, subsystem, logger, useLoggers...)
}

// SetSubLogger is a helper method to conveniently register the logger of a
// sub system.
func SetSubLogger(root *build.SubLoggerManager, subsystem string,
	logger btclog.Logger, useLoggers ...func(btclog.Logger)) {

	root.RegisterSubLogger(subsystem, logger)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}
