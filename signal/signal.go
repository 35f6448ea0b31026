// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Heavily inspired by https://github.com/btcsuite/btcd/blob/master/signal.go
// Copyright (C) 2015-2022 The Lightning Network Developers

package signal

import (
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// started is set while an Interceptor installed by Intercept is running.
var started atomic.Bool

// ErrAlreadyStarted is returned if Intercept is called more than once.
var ErrAlreadyStarted = errors.New("intercept already started")

// shutdownSignals are the signals that make chanrescue stop queueing and
// flush what it has.
var shutdownSignals = []os.Signal{
	os.Interrupt,
	syscall.SIGABRT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
}

// Interceptor turns interrupt signals and programmatic shutdown requests into
// a single shutdown channel.
type Interceptor struct {
	interruptChannel chan os.Signal

	// shutdownRequestChannel carries RequestShutdown calls to the
	// handler goroutine.
	shutdownRequestChannel chan struct{}

	// quit is closed by the handler goroutine once the first shutdown
	// trigger arrived.
	quit chan struct{}

	// shutdownChannel is closed after quit, right before the handler
	// goroutine exits.
	shutdownChannel chan struct{}
}

// Intercept hooks the shutdown signals and starts the handler goroutine. Only
// one Interceptor can be active at a time.
func Intercept() (Interceptor, error) {
	if !started.CompareAndSwap(false, true) {
		return Interceptor{}, ErrAlreadyStarted
	}

	interceptor := newInterceptor()
	signal.Notify(interceptor.interruptChannel, shutdownSignals...)

	go func() {
		defer started.Store(false)

		interceptor.mainInterruptHandler()
	}()

	return interceptor, nil
}

// newInterceptor returns an Interceptor that isn't hooked to any signal yet.
func newInterceptor() Interceptor {
	return Interceptor{
		interruptChannel:       make(chan os.Signal, 1),
		shutdownRequestChannel: make(chan struct{}),
		quit:                   make(chan struct{}),
		shutdownChannel:        make(chan struct{}),
	}
}

// mainInterruptHandler waits for the first signal or shutdown request, then
// closes the shutdown channel and stops listening for signals.
//
// NOTE: This MUST be run as a goroutine.
func (c *Interceptor) mainInterruptHandler() {
	defer signal.Stop(c.interruptChannel)

	select {
	case sig := <-c.interruptChannel:
		log.Infof("Received %v, shutting down", sig)

	case <-c.shutdownRequestChannel:
		log.Infof("Received shutdown request, shutting down")
	}

	close(c.quit)
	close(c.shutdownChannel)
}

// Alive reports whether no shutdown has been triggered yet.
func (c *Interceptor) Alive() bool {
	select {
	case <-c.quit:
		return false

	default:
		return true
	}
}

// RequestShutdown triggers a shutdown as if a signal had been received. It
// returns right away if a shutdown is already underway.
func (c *Interceptor) RequestShutdown() {
	select {
	case c.shutdownRequestChannel <- struct{}{}:
	case <-c.quit:
	}
}

// ShutdownChannel returns a channel that's closed once a shutdown has been
// triggered.
func (c *Interceptor) ShutdownChannel() <-chan struct{} {
	return c.shutdownChannel
}
