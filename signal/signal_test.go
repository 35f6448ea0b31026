package signal

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestRequestShutdown asserts that a shutdown request closes the shutdown
// channel, and that further requests don't block.
func TestRequestShutdown(t *testing.T) {
	t.Parallel()

	interceptor := newInterceptor()
	go interceptor.mainInterruptHandler()

	require.True(t, interceptor.Alive())
	interceptor.RequestShutdown()

	select {
	case <-interceptor.ShutdownChannel():
	case <-time.After(time.Second):
		t.Fatal("shutdown channel not closed")
	}

	require.False(t, interceptor.Alive())
	interceptor.RequestShutdown()
}

// TestInterruptSignal asserts that a signal delivered on the interrupt channel
// triggers a shutdown.
func TestInterruptSignal(t *testing.T) {
	t.Parallel()

	interceptor := newInterceptor()
	go interceptor.mainInterruptHandler()

	interceptor.interruptChannel <- syscall.SIGTERM

	select {
	case <-interceptor.ShutdownChannel():
	case <-time.After(time.Second):
		t.Fatal("shutdown channel not closed")
	}
}
