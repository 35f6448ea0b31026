package chanrescue

import (
	"context"
	"errors"
	"fmt"

	"github.com/lightningnetwork/chanrescue/chanbackup"
	"github.com/lightningnetwork/chanrescue/forceclose"
	"github.com/lightningnetwork/chanrescue/lnutils"
	"github.com/lightningnetwork/chanrescue/lnwire"
	"github.com/lightningnetwork/chanrescue/peer"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrShutdown is returned by Main if a shutdown was requested before every
// queued message was flushed.
var ErrShutdown = errors.New("shutdown requested before outbox was flushed")

// ErrSendFailures is returned by Main if the pump failed to write at least one
// queued message to the outbox.
var ErrSendFailures = errors.New("failed to write messages to outbox")

// Main is the true entry point of chanrescue. It queues a forged
// channel_reestablish for every channel of the backup file and every manual
// close of cfg, then pumps them into the outbox. This function blocks until
// all messages are written, or shutdownChan is closed.
func Main(cfg *Config, shutdownChan <-chan struct{}) error {
	defer func() {
		rscuLog.Info("Shutdown complete")
		if cfg.LogRotator != nil {
			if err := cfg.LogRotator.Close(); err != nil {
				rscuLog.Errorf("Could not close log rotator: "+
					"%v", err)
			}
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := forceclose.NewHandler()

	queued, err := queueCloses(ctx, cfg, handler)
	if err != nil {
		return err
	}
	if queued == 0 {
		rscuLog.Infof("No channels to recover")
		return nil
	}

	sender, err := NewOutboxSender(cfg.OutboxDir)
	if err != nil {
		return fmt.Errorf("unable to create outbox: %w", err)
	}

	registry := prometheus.NewRegistry()
	pump, err := peer.NewMsgPump(peer.MsgPumpConfig{
		Sender:             sender,
		FlushTicker:        ticker.New(cfg.FlushInterval),
		SendTimeout:        cfg.SendTimeout,
		MaxConcurrentPeers: cfg.MaxConcurrentPeers,
		SendInterval:       cfg.SendInterval,
		SendBurst:          cfg.SendBurst,
		Registerer:         registry,
	})
	if err != nil {
		return err
	}

	err = pump.RegisterHandler(forceclose.HandlerName, handler)
	if err != nil {
		return err
	}

	rscuLog.Infof("Queued %d force close request(s), writing to %v",
		queued, cfg.OutboxDir)

	pump.Start()
	err = waitDrained(handler, cfg, shutdownChan)

	// Stopping the pump flushes whatever the flush loop hasn't picked up
	// yet.
	pump.Stop()
	failures := logPumpStats(registry)

	switch {
	case err != nil:
		return err

	case failures > 0:
		return fmt.Errorf("%w: %v message(s) not sent", ErrSendFailures,
			failures)
	}

	return nil
}

// queueCloses hands every channel of the configured backup file, followed by
// the manual closes, to closer. The number of requests queued is returned.
func queueCloses(ctx context.Context, cfg *Config,
	closer chanbackup.ChannelCloser) (int, error) {

	var queued int
	if cfg.MultiFile != "" {
		multiFile := chanbackup.NewMultiFile(cfg.MultiFile)
		multi, err := multiFile.ExtractMulti(cfg.KeyRing())
		if err != nil {
			return 0, fmt.Errorf("unable to read channel backup "+
				"%v: %w", cfg.MultiFile, err)
		}

		rscuLog.Infof("Read %d channel backup(s) from %v",
			len(multi.StaticBackups), cfg.MultiFile)

		queued += chanbackup.RecoverChannels(
			ctx, multi.StaticBackups, cfg.ChainFilter(), closer,
		)
	}

	for _, mc := range cfg.ManualCloses() {
		rscuLog.DebugS(ctx, "Queueing manual close",
			lnutils.LogPubKey("peer", mc.Peer),
			lnutils.LogOutPoint("chan_point", mc.ChanPoint))

		closer.RequestChannelClose(
			mc.Peer, lnwire.NewChanIDFromOutPoint(mc.ChanPoint),
		)
		queued++
	}

	return queued, nil
}

// waitDrained blocks until the pump took every queued message off handler,
// or until a shutdown is requested.
func waitDrained(handler *forceclose.Handler, cfg *Config,
	shutdownChan <-chan struct{}) error {

	poll := ticker.New(cfg.FlushInterval)
	poll.Resume()
	defer poll.Stop()

	for handler.HasPendingMessages() {
		select {
		case <-poll.Ticks():

		case <-shutdownChan:
			return ErrShutdown
		}
	}

	return nil
}

// sendFailuresMetric is the name the pump registers its failure counter
// under.
const sendFailuresMetric = "chanrescue_pump_send_failures_total"

// logPumpStats logs the final value of every pump counter and returns the
// number of messages the pump failed to send.
func logPumpStats(registry *prometheus.Registry) float64 {
	families, err := registry.Gather()
	if err != nil {
		rscuLog.Errorf("Unable to gather pump metrics: %v", err)
		return 0
	}

	var failures float64
	for _, family := range families {
		for _, m := range family.GetMetric() {
			value := m.GetCounter().GetValue()
			rscuLog.Infof("%v: %v", family.GetName(), value)

			if family.GetName() == sendFailuresMetric {
				failures += value
			}
		}
	}

	return failures
}
