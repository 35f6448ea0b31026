package peer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/chanrescue/lnutils"
	"github.com/lightningnetwork/chanrescue/lnwire"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	// ErrDuplicateHandler is returned when a handler is registered with a
	// name that already exists.
	ErrDuplicateHandler = errors.New("handler already registered")

	// ErrUnknownHandler is returned when unregistering a handler that was
	// never registered.
	ErrUnknownHandler = errors.New("handler not registered")

	// ErrUnableToRouteMsg is returned when no registered handler
	// recognises an inbound message.
	ErrUnableToRouteMsg = errors.New("unable to route message")
)

const (
	// DefaultFlushInterval is the default interval at which pending
	// messages are drained from the handlers.
	DefaultFlushInterval = time.Second

	// DefaultMaxConcurrentPeers is the default number of peers messages
	// are sent to in parallel during a flush.
	DefaultMaxConcurrentPeers = 8
)

// HandlerName is the name of a registered handler. This MUST be unique across
// all registered handlers.
type HandlerName = string

// MsgPumpConfig houses the dependencies of a MsgPump.
type MsgPumpConfig struct {
	// Sender delivers drained messages to their peers.
	Sender MessageSender

	// FlushTicker signals when pending messages should be drained. If
	// nil, a ticker firing every DefaultFlushInterval is used.
	FlushTicker ticker.Ticker

	// SendTimeout bounds each call to Sender.SendMessage. Zero means no
	// timeout.
	SendTimeout time.Duration

	// MaxConcurrentPeers caps the number of peers sent to in parallel.
	// Zero means DefaultMaxConcurrentPeers.
	MaxConcurrentPeers int

	// SendInterval is the minimum interval between two sends across all
	// peers, once SendBurst is used up. Zero disables rate limiting.
	SendInterval time.Duration

	// SendBurst is the number of messages that may be sent back to back
	// before SendInterval applies.
	SendBurst int

	// Registerer, if set, is where the pump's counters are registered.
	Registerer prometheus.Registerer
}

// namedHandler pairs a handler with the name it was registered under.
type namedHandler struct {
	name    HandlerName
	handler CustomMessageHandler
}

// MsgPump is a minimal peer-messaging engine. It periodically drains every
// registered CustomMessageHandler and hands the messages to a MessageSender.
// Messages addressed to the same peer are sent in the order they were
// drained, while distinct peers are served concurrently. Inbound custom
// messages are offered to the handlers in registration order.
type MsgPump struct {
	startOnce sync.Once
	stopOnce  sync.Once

	cfg MsgPumpConfig

	metrics *pumpMetrics

	// limiter paces sends. It is nil if SendInterval is zero.
	limiter *rate.Limiter

	// handlersMtx guards handlers.
	handlersMtx sync.RWMutex
	handlers    []namedHandler

	// flushMtx serializes flushes so messages for one peer can't be
	// reordered by two overlapping flushes.
	flushMtx sync.Mutex

	wg   sync.WaitGroup
	quit chan struct{}
}

// NewMsgPump creates a new message pump from the given config.
func NewMsgPump(cfg MsgPumpConfig) (*MsgPump, error) {
	if cfg.Sender == nil {
		return nil, errors.New("message sender must be set")
	}
	if cfg.FlushTicker == nil {
		cfg.FlushTicker = ticker.New(DefaultFlushInterval)
	}
	if cfg.MaxConcurrentPeers <= 0 {
		cfg.MaxConcurrentPeers = DefaultMaxConcurrentPeers
	}

	metrics, err := newPumpMetrics(cfg.Registerer)
	if err != nil {
		return nil, fmt.Errorf("unable to register metrics: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.SendInterval > 0 {
		if cfg.SendBurst <= 0 {
			cfg.SendBurst = 1
		}
		limiter = rate.NewLimiter(
			rate.Every(cfg.SendInterval), cfg.SendBurst,
		)
	}

	return &MsgPump{
		cfg:     cfg,
		metrics: metrics,
		limiter: limiter,
		quit:    make(chan struct{}),
	}, nil
}

// Start launches the flush loop.
func (p *MsgPump) Start() {
	p.startOnce.Do(func() {
		pumpLog.Infof("Starting MsgPump")

		p.cfg.FlushTicker.Resume()

		p.wg.Add(1)
		go p.flushLoop()
	})
}

// Stop halts the flush loop, then performs a last flush so that messages
// queued right before shutdown still go out.
func (p *MsgPump) Stop() {
	p.stopOnce.Do(func() {
		pumpLog.Infof("Stopping MsgPump")

		close(p.quit)
		p.wg.Wait()
		p.cfg.FlushTicker.Stop()

		n := p.FlushPending(context.Background())
		pumpLog.Debugf("Final flush sent %d message(s)", n)
	})
}

// RegisterHandler registers a new handler with the pump. If a handler with
// the same name exists, ErrDuplicateHandler is returned.
func (p *MsgPump) RegisterHandler(name HandlerName,
	handler CustomMessageHandler) error {

	p.handlersMtx.Lock()
	defer p.handlersMtx.Unlock()

	for _, h := range p.handlers {
		if h.name == name {
			pumpLog.Errorf("Rejecting duplicate handler: %v", name)

			return fmt.Errorf("%w: %v", ErrDuplicateHandler, name)
		}
	}

	pumpLog.Infof("Registering new CustomMessageHandler(%s)", name)

	p.handlers = append(p.handlers, namedHandler{
		name:    name,
		handler: handler,
	})

	return nil
}

// UnregisterHandler removes the named handler. Messages it still has queued
// are left in its queue.
func (p *MsgPump) UnregisterHandler(name HandlerName) error {
	p.handlersMtx.Lock()
	defer p.handlersMtx.Unlock()

	for i, h := range p.handlers {
		if h.name != name {
			continue
		}

		pumpLog.Infof("Unregistering CustomMessageHandler(%s)", name)

		p.handlers = append(p.handlers[:i], p.handlers[i+1:]...)

		return nil
	}

	return fmt.Errorf("%w: %v", ErrUnknownHandler, name)
}

// Handlers returns the names of all registered handlers in registration
// order.
func (p *MsgPump) Handlers() []HandlerName {
	p.handlersMtx.RLock()
	defer p.handlersMtx.RUnlock()

	names := make([]HandlerName, 0, len(p.handlers))
	for _, h := range p.handlers {
		names = append(names, h.name)
	}

	return names
}

// snapshot returns a copy of the registered handlers.
func (p *MsgPump) snapshot() []namedHandler {
	p.handlersMtx.RLock()
	defer p.handlersMtx.RUnlock()

	return append([]namedHandler(nil), p.handlers...)
}

// peerBatch is the list of messages drained for a single peer.
type peerBatch struct {
	peer *btcec.PublicKey
	msgs []lnwire.Message
}

// FlushPending drains every registered handler and sends the messages. It
// returns the number of messages the sender accepted. Send failures are
// logged and counted but not reported back to the handlers.
func (p *MsgPump) FlushPending(ctx context.Context) int {
	p.flushMtx.Lock()
	defer p.flushMtx.Unlock()

	// Group the drained messages by peer, keeping both the order in
	// which peers first showed up and the order of each peer's messages.
	var (
		batches = make(map[[33]byte]*peerBatch)
		order   [][33]byte
	)
	for _, h := range p.snapshot() {
		for _, out := range h.handler.GetAndClearPendingMsgs() {
			if out.Peer == nil || out.Msg == nil {
				pumpLog.Warnf("Handler %v returned incomplete "+
					"message, dropping", h.name)
				continue
			}

			var key [33]byte
			copy(key[:], out.Peer.SerializeCompressed())

			batch, ok := batches[key]
			if !ok {
				batch = &peerBatch{peer: out.Peer}
				batches[key] = batch
				order = append(order, key)
			}
			batch.msgs = append(batch.msgs, out.Msg)
		}
	}

	if len(order) == 0 {
		return 0
	}

	var (
		g       errgroup.Group
		sentMtx sync.Mutex
		sent    int
	)
	g.SetLimit(p.cfg.MaxConcurrentPeers)

	for _, key := range order {
		batch := batches[key]

		g.Go(func() error {
			n := p.sendBatch(ctx, batch)

			sentMtx.Lock()
			sent += n
			sentMtx.Unlock()

			return nil
		})
	}

	// The goroutines never fail, failures are accounted per message.
	_ = g.Wait()

	pumpLog.Debugf("Flushed %d message(s) to %d peer(s)", sent, len(order))

	return sent
}

// sendBatch sends the messages of a single peer in order and returns how many
// of them were sent.
func (p *MsgPump) sendBatch(ctx context.Context, batch *peerBatch) int {
	var sent int
	for _, msg := range batch.msgs {
		err := p.sendOne(ctx, batch.peer, msg)
		if err != nil {
			p.metrics.sendFailures.Inc()

			pumpLog.ErrorS(ctx, "Unable to send message", err,
				lnutils.LogPubKey("peer", batch.peer),
				"msg_type", msg.MsgType().String())

			continue
		}

		p.metrics.msgsSent.Inc()
		sent++

		pumpLog.TraceS(ctx, "Sent message",
			lnutils.LogPubKey("peer", batch.peer),
			"msg", lnutils.SpewLogClosure(msg))
	}

	return sent
}

// sendOne hands a single message to the sender, applying the configured
// rate limit and timeout.
func (p *MsgPump) sendOne(ctx context.Context, peer *btcec.PublicKey,
	msg lnwire.Message) error {

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limited: %w", err)
		}
	}

	if p.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.SendTimeout)
		defer cancel()
	}

	return p.cfg.Sender.SendMessage(ctx, peer, msg)
}

// flushLoop drains the handlers on every tick until the pump is stopped. A
// flush that is under way when Stop is called runs to completion, its sends
// are only bounded by SendTimeout.
//
// NOTE: This MUST be run as a goroutine.
func (p *MsgPump) flushLoop() {
	defer p.wg.Done()

	ctx := context.Background()
	for {
		select {
		case <-p.cfg.FlushTicker.Ticks():
			p.FlushPending(ctx)

		case <-p.quit:
			return
		}
	}
}

// RouteCustom offers an inbound custom message to the registered handlers in
// registration order. The first handler that recognises the type gets to
// handle it. ErrUnableToRouteMsg is returned if none does.
func (p *MsgPump) RouteCustom(from *btcec.PublicKey,
	msgType lnwire.MessageType, payload []byte) error {

	if !lnwire.IsCustomType(msgType) {
		return fmt.Errorf("%w: %v", lnwire.ErrNotCustomType, msgType)
	}

	for _, h := range p.snapshot() {
		msg, err := h.handler.ReadCustomMessage(
			msgType, bytes.NewReader(payload),
		)
		if err != nil {
			return fmt.Errorf("handler %v failed to read %v: %w",
				h.name, msgType, err)
		}
		if msg == nil {
			continue
		}

		pumpLog.Tracef("Routing msg %v to handler %v", msgType, h.name)

		return h.handler.HandleCustomMessage(msg, from)
	}

	pumpLog.Tracef("Unable to route msg %v", msgType)

	return ErrUnableToRouteMsg
}

// InitFeatures returns the union of the init features every handler wants to
// advertise to theirNode.
func (p *MsgPump) InitFeatures(
	theirNode *btcec.PublicKey) *lnwire.RawFeatureVector {

	features := lnwire.EmptyFeatureVector()
	for _, h := range p.snapshot() {
		features.Merge(h.handler.ProvidedInitFeatures(theirNode))
	}

	return features
}

// NodeFeatures returns the union of the node features of every handler.
func (p *MsgPump) NodeFeatures() *lnwire.RawFeatureVector {
	features := lnwire.EmptyFeatureVector()
	for _, h := range p.snapshot() {
		features.Merge(h.handler.ProvidedNodeFeatures())
	}

	return features
}
