package forceclose

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/chanrescue/lnutils"
	"github.com/lightningnetwork/chanrescue/lnwire"
	"github.com/lightningnetwork/chanrescue/peer"
	"github.com/lightningnetwork/chanrescue/queue"
)

// HandlerName is the name the Handler registers under with a peer-messaging
// engine.
const HandlerName = "forceclose"

// PendingMsg is a forged channel_reestablish waiting to be sent to Peer.
type PendingMsg struct {
	// Peer is the node the message is addressed to.
	Peer *btcec.PublicKey

	// Msg is the forged message.
	Msg *lnwire.ChannelReestablish
}

// Handler asks peers to force close channels we can no longer operate, for
// instance after restoring from a static channel backup. Each request turns
// into a forged channel_reestablish that is queued until a peer-messaging
// engine drains it. The Handler never reads or reacts to peer messages.
//
// A Handler is safe for concurrent use.
type Handler struct {
	pending *queue.DrainQueue[PendingMsg]
}

// A compile time check to ensure Handler implements the
// peer.CustomMessageHandler interface.
var _ peer.CustomMessageHandler = (*Handler)(nil)

// NewHandler returns a Handler with an empty queue.
func NewHandler() *Handler {
	return &Handler{
		pending: queue.NewDrainQueue[PendingMsg](),
	}
}

// Name returns the name of the handler.
func (h *Handler) Name() string {
	return HandlerName
}

// RequestChannelClose queues a forged channel_reestablish for the channel
// identified by chanID, addressed to remotePub. The channel id isn't checked
// against anything, so the caller must make sure it names a channel shared
// with that peer.
func (h *Handler) RequestChannelClose(remotePub *btcec.PublicKey,
	chanID lnwire.ChannelID) {

	h.pending.Enqueue(PendingMsg{
		Peer: remotePub,
		Msg:  NewChannelReestablish(chanID),
	})

	fcLog.Debugf("Queued force close request for ChannelID(%v) with "+
		"peer %v", chanID, lnutils.PubKeyLogClosure(remotePub))
}

// HasPendingMessages returns true if any forged message is waiting to be
// drained. The answer may be stale by the time it's acted upon.
func (h *Handler) HasPendingMessages() bool {
	return !h.pending.IsEmpty()
}

// DrainPending removes and returns every queued message in the order they
// were requested.
func (h *Handler) DrainPending() []PendingMsg {
	return h.pending.DrainAll()
}

// ReadCustomMessage never recognises a message and never reads from r.
//
// NOTE: This is part of the peer.CustomMessageHandler interface.
func (h *Handler) ReadCustomMessage(_ lnwire.MessageType,
	_ io.Reader) (lnwire.Message, error) {

	return nil, nil
}

// HandleCustomMessage is a no-op.
//
// NOTE: This is part of the peer.CustomMessageHandler interface.
func (h *Handler) HandleCustomMessage(_ lnwire.Message,
	_ *btcec.PublicKey) error {

	return nil
}

// GetAndClearPendingMsgs drains the queue for delivery.
//
// NOTE: This is part of the peer.CustomMessageHandler interface.
func (h *Handler) GetAndClearPendingMsgs() []peer.OutboundMsg {
	pending := h.DrainPending()
	if len(pending) == 0 {
		return nil
	}

	fcLog.Tracef("Draining %d forced channel_reestablish message(s): %v",
		len(pending), lnutils.SpewLogClosure(pending))

	msgs := make([]peer.OutboundMsg, 0, len(pending))
	for _, p := range pending {
		msgs = append(msgs, peer.OutboundMsg{
			Peer: p.Peer,
			Msg:  p.Msg,
		})
	}

	return msgs
}

// ProvidedNodeFeatures returns an empty feature vector, as no protocol
// extension is involved.
//
// NOTE: This is part of the peer.CustomMessageHandler interface.
func (h *Handler) ProvidedNodeFeatures() *lnwire.RawFeatureVector {
	return lnwire.EmptyFeatureVector()
}

// ProvidedInitFeatures returns an empty feature vector for every peer.
//
// NOTE: This is part of the peer.CustomMessageHandler interface.
func (h *Handler) ProvidedInitFeatures(
	_ *btcec.PublicKey) *lnwire.RawFeatureVector {

	return lnwire.EmptyFeatureVector()
}
