package peer

import (
	"context"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/chanrescue/lnwire"
)

// OutboundMsg is a message a CustomMessageHandler wants delivered to a peer.
type OutboundMsg struct {
	// Peer is the node the message is addressed to.
	Peer *btcec.PublicKey

	// Msg is the wire message to send.
	Msg lnwire.Message
}

// CustomMessageHandler is the set of capabilities a sub-system must offer to
// be driven by a peer-messaging engine. The engine polls the handler for
// pending outbound messages, offers it inbound custom messages, and merges its
// advertised features into the ones it announces to peers.
type CustomMessageHandler interface {
	// ReadCustomMessage attempts to parse a custom message of the given
	// type from r. A nil message with a nil error means the handler
	// doesn't recognise the type.
	ReadCustomMessage(msgType lnwire.MessageType,
		r io.Reader) (lnwire.Message, error)

	// HandleCustomMessage processes a message previously returned by
	// ReadCustomMessage.
	HandleCustomMessage(msg lnwire.Message, from *btcec.PublicKey) error

	// GetAndClearPendingMsgs returns every queued outbound message in
	// FIFO order and empties the queue.
	GetAndClearPendingMsgs() []OutboundMsg

	// ProvidedNodeFeatures returns the features this handler adds to our
	// node announcement.
	ProvidedNodeFeatures() *lnwire.RawFeatureVector

	// ProvidedInitFeatures returns the features this handler adds to the
	// init message sent to theirNode.
	ProvidedInitFeatures(theirNode *btcec.PublicKey) *lnwire.RawFeatureVector
}

// MessageSender delivers a single message to a peer. Connection management
// and transport encryption are left to the implementation.
type MessageSender interface {
	// SendMessage sends msg to peer. It should return once the message
	// has been handed off, or ctx is done.
	SendMessage(ctx context.Context, peer *btcec.PublicKey,
		msg lnwire.Message) error
}
