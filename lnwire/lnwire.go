package lnwire

const (
	// MaxSliceLength is the maximum allowed length for any opaque byte
	// slices in the wire protocol.
	MaxSliceLength = 65535

	// MaxMsgBody is the largest payload any message is allowed to provide.
	// This is two less than the MaxSliceLength as each message has a 2
	// byte type that precedes the message body.
	MaxMsgBody = 65533

	// ProtocolVersion is the only protocol version messages in this
	// package are encoded and decoded with.
	ProtocolVersion uint32 = 0
)
