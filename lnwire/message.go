// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// code derived from https://github .com/btcsuite/btcd/blob/master/wire/message.go
// Copyright (C) 2015-2022 The Lightning Network Developers

package lnwire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// MessageType is the 2 byte big-endian integer every message starts with.
// There's no length or checksum, those are left to the transport.
type MessageType uint16

// The message types this package can decode. Any other type below
// CustomTypeStart is rejected with an UnknownMessage error.
const (
	MsgInit               MessageType = 16
	MsgChannelReestablish MessageType = 136
)

// msgTypeSize is the size of the type prefix of every message.
const msgTypeSize = 2

// String returns the name of the message type.
func (t MessageType) String() string {
	switch {
	case t == MsgInit:
		return "Init"

	case t == MsgChannelReestablish:
		return "ChannelReestablish"

	case IsCustomType(t):
		return fmt.Sprintf("Custom(%d)", uint16(t))
	}

	return "<unknown>"
}

// UnknownMessage is returned when decoding a message whose type is neither
// known nor in the custom range.
type UnknownMessage struct {
	messageType MessageType
}

// Error implements the error interface.
func (u *UnknownMessage) Error() string {
	return fmt.Sprintf("unable to parse message of unknown type: %v",
		u.messageType)
}

// Serializable is implemented by everything that knows its own wire
// encoding.
type Serializable interface {
	// Decode reads the object from r.
	Decode(r io.Reader, pver uint32) error

	// Encode appends the object to w.
	Encode(w *bytes.Buffer, pver uint32) error
}

// Message is a Serializable with a message type.
type Message interface {
	Serializable
	MsgType() MessageType
}

// newMessage returns an empty message of the concrete type msgType decodes
// into.
func newMessage(msgType MessageType) (Message, error) {
	switch {
	case msgType == MsgInit:
		return &Init{}, nil

	case msgType == MsgChannelReestablish:
		return &ChannelReestablish{}, nil

	case IsCustomType(msgType):
		return &Custom{Type: msgType}, nil
	}

	return nil, &UnknownMessage{messageType: msgType}
}

// WriteMessage appends the type prefix and payload of msg to buf and returns
// the number of bytes added. On error buf is left exactly as it was.
//
// NOTE: this method is not concurrent safe.
func WriteMessage(buf *bytes.Buffer, msg Message, pver uint32) (int, error) {
	start := buf.Len()

	var msgType [msgTypeSize]byte
	binary.BigEndian.PutUint16(msgType[:], uint16(msg.MsgType()))
	buf.Write(msgType[:])

	if err := msg.Encode(buf, pver); err != nil {
		buf.Truncate(start)
		return 0, fmt.Errorf("failed to encode %v: %w", msg.MsgType(),
			err)
	}

	written := buf.Len() - start
	if payload := written - msgTypeSize; payload > MaxMsgBody {
		buf.Truncate(start)
		return 0, fmt.Errorf("message payload is too large, encoded "+
			"%d bytes but the maximum is %d bytes", payload,
			MaxMsgBody)
	}

	return written, nil
}

// ReadMessage decodes the next message from r.
func ReadMessage(r io.Reader, pver uint32) (Message, error) {
	var msgType [msgTypeSize]byte
	if _, err := io.ReadFull(r, msgType[:]); err != nil {
		return nil, err
	}

	msg, err := newMessage(
		MessageType(binary.BigEndian.Uint16(msgType[:])),
	)
	if err != nil {
		return nil, err
	}

	if err := msg.Decode(r, pver); err != nil {
		return nil, err
	}

	return msg, nil
}
