package lnwire

import (
	"bytes"
	"errors"
	"io"
)

// CustomTypeStart is the first message type of the range BOLT 01 leaves to
// applications.
const CustomTypeStart MessageType = 32768

// ErrNotCustomType is returned by NewCustom for a type below CustomTypeStart.
var ErrNotCustomType = errors.New("msg type not in custom range")

// IsCustomType reports whether msgType lies in the custom range.
func IsCustomType(msgType MessageType) bool {
	return msgType >= CustomTypeStart
}

// Custom is a message from the custom range. Its payload is kept as opaque
// bytes.
type Custom struct {
	Type MessageType
	Data []byte
}

// A compile time check to ensure Custom implements the lnwire.Message
// interface.
var _ Message = (*Custom)(nil)

// NewCustom returns a custom message of type msgType carrying data.
func NewCustom(msgType MessageType, data []byte) (*Custom, error) {
	if !IsCustomType(msgType) {
		return nil, ErrNotCustomType
	}

	return &Custom{Type: msgType, Data: data}, nil
}

// Encode writes the payload as is.
//
// This is part of the lnwire.Message interface.
func (c *Custom) Encode(b *bytes.Buffer, _ uint32) error {
	return WriteBytes(b, c.Data)
}

// Decode takes everything left in r as the payload.
//
// This is part of the lnwire.Message interface.
func (c *Custom) Decode(r io.Reader, _ uint32) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	c.Data = data

	return nil
}

// MsgType returns the type the message was created or decoded with.
//
// This is part of the lnwire.Message interface.
func (c *Custom) MsgType() MessageType {
	return c.Type
}
