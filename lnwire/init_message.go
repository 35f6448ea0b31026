package lnwire

import (
	"bytes"
	"io"
)

// Init is the first message sent on a new connection, announcing the
// features of the sender. Nothing else may be sent before it.
type Init struct {
	// GlobalFeatures is the legacy vector some older nodes still put
	// features in. Readers should merge it into Features.
	GlobalFeatures *RawFeatureVector

	// Features holds the features of the sending node.
	Features *RawFeatureVector

	// ExtraData holds any TLV records trailing the message.
	ExtraData ExtraOpaqueData
}

// NewInitMessage returns an Init announcing the given vectors.
func NewInitMessage(gf *RawFeatureVector, f *RawFeatureVector) *Init {
	return &Init{
		GlobalFeatures: gf,
		Features:       f,
		ExtraData:      make([]byte, 0),
	}
}

// A compile time check to ensure Init implements the lnwire.Message
// interface.
var _ Message = (*Init)(nil)

// Decode reads an Init from r.
//
// This is part of the lnwire.Message interface.
func (msg *Init) Decode(r io.Reader, _ uint32) error {
	return ReadElements(
		r, &msg.GlobalFeatures, &msg.Features, &msg.ExtraData,
	)
}

// Encode appends the Init to w.
//
// This is part of the lnwire.Message interface.
func (msg *Init) Encode(w *bytes.Buffer, _ uint32) error {
	if err := WriteRawFeatureVector(w, msg.GlobalFeatures); err != nil {
		return err
	}
	if err := WriteRawFeatureVector(w, msg.Features); err != nil {
		return err
	}

	return WriteBytes(w, msg.ExtraData)
}

// MsgType returns MsgInit.
//
// This is part of the lnwire.Message interface.
func (msg *Init) MsgType() MessageType {
	return MsgInit
}
