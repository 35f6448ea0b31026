package lnwire

import (
	"encoding/hex"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/wire"
)

// MaxFundingTxOutputs is the highest funding output index a ChannelID can
// represent, as only 2 bytes of the index are mixed into it.
const MaxFundingTxOutputs = math.MaxUint16

// ChannelID is the 32 byte id peers use to refer to a channel once it's
// funded: the funding txid with the funding output index XOR'd into its last
// two bytes.
type ChannelID [32]byte

// String returns the hex encoding of the id.
func (c ChannelID) String() string {
	return hex.EncodeToString(c[:])
}

// NewChanIDFromHex parses the 64 character hex form produced by String.
func NewChanIDFromHex(s string) (ChannelID, error) {
	var cid ChannelID

	raw, err := hex.DecodeString(s)
	switch {
	case err != nil:
		return cid, fmt.Errorf("invalid channel id: %w", err)

	case len(raw) != len(cid):
		return cid, fmt.Errorf("invalid channel id length: got %d "+
			"bytes, want %d", len(raw), len(cid))
	}
	copy(cid[:], raw)

	return cid, nil
}

// NewChanIDFromOutPoint derives the id of the channel funded by op. Only the
// lower 2 bytes of the output index are used.
func NewChanIDFromOutPoint(op wire.OutPoint) ChannelID {
	cid := ChannelID(op.Hash)
	cid[30] ^= byte(op.Index >> 8)
	cid[31] ^= byte(op.Index)

	return cid
}

// IsChanPoint reports whether op is the funding outpoint of the channel.
func (c ChannelID) IsChanPoint(op *wire.OutPoint) bool {
	if op.Index > MaxFundingTxOutputs {
		return false
	}

	return NewChanIDFromOutPoint(*op) == c
}
