package lnwire

import (
	"fmt"
)

// ShortChannelID locates a channel's funding output on chain by the block it
// was confirmed in, the transaction's index in that block and the output's
// index in that transaction.
type ShortChannelID struct {
	// BlockHeight only has 3 bytes on the wire.
	BlockHeight uint32

	// TxIndex only has 3 bytes on the wire.
	TxIndex uint32

	TxPosition uint16
}

// NewShortChanIDFromInt unpacks the 8 byte compact form: 3 bytes of block
// height, 3 bytes of transaction index, then 2 bytes of output index.
func NewShortChanIDFromInt(scid uint64) ShortChannelID {
	const mask24 = 1<<24 - 1

	return ShortChannelID{
		BlockHeight: uint32(scid>>40) & mask24,
		TxIndex:     uint32(scid>>16) & mask24,
		TxPosition:  uint16(scid),
	}
}

// ToUint64 packs the id into the compact form read by NewShortChanIDFromInt.
func (c ShortChannelID) ToUint64() uint64 {
	height := uint64(c.BlockHeight) << 40
	index := uint64(c.TxIndex) << 16

	return height | index | uint64(c.TxPosition)
}

// String renders the id as height:index:position.
func (c ShortChannelID) String() string {
	return fmt.Sprintf("%d:%d:%d", c.BlockHeight, c.TxIndex, c.TxPosition)
}
