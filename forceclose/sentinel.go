package forceclose

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/chanrescue/lnwire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// sentinelPointBytes is the commitment point sent in every forged
// channel_reestablish. It is a valid compressed point (even y, x =
// 0xff0202...02) that doesn't correspond to any commitment secret.
var sentinelPointBytes = func() [btcec.PubKeyBytesLenCompressed]byte {
	var b [btcec.PubKeyBytesLenCompressed]byte
	for i := range b {
		b[i] = 0x02
	}
	b[1] = 0xff

	return b
}()

// sentinelPoint is the parsed form of sentinelPointBytes.
var sentinelPoint *btcec.PublicKey

func init() {
	var err error
	sentinelPoint, err = btcec.ParsePubKey(sentinelPointBytes[:])
	if err != nil {
		panic("forceclose: invalid sentinel commitment point: " +
			err.Error())
	}
}

// SentinelCommitPoint returns the fixed per-commitment point used in forged
// channel_reestablish messages.
func SentinelCommitPoint() *btcec.PublicKey {
	return sentinelPoint
}

// NewChannelReestablish returns a channel_reestablish for chanID that claims
// we're at the very start of the channel and knows none of the remote's
// secrets. Both commitment numbers are zero, the last per-commitment secret is
// all zeroes, and the commitment point is the sentinel. A peer that has
// advanced the channel state sees that we've fallen behind and force closes.
func NewChannelReestablish(chanID lnwire.ChannelID) *lnwire.ChannelReestablish {
	return &lnwire.ChannelReestablish{
		ChanID:                    chanID,
		NextLocalCommitHeight:     0,
		RemoteCommitTailHeight:    0,
		LastRemoteCommitSecret:    [32]byte{},
		LocalUnrevokedCommitPoint: sentinelPoint,
		NextFundingTxid:           fn.None[[32]byte](),
		ExtraData:                 make([]byte, 0),
	}
}
