package chanbackup

import (
	"context"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/chanrescue/lnutils"
	"github.com/lightningnetwork/chanrescue/lnwire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// ChannelCloser is the sub-system that asks a peer to force close one of our
// channels.
type ChannelCloser interface {
	// RequestChannelClose queues a request asking peer to force close the
	// channel identified by chanID.
	RequestChannelClose(peer *btcec.PublicKey, chanID lnwire.ChannelID)
}

// RecoverChannels queues a force close request for every backed up channel
// that names its remote node. If chainHash is set, backups of channels on any
// other chain are skipped. The number of requests queued is returned.
func RecoverChannels(ctx context.Context, backups []Single,
	chainHash fn.Option[chainhash.Hash], closer ChannelCloser) int {

	recoverable := fn.Filter(backups, func(s Single) bool {
		if s.RemoteNodePub == nil {
			log.Warnf("Skipping backup for ChannelPoint(%v): no "+
				"remote node key", s.FundingOutpoint)

			return false
		}

		if chainHash.UnwrapOr(s.ChainHash) != s.ChainHash {
			log.Debugf("Skipping backup for ChannelPoint(%v) on "+
				"chain %v", s.FundingOutpoint, s.ChainHash)

			return false
		}

		return true
	})

	for _, s := range recoverable {
		chanID := s.ChannelID()

		log.InfoS(ctx, "Requesting force close",
			"chan_point", s.FundingOutpoint.String(),
			"chan_id", chanID.String(),
			lnutils.LogPubKey("peer", s.RemoteNodePub),
			"capacity", s.Capacity)

		closer.RequestChannelClose(s.RemoteNodePub, chanID)
	}

	return len(recoverable)
}
