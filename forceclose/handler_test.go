package forceclose

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/chanrescue/chanbackup"
	"github.com/lightningnetwork/chanrescue/lnwire"
	"github.com/lightningnetwork/chanrescue/peer"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/ticker"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// A compile time check to ensure Handler can drive backup recovery.
var _ chanbackup.ChannelCloser = (*Handler)(nil)

// testPeers is a small fixed set of node keys the property tests pick from.
var testPeers = func() []*btcec.PublicKey {
	keys := make([]*btcec.PublicKey, 4)
	for i := range keys {
		var secret [32]byte
		secret[31] = byte(i + 1)
		_, pub := btcec.PrivKeyFromBytes(secret[:])
		keys[i] = pub
	}

	return keys
}()

func chanIDGen() *rapid.Generator[lnwire.ChannelID] {
	return rapid.Custom(func(t *rapid.T) lnwire.ChannelID {
		var cid lnwire.ChannelID
		b := rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "chan_id")
		copy(cid[:], b)

		return cid
	})
}

// assertForged checks that msg carries the fixed sentinel values for chanID.
func assertForged(t require.TestingT, chanID lnwire.ChannelID,
	msg *lnwire.ChannelReestablish) {

	require.Equal(t, chanID, msg.ChanID)
	require.Zero(t, msg.NextLocalCommitHeight)
	require.Zero(t, msg.RemoteCommitTailHeight)
	require.Equal(t, [32]byte{}, msg.LastRemoteCommitSecret)
	require.True(t, msg.LocalUnrevokedCommitPoint.IsEqual(
		SentinelCommitPoint(),
	))
	require.True(t, msg.NextFundingTxid.IsNone())
}

// TestSentinelCommitPoint asserts the exact bytes of the sentinel point.
func TestSentinelCommitPoint(t *testing.T) {
	t.Parallel()

	expected := bytes.Repeat([]byte{0x02}, 33)
	expected[1] = 0xff

	require.Equal(t, expected, SentinelCommitPoint().SerializeCompressed())
}

// TestRequestChannelCloseExample walks through a single close request and
// checks the message on the wire.
func TestRequestChannelCloseExample(t *testing.T) {
	t.Parallel()

	h := NewHandler()
	require.False(t, h.HasPendingMessages())

	var chanID lnwire.ChannelID
	copy(chanID[:], bytes.Repeat([]byte{0xaa}, 32))

	p1 := testPeers[0]
	h.RequestChannelClose(p1, chanID)
	require.True(t, h.HasPendingMessages())

	msgs := h.GetAndClearPendingMsgs()
	require.Len(t, msgs, 1)
	require.True(t, msgs[0].Peer.IsEqual(p1))

	msg, ok := msgs[0].Msg.(*lnwire.ChannelReestablish)
	require.True(t, ok)
	assertForged(t, chanID, msg)

	require.False(t, h.HasPendingMessages())
	require.Nil(t, h.GetAndClearPendingMsgs())

	// On the wire, the message is the channel id, two zero commitment
	// numbers, a zero secret, the sentinel point and no TLV records.
	var expected []byte
	expected = append(expected, bytes.Repeat([]byte{0xaa}, 32)...)
	expected = append(expected, make([]byte, 8+8+32)...)
	expected = append(
		expected, SentinelCommitPoint().SerializeCompressed()...,
	)

	var b bytes.Buffer
	require.NoError(t, msg.Encode(&b, lnwire.ProtocolVersion))
	require.Equal(t, expected, b.Bytes())

	var framed bytes.Buffer
	_, err := lnwire.WriteMessage(&framed, msg, lnwire.ProtocolVersion)
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0x88}, framed.Bytes()[:2])
}

// TestPendingUntilDrained checks that pending messages are reported from the
// first request until the next drain, and not after it.
func TestPendingUntilDrained(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		h := NewHandler()

		n := rapid.IntRange(1, 50).Draw(t, "n")
		for i := 0; i < n; i++ {
			peerIdx := rapid.IntRange(0, len(testPeers)-1).Draw(
				t, "peer",
			)
			h.RequestChannelClose(
				testPeers[peerIdx], chanIDGen().Draw(t, "cid"),
			)
			require.True(t, h.HasPendingMessages())
		}

		require.Len(t, h.DrainPending(), n)
		require.False(t, h.HasPendingMessages())
	})
}

// TestDrainFIFOAndSentinels checks, for arbitrary requests, that a drain
// returns them in request order and that every message carries the
// sentinel values.
func TestDrainFIFOAndSentinels(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		h := NewHandler()

		type request struct {
			peer   *btcec.PublicKey
			chanID lnwire.ChannelID
		}

		var requests []request
		n := rapid.IntRange(0, 30).Draw(t, "n")
		for i := 0; i < n; i++ {
			peerIdx := rapid.IntRange(0, len(testPeers)-1).Draw(
				t, "peer",
			)
			req := request{
				peer:   testPeers[peerIdx],
				chanID: chanIDGen().Draw(t, "cid"),
			}
			requests = append(requests, req)
			h.RequestChannelClose(req.peer, req.chanID)
		}

		msgs := h.GetAndClearPendingMsgs()
		require.Len(t, msgs, n)

		for i, req := range requests {
			require.Same(t, req.peer, msgs[i].Peer)

			msg, ok := msgs[i].Msg.(*lnwire.ChannelReestablish)
			require.True(t, ok)
			assertForged(t, req.chanID, msg)
		}
	})
}

// TestConcurrentRequests asserts that N concurrent requests yield exactly N
// drained messages, with a drainer racing the requesters.
func TestConcurrentRequests(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 2, 17, 256} {
		h := NewHandler()

		var (
			wg        sync.WaitGroup
			drainedMu sync.Mutex
			drained   []PendingMsg
		)

		stop := make(chan struct{})
		drainerDone := make(chan struct{})
		go func() {
			defer close(drainerDone)
			for {
				batch := h.DrainPending()

				drainedMu.Lock()
				drained = append(drained, batch...)
				drainedMu.Unlock()

				select {
				case <-stop:
					return
				default:
				}
			}
		}()

		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()

				var cid lnwire.ChannelID
				cid[0], cid[1] = byte(i>>8), byte(i)
				h.RequestChannelClose(
					testPeers[i%len(testPeers)], cid,
				)
			}(i)
		}

		wg.Wait()
		close(stop)
		<-drainerDone

		drained = append(drained, h.DrainPending()...)
		require.Len(t, drained, n)

		seen := make(map[lnwire.ChannelID]struct{}, n)
		for _, p := range drained {
			_, dup := seen[p.Msg.ChanID]
			require.False(t, dup)
			seen[p.Msg.ChanID] = struct{}{}
		}
		require.False(t, h.HasPendingMessages())
	}
}

// TestReadCustomMessageNeverRecognises asserts that no message is ever
// produced and that the reader is left untouched.
func TestReadCustomMessageNeverRecognises(t *testing.T) {
	t.Parallel()

	h := NewHandler()

	rapid.Check(t, func(t *rapid.T) {
		msgType := lnwire.MessageType(rapid.Uint16().Draw(t, "type"))
		payload := rapid.SliceOf(rapid.Byte()).Draw(t, "payload")

		r := bytes.NewReader(payload)
		msg, err := h.ReadCustomMessage(msgType, r)
		require.NoError(t, err)
		require.Nil(t, msg)
		require.Equal(t, len(payload), r.Len())
	})
}

// TestCapabilityStubs checks the remaining handler capabilities.
func TestCapabilityStubs(t *testing.T) {
	t.Parallel()

	h := NewHandler()
	require.Equal(t, HandlerName, h.Name())

	custom, err := lnwire.NewCustom(lnwire.CustomTypeStart, []byte{1})
	require.NoError(t, err)
	require.NoError(t, h.HandleCustomMessage(custom, testPeers[0]))
	require.False(t, h.HasPendingMessages())

	require.True(t, h.ProvidedNodeFeatures().IsEmpty())
	require.True(t, h.ProvidedInitFeatures(testPeers[1]).IsEmpty())
}

type recordingSender struct {
	mock.Mock
}

func (r *recordingSender) SendMessage(ctx context.Context,
	p *btcec.PublicKey, msg lnwire.Message) error {

	return r.Called(ctx, p, msg).Error(0)
}

// TestRecoverThroughPump drives the handler the way the daemon does: backups
// are recovered into close requests, and a message pump delivers them.
func TestRecoverThroughPump(t *testing.T) {
	t.Parallel()

	h := NewHandler()

	sender := &recordingSender{}
	sender.On(
		"SendMessage", mock.Anything, mock.Anything, mock.Anything,
	).Return(nil)

	pump, err := peer.NewMsgPump(peer.MsgPumpConfig{
		Sender:      sender,
		FlushTicker: ticker.NewForce(time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, pump.RegisterHandler(h.Name(), h))

	backups := []chanbackup.Single{
		{
			FundingOutpoint: wire.OutPoint{Index: 1},
			RemoteNodePub:   testPeers[0],
		},
		{
			FundingOutpoint: wire.OutPoint{Index: 2},
			RemoteNodePub:   testPeers[1],
		},
	}
	n := chanbackup.RecoverChannels(
		context.Background(), backups, fn.None[chainhash.Hash](), h,
	)
	require.Equal(t, 2, n)
	require.True(t, h.HasPendingMessages())

	require.Equal(t, 2, pump.FlushPending(context.Background()))
	require.False(t, h.HasPendingMessages())

	sender.AssertNumberOfCalls(t, "SendMessage", 2)
	for _, call := range sender.Calls {
		msg := call.Arguments.Get(2).(*lnwire.ChannelReestablish)
		p := call.Arguments.Get(1).(*btcec.PublicKey)

		for _, b := range backups {
			if b.RemoteNodePub.IsEqual(p) {
				assertForged(t, b.ChannelID(), msg)
			}
		}
	}

	// The handler adds nothing to the advertised features.
	require.True(t, pump.NodeFeatures().IsEmpty())
}
