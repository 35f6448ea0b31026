package lnwire

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestWriteReadMessage asserts that each message type known to this package
// survives a trip through WriteMessage and ReadMessage.
func TestWriteReadMessage(t *testing.T) {
	t.Parallel()

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	custom, err := NewCustom(CustomTypeStart+7, []byte{1, 2, 3})
	require.NoError(t, err)

	testCases := []struct {
		name string
		msg  Message
	}{
		{
			name: "init",
			msg: NewInitMessage(
				NewRawFeatureVector(),
				NewRawFeatureVector(DataLossProtectOptional),
			),
		},
		{
			name: "channel reestablish",
			msg: &ChannelReestablish{
				ChanID:                    ChannelID{9},
				NextLocalCommitHeight:     3,
				RemoteCommitTailHeight:    2,
				LocalUnrevokedCommitPoint: priv.PubKey(),
				ExtraData:                 make([]byte, 0),
			},
		},
		{
			name: "custom",
			msg:  custom,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var b bytes.Buffer
			n, err := WriteMessage(&b, tc.msg, 0)
			require.NoError(t, err)
			require.Equal(t, b.Len(), n)

			msgType := binary.BigEndian.Uint16(b.Bytes()[:2])
			require.Equal(t, uint16(tc.msg.MsgType()), msgType)

			raw := append([]byte(nil), b.Bytes()...)

			decoded, err := ReadMessage(&b, 0)
			require.NoError(t, err)
			require.IsType(t, tc.msg, decoded)

			// Re-encoding what we decoded must yield the very
			// same bytes.
			var reencoded bytes.Buffer
			_, err = WriteMessage(&reencoded, decoded, 0)
			require.NoError(t, err)
			require.Equal(t, raw, reencoded.Bytes())
		})
	}
}

// TestReadMessageUnknownType asserts that an unknown non-custom message type
// yields an UnknownMessage error.
func TestReadMessageUnknownType(t *testing.T) {
	t.Parallel()

	raw := []byte{0x00, 0x84, 0x01}
	_, err := ReadMessage(bytes.NewReader(raw), 0)

	var unknown *UnknownMessage
	require.ErrorAs(t, err, &unknown)
}

// TestWriteMessageTooLarge asserts that an oversized payload is rejected and
// leaves the buffer untouched.
func TestWriteMessageTooLarge(t *testing.T) {
	t.Parallel()

	msg, err := NewCustom(CustomTypeStart, make([]byte, MaxMsgBody+1))
	require.NoError(t, err)

	b := bytes.NewBuffer([]byte{0xff})
	n, err := WriteMessage(b, msg, 0)
	require.Error(t, err)
	require.Zero(t, n)
	require.Equal(t, []byte{0xff}, b.Bytes())
}

// TestNewCustomRange ensures custom messages can only be created above
// CustomTypeStart.
func TestNewCustomRange(t *testing.T) {
	t.Parallel()

	_, err := NewCustom(MsgChannelReestablish, nil)
	require.ErrorIs(t, err, ErrNotCustomType)

	require.Equal(t, "ChannelReestablish", MessageType(136).String())
	require.Equal(t, "Custom(32768)", CustomTypeStart.String())
}

// TestChanIDOutPointConversion asserts that a channel id derived from an
// outpoint recognises that outpoint, and no other output of the same tx.
func TestChanIDOutPointConversion(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		txid := rapid.SliceOfN(rapid.Byte(), 32, 32).Draw(t, "txid")
		index := rapid.Uint32Range(0, MaxFundingTxOutputs-1).Draw(
			t, "index",
		)

		var hash chainhash.Hash
		copy(hash[:], txid)
		op := wire.OutPoint{Hash: hash, Index: index}

		cid := NewChanIDFromOutPoint(op)
		require.True(t, cid.IsChanPoint(&op))

		other := wire.OutPoint{Hash: hash, Index: index + 1}
		require.False(t, cid.IsChanPoint(&other))

		parsed, err := NewChanIDFromHex(cid.String())
		require.NoError(t, err)
		require.Equal(t, cid, parsed)
	})
}

// TestRawFeatureVectorEncodeDecode checks the byte layout of a feature
// vector and that decoding restores the set bits.
func TestRawFeatureVectorEncodeDecode(t *testing.T) {
	t.Parallel()

	fv := NewRawFeatureVector(
		DataLossProtectOptional, StaticRemoteKeyRequired,
	)

	var b bytes.Buffer
	require.NoError(t, fv.Encode(&b))

	// Bit 12 lands in the second to last byte, bit 1 in the last one.
	require.Equal(t, []byte{0x00, 0x02, 0x10, 0x02}, b.Bytes())

	decoded := NewRawFeatureVector()
	require.NoError(t, decoded.Decode(&b))
	require.Equal(t, fv.Features(), decoded.Features())

	empty := EmptyFeatureVector()
	require.True(t, empty.IsEmpty())

	b.Reset()
	require.NoError(t, empty.Encode(&b))
	require.Equal(t, []byte{0x00, 0x00}, b.Bytes())
}

// TestNetAddrsEncoding checks that TCP addresses survive an encoding round
// trip and that unknown address types are kept as opaque bytes.
func TestNetAddrsEncoding(t *testing.T) {
	t.Parallel()

	addrs := []net.Addr{
		&net.TCPAddr{IP: net.ParseIP("192.168.1.7").To4(), Port: 9735},
		&net.TCPAddr{IP: net.ParseIP("2001:db8::1"), Port: 9736},
		&OpaqueAddrs{Payload: []byte{0x04, 0xaa, 0xbb}},
	}

	var b bytes.Buffer
	require.NoError(t, WriteNetAddrs(&b, addrs))

	var decoded []net.Addr
	require.NoError(t, ReadElement(bytes.NewReader(b.Bytes()), &decoded))
	require.Len(t, decoded, 3)

	for i := 0; i < 2; i++ {
		require.Equal(t, addrs[i].String(), decoded[i].String())
	}
	require.Equal(t, addrs[2], decoded[2])

	// A UDP address has no wire encoding.
	err := WriteNetAddrs(&b, []net.Addr{&net.UDPAddr{}})
	require.ErrorIs(t, err, ErrUnsupportedAddr)
}

// TestShortChannelIDElement asserts the compact encoding of a short channel
// id.
func TestShortChannelIDElement(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		scid := ShortChannelID{
			BlockHeight: rapid.Uint32Range(0, 0xffffff).Draw(
				t, "height",
			),
			TxIndex: rapid.Uint32Range(0, 0xffffff).Draw(
				t, "index",
			),
			TxPosition: rapid.Uint16().Draw(t, "pos"),
		}
		require.Equal(t, scid, NewShortChanIDFromInt(scid.ToUint64()))

		var b bytes.Buffer
		require.NoError(t, WriteShortChannelID(&b, scid))

		var decoded ShortChannelID
		require.NoError(t, ReadElement(&b, &decoded))
		require.Equal(t, scid, decoded)
	})
}
