package lnutils

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// TestLogClosures asserts that closures are only evaluated when formatted.
func TestLogClosures(t *testing.T) {
	t.Parallel()

	var calls int
	c := NewLogClosure(func() string {
		calls++
		return "expensive"
	})
	require.Zero(t, calls)
	require.Equal(t, "expensive", c.String())
	require.Equal(t, 1, calls)

	require.Contains(t, SpewLogClosure([]byte{0xab}).String(), "ab")
}

// TestLogPubKey checks the attributes and closures produced for present and
// missing keys.
func TestLogPubKey(t *testing.T) {
	t.Parallel()

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey()

	attr := LogPubKey("peer", pub)
	require.Equal(t, "peer", attr.Key)
	require.Equal(t, "peer", LogPubKey("peer", nil).Key)

	require.Equal(
		t, hex.EncodeToString(pub.SerializeCompressed()),
		PubKeyLogClosure(pub).String(),
	)
	require.Equal(t, "<nil>", PubKeyLogClosure(nil).String())
}

// TestLogOutPoint checks the rendering of a funding outpoint attribute.
func TestLogOutPoint(t *testing.T) {
	t.Parallel()

	op := wire.OutPoint{Index: 7}
	attr := LogOutPoint("chan_point", op)
	require.Equal(t, "chan_point", attr.Key)
	require.Equal(t, op.String(), attr.Value.String())
}
