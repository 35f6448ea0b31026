package chanrescue

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/lightningnetwork/chanrescue/forceclose"
	"github.com/lightningnetwork/chanrescue/lnwire"
	"github.com/stretchr/testify/require"
)

// TestOutboxSender asserts that messages are appended to one file per peer as
// length prefixed frames, in send order.
func TestOutboxSender(t *testing.T) {
	t.Parallel()

	sender, err := NewOutboxSender(t.TempDir())
	require.NoError(t, err)

	alice, _ := newPubKeyHex(t)
	bob, _ := newPubKeyHex(t)

	ctx := context.Background()
	chanIDs := []lnwire.ChannelID{{1}, {2}, {3}}
	for _, chanID := range chanIDs {
		msg := forceclose.NewChannelReestablish(chanID)
		require.NoError(t, sender.SendMessage(ctx, alice, msg))
	}

	custom, err := lnwire.NewCustom(lnwire.CustomTypeStart, []byte{9})
	require.NoError(t, err)
	require.NoError(t, sender.SendMessage(ctx, bob, custom))

	raw, err := os.ReadFile(sender.OutboxPath(alice))
	require.NoError(t, err)

	// Each frame is the two byte length, the two byte type and the 113
	// byte channel_reestablish body.
	require.Len(t, raw, 3*(2+2+113))
	require.Equal(t, []byte{0x00, 0x73, 0x00, 0x88}, raw[:4])

	msgs, err := ReadOutbox(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, msgs, len(chanIDs))
	for i, msg := range msgs {
		reest, ok := msg.(*lnwire.ChannelReestablish)
		require.True(t, ok)
		require.Equal(t, chanIDs[i], reest.ChanID)
		require.True(t, reest.LocalUnrevokedCommitPoint.IsEqual(
			forceclose.SentinelCommitPoint(),
		))
	}

	f, err := os.Open(sender.OutboxPath(bob))
	require.NoError(t, err)
	defer f.Close()

	msgs, err = ReadOutbox(f)
	require.NoError(t, err)
	require.Equal(t, []lnwire.Message{custom}, msgs)
}

// TestOutboxSenderCanceled asserts that nothing is written once the context
// is done.
func TestOutboxSenderCanceled(t *testing.T) {
	t.Parallel()

	sender, err := NewOutboxSender(t.TempDir())
	require.NoError(t, err)

	alice, _ := newPubKeyHex(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msg := forceclose.NewChannelReestablish(lnwire.ChannelID{1})
	require.ErrorIs(t, sender.SendMessage(ctx, alice, msg), context.Canceled)
	require.NoFileExists(t, sender.OutboxPath(alice))
}

// TestReadOutboxTruncated asserts that a partial frame is reported.
func TestReadOutboxTruncated(t *testing.T) {
	t.Parallel()

	_, err := ReadOutbox(bytes.NewReader([]byte{0x00, 0x10, 0x00, 0x88}))
	require.ErrorContains(t, err, "truncated frame")
}
