package chanrescue

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/chanrescue/chanbackup"
	"github.com/lightningnetwork/chanrescue/forceclose"
	"github.com/lightningnetwork/chanrescue/lnwire"
	"github.com/stretchr/testify/require"
)

// writeTestBackup packs singles into a multi backup file encrypted with
// baseKey and returns the file's path.
func writeTestBackup(t *testing.T, baseKey *btcec.PublicKey,
	singles []chanbackup.Single) string {

	t.Helper()

	var b bytes.Buffer
	multi := chanbackup.Multi{StaticBackups: singles}
	keyRing := &chanbackup.StaticKeyRing{BaseKey: baseKey}
	require.NoError(t, multi.PackToWriter(&b, keyRing))

	fileName := filepath.Join(t.TempDir(), chanbackup.DefaultBackupFileName)
	multiFile := chanbackup.NewMultiFile(fileName)
	require.NoError(t, multiFile.UpdateAndSwap(b.Bytes()))

	return fileName
}

func testSingle(peer *btcec.PublicKey, chain chainhash.Hash,
	index uint32) chanbackup.Single {

	return chanbackup.Single{
		Version:   chanbackup.TweaklessCommitVersion,
		ChainHash: chain,
		FundingOutpoint: wire.OutPoint{
			Hash:  chainhash.Hash{byte(index), 0xfe},
			Index: index,
		},
		ShortChannelID: lnwire.NewShortChanIDFromInt(uint64(index)),
		RemoteNodePub:  peer,
		Capacity:       btcutil.Amount(1_000_000),
		KeyMaterial:    []byte{0x01, 0x02, 0x03},
	}
}

// readOutboxChanIDs returns the channel ids of every channel_reestablish
// written for peer, asserting they all carry the sentinel point.
func readOutboxChanIDs(t *testing.T, outboxDir string,
	peer *btcec.PublicKey) []lnwire.ChannelID {

	t.Helper()

	name := hex.EncodeToString(peer.SerializeCompressed()) + outboxFileExt
	raw, err := os.ReadFile(filepath.Join(outboxDir, name))
	require.NoError(t, err)

	msgs, err := ReadOutbox(bytes.NewReader(raw))
	require.NoError(t, err)

	chanIDs := make([]lnwire.ChannelID, 0, len(msgs))
	for _, msg := range msgs {
		reest, ok := msg.(*lnwire.ChannelReestablish)
		require.True(t, ok)
		require.Zero(t, reest.NextLocalCommitHeight)
		require.Zero(t, reest.RemoteCommitTailHeight)
		require.True(t, reest.LocalUnrevokedCommitPoint.IsEqual(
			forceclose.SentinelCommitPoint(),
		))

		chanIDs = append(chanIDs, reest.ChanID)
	}

	return chanIDs
}

// TestMainRecoversBackup runs a full recovery of a backup file plus a manual
// close, and checks the outbox holds one forged message per mainnet channel.
func TestMainRecoversBackup(t *testing.T) {
	alice, aliceHex := newPubKeyHex(t)
	bob, _ := newPubKeyHex(t)
	baseKey, baseKeyHex := newPubKeyHex(t)

	mainnet := *chaincfg.MainNetParams.GenesisHash
	testnet := *chaincfg.TestNet3Params.GenesisHash
	singles := []chanbackup.Single{
		testSingle(alice, mainnet, 0),
		testSingle(bob, mainnet, 1),
		testSingle(bob, testnet, 2),
		testSingle(alice, mainnet, 3),
	}

	cfg := testConfig(t)
	cfg.MultiFile = writeTestBackup(t, baseKey, singles)
	cfg.BackupKeyHex = baseKeyHex
	cfg.Network = "mainnet"
	cfg.Peers = []string{aliceHex}
	cfg.ChanPoints = []string{testChanPoint}

	cleanCfg, err := ValidateConfig(cfg, "")
	require.NoError(t, err)

	require.NoError(t, Main(cleanCfg, nil))

	manual := lnwire.NewChanIDFromOutPoint(
		cleanCfg.ManualCloses()[0].ChanPoint,
	)
	require.Equal(t, []lnwire.ChannelID{
		singles[0].ChannelID(), singles[3].ChannelID(), manual,
	}, readOutboxChanIDs(t, cleanCfg.OutboxDir, alice))

	require.Equal(t, []lnwire.ChannelID{
		singles[1].ChannelID(),
	}, readOutboxChanIDs(t, cleanCfg.OutboxDir, bob))
}

// TestMainWrongBackupKey asserts that a backup that can't be decrypted fails
// the run before anything is written.
func TestMainWrongBackupKey(t *testing.T) {
	alice, _ := newPubKeyHex(t)
	baseKey, _ := newPubKeyHex(t)
	_, otherKeyHex := newPubKeyHex(t)

	cfg := testConfig(t)
	cfg.MultiFile = writeTestBackup(t, baseKey, []chanbackup.Single{
		testSingle(alice, *chaincfg.MainNetParams.GenesisHash, 0),
	})
	cfg.BackupKeyHex = otherKeyHex

	cleanCfg, err := ValidateConfig(cfg, "")
	require.NoError(t, err)

	err = Main(cleanCfg, nil)
	require.ErrorContains(t, err, "unable to read channel backup")
	require.NoDirExists(t, cleanCfg.OutboxDir)
}

// TestMainNothingToRecover asserts that a run whose backups are all filtered
// out succeeds without creating an outbox.
func TestMainNothingToRecover(t *testing.T) {
	alice, _ := newPubKeyHex(t)
	baseKey, baseKeyHex := newPubKeyHex(t)

	cfg := testConfig(t)
	cfg.MultiFile = writeTestBackup(t, baseKey, []chanbackup.Single{
		testSingle(alice, *chaincfg.TestNet3Params.GenesisHash, 0),
	})
	cfg.BackupKeyHex = baseKeyHex
	cfg.Network = "mainnet"

	cleanCfg, err := ValidateConfig(cfg, "")
	require.NoError(t, err)

	require.NoError(t, Main(cleanCfg, nil))
	require.NoDirExists(t, cleanCfg.OutboxDir)
}

// TestMainSendFailures asserts that a run whose messages can't be written to
// the outbox reports an error instead of succeeding silently.
func TestMainSendFailures(t *testing.T) {
	alice, aliceHex := newPubKeyHex(t)

	cfg := testConfig(t)
	cfg.Peers = []string{aliceHex}
	cfg.ChanPoints = []string{testChanPoint}

	cleanCfg, err := ValidateConfig(cfg, "")
	require.NoError(t, err)

	// A directory in place of the peer's outbox file makes every append
	// fail.
	sender, err := NewOutboxSender(cleanCfg.OutboxDir)
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(sender.OutboxPath(alice), 0700))

	err = Main(cleanCfg, nil)
	require.ErrorIs(t, err, ErrSendFailures)
	require.ErrorContains(t, err, "1 message(s) not sent")
}

// TestWaitDrainedShutdown asserts that waiting for the pump is abandoned on
// shutdown.
func TestWaitDrainedShutdown(t *testing.T) {
	t.Parallel()

	alice, _ := newPubKeyHex(t)

	handler := forceclose.NewHandler()
	handler.RequestChannelClose(alice, lnwire.ChannelID{1})

	cfg := DefaultConfig()
	cfg.FlushInterval = time.Hour

	shutdown := make(chan struct{})
	close(shutdown)

	err := waitDrained(handler, &cfg, shutdown)
	require.ErrorIs(t, err, ErrShutdown)
	require.True(t, handler.HasPendingMessages())
}
