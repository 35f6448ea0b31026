package chanbackup

import (
	"bytes"
	"fmt"
	"io"
	"net"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/chanrescue/lnwire"
)

// SingleBackupVersion is the first byte of a serialized Single. It tells the
// channel type apart, which only matters for the KeyMaterial we don't decode.
type SingleBackupVersion byte

const (
	// DefaultSingleVersion is a legacy channel with a tweaked remote key.
	DefaultSingleVersion SingleBackupVersion = 0

	// TweaklessCommitVersion is a channel using option_static_remotekey.
	TweaklessCommitVersion SingleBackupVersion = 1

	// AnchorsCommitVersion is a channel with anchor outputs.
	AnchorsCommitVersion SingleBackupVersion = 2

	// ScriptEnforcedLeaseVersion is an anchor channel whose funds are
	// locked by a lease until a given height.
	ScriptEnforcedLeaseVersion SingleBackupVersion = 3

	// SimpleTaprootVersion is a simple taproot channel.
	SimpleTaprootVersion SingleBackupVersion = 4

	// TapscriptRootVersion is a taproot channel committing to an extra
	// tapscript root.
	TapscriptRootVersion SingleBackupVersion = 5
)

// knownVersion reports whether the backup body starts with the fields this
// package decodes. All versions up to TapscriptRootVersion do.
func (v SingleBackupVersion) knownVersion() bool {
	return v <= TapscriptRootVersion
}

// Single is the static backup of one channel. The fields needed to find the
// channel and its peer are decoded, everything after them is kept as
// KeyMaterial so the backup can be written back out byte for byte.
type Single struct {
	Version SingleBackupVersion

	// IsInitiator is true if we funded the channel.
	IsInitiator bool

	// ChainHash is the genesis hash of the chain the channel lives on.
	ChainHash chainhash.Hash

	FundingOutpoint wire.OutPoint

	ShortChannelID lnwire.ShortChannelID

	// RemoteNodePub is the identity key of the channel peer.
	RemoteNodePub *btcec.PublicKey

	// Addresses are the last known addresses of the peer.
	Addresses []net.Addr

	Capacity btcutil.Amount

	// KeyMaterial is the undecoded remainder of the backup.
	KeyMaterial []byte
}

// ChannelID returns the id peers use for the channel.
func (s *Single) ChannelID() lnwire.ChannelID {
	return lnwire.NewChanIDFromOutPoint(s.FundingOutpoint)
}

// Serialize writes version || uint16 length || body to w. The length lets a
// reader skip backups it doesn't understand.
func (s *Single) Serialize(w io.Writer) error {
	if !s.Version.knownVersion() {
		return fmt.Errorf("unable to serialize w/ unknown "+
			"version: %v", s.Version)
	}

	var body bytes.Buffer
	if err := s.encodeBody(&body); err != nil {
		return err
	}

	if body.Len() > lnwire.MaxSliceLength {
		return fmt.Errorf("single backup for %v too large: %d bytes",
			s.FundingOutpoint, body.Len())
	}

	var framed bytes.Buffer
	framed.Grow(3 + body.Len())
	if err := lnwire.WriteUint8(&framed, uint8(s.Version)); err != nil {
		return err
	}
	if err := lnwire.WriteUint16(&framed, uint16(body.Len())); err != nil {
		return err
	}
	framed.Write(body.Bytes())

	_, err := w.Write(framed.Bytes())
	return err
}

// encodeBody writes every field after the length prefix.
func (s *Single) encodeBody(b *bytes.Buffer) error {
	if err := lnwire.WriteBool(b, s.IsInitiator); err != nil {
		return err
	}
	if err := lnwire.WriteBytes(b, s.ChainHash[:]); err != nil {
		return err
	}
	if err := lnwire.WriteOutPoint(b, s.FundingOutpoint); err != nil {
		return err
	}
	if err := lnwire.WriteShortChannelID(b, s.ShortChannelID); err != nil {
		return err
	}
	if err := lnwire.WritePublicKey(b, s.RemoteNodePub); err != nil {
		return err
	}
	if err := lnwire.WriteNetAddrs(b, s.Addresses); err != nil {
		return err
	}
	if err := lnwire.WriteSatoshi(b, s.Capacity); err != nil {
		return err
	}

	return lnwire.WriteBytes(b, s.KeyMaterial)
}

// Deserialize reads a backup written by Serialize from r into s.
func (s *Single) Deserialize(r io.Reader) error {
	var (
		version uint8
		length  uint16
	)
	if err := lnwire.ReadElements(r, &version); err != nil {
		return err
	}

	s.Version = SingleBackupVersion(version)
	if !s.Version.knownVersion() {
		return fmt.Errorf("unable to de-serialize w/ unknown "+
			"version: %v", s.Version)
	}

	if err := lnwire.ReadElements(r, &length); err != nil {
		return err
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return err
	}

	bodyReader := bytes.NewReader(body)
	err := lnwire.ReadElements(
		bodyReader, &s.IsInitiator, &s.ChainHash, &s.FundingOutpoint,
		&s.ShortChannelID, &s.RemoteNodePub, &s.Addresses, &s.Capacity,
	)
	if err != nil {
		return fmt.Errorf("unable to decode single backup: %w", err)
	}

	// Whatever follows the common fields is version specific.
	s.KeyMaterial = nil
	if rest := bodyReader.Len(); rest > 0 {
		s.KeyMaterial = body[len(body)-rest:]
	}

	return nil
}

// PackToWriter serializes the backup and writes it to w encrypted under the
// key of keyRing.
func (s *Single) PackToWriter(w io.Writer, keyRing KeyRing) error {
	var rawBytes bytes.Buffer
	if err := s.Serialize(&rawBytes); err != nil {
		return err
	}

	return sealBackup(rawBytes.Bytes(), w, keyRing)
}

// UnpackFromReader decrypts a packed backup read from r and deserializes it
// into s. A backup packed under another key fails to authenticate.
func (s *Single) UnpackFromReader(r io.Reader, keyRing KeyRing) error {
	plaintext, err := openBackup(r, keyRing)
	if err != nil {
		return err
	}

	return s.Deserialize(bytes.NewReader(plaintext))
}

// PackedSingles is a batch of individually packed backups.
type PackedSingles [][]byte

// Unpack decrypts and decodes every backup of the batch, failing on the first
// one that doesn't unpack.
func (p PackedSingles) Unpack(keyRing KeyRing) ([]Single, error) {
	backups := make([]Single, len(p))
	for i, encryptedBackup := range p {
		var backup Single

		backupReader := bytes.NewReader(encryptedBackup)
		err := backup.UnpackFromReader(backupReader, keyRing)
		if err != nil {
			return nil, err
		}

		backups[i] = backup
	}

	return backups, nil
}
