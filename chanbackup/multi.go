package chanbackup

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/lightningnetwork/chanrescue/lnwire"
)

// MultiBackupVersion is the version byte leading a decrypted multi-channel
// backup.
type MultiBackupVersion byte

const (
	// DefaultMultiVersion lays the plaintext out as
	// version || uint32 count || Single...
	DefaultMultiVersion MultiBackupVersion = 0

	// NilMultiSizePacked is the size of a packed Multi without backups:
	// the 24 byte nonce, the 16 byte tag, the version and a zero count.
	NilMultiSizePacked = 24 + 16 + 1 + 4

	// minSingleSize is the smallest a serialized Single can be, a version
	// byte and an empty length prefix.
	minSingleSize = 1 + 2
)

// ErrUnknownMultiVersion is returned for a multi-channel backup whose version
// we can't handle.
var ErrUnknownMultiVersion = errors.New("unknown multi backup version")

// Multi is the contents of a channel.backup file: every Single of a node,
// encrypted together as one blob.
type Multi struct {
	// Version selects the plaintext layout.
	Version MultiBackupVersion

	// StaticBackups are the channels in the backup, in file order.
	StaticBackups []Single
}

// PackToWriter serializes the multi and writes it to w encrypted under the
// key of keyRing.
func (m Multi) PackToWriter(w io.Writer, keyRing KeyRing) error {
	if m.Version != DefaultMultiVersion {
		return fmt.Errorf("%w: %v", ErrUnknownMultiVersion, m.Version)
	}

	var plaintext bytes.Buffer
	err := lnwire.WriteUint8(&plaintext, uint8(m.Version))
	if err != nil {
		return err
	}
	err = lnwire.WriteUint32(&plaintext, uint32(len(m.StaticBackups)))
	if err != nil {
		return err
	}

	for i := range m.StaticBackups {
		single := &m.StaticBackups[i]
		if err := single.Serialize(&plaintext); err != nil {
			return fmt.Errorf("unable to serialize backup for %v: "+
				"%w", single.FundingOutpoint, err)
		}
	}

	return sealBackup(plaintext.Bytes(), w, keyRing)
}

// UnpackFromReader decrypts a packed multi read from r and decodes every
// Single in it. Nothing is returned unless the whole backup decodes.
func (m *Multi) UnpackFromReader(r io.Reader, keyRing KeyRing) error {
	plaintext, err := openBackup(r, keyRing)
	if err != nil {
		return err
	}
	reader := bytes.NewReader(plaintext)

	var (
		version    uint8
		numBackups uint32
	)
	if err := lnwire.ReadElements(reader, &version); err != nil {
		return err
	}
	if MultiBackupVersion(version) != DefaultMultiVersion {
		return fmt.Errorf("%w: %v", ErrUnknownMultiVersion, version)
	}
	if err := lnwire.ReadElements(reader, &numBackups); err != nil {
		return err
	}

	// Refuse counts the remaining plaintext can't possibly hold before
	// allocating for them.
	if uint64(numBackups)*minSingleSize > uint64(reader.Len()) {
		return fmt.Errorf("multi backup claims %d channels but only "+
			"has %d bytes left", numBackups, reader.Len())
	}

	backups := make([]Single, numBackups)
	for i := range backups {
		if err := backups[i].Deserialize(reader); err != nil {
			return fmt.Errorf("unable to decode backup %d: %w", i,
				err)
		}
	}

	m.Version = DefaultMultiVersion
	m.StaticBackups = backups

	return nil
}

// PackedMulti is an encrypted multi-channel backup as found on disk.
type PackedMulti []byte

// Unpack decrypts and decodes the packed multi.
func (p PackedMulti) Unpack(keyRing KeyRing) (*Multi, error) {
	var m Multi
	if err := m.UnpackFromReader(bytes.NewReader(p), keyRing); err != nil {
		return nil, err
	}

	return &m, nil
}
