package chanbackup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultBackupFileName is the name lnd gives the multi-channel backup
	// it keeps up to date next to its channel database.
	DefaultBackupFileName = "channel.backup"

	// stagingSuffix is appended to the backup file name to form the path
	// a replacement backup is written to before it's renamed into place.
	stagingSuffix = ".staging"

	// maxMultiFileSize caps how much we're willing to read from a backup
	// file. A multi holding tens of thousands of channels still fits.
	maxMultiFileSize = 32 << 20
)

var (
	// ErrNoBackupFileExists is returned when a MultiFile is used without a
	// file name.
	ErrNoBackupFileExists = errors.New("back up file name not set")

	// ErrBackupFileTooLarge is returned when the file we're asked to read
	// is too large to be a multi-channel backup.
	ErrBackupFileTooLarge = errors.New("back up file too large")
)

// MultiFile is a packed multi-channel backup stored on disk. The file is only
// ever replaced as a whole, by staging the new contents next to it and
// renaming them over the old file.
type MultiFile struct {
	fileName    string
	stagingName string
}

// NewMultiFile returns a MultiFile pointing at fileName. The file doesn't
// need to exist yet.
func NewMultiFile(fileName string) *MultiFile {
	var stagingName string
	if fileName != "" {
		stagingName = filepath.Join(
			filepath.Dir(fileName),
			"."+filepath.Base(fileName)+stagingSuffix,
		)
	}

	return &MultiFile{
		fileName:    fileName,
		stagingName: stagingName,
	}
}

// FileName returns the path of the backup file.
func (b *MultiFile) FileName() string {
	return b.fileName
}

// UpdateAndSwap replaces the contents of the backup file with newBackup. A
// reader of the file either sees the old or the new backup, never a mix.
func (b *MultiFile) UpdateAndSwap(newBackup PackedMulti) error {
	if b.fileName == "" {
		return ErrNoBackupFileExists
	}

	log.Debugf("Writing %d byte multi backup to %v", len(newBackup),
		b.fileName)

	if err := b.stage(newBackup); err != nil {
		// Don't leave a half written staging file behind.
		_ = os.Remove(b.stagingName)

		return err
	}

	if err := os.Rename(b.stagingName, b.fileName); err != nil {
		_ = os.Remove(b.stagingName)

		return fmt.Errorf("unable to swap in new backup: %w", err)
	}

	return nil
}

// stage writes the packed backup to the staging file and flushes it to disk.
// The file handle is closed before returning so it can be renamed on every
// platform.
func (b *MultiFile) stage(packed PackedMulti) error {
	f, err := os.OpenFile(
		b.stagingName, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600,
	)
	if err != nil {
		return fmt.Errorf("unable to create staging file: %w", err)
	}

	if _, err := f.Write(packed); err != nil {
		f.Close()
		return fmt.Errorf("unable to write staging file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("unable to sync staging file: %w", err)
	}

	return f.Close()
}

// ReadPacked returns the raw, still encrypted contents of the backup file.
func (b *MultiFile) ReadPacked() (PackedMulti, error) {
	if b.fileName == "" {
		return nil, ErrNoBackupFileExists
	}

	info, err := os.Stat(b.fileName)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxMultiFileSize {
		return nil, fmt.Errorf("%w: %v is %d bytes",
			ErrBackupFileTooLarge, b.fileName, info.Size())
	}

	raw, err := os.ReadFile(b.fileName)
	if err != nil {
		return nil, err
	}

	return PackedMulti(raw), nil
}

// ExtractMulti reads the backup file and decrypts it with the key ring.
func (b *MultiFile) ExtractMulti(keyRing KeyRing) (*Multi, error) {
	packed, err := b.ReadPacked()
	if err != nil {
		return nil, err
	}

	log.Debugf("Unpacking %d byte multi backup from %v", len(packed),
		b.fileName)

	return packed.Unpack(keyRing)
}
