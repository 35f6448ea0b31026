package chanrescue

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/chanrescue/lnutils"
	"github.com/lightningnetwork/chanrescue/lnwire"
	"github.com/lightningnetwork/chanrescue/peer"
)

const (
	// outboxFileExt is the extension of every per peer outbox file.
	outboxFileExt = ".bin"

	// frameLenSize is the size of the length prefix of every frame.
	frameLenSize = 2
)

// OutboxSender is a peer.MessageSender that appends every message it is handed
// to a file named after the destination peer, for an external transport to
// deliver. Each frame is the message length as a big endian uint16, followed
// by the lnwire encoded message.
type OutboxSender struct {
	dir string

	// mu serializes writes, so frames of concurrent sends never
	// interleave.
	mu sync.Mutex
}

// A compile time check to ensure OutboxSender implements the MessageSender
// interface.
var _ peer.MessageSender = (*OutboxSender)(nil)

// NewOutboxSender creates an OutboxSender writing into dir, creating the
// directory if needed.
func NewOutboxSender(dir string) (*OutboxSender, error) {
	if err := lnutils.CreateDir(dir, 0700); err != nil {
		return nil, err
	}

	return &OutboxSender{dir: dir}, nil
}

// OutboxPath returns the path of the file messages to peer are written to.
func (o *OutboxSender) OutboxPath(peer *btcec.PublicKey) string {
	name := hex.EncodeToString(peer.SerializeCompressed()) + outboxFileExt

	return filepath.Join(o.dir, name)
}

// SendMessage appends msg to the outbox file of peer.
//
// NOTE: This is part of the peer.MessageSender interface.
func (o *OutboxSender) SendMessage(ctx context.Context,
	peer *btcec.PublicKey, msg lnwire.Message) error {

	if err := ctx.Err(); err != nil {
		return err
	}

	var b bytes.Buffer
	b.Write(make([]byte, frameLenSize))
	n, err := lnwire.WriteMessage(&b, msg, 0)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(b.Bytes()[:frameLenSize], uint16(n))

	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := os.OpenFile(
		o.OutboxPath(peer), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600,
	)
	if err != nil {
		return fmt.Errorf("unable to open outbox: %w", err)
	}

	if _, err := f.Write(b.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("unable to write outbox: %w", err)
	}

	return f.Close()
}

// ReadOutbox decodes every frame of an outbox file, in the order they were
// written.
func ReadOutbox(r io.Reader) ([]lnwire.Message, error) {
	var msgs []lnwire.Message
	for {
		var l [frameLenSize]byte
		_, err := io.ReadFull(r, l[:])
		switch {
		case errors.Is(err, io.EOF):
			return msgs, nil

		case err != nil:
			return nil, err
		}

		frame := make([]byte, binary.BigEndian.Uint16(l[:]))
		if _, err := io.ReadFull(r, frame); err != nil {
			return nil, fmt.Errorf("truncated frame: %w", err)
		}

		msg, err := lnwire.ReadMessage(bytes.NewReader(frame), 0)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
}
