package lnwire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

var (
	// ErrNilFeatureVector is returned when asked to write a nil feature
	// vector.
	ErrNilFeatureVector = errors.New("cannot write nil feature vector")

	// ErrNilPublicKey is returned when asked to write a nil public key.
	ErrNilPublicKey = errors.New("cannot write nil pubkey")
)

// All integers are written big-endian. The writers return an error to match
// the signature of the decoders even though a bytes.Buffer write can't fail.

// WriteUint8 appends a single byte.
func WriteUint8(buf *bytes.Buffer, n uint8) error {
	return buf.WriteByte(n)
}

// WriteUint16 appends n as 2 bytes.
func WriteUint16(buf *bytes.Buffer, n uint16) error {
	var scratch [2]byte
	return WriteBytes(buf, binary.BigEndian.AppendUint16(scratch[:0], n))
}

// WriteUint32 appends n as 4 bytes.
func WriteUint32(buf *bytes.Buffer, n uint32) error {
	var scratch [4]byte
	return WriteBytes(buf, binary.BigEndian.AppendUint32(scratch[:0], n))
}

// WriteUint64 appends n as 8 bytes.
func WriteUint64(buf *bytes.Buffer, n uint64) error {
	var scratch [8]byte
	return WriteBytes(buf, binary.BigEndian.AppendUint64(scratch[:0], n))
}

// WriteBool appends 0x01 for true and 0x00 for false.
func WriteBool(buf *bytes.Buffer, b bool) error {
	var v uint8
	if b {
		v = 1
	}

	return WriteUint8(buf, v)
}

// WriteBytes appends b verbatim, without a length prefix.
func WriteBytes(buf *bytes.Buffer, b []byte) error {
	_, err := buf.Write(b)
	return err
}

// WriteSatoshi appends an amount as a uint64.
func WriteSatoshi(buf *bytes.Buffer, amount btcutil.Amount) error {
	return WriteUint64(buf, uint64(amount))
}

// WritePublicKey appends the 33 byte compressed encoding of pub.
func WritePublicKey(buf *bytes.Buffer, pub *btcec.PublicKey) error {
	if pub == nil {
		return ErrNilPublicKey
	}

	return WriteBytes(buf, pub.SerializeCompressed())
}

// WriteChannelID appends the 32 bytes of a channel id.
func WriteChannelID(buf *bytes.Buffer, chanID ChannelID) error {
	return WriteBytes(buf, chanID[:])
}

// WriteShortChannelID appends the compact 8 byte form of scid.
func WriteShortChannelID(buf *bytes.Buffer, scid ShortChannelID) error {
	return WriteUint64(buf, scid.ToUint64())
}

// WriteOutPoint appends the txid followed by the output index. The index only
// gets 2 bytes on the wire, so larger indexes are refused.
func WriteOutPoint(buf *bytes.Buffer, op wire.OutPoint) error {
	if op.Index > MaxFundingTxOutputs {
		return fmt.Errorf("index for outpoint (%v) is greater than "+
			"max index of %v", op.Index, MaxFundingTxOutputs)
	}

	if err := WriteBytes(buf, op.Hash[:]); err != nil {
		return err
	}

	return WriteUint16(buf, uint16(op.Index))
}

// WriteRawFeatureVector appends the length prefixed bits of feature.
func WriteRawFeatureVector(buf *bytes.Buffer, feature *RawFeatureVector) error {
	if feature == nil {
		return ErrNilFeatureVector
	}

	return feature.Encode(buf)
}
