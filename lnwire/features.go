package lnwire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
)

// FeatureBit is a bit position in a BOLT-09 feature vector. Even bits mark a
// feature the peer must understand, odd bits one it may ignore.
type FeatureBit uint16

// The feature bits a recovering node cares about.
const (
	// DataLossProtectRequired and DataLossProtectOptional signal support
	// for option_data_loss_protect, the fields in channel_reestablish that
	// let a node that lost its state learn the peer's latest commitment
	// point.
	DataLossProtectRequired FeatureBit = 0
	DataLossProtectOptional FeatureBit = 1

	// StaticRemoteKeyRequired and StaticRemoteKeyOptional signal
	// option_static_remotekey, under which our output on the peer's
	// commitment pays to an untweaked key we can sweep from the seed
	// alone.
	StaticRemoteKeyRequired FeatureBit = 12
	StaticRemoteKeyOptional FeatureBit = 13
)

// maxAllowedSize caps an encoded feature vector. An init message carries two
// length prefixed vectors in at most 65533 bytes of payload, which leaves a
// bit under half of that for each of them.
const maxAllowedSize = 32764

// ErrFeatureVectorTooLarge is returned when an encoded feature vector would
// exceed maxAllowedSize.
var ErrFeatureVectorTooLarge = errors.New("feature vector too large")

// Features names the bits this package knows about.
var Features = map[FeatureBit]string{
	DataLossProtectRequired: "data-loss-protect",
	DataLossProtectOptional: "data-loss-protect",
	StaticRemoteKeyRequired: "static-remote-key",
	StaticRemoteKeyOptional: "static-remote-key",
}

// String returns the name of the feature followed by its bit position.
func (b FeatureBit) String() string {
	name, ok := Features[b]
	if !ok {
		name = "unknown"
	}

	return fmt.Sprintf("%s(%d)", name, uint16(b))
}

// RawFeatureVector is a set of feature bits without any notion of which bits
// depend on each other.
type RawFeatureVector struct {
	features map[FeatureBit]struct{}
}

// NewRawFeatureVector returns a vector with the given bits set.
func NewRawFeatureVector(bits ...FeatureBit) *RawFeatureVector {
	fv := &RawFeatureVector{
		features: make(map[FeatureBit]struct{}, len(bits)),
	}
	for _, bit := range bits {
		fv.Set(bit)
	}

	return fv
}

// EmptyFeatureVector returns a vector with no bits set.
func EmptyFeatureVector() *RawFeatureVector {
	return NewRawFeatureVector()
}

// IsSet reports whether bit is set.
func (fv *RawFeatureVector) IsSet(bit FeatureBit) bool {
	_, ok := fv.features[bit]
	return ok
}

// Set sets bit.
func (fv *RawFeatureVector) Set(bit FeatureBit) {
	fv.features[bit] = struct{}{}
}

// IsEmpty reports whether no bit is set.
func (fv *RawFeatureVector) IsEmpty() bool {
	return len(fv.features) == 0
}

// Features returns the set bits in ascending order.
func (fv *RawFeatureVector) Features() []FeatureBit {
	bits := make([]FeatureBit, 0, len(fv.features))
	for bit := range fv.features {
		bits = append(bits, bit)
	}
	slices.Sort(bits)

	return bits
}

// Merge sets every bit of other in fv. A nil other is a no-op.
func (fv *RawFeatureVector) Merge(other *RawFeatureVector) {
	if other == nil {
		return
	}

	for bit := range other.features {
		fv.Set(bit)
	}
}

// SerializeSize returns the number of bytes needed to hold the highest set
// bit.
func (fv *RawFeatureVector) SerializeSize() int {
	if fv.IsEmpty() {
		return 0
	}

	highest := slices.Max(fv.Features())

	return int(highest)/8 + 1
}

// Encode writes the vector as a 2 byte length followed by the bits, with bit 0
// being the least significant bit of the last byte.
func (fv *RawFeatureVector) Encode(w io.Writer) error {
	size := fv.SerializeSize()
	if size > maxAllowedSize {
		return ErrFeatureVectorTooLarge
	}

	encoded := make([]byte, 2+size)
	binary.BigEndian.PutUint16(encoded, uint16(size))

	bits := encoded[2:]
	for bit := range fv.features {
		bits[size-1-int(bit)/8] |= 1 << (bit % 8)
	}

	_, err := w.Write(encoded)
	return err
}

// Decode reads a vector written by Encode and sets its bits in fv.
func (fv *RawFeatureVector) Decode(r io.Reader) error {
	var sizeBytes [2]byte
	if _, err := io.ReadFull(r, sizeBytes[:]); err != nil {
		return err
	}

	bits := make([]byte, binary.BigEndian.Uint16(sizeBytes[:]))
	if _, err := io.ReadFull(r, bits); err != nil {
		return err
	}

	// The last byte holds bits 0 through 7.
	for i := range bits {
		b := bits[len(bits)-1-i]
		for j := 0; j < 8; j++ {
			if b&(1<<j) != 0 {
				fv.Set(FeatureBit(i*8 + j))
			}
		}
	}

	return nil
}
