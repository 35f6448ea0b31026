package lnutils

import (
	"encoding/hex"
	"log/slog"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btclog/v2"
	"github.com/davecgh/go-spew/spew"
)

// LogClosure defers building a log string until the logger actually formats
// it, so disabled log levels cost nothing.
type LogClosure func() string

// String implements fmt.Stringer.
func (c LogClosure) String() string {
	return c()
}

// NewLogClosure wraps fn in a LogClosure.
func NewLogClosure(fn func() string) LogClosure {
	return LogClosure(fn)
}

// SpewLogClosure dumps v with spew, but only once the result is needed.
func SpewLogClosure(v any) LogClosure {
	return func() string {
		return spew.Sdump(v)
	}
}

// PubKeyLogClosure renders the full compressed hex encoding of a node key.
func PubKeyLogClosure(pubKey *btcec.PublicKey) LogClosure {
	return func() string {
		if pubKey == nil {
			return "<nil>"
		}

		return hex.EncodeToString(pubKey.SerializeCompressed())
	}
}

// LogPubKey returns a structured attribute holding the first bytes of a node
// key, which is enough to tell peers apart in the logs.
func LogPubKey(key string, pubKey *btcec.PublicKey) slog.Attr {
	if pubKey == nil {
		return btclog.Fmt(key, "<nil>")
	}

	return btclog.Hex6(key, pubKey.SerializeCompressed())
}

// LogOutPoint returns a structured attribute for a funding outpoint.
func LogOutPoint(key string, op wire.OutPoint) slog.Attr {
	return slog.String(key, op.String())
}
