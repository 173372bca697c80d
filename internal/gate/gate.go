// Package gate implements the API key gate: shape validation, digest
// lookup, and the atomic daily-quota charge.
package gate

import (
	"context"
	"encoding/hex"
	"errors"
	"regexp"

	"golang.org/x/crypto/sha3"

	"github.com/tooldex/tooldex/internal/store"
	"github.com/tooldex/tooldex/pkg/models"
)

// KeyPrefix is the fixed, recognizable prefix of every issued key.
const KeyPrefix = "tdx_"

// displayPrefixLen is how much of the raw key is kept for display. Long
// enough to identify a key in support conversations, far too short to
// recover it.
const displayPrefixLen = 12

// ErrMalformedKey means the presented key does not have the
// <prefix><uuid-v4> shape. Rejected before hashing or any store access,
// which bounds the cost of key-guessing traffic.
var ErrMalformedKey = errors.New("malformed api key")

var keyPattern = regexp.MustCompile(
	`^tdx_[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// Digest returns the hex SHA3-256 digest of a raw key. Deterministic so
// the store can look up and charge the key in one transaction.
func Digest(raw string) string {
	sum := sha3.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// DisplayPrefix returns the short, non-reversible prefix stored for
// display.
func DisplayPrefix(raw string) string {
	if len(raw) < displayPrefixLen {
		return raw
	}
	return raw[:displayPrefixLen]
}

// Gate validates presented keys and charges them against their daily
// quota.
type Gate struct {
	store store.Store
}

// NewGate creates a Gate over the given store.
func NewGate(s store.Store) *Gate {
	return &Gate{store: s}
}

// Check validates the key shape, digests it, and performs the atomic
// charge. On success it returns the usage snapshot with remaining quota.
// Failure modes: ErrMalformedKey, store.ErrKeyNotFound,
// store.ErrKeyDisabled, store.ErrQuotaExceeded, or a store error.
func (g *Gate) Check(ctx context.Context, raw string) (*models.KeyUsage, error) {
	if !keyPattern.MatchString(raw) {
		return nil, ErrMalformedKey
	}
	return g.store.UseAPIKey(ctx, Digest(raw))
}
