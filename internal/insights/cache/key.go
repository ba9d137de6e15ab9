package cache

import (
	"crypto/sha256"
	"encoding/hex"

	"pulse/internal/insights/models"
)

// Key identifies one cached result: the result kind plus a digest of the
// canonical filter signature. Equivalent filters always produce the same key.
type Key struct {
	Kind   models.ResultKind
	Digest string
}

// KeyFor derives the cache key for a result kind under the given filters.
func KeyFor(kind models.ResultKind, filters models.FilterSignature) Key {
	sum := sha256.Sum256([]byte(filters.Canonical()))
	return Key{Kind: kind, Digest: hex.EncodeToString(sum[:])}
}

func (k Key) String() string {
	return string(k.Kind) + ":" + k.Digest
}
