// Package sha1 derives article keys from SHA-1 digests.
package sha1

import (
	"crypto/sha1" //nolint:gosec // keys must stay compatible with existing stores
	"math/big"

	"github.com/JakeFAU/sbnation-corpus/internal/corpus"
)

var keyModulus = big.NewInt(100_000_000)

// Keyer implements harvester.Keyer by reducing the SHA-1 digest of the
// concatenated date, title, and author modulo 10^8.
type Keyer struct{}

// New returns a SHA-1 keyer.
func New() *Keyer {
	return &Keyer{}
}

// Key returns the identity of an article listing.
func (k *Keyer) Key(date, title, author string) corpus.Key {
	sum := sha1.Sum([]byte(date + title + author)) //nolint:gosec // see import
	n := new(big.Int).SetBytes(sum[:])
	return corpus.Key(n.Mod(n, keyModulus).Uint64())
}

// KeyOf is a convenience wrapper around Key for an ArticleInfo.
func (k *Keyer) KeyOf(info corpus.ArticleInfo) corpus.Key {
	return k.Key(info.Date, info.Title, info.Author)
}
