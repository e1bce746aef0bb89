package crypto

import (
	"hash"
	"sync"

	"github.com/Thorstarter/thorstarter-terra/core/types"
	"golang.org/x/crypto/sha3"
)

var hasherPool = sync.Pool{
	New: func() any { return sha3.NewLegacyKeccak256() },
}

// Keccak256Hash hashes the concatenation of data. Allowlist leaves and
// interior nodes are both hashed through it, so hashers are pooled.
func Keccak256Hash(data ...[]byte) (h types.Hash) {
	d := hasherPool.Get().(hash.Hash)
	d.Reset()
	for _, b := range data {
		d.Write(b)
	}
	d.Sum(h[:0])
	hasherPool.Put(d)
	return h
}
