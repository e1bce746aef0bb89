// merkle.go implements the allowlist commitment: a binary Keccak-256 tree in
// which every internal node hashes its two children in ascending byte order.
// Because pairs are sorted, a proof is just the list of siblings from leaf to
// root and carries no left/right flags.
//
// Leaves are keccak256("<address>,<allocation>"), so the allocation ceiling
// a wallet may contribute is committed to by the root.
package crypto

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Thorstarter/thorstarter-terra/core/types"
)

var (
	// ErrInvalidProof covers malformed roots, malformed proof elements and
	// proofs that fold to the wrong root alike.
	ErrInvalidProof = errors.New("invalid merkle proof")
	ErrEmptyTree    = errors.New("merkle: no leaves")
	ErrUnknownLeaf  = errors.New("merkle: leaf not in tree")
)

// HashPair returns keccak256(min(a,b) || max(a,b)).
func HashPair(a, b types.Hash) types.Hash {
	if bytes.Compare(a[:], b[:]) < 0 {
		return Keccak256Hash(a[:], b[:])
	}
	return Keccak256Hash(b[:], a[:])
}

// LeafInput renders the preimage of an allowlist leaf.
func LeafInput(addr string, allocation types.Amount) []byte {
	return []byte(addr + "," + allocation.String())
}

// LeafHash returns the allowlist leaf for addr and allocation.
func LeafHash(addr string, allocation types.Amount) types.Hash {
	return Keccak256Hash(LeafInput(addr, allocation))
}

// FoldProof folds proof into leaf, left to right.
func FoldProof(leaf types.Hash, proof []types.Hash) types.Hash {
	h := leaf
	for _, sib := range proof {
		h = HashPair(h, sib)
	}
	return h
}

// VerifyProof checks that keccak256(leafInput) folds to root through the
// hex-encoded proof. Any element that is not exactly 64 hex characters makes
// the proof invalid.
func VerifyProof(root types.Hash, leafInput []byte, proof []string) error {
	siblings := make([]types.Hash, len(proof))
	for i, p := range proof {
		h, err := types.ParseHash(p)
		if err != nil {
			return ErrInvalidProof
		}
		siblings[i] = h
	}
	if FoldProof(Keccak256Hash(leafInput), siblings) != root {
		return ErrInvalidProof
	}
	return nil
}

// VerifyProofHex is VerifyProof with a hex-encoded root.
func VerifyProofHex(root string, leafInput []byte, proof []string) error {
	r, err := types.ParseHash(root)
	if err != nil {
		return ErrInvalidProof
	}
	return VerifyProof(r, leafInput, proof)
}

// MerkleTree is the reference construction for allowlist roots. Leaves are
// sorted before building and an unpaired node is promoted to the next level
// unchanged.
type MerkleTree struct {
	layers [][]types.Hash // layers[0] are the sorted leaves, the last holds the root
	index  map[types.Hash]int
}

// NewMerkleTree builds a tree over the given leaf hashes. Duplicate leaves
// are kept; Proof returns the path for the first occurrence.
func NewMerkleTree(leaves []types.Hash) (*MerkleTree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}
	level := make([]types.Hash, len(leaves))
	copy(level, leaves)
	sort.Slice(level, func(i, j int) bool {
		return bytes.Compare(level[i][:], level[j][:]) < 0
	})
	t := &MerkleTree{index: make(map[types.Hash]int, len(level))}
	for i := len(level) - 1; i >= 0; i-- {
		t.index[level[i]] = i
	}
	t.layers = append(t.layers, level)
	for len(level) > 1 {
		next := make([]types.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, HashPair(level[i], level[i+1]))
		}
		t.layers = append(t.layers, next)
		level = next
	}
	return t, nil
}

// Root returns the tree root.
func (t *MerkleTree) Root() types.Hash {
	return t.layers[len(t.layers)-1][0]
}

// Len returns the number of leaves.
func (t *MerkleTree) Len() int { return len(t.layers[0]) }

// Proof returns the sibling path for leaf. Promoted levels contribute no
// sibling.
func (t *MerkleTree) Proof(leaf types.Hash) ([]types.Hash, error) {
	idx, ok := t.index[leaf]
	if !ok {
		return nil, ErrUnknownLeaf
	}
	var proof []types.Hash
	for _, level := range t.layers[:len(t.layers)-1] {
		sib := idx ^ 1
		if sib < len(level) {
			proof = append(proof, level[sib])
		}
		idx /= 2
	}
	return proof, nil
}

// ProofHex is Proof rendered in wire form.
func (t *MerkleTree) ProofHex(leaf types.Hash) ([]string, error) {
	proof, err := t.Proof(leaf)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(proof))
	for i, h := range proof {
		out[i] = h.Hex()
	}
	return out, nil
}

// String renders the tree level by level, root last.
func (t *MerkleTree) String() string {
	var b strings.Builder
	for i, level := range t.layers {
		fmt.Fprintf(&b, "level %d:", i)
		for _, h := range level {
			b.WriteString(" " + h.Hex())
		}
		b.WriteByte('\n')
	}
	return b.String()
}
