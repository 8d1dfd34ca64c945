// Package hash implements the pure Hasher component: SSZ tree-hash roots
// and SHA-256 concatenation hashing. It wraps fastssz's generated-marshaler
// contract rather than reimplementing Merkleization, matching how the
// teacher's shared/ssz and (in the modern examples) ferranbt/fastssz are
// consumed as a library, not vendored.
package hash

import (
	"crypto/sha256"

	ssz "github.com/ferranbt/fastssz"
)

// Root is a 32-byte Merkle or SHA-256 root.
type Root [32]byte

// HashTreeRooter is implemented by every SSZ container this module
// defines (BeaconState, BeaconBlock, Checkpoint, lean Block, ...). Types
// generated against fastssz satisfy ssz.HashRoot directly; this interface
// exists so packages outside crypto/hash never import fastssz themselves.
type HashTreeRooter interface {
	HashTreeRoot() ([32]byte, error)
}

// TreeHashRoot computes the SSZ hash-tree-root of v.
func TreeHashRoot(v HashTreeRooter) (Root, error) {
	r, err := v.HashTreeRoot()
	if err != nil {
		return Root{}, err
	}
	return Root(r), nil
}

// HashTreeRootWith tree-hashes v with a fastssz hasher freshly allocated
// (ssz.NewHasher) on every call.
func HashTreeRootWith(v ssz.HashRoot) (Root, error) {
	hh := ssz.NewHasher()
	if err := v.HashTreeRootWith(hh); err != nil {
		return Root{}, err
	}
	root, err := hh.HashRoot()
	if err != nil {
		return Root{}, err
	}
	return Root(root), nil
}

// Hash64 concatenates a and b and returns the SHA-256 digest, the
// per-level primitive of the deposit Merkle proof verification.
func Hash64(a, b [32]byte) Root {
	h := sha256.New()
	h.Write(a[:])
	h.Write(b[:])
	var out Root
	copy(out[:], h.Sum(nil))
	return out
}

// HashBytes is a plain SHA-256 over arbitrary-length input, used for
// fork-data and signing roots, the randao reveal mix, KZG versioned
// hashes and BLS withdrawal-credential checks.
func HashBytes(b []byte) Root {
	return Root(sha256.Sum256(b))
}
