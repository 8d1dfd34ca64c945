// Package types defines the SSZ container types shared by the Electra
// state transition, the fork-choice store and the lean chain: beacon
// state, blocks, attestations, the execution payload header, and the
// Electra pending-queue entries. Containers implement ssz.HashRoot by
// hand in the shape sszgen would generate (field-by-field Merkleization
// via a hasher pool), so callers never need the generator at build time.
package types

import (
	ssz "github.com/ferranbt/fastssz"

	"github.com/leancore/beacon/crypto/hash"
)

type (
	Slot            uint64
	Epoch           uint64
	CommitteeIndex  uint64
	ValidatorIndex  uint64
	Gwei            uint64
	Root            = hash.Root
	BLSPubkey       [48]byte
	BLSSignature    [96]byte
	Version         [4]byte
	DomainType      [4]byte
	Domain          [32]byte
	ForkDigest      [4]byte
	ExecutionAddr   [20]byte
	WithdrawalCreds [32]byte
	Bitlist         []byte
	Bitvector       []byte
)

// ZeroRoot is the all-zero 32-byte root used for genesis special-casing
// (spec.md §9 "Cyclic dependencies").
var ZeroRoot Root

func rootOf(v ssz.HashRoot) (Root, error) { return hash.HashTreeRootWith(v) }

// htr is the shared default-hasher helper every container's HashTreeRoot
// delegates to, matching the pattern sszgen emits per type.
func htr(v ssz.HashRoot) ([32]byte, error) { return ssz.HashWithDefaultHasher(v) }
