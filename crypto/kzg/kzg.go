// Package kzg implements the blob/KZG-proof verification trait used by
// the data-availability handshake in forkchoice.OnBlock (spec.md §4.2.4).
// The production backend wraps crate-crypto/go-eth-kzg against the real
// Ethereum ceremony SRS; BLS/KZG primitives themselves are explicitly
// "consumed via trait" per spec.md §1, so no trusted-setup material lives
// in this repo.
package kzg

import (
	"errors"
	"fmt"

	goethkzg "github.com/crate-crypto/go-eth-kzg"
)

const (
	BytesPerBlob       = 131072
	BytesPerCommitment = 48
	BytesPerProof      = 48
)

var (
	ErrInvalidBlobSize  = errors.New("kzg: blob has wrong size")
	ErrLengthMismatch   = errors.New("kzg: blobs, commitments and proofs must have equal length")
)

// Commitment and Proof are the compressed G1 encodings used on the wire.
type Commitment [BytesPerCommitment]byte
type Proof [BytesPerProof]byte
type Blob [BytesPerBlob]byte

// Verifier is the capability interface the fork-choice store depends on
// for the data-availability check.
type Verifier interface {
	// VerifyBlobKZGProofBatch checks, for every i, that proofs[i] proves
	// blobs[i] opens to commitments[i]. All three slices must be the
	// same length, matching one KZG commitment per blob in a block's
	// blob_kzg_commitments list.
	VerifyBlobKZGProofBatch(blobs []Blob, commitments []Commitment, proofs []Proof) error
}

// Backend wraps a go-eth-kzg context initialized from the embedded
// Ethereum ceremony trusted setup.
type Backend struct {
	ctx *goethkzg.Context
}

var _ Verifier = (*Backend)(nil)

// NewBackend initializes the KZG context. This is deliberately not done
// at package init time: loading the SRS costs a few seconds and callers
// that never touch blobs (e.g. the lean chain) should not pay it.
func NewBackend() (*Backend, error) {
	ctx, err := goethkzg.NewContext4096Secure()
	if err != nil {
		return nil, fmt.Errorf("kzg: failed to initialize context: %w", err)
	}
	return &Backend{ctx: ctx}, nil
}

func (b *Backend) VerifyBlobKZGProofBatch(blobs []Blob, commitments []Commitment, proofs []Proof) error {
	if len(blobs) != len(commitments) || len(blobs) != len(proofs) {
		return ErrLengthMismatch
	}
	if len(blobs) == 0 {
		return nil
	}
	gblobs := make([]goethkzg.Blob, len(blobs))
	gcomms := make([]goethkzg.KZGCommitment, len(blobs))
	gproofs := make([]goethkzg.KZGProof, len(blobs))
	for i := range blobs {
		gblobs[i] = goethkzg.Blob(blobs[i])
		gcomms[i] = goethkzg.KZGCommitment(commitments[i])
		gproofs[i] = goethkzg.KZGProof(proofs[i])
	}
	if err := b.ctx.VerifyBlobKZGProofBatch(gblobs, gcomms, gproofs); err != nil {
		return fmt.Errorf("kzg: batch verification failed: %w", err)
	}
	return nil
}

// Mock accepts every batch whose proof bytes are non-zero, for tests that
// exercise the data-availability control flow without the real SRS.
type Mock struct {
	Reject bool
}

var _ Verifier = (*Mock)(nil)

func (m *Mock) VerifyBlobKZGProofBatch(blobs []Blob, commitments []Commitment, proofs []Proof) error {
	if len(blobs) != len(commitments) || len(blobs) != len(proofs) {
		return ErrLengthMismatch
	}
	if m.Reject {
		return errors.New("kzg: mock rejected batch")
	}
	for _, p := range proofs {
		var zero Proof
		if p == zero {
			return errors.New("kzg: mock rejected zero proof")
		}
	}
	return nil
}
