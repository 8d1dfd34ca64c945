// Package bls defines the pure BLS signature-verification trait consumed
// by the state transition and fork choice, and a production backend over
// supranational/blst using Ethereum's MinPk scheme (pubkeys in G1,
// signatures in G2). Key generation and signing are intentionally absent:
// this module only ever verifies and aggregates, per spec.md §2.3.
package bls

import (
	"errors"

	blst "github.com/supranational/blst/bindings/go"
)

// Ethereum's BLS signature domain separation tag (ciphersuite
// BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_), identical across every
// signature this module checks: proposer, randao reveal, attestation,
// sync committee, voluntary exit, BLS-to-execution change.
var dst = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_POP_")

const (
	PubkeySize    = 48
	SignatureSize = 96
)

var (
	ErrInvalidPubkey    = errors.New("bls: invalid public key encoding")
	ErrInvalidSignature = errors.New("bls: invalid signature encoding")
	ErrNoSignatures     = errors.New("bls: aggregate called with no signatures")
)

// Verifier is the capability interface the state transition and fork
// choice depend on. A mock implementation (see mock.go) satisfies it for
// tests without real pairing checks.
type Verifier interface {
	// Verify checks a single signature over msg by pubkey.
	Verify(pubkey, msg, sig []byte) bool
	// AggregateVerify checks an aggregate signature where pubkeys[i]
	// signed msgs[i].
	AggregateVerify(pubkeys [][]byte, msgs [][]byte, sig []byte) bool
	// FastAggregateVerify checks an aggregate signature where every
	// pubkey signed the same msg (used for sync committee aggregates).
	FastAggregateVerify(pubkeys [][]byte, msg []byte, sig []byte) bool
	// Aggregate combines signatures into a single aggregate signature.
	Aggregate(sigs [][]byte) ([]byte, error)
}

// Backend implements Verifier with the real blst library.
type Backend struct{}

var _ Verifier = (*Backend)(nil)

// NewBackend returns the production BLS backend.
func NewBackend() *Backend { return &Backend{} }

func (b *Backend) Verify(pubkey, msg, sig []byte) bool {
	if len(pubkey) != PubkeySize || len(sig) != SignatureSize {
		return false
	}
	pk := new(blst.P1Affine).Uncompress(pubkey)
	if pk == nil || !pk.KeyValidate() {
		return false
	}
	s := new(blst.P2Affine).Uncompress(sig)
	if s == nil {
		return false
	}
	return s.Verify(true, pk, true, msg, dst)
}

func (b *Backend) AggregateVerify(pubkeys [][]byte, msgs [][]byte, sig []byte) bool {
	n := len(pubkeys)
	if n == 0 || n != len(msgs) || len(sig) != SignatureSize {
		return false
	}
	s := new(blst.P2Affine).Uncompress(sig)
	if s == nil {
		return false
	}
	pks := make([]*blst.P1Affine, n)
	for i, pkb := range pubkeys {
		pk := new(blst.P1Affine).Uncompress(pkb)
		if pk == nil {
			return false
		}
		pks[i] = pk
	}
	return s.AggregateVerify(true, pks, true, msgs, dst)
}

func (b *Backend) FastAggregateVerify(pubkeys [][]byte, msg []byte, sig []byte) bool {
	if len(pubkeys) == 0 || len(sig) != SignatureSize {
		return false
	}
	s := new(blst.P2Affine).Uncompress(sig)
	if s == nil {
		return false
	}
	pks := make([]*blst.P1Affine, len(pubkeys))
	for i, pkb := range pubkeys {
		pk := new(blst.P1Affine).Uncompress(pkb)
		if pk == nil {
			return false
		}
		pks[i] = pk
	}
	return s.FastAggregateVerify(true, pks, true, msg, dst)
}

func (b *Backend) Aggregate(sigs [][]byte) ([]byte, error) {
	if len(sigs) == 0 {
		return nil, ErrNoSignatures
	}
	points := make([]*blst.P2Affine, 0, len(sigs))
	for _, s := range sigs {
		p := new(blst.P2Affine).Uncompress(s)
		if p == nil {
			return nil, ErrInvalidSignature
		}
		points = append(points, p)
	}
	agg := new(blst.P2Aggregate)
	if !agg.Aggregate(points, true) {
		return nil, errors.New("bls: aggregation failed")
	}
	out := agg.ToAffine().Compress()
	return out, nil
}
