package bls

// Mock is a test double for Verifier. It treats any non-empty signature
// as valid unless Reject has been set, matching the "mock implementation
// for tests" design note in spec.md §9: tests that exercise consensus
// rules around signatures without paying for real pairing checks use
// this instead of Backend.
type Mock struct {
	Reject bool
}

var _ Verifier = (*Mock)(nil)

func (m *Mock) Verify(pubkey, msg, sig []byte) bool {
	return !m.Reject && len(pubkey) > 0 && len(sig) > 0
}

func (m *Mock) AggregateVerify(pubkeys [][]byte, msgs [][]byte, sig []byte) bool {
	return !m.Reject && len(pubkeys) > 0 && len(pubkeys) == len(msgs) && len(sig) > 0
}

func (m *Mock) FastAggregateVerify(pubkeys [][]byte, msg []byte, sig []byte) bool {
	return !m.Reject && len(pubkeys) > 0 && len(sig) > 0
}

func (m *Mock) Aggregate(sigs [][]byte) ([]byte, error) {
	if len(sigs) == 0 {
		return nil, ErrNoSignatures
	}
	return sigs[0], nil
}
