package types

import ssz "github.com/ferranbt/fastssz"

const syncCommitteeSize = 512

// SyncCommittee holds the 512 validator pubkeys (plus their aggregate)
// active for one sync-committee period.
type SyncCommittee struct {
	Pubkeys         [syncCommitteeSize]BLSPubkey
	AggregatePubkey BLSPubkey
}

func (s *SyncCommittee) HashTreeRoot() ([32]byte, error) { return htr(s) }

func (s *SyncCommittee) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	subIndx := hh.Index()
	for i := range s.Pubkeys {
		hh.PutBytes(s.Pubkeys[i][:])
	}
	hh.Merkleize(subIndx)
	hh.PutBytes(s.AggregatePubkey[:])
	hh.Merkleize(indx)
	return nil
}

// SyncAggregate is the per-block attestation by the current sync
// committee to the previous slot's block root.
type SyncAggregate struct {
	SyncCommitteeBits      Bitvector
	SyncCommitteeSignature BLSSignature
}

func (s *SyncAggregate) HashTreeRoot() ([32]byte, error) { return htr(s) }

func (s *SyncAggregate) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(s.SyncCommitteeBits)
	hh.PutBytes(s.SyncCommitteeSignature[:])
	hh.Merkleize(indx)
	return nil
}
