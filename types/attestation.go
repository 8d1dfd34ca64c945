package types

import ssz "github.com/ferranbt/fastssz"

// AttestationData is the unsigned message a committee votes on.
type AttestationData struct {
	Slot            Slot
	Index           CommitteeIndex // always 0 post-Electra; committee comes from CommitteeBits.
	BeaconBlockRoot Root
	Source          Checkpoint
	Target          Checkpoint
}

func (a *AttestationData) HashTreeRoot() ([32]byte, error) { return htr(a) }

func (a *AttestationData) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutUint64(uint64(a.Slot))
	hh.PutUint64(uint64(a.Index))
	hh.PutBytes(a.BeaconBlockRoot[:])
	if err := a.Source.HashTreeRootWith(hh); err != nil {
		return err
	}
	if err := a.Target.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.Merkleize(indx)
	return nil
}

// Attestation is the Electra on-chain operation: a single AttestationData
// shared by every bit set across potentially several committees
// (CommitteeBits), with one flattened AggregationBits vector.
type Attestation struct {
	AggregationBits Bitlist
	Data            AttestationData
	Signature       BLSSignature
	CommitteeBits   Bitvector
}

const maxAttestingIndices = 131072

func (a *Attestation) HashTreeRoot() ([32]byte, error) { return htr(a) }

func (a *Attestation) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBitlist(a.AggregationBits, maxAttestingIndices)
	if err := a.Data.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.PutBytes(a.Signature[:])
	hh.PutBytes(a.CommitteeBits)
	hh.Merkleize(indx)
	return nil
}

// IndexedAttestation is the resolved, unaggregated-index form used for
// slashing detection and signature verification against a known state.
type IndexedAttestation struct {
	AttestingIndices []ValidatorIndex
	Data             AttestationData
	Signature        BLSSignature
}

func (a *IndexedAttestation) HashTreeRoot() ([32]byte, error) { return htr(a) }

func (a *IndexedAttestation) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	subIndx := hh.Index()
	for _, idx := range a.AttestingIndices {
		hh.PutUint64(uint64(idx))
	}
	hh.MerkleizeWithMixin(subIndx, uint64(len(a.AttestingIndices)), maxAttestingIndices)
	if err := a.Data.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.PutBytes(a.Signature[:])
	hh.Merkleize(indx)
	return nil
}

// AttesterSlashing pairs two indexed attestations alleged to be slashable
// (double vote or surround vote) under Casper FFG.
type AttesterSlashing struct {
	Attestation1 IndexedAttestation
	Attestation2 IndexedAttestation
}

func (s *AttesterSlashing) HashTreeRoot() ([32]byte, error) { return htr(s) }

func (s *AttesterSlashing) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	if err := s.Attestation1.HashTreeRootWith(hh); err != nil {
		return err
	}
	if err := s.Attestation2.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.Merkleize(indx)
	return nil
}

// IsSlashableAttestationData reports a double vote (same target epoch,
// different data) or a surround vote (one attestation's source/target
// interval strictly contains the other's).
func IsSlashableAttestationData(a, b *AttestationData) bool {
	doubleVote := *a != *b && a.Target.Epoch == b.Target.Epoch
	surroundVote := a.Source.Epoch < b.Source.Epoch && b.Target.Epoch < a.Target.Epoch
	return doubleVote || surroundVote
}

// ProposerSlashing pairs two conflicting signed headers from the same
// proposer at the same slot.
type ProposerSlashing struct {
	SignedHeader1 SignedBeaconBlockHeader
	SignedHeader2 SignedBeaconBlockHeader
}

type SignedBeaconBlockHeader struct {
	Message   BeaconBlockHeader
	Signature BLSSignature
}

func (s *SignedBeaconBlockHeader) HashTreeRoot() ([32]byte, error) { return htr(s) }

func (s *SignedBeaconBlockHeader) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	if err := s.Message.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.PutBytes(s.Signature[:])
	hh.Merkleize(indx)
	return nil
}

// VoluntaryExit and its signed wrapper let a validator exit before the
// consolidation/withdrawal queue forces it out.
type VoluntaryExit struct {
	Epoch          Epoch
	ValidatorIndex ValidatorIndex
}

func (v *VoluntaryExit) HashTreeRoot() ([32]byte, error) { return htr(v) }

func (v *VoluntaryExit) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutUint64(uint64(v.Epoch))
	hh.PutUint64(uint64(v.ValidatorIndex))
	hh.Merkleize(indx)
	return nil
}

type SignedVoluntaryExit struct {
	Message   VoluntaryExit
	Signature BLSSignature
}

func (s *SignedVoluntaryExit) HashTreeRoot() ([32]byte, error) { return htr(s) }

func (s *SignedVoluntaryExit) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	if err := s.Message.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.PutBytes(s.Signature[:])
	hh.Merkleize(indx)
	return nil
}

// BLSToExecutionChange migrates a validator's withdrawal credential from
// a BLS commitment to an execution address.
type BLSToExecutionChange struct {
	ValidatorIndex     ValidatorIndex
	FromBLSPubkey      BLSPubkey
	ToExecutionAddress ExecutionAddr
}

func (c *BLSToExecutionChange) HashTreeRoot() ([32]byte, error) { return htr(c) }

func (c *BLSToExecutionChange) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutUint64(uint64(c.ValidatorIndex))
	hh.PutBytes(c.FromBLSPubkey[:])
	hh.PutBytes(c.ToExecutionAddress[:])
	hh.Merkleize(indx)
	return nil
}

type SignedBLSToExecutionChange struct {
	Message   BLSToExecutionChange
	Signature BLSSignature
}

func (s *SignedBLSToExecutionChange) HashTreeRoot() ([32]byte, error) { return htr(s) }

func (s *SignedBLSToExecutionChange) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	if err := s.Message.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.PutBytes(s.Signature[:])
	hh.Merkleize(indx)
	return nil
}

// Deposit is a legacy eth1-log-derived deposit with its Merkle proof
// against Eth1Data.DepositRoot. Electra phases these out in favour of
// DepositRequest but the pre-Electra queue must still drain.
type DepositData struct {
	Pubkey                BLSPubkey
	WithdrawalCredentials WithdrawalCreds
	Amount                Gwei
	Signature             BLSSignature
}

func (d *DepositData) HashTreeRoot() ([32]byte, error) { return htr(d) }

func (d *DepositData) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(d.Pubkey[:])
	hh.PutBytes(d.WithdrawalCredentials[:])
	hh.PutUint64(uint64(d.Amount))
	hh.PutBytes(d.Signature[:])
	hh.Merkleize(indx)
	return nil
}

type Deposit struct {
	Proof [33]Root
	Data  DepositData
}

func (d *Deposit) HashTreeRoot() ([32]byte, error) { return htr(d) }

func (d *Deposit) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	subIndx := hh.Index()
	for _, r := range d.Proof {
		hh.PutBytes(r[:])
	}
	hh.Merkleize(subIndx)
	if err := d.Data.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.Merkleize(indx)
	return nil
}

// Electra execution-layer-triggered operations.
type DepositRequest struct {
	Pubkey                BLSPubkey
	WithdrawalCredentials WithdrawalCreds
	Amount                Gwei
	Signature             BLSSignature
	Index                 uint64
}

func (d *DepositRequest) HashTreeRoot() ([32]byte, error) { return htr(d) }

func (d *DepositRequest) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(d.Pubkey[:])
	hh.PutBytes(d.WithdrawalCredentials[:])
	hh.PutUint64(uint64(d.Amount))
	hh.PutBytes(d.Signature[:])
	hh.PutUint64(d.Index)
	hh.Merkleize(indx)
	return nil
}

type WithdrawalRequest struct {
	SourceAddress   ExecutionAddr
	ValidatorPubkey BLSPubkey
	Amount          Gwei
}

func (w *WithdrawalRequest) HashTreeRoot() ([32]byte, error) { return htr(w) }

func (w *WithdrawalRequest) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(w.SourceAddress[:])
	hh.PutBytes(w.ValidatorPubkey[:])
	hh.PutUint64(uint64(w.Amount))
	hh.Merkleize(indx)
	return nil
}

type ConsolidationRequest struct {
	SourceAddress ExecutionAddr
	SourcePubkey  BLSPubkey
	TargetPubkey  BLSPubkey
}

func (c *ConsolidationRequest) HashTreeRoot() ([32]byte, error) { return htr(c) }

func (c *ConsolidationRequest) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(c.SourceAddress[:])
	hh.PutBytes(c.SourcePubkey[:])
	hh.PutBytes(c.TargetPubkey[:])
	hh.Merkleize(indx)
	return nil
}

// ExecutionRequests bundles the three Electra request kinds carried
// alongside a payload for verify_and_notify_new_payload.
type ExecutionRequests struct {
	Deposits       []DepositRequest
	Withdrawals    []WithdrawalRequest
	Consolidations []ConsolidationRequest
}
