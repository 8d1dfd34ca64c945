package types

import ssz "github.com/ferranbt/fastssz"

const (
	maxProposerSlashings      = 16
	maxAttesterSlashingsElectra = 1
	maxAttestationsElectra      = 8
	maxDeposits                 = 16
	maxVoluntaryExits           = 16
	maxBLSToExecutionChanges    = 16
)

// BeaconBlockBody holds every operation list a proposer may include,
// plus the execution payload, sync aggregate and Electra request bundle.
type BeaconBlockBody struct {
	RandaoReveal          BLSSignature
	Eth1Data              Eth1Data
	Graffiti              [32]byte
	ProposerSlashings     []ProposerSlashing
	AttesterSlashings     []AttesterSlashing
	Attestations          []Attestation
	Deposits              []Deposit
	VoluntaryExits        []SignedVoluntaryExit
	SyncAggregate         SyncAggregate
	ExecutionPayload      ExecutionPayload
	BLSToExecutionChanges []SignedBLSToExecutionChange
	BlobKZGCommitments    [][48]byte
	ExecutionRequests     ExecutionRequests
}

func (b *BeaconBlockBody) HashTreeRoot() ([32]byte, error) { return htr(b) }

func (b *BeaconBlockBody) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(b.RandaoReveal[:])
	if err := b.Eth1Data.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.PutBytes(b.Graffiti[:])

	{
		sub := hh.Index()
		for i := range b.ProposerSlashings {
			psIndx := hh.Index()
			if err := b.ProposerSlashings[i].SignedHeader1.HashTreeRootWith(hh); err != nil {
				return err
			}
			if err := b.ProposerSlashings[i].SignedHeader2.HashTreeRootWith(hh); err != nil {
				return err
			}
			hh.Merkleize(psIndx)
		}
		hh.MerkleizeWithMixin(sub, uint64(len(b.ProposerSlashings)), maxProposerSlashings)
	}
	{
		sub := hh.Index()
		for i := range b.AttesterSlashings {
			if err := b.AttesterSlashings[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(sub, uint64(len(b.AttesterSlashings)), maxAttesterSlashingsElectra)
	}
	{
		sub := hh.Index()
		for i := range b.Attestations {
			if err := b.Attestations[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(sub, uint64(len(b.Attestations)), maxAttestationsElectra)
	}
	{
		sub := hh.Index()
		for i := range b.Deposits {
			if err := b.Deposits[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(sub, uint64(len(b.Deposits)), maxDeposits)
	}
	{
		sub := hh.Index()
		for i := range b.VoluntaryExits {
			if err := b.VoluntaryExits[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(sub, uint64(len(b.VoluntaryExits)), maxVoluntaryExits)
	}
	if err := b.SyncAggregate.HashTreeRootWith(hh); err != nil {
		return err
	}
	if err := b.ExecutionPayload.HashTreeRootWith(hh); err != nil {
		return err
	}
	{
		sub := hh.Index()
		for i := range b.BLSToExecutionChanges {
			if err := b.BLSToExecutionChanges[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(sub, uint64(len(b.BLSToExecutionChanges)), maxBLSToExecutionChanges)
	}
	{
		sub := hh.Index()
		for _, c := range b.BlobKZGCommitments {
			hh.PutBytes(c[:])
		}
		hh.MerkleizeWithMixin(sub, uint64(len(b.BlobKZGCommitments)), maxBlobCommitmentsPerBlock)
	}
	hh.Merkleize(indx)
	return nil
}

// BeaconBlock is the unsigned proposal; StateRoot is zero until filled in
// by the proposer after running the transition on a scratch copy.
type BeaconBlock struct {
	Slot          Slot
	ProposerIndex ValidatorIndex
	ParentRoot    Root
	StateRoot     Root
	Body          BeaconBlockBody
}

func (b *BeaconBlock) HashTreeRoot() ([32]byte, error) { return htr(b) }

func (b *BeaconBlock) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutUint64(uint64(b.Slot))
	hh.PutUint64(uint64(b.ProposerIndex))
	hh.PutBytes(b.ParentRoot[:])
	hh.PutBytes(b.StateRoot[:])
	if err := b.Body.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.Merkleize(indx)
	return nil
}

// Header returns the lightweight envelope of b with BodyRoot filled in.
func (b *BeaconBlock) Header() (*BeaconBlockHeader, error) {
	bodyRoot, err := rootOf(&b.Body)
	if err != nil {
		return nil, err
	}
	return &BeaconBlockHeader{
		Slot: b.Slot, ProposerIndex: b.ProposerIndex,
		ParentRoot: b.ParentRoot, StateRoot: b.StateRoot, BodyRoot: bodyRoot,
	}, nil
}

type SignedBeaconBlock struct {
	Message   BeaconBlock
	Signature BLSSignature
}

func (s *SignedBeaconBlock) HashTreeRoot() ([32]byte, error) { return htr(s) }

func (s *SignedBeaconBlock) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	if err := s.Message.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.PutBytes(s.Signature[:])
	hh.Merkleize(indx)
	return nil
}
