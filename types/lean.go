package types

import ssz "github.com/ferranbt/fastssz"

// Lean-chain list limits, per ream's ssz_types typenums (U262144 /
// U1073741824 / U4096): historical slot history is bounded to 2^18
// entries and the flattened justification bitlist to 2^30 bits.
const (
	LeanHistoryLimit            = 262144
	LeanJustificationBitsLimit  = 1073741824
	LeanValidatorRegistryLimit  = 4096
)

// LeanCheckpoint mirrors Checkpoint but keeps the lean chain's types
// independent from the Electra consensus package, matching how the two
// protocols are never supposed to share wire-format assumptions.
type LeanCheckpoint struct {
	Root Root
	Slot Slot
}

func (c *LeanCheckpoint) HashTreeRoot() ([32]byte, error) { return htr(c) }

func (c *LeanCheckpoint) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(c.Root[:])
	hh.PutUint64(uint64(c.Slot))
	hh.Merkleize(indx)
	return nil
}

// LeanBlockHeader is the lean chain's lightweight block envelope.
type LeanBlockHeader struct {
	Slot       Slot
	ProposerIndex ValidatorIndex
	ParentRoot Root
	StateRoot  Root
	BodyRoot   Root
}

func (h *LeanBlockHeader) HashTreeRoot() ([32]byte, error) { return htr(h) }

func (h *LeanBlockHeader) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutUint64(uint64(h.Slot))
	hh.PutUint64(uint64(h.ProposerIndex))
	hh.PutBytes(h.ParentRoot[:])
	hh.PutBytes(h.StateRoot[:])
	hh.PutBytes(h.BodyRoot[:])
	hh.Merkleize(indx)
	return nil
}

func (h *LeanBlockHeader) Copy() *LeanBlockHeader { cp := *h; return &cp }

// Vote is the lean chain's attestation message: a validator's claim that
// target descends from source, observed via head at slot.
type Vote struct {
	ValidatorID uint64
	Slot        Slot
	Head        LeanCheckpoint
	Target      LeanCheckpoint
	Source      LeanCheckpoint
}

func (v *Vote) HashTreeRoot() ([32]byte, error) { return htr(v) }

func (v *Vote) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutUint64(v.ValidatorID)
	hh.PutUint64(uint64(v.Slot))
	if err := v.Head.HashTreeRootWith(hh); err != nil {
		return err
	}
	if err := v.Target.HashTreeRootWith(hh); err != nil {
		return err
	}
	if err := v.Source.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.Merkleize(indx)
	return nil
}

type SignedVote struct {
	Message   Vote
	Signature BLSSignature
}

func (s *SignedVote) HashTreeRoot() ([32]byte, error) { return htr(s) }

func (s *SignedVote) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	if err := s.Message.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.PutBytes(s.Signature[:])
	hh.Merkleize(indx)
	return nil
}

// LeanBlockBody carries the votes a lean proposer pulls in at proposal
// time (spec.md §4.3.3).
type LeanBlockBody struct {
	Attestations []SignedVote
}

func (b *LeanBlockBody) HashTreeRoot() ([32]byte, error) { return htr(b) }

func (b *LeanBlockBody) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	sub := hh.Index()
	for i := range b.Attestations {
		if err := b.Attestations[i].HashTreeRootWith(hh); err != nil {
			return err
		}
	}
	hh.MerkleizeWithMixin(sub, uint64(len(b.Attestations)), LeanValidatorRegistryLimit)
	hh.Merkleize(indx)
	return nil
}

type LeanBlock struct {
	Slot          Slot
	ProposerIndex ValidatorIndex
	ParentRoot    Root
	StateRoot     Root
	Body          LeanBlockBody
}

func (b *LeanBlock) HashTreeRoot() ([32]byte, error) { return htr(b) }

func (b *LeanBlock) HashTreeRootWith(hh *ssz.Hasher) error {
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

func (b *LeanBlock) Header() (*LeanBlockHeader, error) {
	bodyRoot, err := rootOf(&b.Body)
	if err != nil {
		return nil, err
	}
	return &LeanBlockHeader{
		Slot: b.Slot, ProposerIndex: b.ProposerIndex,
		ParentRoot: b.ParentRoot, StateRoot: b.StateRoot, BodyRoot: bodyRoot,
	}, nil
}

type SignedLeanBlock struct {
	Message   LeanBlock
	Signature BLSSignature
}

func (s *SignedLeanBlock) HashTreeRoot() ([32]byte, error) { return htr(s) }

func (s *SignedLeanBlock) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	if err := s.Message.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.PutBytes(s.Signature[:])
	hh.Merkleize(indx)
	return nil
}

// LeanConfig is the tiny config container embedded in LeanState itself
// (distinct from config.Config, which holds the beacon-chain presets).
type LeanConfig struct {
	NumValidators uint64
	GenesisTime   uint64
}

func (c *LeanConfig) HashTreeRoot() ([32]byte, error) { return htr(c) }

func (c *LeanConfig) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutUint64(c.NumValidators)
	hh.PutUint64(c.GenesisTime)
	hh.Merkleize(indx)
	return nil
}

// LeanState is the lean chain's state container (spec.md §3). The
// justification map is stored flattened as parallel roots/bitlist
// sections; Justifications()/SetJustifications() on the lean package
// reconstruct the map/write it back, matching ream's
// get_justifications/set_justifications.
type LeanState struct {
	Config LeanConfig
	Slot   Slot

	LatestBlockHeader LeanBlockHeader

	LatestJustified LeanCheckpoint
	LatestFinalized LeanCheckpoint

	HistoricalBlockHashes []Root
	JustifiedSlots        []bool

	JustificationsRoots      []Root
	JustificationsValidators Bitlist
}

func (s *LeanState) HashTreeRoot() ([32]byte, error) { return htr(s) }

func (s *LeanState) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	if err := s.Config.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.PutUint64(uint64(s.Slot))
	if err := s.LatestBlockHeader.HashTreeRootWith(hh); err != nil {
		return err
	}
	if err := s.LatestJustified.HashTreeRootWith(hh); err != nil {
		return err
	}
	if err := s.LatestFinalized.HashTreeRootWith(hh); err != nil {
		return err
	}
	{
		sub := hh.Index()
		for i := range s.HistoricalBlockHashes {
			hh.PutBytes(s.HistoricalBlockHashes[i][:])
		}
		hh.MerkleizeWithMixin(sub, uint64(len(s.HistoricalBlockHashes)), LeanHistoryLimit)
	}
	{
		sub := hh.Index()
		for _, v := range s.JustifiedSlots {
			hh.PutBool(v)
		}
		hh.MerkleizeWithMixin(sub, uint64(len(s.JustifiedSlots)), LeanHistoryLimit)
	}
	{
		sub := hh.Index()
		for i := range s.JustificationsRoots {
			hh.PutBytes(s.JustificationsRoots[i][:])
		}
		hh.MerkleizeWithMixin(sub, uint64(len(s.JustificationsRoots)), LeanHistoryLimit)
	}
	hh.PutBitlist(s.JustificationsValidators, LeanJustificationBitsLimit)
	hh.Merkleize(indx)
	return nil
}

func (s *LeanState) Copy() *LeanState {
	cp := *s
	cp.LatestBlockHeader = *s.LatestBlockHeader.Copy()
	cp.HistoricalBlockHashes = append([]Root(nil), s.HistoricalBlockHashes...)
	cp.JustifiedSlots = append([]bool(nil), s.JustifiedSlots...)
	cp.JustificationsRoots = append([]Root(nil), s.JustificationsRoots...)
	cp.JustificationsValidators = append(Bitlist(nil), s.JustificationsValidators...)
	return &cp
}
