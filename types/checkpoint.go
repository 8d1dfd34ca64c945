package types

import ssz "github.com/ferranbt/fastssz"

// Checkpoint pins an epoch boundary to the block root that was canonical
// at that epoch's first slot, per spec.md §3.
type Checkpoint struct {
	Epoch Epoch
	Root  Root
}

var GenesisCheckpoint = Checkpoint{Epoch: 0, Root: ZeroRoot}

func (c *Checkpoint) HashTreeRoot() ([32]byte, error) { return htr(c) }

func (c *Checkpoint) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutUint64(uint64(c.Epoch))
	hh.PutBytes(c.Root[:])
	hh.Merkleize(indx)
	return nil
}

// Fork records the current and previous fork versions and the epoch the
// current one activated at.
type Fork struct {
	PreviousVersion Version
	CurrentVersion  Version
	Epoch           Epoch
}

func (f *Fork) HashTreeRoot() ([32]byte, error) { return htr(f) }

func (f *Fork) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(f.PreviousVersion[:])
	hh.PutBytes(f.CurrentVersion[:])
	hh.PutUint64(uint64(f.Epoch))
	hh.Merkleize(indx)
	return nil
}

// BeaconBlockHeader is the lightweight block envelope cached in
// BeaconState.LatestBlockHeader and the ring buffers.
type BeaconBlockHeader struct {
	Slot          Slot
	ProposerIndex ValidatorIndex
	ParentRoot    Root
	StateRoot     Root
	BodyRoot      Root
}

func (h *BeaconBlockHeader) HashTreeRoot() ([32]byte, error) { return htr(h) }

func (h *BeaconBlockHeader) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutUint64(uint64(h.Slot))
	hh.PutUint64(uint64(h.ProposerIndex))
	hh.PutBytes(h.ParentRoot[:])
	hh.PutBytes(h.StateRoot[:])
	hh.PutBytes(h.BodyRoot[:])
	hh.Merkleize(indx)
	return nil
}

func (h *BeaconBlockHeader) Copy() *BeaconBlockHeader {
	cp := *h
	return &cp
}

// Eth1Data tracks the deposit-contract state a proposer votes on.
type Eth1Data struct {
	DepositRoot  Root
	DepositCount uint64
	BlockHash    Root
}

func (e *Eth1Data) HashTreeRoot() ([32]byte, error) { return htr(e) }

func (e *Eth1Data) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(e.DepositRoot[:])
	hh.PutUint64(e.DepositCount)
	hh.PutBytes(e.BlockHash[:])
	hh.Merkleize(indx)
	return nil
}
