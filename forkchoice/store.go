// Package forkchoice implements the LMD-GHOST fork-choice store: block
// and attestation ingestion, proposer boost, the justified/finalized
// checkpoint machinery, and the late-block reorg policy. Grounded on the
// teacher's ForkChoiceStoreV3-shaped design in the research fork
// (wyf-ACCEPT-eth2030's fork_choice_store.go): a mutex-protected block
// tree plus a latest-message table, with weights recomputed on demand
// rather than kept incrementally consistent.
package forkchoice

import (
	"sync"

	"github.com/leancore/beacon/config"
	"github.com/leancore/beacon/crypto/kzg"
	"github.com/leancore/beacon/errtypes"
	"github.com/leancore/beacon/execution"
	"github.com/leancore/beacon/state"
	"github.com/leancore/beacon/storage"
	"github.com/leancore/beacon/types"
)

// LatestMessage is the most recent attestation target a validator's vote
// has been credited towards.
type LatestMessage struct {
	Epoch types.Epoch
	Root  types.Root
}

// Store is the single-owner fork-choice actor for one beacon chain.
// Every exported method acquires mu, matching spec.md §5's "single write
// critical section per fork-choice operation," except CurrentSlot, which
// reads the clock fields without locking and is called from locked methods.
type Store struct {
	cfg *config.Config
	v   state.Verifiers
	kzg kzg.Verifier
	kv  storage.KVStore

	mu sync.Mutex

	blocks   map[types.Root]*types.BeaconBlock
	states   map[types.Root]*types.BeaconState
	children map[types.Root][]types.Root
	timely   map[types.Root]bool

	time        uint64
	genesisTime uint64

	justifiedCheckpoint           types.Checkpoint
	finalizedCheckpoint           types.Checkpoint
	unrealizedJustifiedCheckpoint types.Checkpoint
	unrealizedFinalizedCheckpoint types.Checkpoint
	proposerBoostRoot             types.Root
	head                          types.Root

	latestMessages      map[types.ValidatorIndex]LatestMessage
	equivocatingIndices map[types.ValidatorIndex]bool

	blobCache map[types.VersionedHash]*execution.BlobAndProof
}

// New anchors a fresh Store at genesisState, which must already be a
// valid Electra genesis (state.GenesisFromDeposits output). The anchor
// block is a zero-body block at slot 0 whose state root is the genesis
// state's own root, mirroring the teacher's NewGenesisBlock convention.
func New(cfg *config.Config, v state.Verifiers, kzgVerifier kzg.Verifier, kv storage.KVStore, genesisState *types.BeaconState) (*Store, error) {
	stateRoot, err := genesisState.HashTreeRoot()
	if err != nil {
		return nil, errtypes.Storage("genesis_state_root", err)
	}
	genesisBlock := &types.BeaconBlock{StateRoot: types.Root(stateRoot)}
	genesisRoot, err := genesisBlock.HashTreeRoot()
	if err != nil {
		return nil, errtypes.Storage("genesis_block_root", err)
	}

	anchorCheckpoint := types.Checkpoint{Epoch: 0, Root: types.Root(genesisRoot)}
	s := &Store{
		cfg: cfg, v: v, kzg: kzgVerifier, kv: kv,
		blocks:   map[types.Root]*types.BeaconBlock{types.Root(genesisRoot): genesisBlock},
		states:   map[types.Root]*types.BeaconState{types.Root(genesisRoot): genesisState},
		children: make(map[types.Root][]types.Root),
		timely:   map[types.Root]bool{types.Root(genesisRoot): true},

		genesisTime: genesisState.GenesisTime,
		time:        genesisState.GenesisTime,

		justifiedCheckpoint:           anchorCheckpoint,
		finalizedCheckpoint:           anchorCheckpoint,
		unrealizedJustifiedCheckpoint: anchorCheckpoint,
		unrealizedFinalizedCheckpoint: anchorCheckpoint,

		latestMessages:      make(map[types.ValidatorIndex]LatestMessage),
		equivocatingIndices: make(map[types.ValidatorIndex]bool),
		blobCache:           make(map[types.VersionedHash]*execution.BlobAndProof),
	}

	if kv != nil {
		// The on-disk encoding of a block/state is out of scope (spec.md
		// Non-goals: "on-disk KV engine internals"); the store only
		// anchors the genesis root so GetHighestSlot and Contains work
		// against a real backend from slot 0 onward.
		if err := kv.Insert(storage.TableBeaconBlock, types.Root(genesisRoot), storage.EncodeSlotPrefixed(0, nil)); err != nil {
			return nil, errtypes.Storage("genesis_persist_block", err)
		}
		if err := kv.PutSingleton(storage.SingletonGenesisTime, encodeUint64(genesisState.GenesisTime)); err != nil {
			return nil, errtypes.Storage("genesis_persist_time", err)
		}
	}
	return s, nil
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

// PutBlobs caches a block's data-availability inputs ahead of on_block,
// the way gossip delivery would populate the store before the block
// itself arrives.
func (s *Store) PutBlobs(versionedHash types.VersionedHash, bp *execution.BlobAndProof) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobCache[versionedHash] = bp
}

// CurrentSlot derives the slot store.time falls in.
func (s *Store) CurrentSlot() types.Slot {
	return types.Slot((s.time - s.genesisTime) / s.cfg.SecondsPerSlot)
}

func (s *Store) currentEpoch() types.Epoch {
	return types.Epoch(s.cfg.EpochAtSlot(uint64(s.CurrentSlot())))
}

// Block/State/Checkpoints are read-only snapshots for callers (head
// selection, RPC-shaped queries) that do not need their own lock.
func (s *Store) Block(root types.Root) (*types.BeaconBlock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[root]
	return b, ok
}

func (s *Store) State(root types.Root) (*types.BeaconState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[root]
	return st, ok
}

func (s *Store) JustifiedCheckpoint() types.Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.justifiedCheckpoint
}

func (s *Store) FinalizedCheckpoint() types.Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalizedCheckpoint
}

func (s *Store) ProposerBoostRoot() types.Root {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proposerBoostRoot
}

// ancestorAt walks parent links from root down to the block whose slot
// is at or below target, returning the first one found (the ancestor at
// or immediately preceding target's slot, per get_ancestor semantics).
// Must be called with mu held.
func (s *Store) ancestorAt(root types.Root, target types.Slot) (types.Root, bool) {
	for {
		block, ok := s.blocks[root]
		if !ok {
			return types.Root{}, false
		}
		if block.Slot <= target {
			return root, true
		}
		root = block.ParentRoot
	}
}

// updateCheckpoints adopts a new justified/finalized pair as realized,
// per on_tick's epoch-boundary step and on_block's pulled-up-tip step.
// Must be called with mu held.
func (s *Store) updateCheckpoints(justified, finalized types.Checkpoint) {
	if justified.Epoch > s.justifiedCheckpoint.Epoch {
		s.justifiedCheckpoint = justified
	}
	if finalized.Epoch > s.finalizedCheckpoint.Epoch {
		s.finalizedCheckpoint = finalized
	}
}
