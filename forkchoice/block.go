package forkchoice

import (
	"context"
	"fmt"

	"github.com/leancore/beacon/config"
	"github.com/leancore/beacon/crypto/kzg"
	"github.com/leancore/beacon/errtypes"
	"github.com/leancore/beacon/state"
	"github.com/leancore/beacon/storage"
	"github.com/leancore/beacon/types"
)

// OnBlock validates and inserts a signed block, per spec.md §4.2.3. It
// clones the parent's post-state, runs the full state transition with
// result validation on (the proposer signature is always checked), and folds
// the new block's realized and unrealized checkpoints into the store.
func (s *Store) OnBlock(ctx context.Context, signed *types.SignedBeaconBlock) error {
	block := &signed.Message

	s.mu.Lock()
	defer s.mu.Unlock()

	parentState, ok := s.states[block.ParentRoot]
	if !ok {
		return errtypes.Ignoref("unknown_parent", "parent %x is not known to the store", block.ParentRoot)
	}
	if block.Slot > s.CurrentSlot() {
		return errtypes.Ignoref("future_slot", "block slot %d exceeds current slot %d", block.Slot, s.CurrentSlot())
	}
	finalizedSlot := state.StartSlotAtEpoch(s.cfg, s.finalizedCheckpoint.Epoch)
	if block.Slot <= finalizedSlot {
		return errtypes.Validationf("block_not_after_finalized", "slot %d is at or before the finalized slot %d", block.Slot, finalizedSlot)
	}
	if ancestor, ok := s.ancestorAt(block.ParentRoot, finalizedSlot); !ok || ancestor != s.finalizedCheckpoint.Root {
		return errtypes.Validationf("finalized_not_ancestor", "finalized root is not an ancestor of the block's parent")
	}

	if err := s.checkDataAvailability(ctx, block); err != nil {
		return err
	}

	postState := parentState.Copy()
	if err := state.StateTransition(s.cfg, s.v, postState, signed, true); err != nil {
		return err
	}

	blockRoot, err := block.HashTreeRoot()
	if err != nil {
		return errtypes.Storage("block_root", err)
	}
	root := types.Root(blockRoot)

	arrivalSlot := s.CurrentSlot()
	secondsIntoSlot := (s.time - s.genesisTime) % s.cfg.SecondsPerSlot
	isTimely := arrivalSlot == block.Slot && secondsIntoSlot*s.cfg.IntervalsPerSlot < s.cfg.SecondsPerSlot

	s.blocks[root] = block
	s.states[root] = postState
	s.children[block.ParentRoot] = append(s.children[block.ParentRoot], root)
	s.timely[root] = isTimely

	if isTimely && s.proposerBoostRoot == types.ZeroRoot {
		s.proposerBoostRoot = root
	}

	s.updateCheckpoints(postState.CurrentJustifiedCheckpoint, postState.FinalizedCheckpoint)

	unrealizedJustified, unrealizedFinalized, err := pulledUpTip(s.cfg, postState)
	if err != nil {
		return err
	}
	if unrealizedJustified.Epoch > s.unrealizedJustifiedCheckpoint.Epoch {
		s.unrealizedJustifiedCheckpoint = unrealizedJustified
	}
	if unrealizedFinalized.Epoch > s.unrealizedFinalizedCheckpoint.Epoch {
		s.unrealizedFinalizedCheckpoint = unrealizedFinalized
	}
	if state.EpochAtSlot(s.cfg, block.Slot) < s.currentEpoch() {
		s.updateCheckpoints(unrealizedJustified, unrealizedFinalized)
	}

	if s.kv != nil {
		if err := s.kv.Insert(storage.TableBeaconBlock, root, storage.EncodeSlotPrefixed(block.Slot, nil)); err != nil {
			return errtypes.Storage("persist_block", err)
		}
	}
	return nil
}

// pulledUpTip advances a scratch copy of postState to the first slot of
// the next epoch (triggering epoch processing along the way) to read off
// the checkpoints the block's chain would realize once that epoch turns
// over, per the "unrealized justified/finalized" step of on_block.
func pulledUpTip(cfg *config.Config, postState *types.BeaconState) (types.Checkpoint, types.Checkpoint, error) {
	epoch := state.EpochAtSlot(cfg, postState.Slot)
	nextEpochSlot := state.StartSlotAtEpoch(cfg, epoch+1)
	if postState.Slot >= nextEpochSlot {
		return postState.CurrentJustifiedCheckpoint, postState.FinalizedCheckpoint, nil
	}
	scratch := postState.Copy()
	if err := state.ProcessSlots(cfg, scratch, nextEpochSlot); err != nil {
		return types.Checkpoint{}, types.Checkpoint{}, errtypes.Storage("pulled_up_tip", err)
	}
	return scratch.CurrentJustifiedCheckpoint, scratch.FinalizedCheckpoint, nil
}

// checkDataAvailability resolves every blob_kzg_commitment in block to a
// cached or freshly fetched (blob, proof) pair and verifies the whole
// batch, per spec.md §4.2.4.
func (s *Store) checkDataAvailability(ctx context.Context, block *types.BeaconBlock) error {
	commitments := block.Body.BlobKZGCommitments
	if len(commitments) == 0 {
		return nil
	}

	var missing []types.VersionedHash
	seen := make(map[types.VersionedHash]bool, len(commitments))
	for _, c := range commitments {
		vh := state.CommitmentToVersionedHash(c)
		if seen[vh] {
			continue
		}
		seen[vh] = true
		if _, ok := s.blobCache[vh]; !ok {
			missing = append(missing, vh)
		}
	}

	if len(missing) > 0 {
		fetched, err := s.v.Engine.GetBlobs(ctx, missing)
		if err != nil {
			return errtypes.EngineUnavailable(err)
		}
		if len(fetched) != len(missing) {
			return errtypes.EngineUnavailable(fmt.Errorf("engine returned %d blobs for %d requested", len(fetched), len(missing)))
		}
		for i, vh := range missing {
			if fetched[i] == nil {
				return errtypes.Ignoref("blobs_unavailable", "blob %x is not yet available", vh)
			}
			s.blobCache[vh] = fetched[i]
		}
	}

	blobs := make([]kzg.Blob, len(commitments))
	comms := make([]kzg.Commitment, len(commitments))
	proofs := make([]kzg.Proof, len(commitments))
	for i, c := range commitments {
		bp := s.blobCache[state.CommitmentToVersionedHash(c)]
		blobs[i] = kzg.Blob(bp.Blob)
		comms[i] = kzg.Commitment(c)
		proofs[i] = kzg.Proof(bp.Proof)
	}
	if err := s.kzg.VerifyBlobKZGProofBatch(blobs, comms, proofs); err != nil {
		return errtypes.Validationf("blob_kzg_proof_invalid", "%v", err)
	}
	return nil
}
