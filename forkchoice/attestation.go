package forkchoice

import (
	"github.com/leancore/beacon/errtypes"
	"github.com/leancore/beacon/state"
	"github.com/leancore/beacon/types"
)

// OnAttestation validates and applies an attestation's vote, per
// spec.md §4.2.5. isFromBlock relaxes the current/previous-epoch target
// check, since an attestation carried inside a block was already bound
// by the block's own inclusion-window rule.
func (s *Store) OnAttestation(att *types.IndexedAttestation, isFromBlock bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onAttestation(att, isFromBlock)
}

func (s *Store) onAttestation(att *types.IndexedAttestation, isFromBlock bool) error {
	data := att.Data
	targetEpoch := data.Target.Epoch

	if !isFromBlock {
		currentEpoch := s.currentEpoch()
		previousEpoch := currentEpoch
		if currentEpoch > 0 {
			previousEpoch--
		}
		if targetEpoch != currentEpoch && targetEpoch != previousEpoch {
			return errtypes.Validationf("attestation_target_epoch_invalid", "target epoch %d not in {%d,%d}", targetEpoch, previousEpoch, currentEpoch)
		}
	}
	if targetEpoch != state.EpochAtSlot(s.cfg, data.Slot) {
		return errtypes.Validationf("attestation_target_slot_mismatch", "target.epoch must equal epoch_at_slot(slot)")
	}
	if _, ok := s.blocks[data.Target.Root]; !ok {
		return errtypes.Ignoref("unknown_target_root", "target root %x not known", data.Target.Root)
	}
	if _, ok := s.blocks[data.BeaconBlockRoot]; !ok {
		return errtypes.Ignoref("unknown_head_root", "beacon_block_root %x not known", data.BeaconBlockRoot)
	}
	headBlock := s.blocks[data.BeaconBlockRoot]
	if headBlock.Slot > data.Slot {
		return errtypes.Validationf("attestation_head_slot_after_data_slot", "head block slot %d is after attestation slot %d", headBlock.Slot, data.Slot)
	}
	targetFirstSlot := state.StartSlotAtEpoch(s.cfg, targetEpoch)
	ancestorAtTargetSlot, ok := s.ancestorAt(data.BeaconBlockRoot, targetFirstSlot)
	if !ok || ancestorAtTargetSlot != data.Target.Root {
		return errtypes.Validationf("attestation_target_not_ancestor", "target root is not the epoch-boundary ancestor of beacon_block_root")
	}
	if s.CurrentSlot() < data.Slot+1 {
		return errtypes.Ignoref("attestation_too_early", "current slot %d has not reached attestation slot+1 (%d)", s.CurrentSlot(), data.Slot+1)
	}

	targetState, err := s.stateAtCheckpoint(data.Target)
	if err != nil {
		return err
	}
	if err := state.VerifyIndexedAttestation(s.cfg, s.v.BLS, targetState, att); err != nil {
		return err
	}

	for _, idx := range att.AttestingIndices {
		if s.equivocatingIndices[idx] {
			continue
		}
		existing, ok := s.latestMessages[idx]
		if !ok || targetEpoch > existing.Epoch {
			s.latestMessages[idx] = LatestMessage{Epoch: targetEpoch, Root: data.BeaconBlockRoot}
		}
	}
	return nil
}

// stateAtCheckpoint materializes the state at checkpoint.Root's target,
// advancing a clone with ProcessSlots if the cached state predates the
// checkpoint's epoch-boundary slot.
func (s *Store) stateAtCheckpoint(cp types.Checkpoint) (*types.BeaconState, error) {
	base, ok := s.states[cp.Root]
	if !ok {
		return nil, errtypes.Ignoref("unknown_checkpoint_root", "checkpoint root %x not known", cp.Root)
	}
	targetSlot := state.StartSlotAtEpoch(s.cfg, cp.Epoch)
	if base.Slot >= targetSlot {
		return base, nil
	}
	clone := base.Copy()
	if err := state.ProcessSlots(s.cfg, clone, targetSlot); err != nil {
		return nil, errtypes.Storage("checkpoint_state_advance", err)
	}
	return clone, nil
}

