package forkchoice

import (
	"github.com/leancore/beacon/errtypes"
	"github.com/leancore/beacon/state"
	"github.com/leancore/beacon/types"
)

// GetProposerHead returns headRoot's parent instead of headRoot iff every
// late-block reorg condition in spec.md §4.2.8 holds; otherwise it
// returns headRoot unchanged. proposerIsOnTime is supplied by the
// dispatcher driving block production, since on-time-ness is a property
// of the calling proposer's own clock, not of the store.
func (s *Store) GetProposerHead(headRoot types.Root, slot types.Slot, proposerIsOnTime bool) (types.Root, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	head, ok := s.blocks[headRoot]
	if !ok {
		return types.Root{}, errtypes.Ignoref("unknown_head", "head root %x not known", headRoot)
	}
	parentRoot := head.ParentRoot
	parent, ok := s.blocks[parentRoot]
	if !ok {
		return headRoot, nil
	}

	if !s.isLate(headRoot) {
		return headRoot, nil
	}
	if !s.cfg.IsShufflingStable(uint64(slot)) {
		return headRoot, nil
	}

	headState := s.states[headRoot]
	parentState := s.states[parentRoot]
	if headState == nil || parentState == nil {
		return headRoot, nil
	}
	if headState.CurrentJustifiedCheckpoint != parentState.CurrentJustifiedCheckpoint {
		return headRoot, nil
	}

	if s.currentEpoch()-s.finalizedCheckpoint.Epoch > types.Epoch(s.cfg.ReorgMaxEpochsSinceFinalization) {
		return headRoot, nil
	}
	if !proposerIsOnTime {
		return headRoot, nil
	}
	if parent.Slot+1 != head.Slot {
		return headRoot, nil
	}
	if s.proposerBoostRoot == headRoot {
		return headRoot, nil
	}

	weights := s.computeWeights()
	totalActive := state.TotalActiveBalance(s.cfg, s.states[s.justifiedCheckpoint.Root])
	committeeWeight := uint64(totalActive) / s.cfg.SlotsPerEpoch

	headWeightThreshold := committeeWeight * s.cfg.ReorgHeadWeightThreshold / 100
	parentWeightThreshold := committeeWeight * s.cfg.ReorgParentWeightThreshold / 100
	if weights[headRoot] >= headWeightThreshold {
		return headRoot, nil
	}
	if weights[parentRoot] <= parentWeightThreshold {
		return headRoot, nil
	}

	return parentRoot, nil
}

func (s *Store) isLate(root types.Root) bool {
	timely, ok := s.timely[root]
	return !ok || !timely
}
