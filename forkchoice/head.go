package forkchoice

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/leancore/beacon/errtypes"
	"github.com/leancore/beacon/state"
	"github.com/leancore/beacon/types"
)

var log = logrus.WithField("prefix", "forkchoice")

// GetHead runs LMD-GHOST from the justified root, per spec.md §4.2.7.
func (s *Store) GetHead() (types.Root, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getHead()
}

func (s *Store) getHead() (types.Root, error) {
	if _, ok := s.states[s.justifiedCheckpoint.Root]; !ok {
		return types.Root{}, errtypes.Storage("head_missing_justified_state", nil)
	}

	viable := make(map[types.Root]bool)
	s.filterBlockTree(s.justifiedCheckpoint.Root, viable)
	weights := s.computeWeights()

	current := s.justifiedCheckpoint.Root
	for {
		var candidates []types.Root
		for _, c := range s.children[current] {
			if viable[c] {
				candidates = append(candidates, c)
			}
		}
		if len(candidates) == 0 {
			s.reportHead(current, weights[current])
			return current, nil
		}
		best := candidates[0]
		for _, c := range candidates[1:] {
			if weights[c] > weights[best] || (weights[c] == weights[best] && lexGreater(c, best)) {
				best = c
			}
		}
		current = best
	}
}

// reportHead logs and records the newly selected head, mirroring the
// teacher's per-epoch log.Infof calls and ream's HEAD_SLOT gauge update
// in lean_chain's update_head.
func (s *Store) reportHead(root types.Root, weight uint64) {
	slot := types.Slot(0)
	if block, ok := s.blocks[root]; ok {
		slot = block.Slot
	}
	if root != s.head {
		log.Infof("New head %x at slot %d, weight %d", root, slot, weight)
		s.head = root
	}
	headSlotGauge.Set(float64(slot))
	headWeightGauge.Set(float64(weight))
}

func lexGreater(a, b types.Root) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

// filterBlockTree keeps root (and records it into out) iff it has at
// least one viable descendant, or — for leaves — its voting source is
// the justified checkpoint, within two epochs of it, or in the genesis
// epoch, and the finalized root is still an ancestor. Mirrors the
// real get_voting_source / filter_block_tree recursion from spec.md
// §4.2.7, simplified to use each block's own post-state justified
// checkpoint as its voting source rather than a separately tracked
// per-block unrealized checkpoint (documented in DESIGN.md).
func (s *Store) filterBlockTree(root types.Root, out map[types.Root]bool) bool {
	children := s.children[root]
	if len(children) > 0 {
		any := false
		for _, c := range children {
			if s.filterBlockTree(c, out) {
				any = true
			}
		}
		if any {
			out[root] = true
			return true
		}
		return false
	}

	st, ok := s.states[root]
	if !ok {
		return false
	}
	votingSource := st.CurrentJustifiedCheckpoint
	currentEpoch := s.currentEpoch()
	correctJustified := s.justifiedCheckpoint.Epoch == 0 ||
		votingSource.Epoch == s.justifiedCheckpoint.Epoch ||
		(votingSource.Epoch+2 >= currentEpoch && s.justifiedCheckpoint.Epoch+2 >= currentEpoch)

	finalizedSlot := state.StartSlotAtEpoch(s.cfg, s.finalizedCheckpoint.Epoch)
	ancestor, ancestorOK := s.ancestorAt(root, finalizedSlot)
	correctFinalized := s.finalizedCheckpoint.Epoch == 0 || (ancestorOK && ancestor == s.finalizedCheckpoint.Root)

	if correctJustified && correctFinalized {
		out[root] = true
		return true
	}
	return false
}

// computeWeights returns, per root, the effective-balance sum of every
// unslashed non-equivocating validator whose latest message has root as
// an ancestor, plus proposer-boost weight for root and every ancestor
// of the current proposer_boost_root.
func (s *Store) computeWeights() map[types.Root]uint64 {
	weights := make(map[types.Root]uint64, len(s.blocks))
	justifiedState := s.states[s.justifiedCheckpoint.Root]

	for idx, msg := range s.latestMessages {
		if s.equivocatingIndices[idx] {
			continue
		}
		if _, ok := s.blocks[msg.Root]; !ok {
			continue
		}
		if int(idx) >= len(justifiedState.Validators) {
			continue
		}
		v := justifiedState.Validators[idx]
		if v.Slashed {
			continue
		}
		weights[msg.Root] += uint64(v.EffectiveBalance)
	}

	ordered := make([]types.Root, 0, len(s.blocks))
	for r := range s.blocks {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool { return s.blocks[ordered[i]].Slot > s.blocks[ordered[j]].Slot })
	for _, r := range ordered {
		parent := s.blocks[r].ParentRoot
		if _, ok := s.blocks[parent]; ok {
			weights[parent] += weights[r]
		}
	}

	if s.proposerBoostRoot != types.ZeroRoot {
		totalActive := state.TotalActiveBalance(s.cfg, justifiedState)
		committeeWeight := uint64(totalActive) / s.cfg.SlotsPerEpoch
		boost := committeeWeight * s.cfg.ProposerScoreBoost / 100

		cur := s.proposerBoostRoot
		for {
			weights[cur] += boost
			block, ok := s.blocks[cur]
			if !ok {
				break
			}
			if _, ok := s.blocks[block.ParentRoot]; !ok {
				break
			}
			cur = block.ParentRoot
		}
	}
	return weights
}
