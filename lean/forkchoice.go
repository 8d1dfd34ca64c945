package lean

import (
	"sort"

	"github.com/leancore/beacon/errtypes"
	"github.com/leancore/beacon/types"
)

// isJustifiableSlot reports whether slot may be justified against
// finalizedSlot: every slot within 5 is justifiable, and beyond that only
// offsets landing on a perfect square or a square-plus-its-root ("pronic")
// boundary. This keeps the justification DAG's width bounded as the
// finalized/head gap grows instead of requiring a justifiable candidate
// every slot, per 3sf-mini's sparse justifiable-slot schedule.
func isJustifiableSlot(finalizedSlot, slot types.Slot) bool {
	if slot < finalizedSlot {
		return false
	}
	delta := uint64(slot - finalizedSlot)
	if delta <= 5 {
		return true
	}
	root := isqrt(delta)
	return root*root == delta || root*(root+1) == delta
}

func isqrt(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}

// forkChoiceHead walks the block tree from root, at each step descending
// into whichever child carries the most vote weight under votes, and
// stopping the moment the best child's weight falls below minScore.
// votes credits each validator's weight-1 vote to vote.Message.Head; used
// with the full latest_known_votes set and minScore 0 for the chain head,
// and with latest_new_votes and a 2/3-of-N floor for safe_target (spec.md
// §4.3.1), mirroring ream's get_fork_choice_head.
func (c *LeanChain) forkChoiceHead(votes map[uint64]types.SignedVote, root types.Root, minScore uint64) (types.Root, error) {
	if _, ok := c.blocks[root]; !ok {
		return types.Root{}, errtypes.Storage("lean_fork_choice_root_missing", nil)
	}

	weights := make(map[types.Root]uint64, len(c.blocks))
	for _, sv := range votes {
		head := sv.Message.Head.Root
		if _, ok := c.blocks[head]; ok {
			weights[head]++
		}
	}

	ordered := make([]types.Root, 0, len(c.blocks))
	for r := range c.blocks {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool { return c.blocks[ordered[i]].Slot > c.blocks[ordered[j]].Slot })
	for _, r := range ordered {
		parent := c.blocks[r].ParentRoot
		if _, ok := c.blocks[parent]; ok {
			weights[parent] += weights[r]
		}
	}

	current := root
	for {
		var best types.Root
		bestWeight := uint64(0)
		found := false
		for _, child := range c.children[current] {
			w := weights[child]
			if !found || w > bestWeight || (w == bestWeight && lexGreater(child, best)) {
				best, bestWeight, found = child, w, true
			}
		}
		if !found || bestWeight < minScore {
			return current, nil
		}
		current = best
	}
}

func lexGreater(a, b types.Root) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}
