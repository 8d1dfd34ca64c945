package forkchoice

import "github.com/leancore/beacon/types"

// OnTick advances store.time, per spec.md §4.2.2. Time never moves
// backwards; an out-of-order tick is dropped rather than rejected,
// matching the "out-of-order ticks are dropped" ordering guarantee in
// §5 rather than surfacing as a validation error.
func (s *Store) OnTick(time uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time <= s.time {
		return
	}
	previousSlot := s.CurrentSlot()
	previousEpoch := s.currentEpoch()

	s.time = time

	if s.CurrentSlot() != previousSlot {
		s.proposerBoostRoot = types.ZeroRoot
	}
	if s.currentEpoch() != previousEpoch {
		s.updateCheckpoints(s.unrealizedJustifiedCheckpoint, s.unrealizedFinalizedCheckpoint)
	}
}
