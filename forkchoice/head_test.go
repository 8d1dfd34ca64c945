package forkchoice

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leancore/beacon/types"
)

// TestGetHeadProposerBoostOutweighsEqualVotes exercises spec.md §4.2.7's
// proposer-boost rule: two sibling blocks with equal vote weight, where
// the later-arriving one carries the current slot's proposer boost, must
// win head selection over its equally-voted sibling.
func TestGetHeadProposerBoostOutweighsEqualVotes(t *testing.T) {
	s, cfg, genesisRoot := newTestStore(t, 4)

	blockA := &types.BeaconBlock{Slot: 1, ProposerIndex: 0, ParentRoot: genesisRoot}
	blockB := &types.BeaconBlock{Slot: 1, ProposerIndex: 1, ParentRoot: genesisRoot}
	rootA, err := blockA.HashTreeRoot()
	require.NoError(t, err)
	rootB, err := blockB.HashTreeRoot()
	require.NoError(t, err)

	genesisState := s.states[genesisRoot]

	s.blocks[types.Root(rootA)] = blockA
	s.blocks[types.Root(rootB)] = blockB
	s.states[types.Root(rootA)] = genesisState
	s.states[types.Root(rootB)] = genesisState
	s.children[genesisRoot] = []types.Root{types.Root(rootA), types.Root(rootB)}

	s.latestMessages = map[types.ValidatorIndex]LatestMessage{
		0: {Root: types.Root(rootA)},
		1: {Root: types.Root(rootB)},
	}

	// No boost: the tied vote weight leaves the lexicographically larger
	// root as head (computeWeights/getHead's deterministic tiebreak).
	s.proposerBoostRoot = types.ZeroRoot
	head, err := s.GetHead()
	require.NoError(t, err)
	require.True(t, head == types.Root(rootA) || head == types.Root(rootB))

	// Boosting B tips the scale even though both carry one validator's
	// worth of votes.
	s.proposerBoostRoot = types.Root(rootB)
	head, err = s.GetHead()
	require.NoError(t, err)
	require.Equal(t, types.Root(rootB), head)

	totalActive := uint64(4) * cfg.MinActivationBalance
	committeeWeight := totalActive / cfg.SlotsPerEpoch
	boost := committeeWeight * cfg.ProposerScoreBoost / 100
	require.Greater(t, boost, uint64(0))
}

func TestGetHeadErrorsWithoutJustifiedState(t *testing.T) {
	s, _, genesisRoot := newTestStore(t, 2)
	delete(s.states, genesisRoot)

	_, err := s.GetHead()
	require.Error(t, err)
}
