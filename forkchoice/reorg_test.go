package forkchoice

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leancore/beacon/types"
)

// TestGetProposerHeadReorgsAroundLateWeakHead exercises spec.md §4.2.8's
// late-block reorg: a head that arrived outside its slot, carries no
// votes, and sits atop a heavily-voted parent should be skipped in favor
// of proposing directly on the parent.
func TestGetProposerHeadReorgsAroundLateWeakHead(t *testing.T) {
	s, cfg, genesisRoot := newTestStore(t, 4)

	parentBlock := &types.BeaconBlock{Slot: types.Slot(cfg.SlotsPerEpoch - 1), ParentRoot: genesisRoot}
	parentRoot, err := parentBlock.HashTreeRoot()
	require.NoError(t, err)

	headBlock := &types.BeaconBlock{Slot: types.Slot(cfg.SlotsPerEpoch), ParentRoot: types.Root(parentRoot)}
	headRoot, err := headBlock.HashTreeRoot()
	require.NoError(t, err)

	genesisState := s.states[genesisRoot]
	s.blocks[types.Root(parentRoot)] = parentBlock
	s.blocks[types.Root(headRoot)] = headBlock
	s.states[types.Root(parentRoot)] = genesisState
	s.states[types.Root(headRoot)] = genesisState
	s.children[types.Root(parentRoot)] = []types.Root{types.Root(headRoot)}

	// Every validator's latest vote still targets the parent: the late
	// head carries no weight of its own.
	s.latestMessages = map[types.ValidatorIndex]LatestMessage{
		0: {Root: types.Root(parentRoot)},
		1: {Root: types.Root(parentRoot)},
		2: {Root: types.Root(parentRoot)},
		3: {Root: types.Root(parentRoot)},
	}

	proposingSlot := types.Slot(cfg.SlotsPerEpoch + 1)
	got, err := s.GetProposerHead(types.Root(headRoot), proposingSlot, true)
	require.NoError(t, err)
	require.Equal(t, types.Root(parentRoot), got)
}

func TestGetProposerHeadKeepsHeadWhenProposerIsLate(t *testing.T) {
	s, cfg, genesisRoot := newTestStore(t, 4)

	parentBlock := &types.BeaconBlock{Slot: types.Slot(cfg.SlotsPerEpoch - 1), ParentRoot: genesisRoot}
	parentRoot, err := parentBlock.HashTreeRoot()
	require.NoError(t, err)

	headBlock := &types.BeaconBlock{Slot: types.Slot(cfg.SlotsPerEpoch), ParentRoot: types.Root(parentRoot)}
	headRoot, err := headBlock.HashTreeRoot()
	require.NoError(t, err)

	genesisState := s.states[genesisRoot]
	s.blocks[types.Root(parentRoot)] = parentBlock
	s.blocks[types.Root(headRoot)] = headBlock
	s.states[types.Root(parentRoot)] = genesisState
	s.states[types.Root(headRoot)] = genesisState

	proposingSlot := types.Slot(cfg.SlotsPerEpoch + 1)
	got, err := s.GetProposerHead(types.Root(headRoot), proposingSlot, false)
	require.NoError(t, err)
	require.Equal(t, types.Root(headRoot), got)
}

func TestGetProposerHeadReturnsHeadWhenTimely(t *testing.T) {
	s, cfg, genesisRoot := newTestStore(t, 4)

	parentBlock := &types.BeaconBlock{Slot: types.Slot(cfg.SlotsPerEpoch - 1), ParentRoot: genesisRoot}
	parentRoot, err := parentBlock.HashTreeRoot()
	require.NoError(t, err)

	headBlock := &types.BeaconBlock{Slot: types.Slot(cfg.SlotsPerEpoch), ParentRoot: types.Root(parentRoot)}
	headRoot, err := headBlock.HashTreeRoot()
	require.NoError(t, err)

	genesisState := s.states[genesisRoot]
	s.blocks[types.Root(parentRoot)] = parentBlock
	s.blocks[types.Root(headRoot)] = headBlock
	s.states[types.Root(parentRoot)] = genesisState
	s.states[types.Root(headRoot)] = genesisState
	s.timely[types.Root(headRoot)] = true

	proposingSlot := types.Slot(cfg.SlotsPerEpoch + 1)
	got, err := s.GetProposerHead(types.Root(headRoot), proposingSlot, true)
	require.NoError(t, err)
	require.Equal(t, types.Root(headRoot), got)
}
