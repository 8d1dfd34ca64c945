package lean

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leancore/beacon/types"
)

func TestNewAnchorsAtGenesis(t *testing.T) {
	genesisBlock, genesisState := newGenesis(t, 3)

	chain, err := New(genesisBlock, genesisState, nil)
	require.NoError(t, err)

	genesisRoot, err := genesisBlock.Message.HashTreeRoot()
	require.NoError(t, err)

	require.Equal(t, types.Root(genesisRoot), chain.Head())
	require.Equal(t, types.Root(genesisRoot), chain.SafeTarget())

	st, ok := chain.State(types.Root(genesisRoot))
	require.True(t, ok)
	require.Equal(t, uint64(3), st.Config.NumValidators)
}

func TestNewRejectsStateRootMismatch(t *testing.T) {
	genesisBlock, genesisState := newGenesis(t, 3)
	genesisBlock.Message.StateRoot = types.Root{0xFF}

	_, err := New(genesisBlock, genesisState, nil)
	require.Error(t, err)
}

func TestProposeBlockThenOnBlockAdvancesHead(t *testing.T) {
	genesisBlock, genesisState := newGenesis(t, 3)
	chain, err := New(genesisBlock, genesisState, nil)
	require.NoError(t, err)

	proposed, err := chain.ProposeBlock(1)
	require.NoError(t, err)
	require.Equal(t, types.Slot(1), proposed.Slot)
	require.Equal(t, types.ValidatorIndex(1), proposed.ProposerIndex)
	require.Equal(t, chain.Head(), proposed.ParentRoot)

	signed := &types.SignedLeanBlock{Message: *proposed}
	require.NoError(t, chain.OnBlock(signed))

	blockRoot, err := proposed.HashTreeRoot()
	require.NoError(t, err)
	require.Equal(t, types.Root(blockRoot), chain.Head())

	_, ok := chain.Block(types.Root(blockRoot))
	require.True(t, ok)
}

func TestOnBlockRejectsUnknownParent(t *testing.T) {
	genesisBlock, genesisState := newGenesis(t, 3)
	chain, err := New(genesisBlock, genesisState, nil)
	require.NoError(t, err)

	orphan := &types.SignedLeanBlock{Message: types.LeanBlock{
		Slot: 5, ProposerIndex: 2, ParentRoot: types.Root{0x99},
	}}
	require.Error(t, chain.OnBlock(orphan))
}

func TestBuildVoteUsesHeadAndJustified(t *testing.T) {
	genesisBlock, genesisState := newGenesis(t, 3)
	chain, err := New(genesisBlock, genesisState, nil)
	require.NoError(t, err)

	vote, err := chain.BuildVote(0, 1)
	require.NoError(t, err)
	require.Equal(t, chain.Head(), vote.Head.Root)
	require.Equal(t, genesisState.LatestJustified, vote.Source)
}

func TestOnAttestationFromGossipKeepsHighestSlot(t *testing.T) {
	genesisBlock, genesisState := newGenesis(t, 3)
	chain, err := New(genesisBlock, genesisState, nil)
	require.NoError(t, err)

	low := types.SignedVote{Message: types.Vote{ValidatorID: 7, Slot: 1}}
	high := types.SignedVote{Message: types.Vote{ValidatorID: 7, Slot: 4}}

	chain.OnAttestationFromGossip(low)
	chain.OnAttestationFromGossip(high)

	require.Equal(t, types.Slot(4), chain.latestNewVotes[7].Message.Slot)

	stale := types.SignedVote{Message: types.Vote{ValidatorID: 7, Slot: 2}}
	chain.OnAttestationFromGossip(stale)
	require.Equal(t, types.Slot(4), chain.latestNewVotes[7].Message.Slot)
}
