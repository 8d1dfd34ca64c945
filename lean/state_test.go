package lean

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leancore/beacon/types"
)

func TestJustificationRoundTrip(t *testing.T) {
	st := &types.LeanState{Config: types.LeanConfig{NumValidators: 5}}

	rootA := types.Root{0xAA}
	rootB := types.Root{0xBB}

	bitsA := make(types.Bitlist, bitlistBytes(5))
	bitSetTrue(&bitsA, 0)
	bitSetTrue(&bitsA, 3)

	bitsB := make(types.Bitlist, bitlistBytes(5))
	bitSetTrue(&bitsB, 4)

	SetJustifications(st, JustificationMap{rootA: bitsA, rootB: bitsB})
	require.Len(t, st.JustificationsRoots, 2)

	got := GetJustifications(st)
	require.Len(t, got, 2)
	require.True(t, bitGet(got[rootA], 0))
	require.True(t, bitGet(got[rootA], 3))
	require.False(t, bitGet(got[rootA], 1))
	require.True(t, bitGet(got[rootB], 4))
	require.Equal(t, 2, popcount(got[rootA], 5))
	require.Equal(t, 1, popcount(got[rootB], 5))
}

func TestProcessBlockHeaderGenesisSpecialCasing(t *testing.T) {
	_, state := newGenesis(t, 3)

	require.NoError(t, ProcessSlots(state, 1))
	parentRoot, err := state.LatestBlockHeader.HashTreeRoot()
	require.NoError(t, err)

	block := &types.LeanBlock{
		Slot: 1, ProposerIndex: 1,
		ParentRoot: types.Root(parentRoot), StateRoot: types.ZeroRoot,
	}
	require.NoError(t, ProcessBlock(state, block))

	require.Equal(t, types.Root(parentRoot), state.LatestJustified.Root)
	require.Equal(t, types.Root(parentRoot), state.LatestFinalized.Root)
	require.Len(t, state.HistoricalBlockHashes, 1)
	require.Equal(t, types.Root(parentRoot), state.HistoricalBlockHashes[0])
	require.True(t, state.JustifiedSlots[0])
}

func TestProcessAttestationsJustifiesAndFinalizes(t *testing.T) {
	numValidators := uint64(3)
	sourceRoot := types.Root{0x01}
	targetRoot := types.Root{0x02}

	historical := make([]types.Root, 7)
	justified := make([]bool, 7)
	historical[5] = sourceRoot
	justified[5] = true
	historical[6] = targetRoot

	state := &types.LeanState{
		Config:                types.LeanConfig{NumValidators: numValidators},
		HistoricalBlockHashes: historical,
		JustifiedSlots:        justified,
		LatestFinalized:       types.LeanCheckpoint{Root: types.ZeroRoot, Slot: 0},
	}

	vote := func(id uint64) types.SignedVote {
		return types.SignedVote{Message: types.Vote{
			ValidatorID: id,
			Source:      types.LeanCheckpoint{Root: sourceRoot, Slot: 5},
			Target:      types.LeanCheckpoint{Root: targetRoot, Slot: 6},
		}}
	}

	err := ProcessAttestations(state, []types.SignedVote{vote(0), vote(1)})
	require.NoError(t, err)

	require.Equal(t, types.LeanCheckpoint{Root: targetRoot, Slot: 6}, state.LatestJustified)
	require.True(t, state.JustifiedSlots[6])
	require.Equal(t, types.LeanCheckpoint{Root: sourceRoot, Slot: 5}, state.LatestFinalized)
}

func TestProcessAttestationsBelowThresholdDoesNotJustify(t *testing.T) {
	numValidators := uint64(3)
	sourceRoot := types.Root{0x01}
	targetRoot := types.Root{0x02}

	historical := make([]types.Root, 4)
	justified := make([]bool, 4)
	historical[0] = sourceRoot
	justified[0] = true
	historical[3] = targetRoot

	state := &types.LeanState{
		Config:                types.LeanConfig{NumValidators: numValidators},
		HistoricalBlockHashes: historical,
		JustifiedSlots:        justified,
		LatestFinalized:       types.LeanCheckpoint{Root: types.ZeroRoot, Slot: 0},
	}

	vote := types.SignedVote{Message: types.Vote{
		ValidatorID: 0,
		Source:      types.LeanCheckpoint{Root: sourceRoot, Slot: 0},
		Target:      types.LeanCheckpoint{Root: targetRoot, Slot: 3},
	}}

	require.NoError(t, ProcessAttestations(state, []types.SignedVote{vote}))
	require.False(t, state.JustifiedSlots[3])
	require.Equal(t, types.LeanCheckpoint{Root: types.ZeroRoot, Slot: 0}, state.LatestFinalized)
}

func TestIsJustifiableSlot(t *testing.T) {
	require.True(t, isJustifiableSlot(0, 5))
	require.True(t, isJustifiableSlot(0, 6))
	require.False(t, isJustifiableSlot(0, 7))
	require.True(t, isJustifiableSlot(0, 12))
	require.True(t, isJustifiableSlot(0, 25)) // 5^2
	require.True(t, isJustifiableSlot(0, 16)) // 4^2
	require.True(t, isJustifiableSlot(0, 20)) // 4*5 pronic
	require.False(t, isJustifiableSlot(0, 15))
}
