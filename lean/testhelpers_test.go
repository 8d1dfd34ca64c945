package lean

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leancore/beacon/types"
)

// newGenesis builds a self-consistent genesis block/state pair for
// numValidators validators: the block's declared state root matches the
// state's own hash-tree-root, as New requires.
func newGenesis(t *testing.T, numValidators uint64) (*types.SignedLeanBlock, *types.LeanState) {
	t.Helper()

	emptyBody := types.LeanBlockBody{}
	bodyRoot, err := emptyBody.HashTreeRoot()
	require.NoError(t, err)

	header := types.LeanBlockHeader{
		Slot: 0, ProposerIndex: 0,
		ParentRoot: types.ZeroRoot, StateRoot: types.ZeroRoot, BodyRoot: types.Root(bodyRoot),
	}

	state := &types.LeanState{
		Config:          types.LeanConfig{NumValidators: numValidators, GenesisTime: 0},
		Slot:            0,
		LatestBlockHeader: header,
		LatestJustified: types.LeanCheckpoint{Root: types.ZeroRoot, Slot: 0},
		LatestFinalized: types.LeanCheckpoint{Root: types.ZeroRoot, Slot: 0},
	}

	stateRoot, err := state.HashTreeRoot()
	require.NoError(t, err)

	block := types.LeanBlock{
		Slot: 0, ProposerIndex: 0,
		ParentRoot: types.ZeroRoot, StateRoot: types.Root(stateRoot), Body: emptyBody,
	}
	signed := &types.SignedLeanBlock{Message: block}
	return signed, state
}
