package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leancore/beacon/config"
	"github.com/leancore/beacon/types"
)

func fullyParticipatingState(cfg *config.Config, numValidators int) *types.BeaconState {
	validators := make([]types.Validator, numValidators)
	balances := make([]types.Gwei, numValidators)
	for i := range validators {
		validators[i] = types.Validator{
			EffectiveBalance: types.Gwei(cfg.MinActivationBalance),
			ActivationEpoch:  0,
			ExitEpoch:        types.FarFutureEpoch,
			WithdrawableEpoch: types.FarFutureEpoch,
		}
		balances[i] = types.Gwei(cfg.MinActivationBalance)
	}

	participation := make([]byte, numValidators)
	for i := range participation {
		participation[i] = timelyTargetFlag
	}

	return &types.BeaconState{
		Validators:                 validators,
		Balances:                   balances,
		PreviousEpochParticipation: append([]byte(nil), participation...),
		CurrentEpochParticipation:  append([]byte(nil), participation...),
		JustificationBits:          [1]byte{0},
	}
}

// TestProcessJustificationAndFinalizationCascades exercises a chain that
// justifies every epoch with full participation: the second call's
// one-epoch finalization rule (bits&0x03==0x03, oldCurrJustified.Epoch+1
// == currentEpoch) finalizes the checkpoint the first call justified,
// mirroring the teacher's ProcessJustification finality cascade.
func TestProcessJustificationAndFinalizationCascades(t *testing.T) {
	cfg := config.Minimal()
	st := fullyParticipatingState(cfg, 4)

	st.BlockRoots[8] = types.Root{0x01}
	st.BlockRoots[16] = types.Root{0x02}
	st.BlockRoots[24] = types.Root{0x03}

	st.Slot = types.Slot(cfg.StartSlotAtEpoch(2) + cfg.SlotsPerEpoch - 1)
	ProcessJustificationAndFinalization(cfg, st)
	require.Equal(t, types.Epoch(2), st.CurrentJustifiedCheckpoint.Epoch)
	require.Equal(t, types.Epoch(0), st.FinalizedCheckpoint.Epoch)

	st.Slot = types.Slot(cfg.StartSlotAtEpoch(3) + cfg.SlotsPerEpoch - 1)
	ProcessJustificationAndFinalization(cfg, st)
	require.Equal(t, types.Epoch(3), st.CurrentJustifiedCheckpoint.Epoch)
	require.Equal(t, types.Epoch(2), st.FinalizedCheckpoint.Epoch)
	require.Equal(t, types.Root{0x02}, st.FinalizedCheckpoint.Root)
}

func TestProcessJustificationAndFinalizationSkipsGenesisEpochs(t *testing.T) {
	cfg := config.Minimal()
	st := fullyParticipatingState(cfg, 4)
	st.Slot = types.Slot(cfg.StartSlotAtEpoch(1) + cfg.SlotsPerEpoch - 1)

	ProcessJustificationAndFinalization(cfg, st)

	require.Equal(t, types.Epoch(0), st.CurrentJustifiedCheckpoint.Epoch)
	require.Equal(t, byte(0), st.JustificationBits[0])
}

func TestProcessJustificationAndFinalizationBelowThresholdDoesNotJustify(t *testing.T) {
	cfg := config.Minimal()
	st := fullyParticipatingState(cfg, 4)
	// Only one of four validators participates: well under 2/3.
	for i := 1; i < len(st.PreviousEpochParticipation); i++ {
		st.PreviousEpochParticipation[i] = 0
		st.CurrentEpochParticipation[i] = 0
	}
	st.BlockRoots[8] = types.Root{0x01}
	st.BlockRoots[16] = types.Root{0x02}
	st.Slot = types.Slot(cfg.StartSlotAtEpoch(2) + cfg.SlotsPerEpoch - 1)

	ProcessJustificationAndFinalization(cfg, st)

	require.Equal(t, types.Epoch(0), st.CurrentJustifiedCheckpoint.Epoch)
	require.Equal(t, types.Epoch(0), st.FinalizedCheckpoint.Epoch)
}
