package state

import (
	"github.com/leancore/beacon/config"
	"github.com/leancore/beacon/types"
)

// GenesisFromDeposits builds the genesis BeaconState from a validator set
// that has already cleared the (out-of-scope) eth1 deposit-contract
// threshold check, per the teacher's db.InitializeState bootstrapping
// step, generalized to Electra's container shape.
func GenesisFromDeposits(cfg *config.Config, genesisTime uint64, eth1Data types.Eth1Data, validators []types.Validator, balances []types.Gwei) *types.BeaconState {
	st := &types.BeaconState{
		GenesisTime: genesisTime,
		Fork: types.Fork{
			PreviousVersion: types.Version{0, 0, 0, 0},
			CurrentVersion:  types.Version{0, 0, 0, 5}, // Electra
			Epoch:           0,
		},
		Eth1Data:         eth1Data,
		Eth1DepositIndex: uint64(len(validators)),
		Validators:       validators,
		Balances:         balances,

		PreviousEpochParticipation: make([]byte, len(validators)),
		CurrentEpochParticipation:  make([]byte, len(validators)),
		InactivityScores:           make([]uint64, len(validators)),

		JustificationBits: [1]byte{0},

		EarliestExitEpoch:          0,
		EarliestConsolidationEpoch: 0,
		DepositRequestsStartIndex: ^uint64(0),
	}

	for i := range st.Validators {
		v := &st.Validators[i]
		v.ActivationEligibilityEpoch = types.FarFutureEpoch
		v.ActivationEpoch = types.FarFutureEpoch
		v.ExitEpoch = types.FarFutureEpoch
		v.WithdrawableEpoch = types.FarFutureEpoch

		if v.EffectiveBalance == 0 {
			eff := st.Balances[i] - st.Balances[i]%types.Gwei(cfg.EffectiveBalanceIncrement)
			if eff > types.Gwei(cfg.MaxEffectiveBalanceElectra) {
				eff = types.Gwei(cfg.MaxEffectiveBalanceElectra)
			}
			v.EffectiveBalance = eff
		}
		if v.EffectiveBalance >= types.Gwei(cfg.MinActivationBalance) {
			v.ActivationEligibilityEpoch = 0
			v.ActivationEpoch = 0
		}
	}

	if genesisValidatorsRoot, err := types.ValidatorsRoot(st.Validators); err == nil {
		st.GenesisValidatorsRoot = genesisValidatorsRoot
	}

	emptyBody := types.BeaconBlockBody{}
	bodyRoot, _ := emptyBody.HashTreeRoot()
	st.LatestBlockHeader = types.BeaconBlockHeader{
		BodyRoot: types.Root(bodyRoot),
	}

	if committee, err := ComputeSyncCommittee(cfg, st, 0); err == nil {
		st.CurrentSyncCommittee = *committee
	}
	if committee, err := ComputeSyncCommittee(cfg, st, types.Epoch(cfg.EpochsPerSyncCommitteePeriod)); err == nil {
		st.NextSyncCommittee = *committee
	}

	return st
}
