package state

import (
	"github.com/leancore/beacon/config"
	"github.com/leancore/beacon/types"
)

// baseRewardPerIncrement is the unit reward every weight (source/target/
// head/sync/proposer) scales from, per Altair's base-reward formula.
func baseRewardPerIncrement(cfg *config.Config, st *types.BeaconState) types.Gwei {
	total := TotalActiveBalance(cfg, st)
	return types.Gwei(cfg.EffectiveBalanceIncrement) * types.Gwei(cfg.BaseRewardFactor) / isqrt(uint64(total))
}

func isqrt(n uint64) types.Gwei {
	if n == 0 {
		return 1
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	if x == 0 {
		x = 1
	}
	return types.Gwei(x)
}

func baseReward(cfg *config.Config, st *types.BeaconState, idx types.ValidatorIndex) types.Gwei {
	increments := st.Validators[idx].EffectiveBalance / types.Gwei(cfg.EffectiveBalanceIncrement)
	return increments * baseRewardPerIncrement(cfg, st)
}

// ProcessInactivityUpdates maintains each validator's inactivity score:
// it decays toward zero while finalization proceeds normally and grows
// while the chain is leaking, per spec.md §4.1.2 step 2.
func ProcessInactivityUpdates(cfg *config.Config, st *types.BeaconState) {
	previousEpoch := PreviousEpoch(cfg, st)
	if CurrentEpoch(cfg, st) == types.Epoch(cfg.GenesisEpoch) {
		return
	}
	leaking := IsInInactivityLeak(cfg, st)
	for i := range st.Validators {
		if !st.Validators[i].IsActive(previousEpoch) {
			continue
		}
		idx := types.ValidatorIndex(i)
		if hasFlag(epochFlagOf(st.PreviousEpochParticipation, idx), timelyTargetFlag) {
			if st.InactivityScores[i] > 0 {
				st.InactivityScores[i]--
			}
		} else {
			st.InactivityScores[i] += cfg.InactivityScoreBias
		}
		if !leaking && st.InactivityScores[i] > 0 {
			delta := cfg.InactivityScoreRecoveryRate
			if delta > st.InactivityScores[i] {
				delta = st.InactivityScores[i]
			}
			st.InactivityScores[i] -= delta
		}
	}
}

func epochFlagOf(participation []byte, idx types.ValidatorIndex) byte {
	if int(idx) >= len(participation) {
		return 0
	}
	return participation[idx]
}

// ProcessRewardsAndPenalties pays source/target/head/attestation rewards
// and levies the inactivity penalty, then applies every delta to
// st.Balances in one pass (spec.md §4.1.2 step 3).
func ProcessRewardsAndPenalties(cfg *config.Config, st *types.BeaconState) {
	currentEpoch := CurrentEpoch(cfg, st)
	if currentEpoch == types.Epoch(cfg.GenesisEpoch) {
		return
	}
	previousEpoch := PreviousEpoch(cfg, st)
	leaking := IsInInactivityLeak(cfg, st)

	flagWeights := []struct {
		flag   byte
		weight uint64
	}{
		{timelySourceFlag, cfg.TimelySourceWeight},
		{timelyTargetFlag, cfg.TimelyTargetWeight},
		{timelyHeadFlag, cfg.TimelyHeadWeight},
	}

	unslashedBalances := make(map[byte]types.Gwei, 3)
	for _, fw := range flagWeights {
		unslashedBalances[fw.flag] = unslashedParticipatingBalance(cfg, st, fw.flag, st.PreviousEpochParticipation, previousEpoch)
	}
	totalActive := TotalActiveBalance(cfg, st)

	rewards := make([]types.Gwei, len(st.Validators))
	penalties := make([]types.Gwei, len(st.Validators))

	for i := range st.Validators {
		idx := types.ValidatorIndex(i)
		if !st.Validators[i].IsActive(previousEpoch) {
			continue
		}
		br := baseReward(cfg, st, idx)
		flags := epochFlagOf(st.PreviousEpochParticipation, idx)

		for _, fw := range flagWeights {
			if st.Validators[i].Slashed {
				continue
			}
			if hasFlag(flags, fw.flag) {
				if !leaking {
					rewards[i] += br * types.Gwei(fw.weight) * unslashedBalances[fw.flag] / (totalActive / types.Gwei(cfg.EffectiveBalanceIncrement)) / types.Gwei(cfg.WeightDenominator)
				}
			} else if fw.flag != timelyHeadFlag {
				penalties[i] += br * types.Gwei(fw.weight) / types.Gwei(cfg.WeightDenominator)
			}
		}

		if !hasFlag(flags, timelyTargetFlag) {
			penalties[i] += types.Gwei(st.InactivityScores[i]) * st.Validators[i].EffectiveBalance / types.Gwei(cfg.InactivityScoreBias) / types.Gwei(cfg.InactivityPenaltyQuotientBellatrix)
		}
	}

	for i := range st.Validators {
		increaseBalance(st, types.ValidatorIndex(i), rewards[i])
		decreaseBalance(st, types.ValidatorIndex(i), penalties[i])
	}
}

// ProcessEffectiveBalanceUpdates recomputes every validator's effective
// balance with hysteresis, so small balance jitter doesn't churn the
// committee cache every epoch.
func ProcessEffectiveBalanceUpdates(cfg *config.Config, st *types.BeaconState) {
	hysteresisIncrement := types.Gwei(cfg.EffectiveBalanceIncrement) / types.Gwei(cfg.HysteresisQuotient)
	downward := hysteresisIncrement * types.Gwei(cfg.HysteresisDownwardMultiplier)
	upward := hysteresisIncrement * types.Gwei(cfg.HysteresisUpwardMultiplier)

	for i := range st.Validators {
		balance := st.Balances[i]
		effective := st.Validators[i].EffectiveBalance
		maxEffective := types.Gwei(cfg.MinActivationBalance)
		if st.Validators[i].HasCompoundingWithdrawalCredential() {
			maxEffective = types.Gwei(cfg.MaxEffectiveBalanceElectra)
		}
		if balance+downward < effective || effective+upward < balance {
			newEffective := balance - balance%types.Gwei(cfg.EffectiveBalanceIncrement)
			if newEffective > maxEffective {
				newEffective = maxEffective
			}
			st.Validators[i].EffectiveBalance = newEffective
		}
	}
}
