package state

import (
	"github.com/leancore/beacon/config"
	"github.com/leancore/beacon/types"
)

// ProcessRegistryUpdates moves eligible validators through the
// activation-eligibility queue and ejects those below the ejection
// balance, per spec.md §4.1.2 step 4.
func ProcessRegistryUpdates(cfg *config.Config, st *types.BeaconState) error {
	currentEpoch := CurrentEpoch(cfg, st)

	for i := range st.Validators {
		v := &st.Validators[i]
		if v.IsActive(currentEpoch) && v.EffectiveBalance <= types.Gwei(cfg.EjectionBalance) {
			initiateValidatorExit(cfg, st, types.ValidatorIndex(i))
		}
		if v.IsEligibleForActivationQueue(types.Gwei(cfg.MinActivationBalance)) {
			v.ActivationEligibilityEpoch = currentEpoch + 1
		}
		if IsEligibleForActivation(st, v) {
			v.ActivationEpoch = ComputeActivationExitEpoch(cfg, currentEpoch)
		}
	}
	return nil
}

// ComputeActivationExitEpoch returns the first epoch a validator can
// activate or begin exiting, MAX_SEED_LOOKAHEAD epochs out.
func ComputeActivationExitEpoch(cfg *config.Config, epoch types.Epoch) types.Epoch {
	return epoch + 1 + types.Epoch(cfg.MaxSeedLookahead)
}

// ProcessPendingDeposits drains the Electra pending-deposit queue,
// activating or crediting validators up to the per-epoch deposit and
// churn limits, per spec.md §4.1.6.
func ProcessPendingDeposits(cfg *config.Config, st *types.BeaconState) error {
	currentEpoch := CurrentEpoch(cfg, st)
	availableForProcessing := st.DepositBalanceToConsume + GetActivationExitChurnLimit(cfg, st)
	processedAmount := types.Gwei(0)
	nextDepositIndex := 0
	var depositsToPostpone []types.PendingDeposit

	for _, deposit := range st.PendingDeposits {
		if processedAmount+deposit.Amount > availableForProcessing {
			break
		}
		if uint64(nextDepositIndex) >= cfg.MaxPendingDepositsPerEpoch {
			break
		}

		idx, found := validatorIndexByPubkey(st, deposit.Pubkey)
		if !found {
			if err := applyNewDeposit(cfg, st, deposit); err != nil {
				return err
			}
		} else {
			v := &st.Validators[idx]
			if v.ExitEpoch == types.FarFutureEpoch {
				increaseBalance(st, idx, deposit.Amount)
			} else {
				depositsToPostpone = append(depositsToPostpone, deposit)
			}
		}
		processedAmount += deposit.Amount
		nextDepositIndex++
	}

	remaining := append(depositsToPostpone, st.PendingDeposits[nextDepositIndex:]...)
	st.PendingDeposits = remaining

	if len(st.PendingDeposits) == 0 {
		st.DepositBalanceToConsume = 0
	} else {
		st.DepositBalanceToConsume = availableForProcessing - processedAmount
	}
	_ = currentEpoch
	return nil
}

func applyNewDeposit(cfg *config.Config, st *types.BeaconState, d types.PendingDeposit) error {
	v := GetValidatorFromDeposit(d.WithdrawalCredentials, d.Pubkey)
	st.Validators = append(st.Validators, *v)
	st.Balances = append(st.Balances, d.Amount)
	st.PreviousEpochParticipation = append(st.PreviousEpochParticipation, 0)
	st.CurrentEpochParticipation = append(st.CurrentEpochParticipation, 0)
	st.InactivityScores = append(st.InactivityScores, 0)
	return nil
}

// ProcessPendingConsolidations merges source validator balances into
// their targets once the source has become withdrawable, per spec.md
// §4.1.6.
func ProcessPendingConsolidations(cfg *config.Config, st *types.BeaconState) error {
	currentEpoch := CurrentEpoch(cfg, st)
	next := 0
	for _, c := range st.PendingConsolidations {
		source := &st.Validators[c.SourceIndex]
		if source.WithdrawableEpoch > currentEpoch {
			break
		}
		activeBalance := st.Balances[c.SourceIndex]
		if source.EffectiveBalance < activeBalance {
			activeBalance = source.EffectiveBalance
		}
		decreaseBalance(st, c.SourceIndex, activeBalance)
		increaseBalance(st, c.TargetIndex, activeBalance)
		next++
	}
	st.PendingConsolidations = st.PendingConsolidations[next:]
	return nil
}
