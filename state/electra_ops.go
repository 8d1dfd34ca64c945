package state

import (
	"github.com/leancore/beacon/config"
	"github.com/leancore/beacon/types"
)

// ProcessDepositRequest queues an execution-layer deposit request for the
// pending-deposit pipeline processed at the next epoch boundary, per
// spec.md §4.1.6. Unlike legacy Deposit, requests carry no Merkle proof:
// the execution layer has already finalized them into its own log.
func ProcessDepositRequest(cfg *config.Config, st *types.BeaconState, req *types.DepositRequest) error {
	if st.DepositRequestsStartIndex == ^uint64(0) {
		st.DepositRequestsStartIndex = req.Index
	}
	st.PendingDeposits = append(st.PendingDeposits, types.PendingDeposit{
		Pubkey:                req.Pubkey,
		WithdrawalCredentials: req.WithdrawalCredentials,
		Amount:                req.Amount,
		Signature:             req.Signature,
		Slot:                  st.Slot,
	})
	return nil
}

// ProcessWithdrawalRequest handles a full or partial withdrawal request
// triggered by the validator's own 0x01/0x02 execution credential.
func ProcessWithdrawalRequest(cfg *config.Config, st *types.BeaconState, req *types.WithdrawalRequest) error {
	idx, found := validatorIndexByExecutionAddress(st, req.ValidatorPubkey, req.SourceAddress)
	if !found {
		return nil // per spec: unknown validator or credential mismatch is a silent no-op, not a rejection.
	}
	v := &st.Validators[idx]
	currentEpoch := CurrentEpoch(cfg, st)

	isFullWithdrawal := req.Amount == 0
	hasSufficientEffectiveBalance := v.EffectiveBalance >= types.Gwei(cfg.MinActivationBalance)
	hasExcessBalance := st.Balances[idx] > types.Gwei(cfg.MinActivationBalance)

	if !v.IsActive(currentEpoch) || v.Slashed || v.ExitEpoch != types.FarFutureEpoch {
		return nil
	}
	if currentEpoch < v.ActivationEpoch+types.Epoch(cfg.ShardCommitteePeriod) {
		return nil
	}

	if isFullWithdrawal {
		if hasSufficientEffectiveBalance && hasExcessBalance {
			initiateValidatorExit(cfg, st, idx)
		}
		return nil
	}

	if hasSufficientEffectiveBalance && hasExcessBalance {
		toWithdraw := st.Balances[idx] - types.Gwei(cfg.MinActivationBalance)
		if toWithdraw > req.Amount {
			toWithdraw = req.Amount
		}
		exitQueueEpoch := ComputeExitEpochAndUpdateChurn(cfg, st, toWithdraw)
		st.PendingPartialWithdrawals = append(st.PendingPartialWithdrawals, types.PendingPartialWithdrawal{
			ValidatorIndex:    idx,
			Amount:            toWithdraw,
			WithdrawableEpoch: exitQueueEpoch,
		})
	}
	return nil
}

func validatorIndexByExecutionAddress(st *types.BeaconState, pubkey types.BLSPubkey, sourceAddress types.ExecutionAddr) (types.ValidatorIndex, bool) {
	idx, found := validatorIndexByPubkey(st, pubkey)
	if !found {
		return 0, false
	}
	v := &st.Validators[idx]
	if !v.HasExecutionWithdrawalCredential() {
		return 0, false
	}
	var addr types.ExecutionAddr
	copy(addr[:], v.WithdrawalCredentials[12:])
	if addr != sourceAddress {
		return 0, false
	}
	return idx, true
}

// ProcessConsolidationRequest queues a source-into-target balance merge,
// enforcing the Electra consolidation eligibility and churn rules.
func ProcessConsolidationRequest(cfg *config.Config, st *types.BeaconState, req *types.ConsolidationRequest) error {
	if isPendingConsolidationsQueueFull(cfg, st) {
		return nil
	}
	if req.SourcePubkey == req.TargetPubkey {
		return nil // self-consolidations are switch-to-compounding requests, not handled here.
	}

	sourceIdx, sourceFound := validatorIndexByExecutionAddress(st, req.SourcePubkey, req.SourceAddress)
	targetIdx, targetFound := validatorIndexByPubkey(st, req.TargetPubkey)
	if !sourceFound || !targetFound {
		return nil
	}
	source, target := &st.Validators[sourceIdx], &st.Validators[targetIdx]
	if !target.HasCompoundingWithdrawalCredential() {
		return nil
	}
	currentEpoch := CurrentEpoch(cfg, st)
	if !source.IsActive(currentEpoch) || !target.IsActive(currentEpoch) {
		return nil
	}
	if source.ExitEpoch != types.FarFutureEpoch || target.ExitEpoch != types.FarFutureEpoch {
		return nil
	}
	if currentEpoch < source.ActivationEpoch+types.Epoch(cfg.ShardCommitteePeriod) {
		return nil
	}

	exitEpoch := ComputeConsolidationEpochAndUpdateChurn(cfg, st, source.EffectiveBalance)
	source.ExitEpoch = exitEpoch
	source.WithdrawableEpoch = exitEpoch + types.Epoch(cfg.MinValidatorWithdrawabilityDelay)
	st.PendingConsolidations = append(st.PendingConsolidations, types.PendingConsolidation{SourceIndex: sourceIdx, TargetIndex: targetIdx})
	return nil
}

func isPendingConsolidationsQueueFull(cfg *config.Config, st *types.BeaconState) bool {
	return uint64(len(st.PendingConsolidations)) >= types.PendingConsolidationsLimit
}

// ComputeConsolidationEpochAndUpdateChurn mirrors ComputeExitEpochAndUpdateChurn
// but draws against the separate consolidation-churn budget.
func ComputeConsolidationEpochAndUpdateChurn(cfg *config.Config, st *types.BeaconState, consolidationBalance types.Gwei) types.Epoch {
	earliestConsolidationEpoch := st.EarliestConsolidationEpoch
	activationExitEpoch := CurrentEpoch(cfg, st) + 1 + types.Epoch(cfg.MaxSeedLookahead)
	if earliestConsolidationEpoch < activationExitEpoch {
		earliestConsolidationEpoch = activationExitEpoch
	}
	churnLimit := GetConsolidationChurnLimit(cfg, st)
	if churnLimit == 0 {
		churnLimit = 1
	}

	balanceToConsume := st.ConsolidationBalanceToConsume
	if earliestConsolidationEpoch > st.EarliestConsolidationEpoch {
		balanceToConsume = churnLimit
	}

	if consolidationBalance > balanceToConsume {
		additionalEpochs := (consolidationBalance-balanceToConsume-1)/churnLimit + 1
		earliestConsolidationEpoch += types.Epoch(additionalEpochs)
		balanceToConsume += types.Gwei(uint64(additionalEpochs)) * churnLimit
	}

	st.ConsolidationBalanceToConsume = balanceToConsume - consolidationBalance
	st.EarliestConsolidationEpoch = earliestConsolidationEpoch
	return earliestConsolidationEpoch
}
