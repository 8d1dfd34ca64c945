package state

import (
	"fmt"

	"github.com/leancore/beacon/config"
	"github.com/leancore/beacon/crypto/bls"
	"github.com/leancore/beacon/crypto/hash"
	"github.com/leancore/beacon/errtypes"
	"github.com/leancore/beacon/types"
)

// ProcessOperations dispatches every per-block operation list in the
// canonical order (spec.md §4.1.3): proposer slashings, attester
// slashings, attestations, deposits, voluntary exits, BLS-to-execution
// changes, then the three Electra execution-request kinds.
func ProcessOperations(cfg *config.Config, v Verifiers, st *types.BeaconState, block *types.BeaconBlock) error {
	body := &block.Body

	for i := range body.ProposerSlashings {
		if err := ProcessProposerSlashing(cfg, v.BLS, st, &body.ProposerSlashings[i]); err != nil {
			return fmt.Errorf("proposer_slashing[%d]: %w", i, err)
		}
	}
	for i := range body.AttesterSlashings {
		if err := ProcessAttesterSlashing(cfg, v.BLS, st, &body.AttesterSlashings[i]); err != nil {
			return fmt.Errorf("attester_slashing[%d]: %w", i, err)
		}
	}
	for i := range body.Attestations {
		if err := ProcessAttestation(cfg, v.BLS, st, &body.Attestations[i]); err != nil {
			return fmt.Errorf("attestation[%d]: %w", i, err)
		}
	}
	for i := range body.Deposits {
		if err := ProcessDeposit(cfg, v.BLS, st, &body.Deposits[i]); err != nil {
			return fmt.Errorf("deposit[%d]: %w", i, err)
		}
	}
	for i := range body.VoluntaryExits {
		if err := ProcessVoluntaryExit(cfg, v.BLS, st, &body.VoluntaryExits[i]); err != nil {
			return fmt.Errorf("voluntary_exit[%d]: %w", i, err)
		}
	}
	for i := range body.BLSToExecutionChanges {
		if err := ProcessBLSToExecutionChange(cfg, v.BLS, st, &body.BLSToExecutionChanges[i]); err != nil {
			return fmt.Errorf("bls_to_execution_change[%d]: %w", i, err)
		}
	}
	for i := range body.ExecutionRequests.Deposits {
		if err := ProcessDepositRequest(cfg, st, &body.ExecutionRequests.Deposits[i]); err != nil {
			return fmt.Errorf("deposit_request[%d]: %w", i, err)
		}
	}
	for i := range body.ExecutionRequests.Withdrawals {
		if err := ProcessWithdrawalRequest(cfg, st, &body.ExecutionRequests.Withdrawals[i]); err != nil {
			return fmt.Errorf("withdrawal_request[%d]: %w", i, err)
		}
	}
	for i := range body.ExecutionRequests.Consolidations {
		if err := ProcessConsolidationRequest(cfg, st, &body.ExecutionRequests.Consolidations[i]); err != nil {
			return fmt.Errorf("consolidation_request[%d]: %w", i, err)
		}
	}
	return nil
}

// ProcessDeposit applies a legacy eth1-log deposit once its Merkle proof
// against Eth1Data.DepositRoot checks out. Electra still drains this
// queue for deposits logged before the DepositRequest cutover.
func ProcessDeposit(cfg *config.Config, verifier bls.Verifier, st *types.BeaconState, deposit *types.Deposit) error {
	if !verifyDepositMerkleProof(st, deposit) {
		return errtypes.Validationf("invalid_deposit_proof", "deposit at index %d failed its Merkle proof", st.Eth1DepositIndex)
	}
	st.Eth1DepositIndex++

	idx, found := validatorIndexByPubkey(st, deposit.Data.Pubkey)
	if !found {
		if !verifyDepositSignature(cfg, verifier, deposit) {
			return nil // an unverifiable brand-new deposit is dropped, not rejected, per spec.
		}
		v := GetValidatorFromDeposit(deposit.Data.WithdrawalCredentials, deposit.Data.Pubkey)
		st.Validators = append(st.Validators, *v)
		st.Balances = append(st.Balances, deposit.Data.Amount)
		st.PreviousEpochParticipation = append(st.PreviousEpochParticipation, 0)
		st.CurrentEpochParticipation = append(st.CurrentEpochParticipation, 0)
		st.InactivityScores = append(st.InactivityScores, 0)
		return nil
	}
	increaseBalance(st, idx, deposit.Data.Amount)
	return nil
}

func verifyDepositSignature(cfg *config.Config, verifier bls.Verifier, deposit *types.Deposit) bool {
	domain := ComputeDomain(cfg.DomainDeposit, types.Version(cfg.GenesisForkVersion), types.ZeroRoot)
	sigRoot, err := deposit.Data.HashTreeRoot()
	if err != nil {
		return false
	}
	signingRoot := ComputeSigningRoot(types.Root(sigRoot), domain)
	return verifier.Verify(deposit.Data.Pubkey[:], signingRoot[:], deposit.Data.Signature[:])
}

// verifyDepositMerkleProof checks the 33-level inclusion proof (32 tree
// levels plus the SSZ List length mix-in) against Eth1Data.DepositRoot,
// per is_valid_merkle_branch(depth=DEPOSIT_CONTRACT_TREE_DEPTH+1).
func verifyDepositMerkleProof(st *types.BeaconState, deposit *types.Deposit) bool {
	leaf, err := deposit.Data.HashTreeRoot()
	if err != nil {
		return false
	}
	value := leaf
	for i := 0; i < 33; i++ {
		branch := [32]byte(deposit.Proof[i])
		if (st.Eth1DepositIndex>>uint(i))&1 == 1 {
			value = [32]byte(hash.Hash64(branch, value))
		} else {
			value = [32]byte(hash.Hash64(value, branch))
		}
	}
	return types.Root(value) == st.Eth1Data.DepositRoot
}
