package state

import (
	"bytes"

	"github.com/leancore/beacon/config"
	"github.com/leancore/beacon/crypto/bls"
	"github.com/leancore/beacon/crypto/hash"
	"github.com/leancore/beacon/errtypes"
	"github.com/leancore/beacon/types"
)

// initiateValidatorExit queues idx's exit, reserving churn via
// ComputeExitEpochAndUpdateChurn so concurrent exits in the same epoch
// share the per-epoch budget instead of racing for it.
func initiateValidatorExit(cfg *config.Config, st *types.BeaconState, idx types.ValidatorIndex) {
	v := &st.Validators[idx]
	if v.ExitEpoch != types.FarFutureEpoch {
		return
	}
	exitEpoch := ComputeExitEpochAndUpdateChurn(cfg, st, v.EffectiveBalance)
	v.ExitEpoch = exitEpoch
	v.WithdrawableEpoch = exitEpoch + types.Epoch(cfg.MinValidatorWithdrawabilityDelay)
}

// slashValidator marks idx slashed, ejects it, burns the slashing
// penalty into the slashings vector, and pays the whistleblower reward.
func slashValidator(cfg *config.Config, st *types.BeaconState, slashed, whistleblower types.ValidatorIndex) {
	currentEpoch := CurrentEpoch(cfg, st)
	initiateValidatorExit(cfg, st, slashed)

	v := &st.Validators[slashed]
	v.Slashed = true
	v.WithdrawableEpoch = maxEpoch(v.WithdrawableEpoch, currentEpoch+types.Epoch(cfg.EpochsPerSlashingsVector))
	st.Slashings[uint64(currentEpoch)%cfg.EpochsPerSlashingsVector] += v.EffectiveBalance

	penalty := v.EffectiveBalance / types.Gwei(cfg.MinSlashingPenaltyQuotientElectra)
	decreaseBalance(st, slashed, penalty)

	proposerIndex, err := GetBeaconProposerIndex(cfg, st)
	if err != nil {
		return
	}
	whistleblowerReward := v.EffectiveBalance / types.Gwei(cfg.WhistleblowerRewardQuotient)
	proposerReward := whistleblowerReward * types.Gwei(cfg.ProposerWeight) / types.Gwei(cfg.WeightDenominator)
	increaseBalance(st, proposerIndex, proposerReward)
	increaseBalance(st, whistleblower, whistleblowerReward-proposerReward)
}

func maxEpoch(a, b types.Epoch) types.Epoch {
	if a > b {
		return a
	}
	return b
}

// ProcessProposerSlashing validates a double-proposal allegation and, if
// sound, slashes the proposer.
func ProcessProposerSlashing(cfg *config.Config, verifier bls.Verifier, st *types.BeaconState, ps *types.ProposerSlashing) error {
	h1, h2 := ps.SignedHeader1.Message, ps.SignedHeader2.Message
	if h1.Slot != h2.Slot {
		return errtypes.Validationf("proposer_slashing_slot_mismatch", "headers must share a slot")
	}
	if h1.ProposerIndex != h2.ProposerIndex {
		return errtypes.Validationf("proposer_slashing_proposer_mismatch", "headers must share a proposer")
	}
	if h1 == h2 {
		return errtypes.Validationf("proposer_slashing_identical_headers", "headers must differ")
	}
	proposer := st.Validators[h1.ProposerIndex]
	if !proposer.IsSlashable(CurrentEpoch(cfg, st)) {
		return errtypes.Validationf("proposer_not_slashable", "proposer %d", h1.ProposerIndex)
	}

	domain := ComputeDomain(cfg.DomainBeaconProposer, st.Fork.CurrentVersion, st.GenesisValidatorsRoot)
	for _, signed := range []*types.SignedBeaconBlockHeader{&ps.SignedHeader1, &ps.SignedHeader2} {
		msgRoot, err := signed.Message.HashTreeRoot()
		if err != nil {
			return errtypes.Storage("proposer_slashing_header_root", err)
		}
		signingRoot := ComputeSigningRoot(types.Root(msgRoot), domain)
		if !verifier.Verify(proposer.Pubkey[:], signingRoot[:], signed.Signature[:]) {
			return errtypes.Validationf("invalid_proposer_slashing_signature", "proposer %d", h1.ProposerIndex)
		}
	}

	proposerIndex, err := GetBeaconProposerIndex(cfg, st)
	if err != nil {
		return err
	}
	slashValidator(cfg, st, h1.ProposerIndex, proposerIndex)
	return nil
}

// ProcessAttesterSlashing validates a double-vote/surround-vote
// allegation and slashes every validator named in both indexed
// attestations' intersection.
func ProcessAttesterSlashing(cfg *config.Config, verifier bls.Verifier, st *types.BeaconState, as *types.AttesterSlashing) error {
	a1, a2 := &as.Attestation1, &as.Attestation2
	if !types.IsSlashableAttestationData(&a1.Data, &a2.Data) {
		return errtypes.Validationf("attester_slashing_not_slashable", "attestations are not a slashable pair")
	}
	if err := verifyIndexedAttestation(cfg, verifier, st, a1); err != nil {
		return err
	}
	if err := verifyIndexedAttestation(cfg, verifier, st, a2); err != nil {
		return err
	}

	slashedAny := false
	set2 := make(map[types.ValidatorIndex]bool, len(a2.AttestingIndices))
	for _, idx := range a2.AttestingIndices {
		set2[idx] = true
	}
	currentEpoch := CurrentEpoch(cfg, st)
	proposerIndex, err := GetBeaconProposerIndex(cfg, st)
	if err != nil {
		return err
	}
	for _, idx := range a1.AttestingIndices {
		if !set2[idx] {
			continue
		}
		if st.Validators[idx].IsSlashable(currentEpoch) {
			slashValidator(cfg, st, idx, proposerIndex)
			slashedAny = true
		}
	}
	if !slashedAny {
		return errtypes.Validationf("attester_slashing_no_overlap", "no slashable validator in the attesting-index intersection")
	}
	return nil
}

// VerifyIndexedAttestation is the exported form of verifyIndexedAttestation,
// shared with the fork-choice store's on_attestation handler so both call
// sites check signatures the same way against an arbitrary state.
func VerifyIndexedAttestation(cfg *config.Config, verifier bls.Verifier, st *types.BeaconState, a *types.IndexedAttestation) error {
	return verifyIndexedAttestation(cfg, verifier, st, a)
}

func verifyIndexedAttestation(cfg *config.Config, verifier bls.Verifier, st *types.BeaconState, a *types.IndexedAttestation) error {
	if len(a.AttestingIndices) == 0 {
		return errtypes.Validationf("empty_indexed_attestation", "attesting_indices must be non-empty")
	}
	for i := 1; i < len(a.AttestingIndices); i++ {
		if a.AttestingIndices[i] <= a.AttestingIndices[i-1] {
			return errtypes.Validationf("unsorted_indexed_attestation", "attesting_indices must be strictly increasing")
		}
	}
	domain := ComputeDomain(cfg.DomainBeaconAttester, st.Fork.CurrentVersion, st.GenesisValidatorsRoot)
	dataRoot, err := a.Data.HashTreeRoot()
	if err != nil {
		return errtypes.Storage("indexed_attestation_data_root", err)
	}
	signingRoot := ComputeSigningRoot(types.Root(dataRoot), domain)

	pubkeys := make([][]byte, len(a.AttestingIndices))
	for i, idx := range a.AttestingIndices {
		pk := st.Validators[idx].Pubkey
		pubkeys[i] = pk[:]
	}
	if !verifier.FastAggregateVerify(pubkeys, signingRoot[:], a.Signature[:]) {
		return errtypes.Validationf("invalid_indexed_attestation_signature", "aggregate signature check failed")
	}
	return nil
}

// ProcessVoluntaryExit validates and applies a validator-initiated exit.
func ProcessVoluntaryExit(cfg *config.Config, verifier bls.Verifier, st *types.BeaconState, signed *types.SignedVoluntaryExit) error {
	exit := signed.Message
	if int(exit.ValidatorIndex) >= len(st.Validators) {
		return errtypes.Validationf("voluntary_exit_unknown_validator", "index %d", exit.ValidatorIndex)
	}
	v := &st.Validators[exit.ValidatorIndex]
	currentEpoch := CurrentEpoch(cfg, st)
	if !v.IsActive(currentEpoch) {
		return errtypes.Validationf("voluntary_exit_inactive", "validator %d is not active", exit.ValidatorIndex)
	}
	if v.ExitEpoch != types.FarFutureEpoch {
		return errtypes.Validationf("voluntary_exit_already_exiting", "validator %d already exiting", exit.ValidatorIndex)
	}
	if currentEpoch < exit.Epoch {
		return errtypes.Validationf("voluntary_exit_not_yet_valid", "exit epoch %d not yet reached", exit.Epoch)
	}
	activationEpoch := v.ActivationEpoch
	if currentEpoch < activationEpoch+types.Epoch(cfg.ShardCommitteePeriod) {
		return errtypes.Validationf("voluntary_exit_before_shard_committee_period", "validator %d has not served the minimum period", exit.ValidatorIndex)
	}
	if v.EffectiveBalance > types.Gwei(cfg.MinActivationBalance) && v.HasCompoundingWithdrawalCredential() {
		return errtypes.Validationf("voluntary_exit_requires_full_withdrawal", "validator %d must partially withdraw before a full exit", exit.ValidatorIndex)
	}

	domain := ComputeDomain(cfg.DomainVoluntaryExit, st.Fork.CurrentVersion, st.GenesisValidatorsRoot)
	msgRoot, err := exit.HashTreeRoot()
	if err != nil {
		return errtypes.Storage("voluntary_exit_root", err)
	}
	signingRoot := ComputeSigningRoot(types.Root(msgRoot), domain)
	if !verifier.Verify(v.Pubkey[:], signingRoot[:], signed.Signature[:]) {
		return errtypes.Validationf("invalid_voluntary_exit_signature", "validator %d", exit.ValidatorIndex)
	}

	initiateValidatorExit(cfg, st, exit.ValidatorIndex)
	return nil
}

// ProcessBLSToExecutionChange migrates a 0x00 BLS withdrawal credential
// to a 0x01 execution-address credential.
func ProcessBLSToExecutionChange(cfg *config.Config, verifier bls.Verifier, st *types.BeaconState, signed *types.SignedBLSToExecutionChange) error {
	change := signed.Message
	if int(change.ValidatorIndex) >= len(st.Validators) {
		return errtypes.Validationf("bls_change_unknown_validator", "index %d", change.ValidatorIndex)
	}
	v := &st.Validators[change.ValidatorIndex]
	if v.WithdrawalCredentials[0] != 0x00 {
		return errtypes.Validationf("bls_change_wrong_prefix", "validator %d does not have a BLS withdrawal credential", change.ValidatorIndex)
	}
	hashed := hash.HashBytes(change.FromBLSPubkey[:])
	if !bytes.Equal(v.WithdrawalCredentials[1:], hashed[1:]) {
		return errtypes.Validationf("bls_change_pubkey_mismatch", "from_bls_pubkey does not match the committed hash")
	}

	domain := ComputeDomain(cfg.DomainBLSToExecutionChange, types.Version(cfg.GenesisForkVersion), st.GenesisValidatorsRoot)
	msgRoot, err := change.HashTreeRoot()
	if err != nil {
		return errtypes.Storage("bls_change_root", err)
	}
	signingRoot := ComputeSigningRoot(types.Root(msgRoot), domain)
	if !verifier.Verify(change.FromBLSPubkey[:], signingRoot[:], signed.Signature[:]) {
		return errtypes.Validationf("invalid_bls_change_signature", "validator %d", change.ValidatorIndex)
	}

	var newCreds types.WithdrawalCreds
	newCreds[0] = 0x01
	copy(newCreds[12:], change.ToExecutionAddress[:])
	v.WithdrawalCredentials = newCreds
	return nil
}
