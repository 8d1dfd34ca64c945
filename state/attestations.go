package state

import (
	"github.com/leancore/beacon/config"
	"github.com/leancore/beacon/crypto/bls"
	"github.com/leancore/beacon/errtypes"
	"github.com/leancore/beacon/types"
)

// ProcessAttestation validates an on-chain attestation against admissibility
// rules (spec.md §4.1.4) and flips the attesting validators' participation
// flags for the epoch it targets, crediting the proposer a la Altair.
func ProcessAttestation(cfg *config.Config, verifier bls.Verifier, st *types.BeaconState, att *types.Attestation) error {
	data := att.Data
	currentEpoch := CurrentEpoch(cfg, st)
	previousEpoch := PreviousEpoch(cfg, st)

	if data.Target.Epoch != currentEpoch && data.Target.Epoch != previousEpoch {
		return errtypes.Validationf("attestation_target_epoch_invalid", "target epoch %d not in {%d,%d}", data.Target.Epoch, previousEpoch, currentEpoch)
	}
	if data.Target.Epoch != EpochAtSlot(cfg, data.Slot) {
		return errtypes.Validationf("attestation_target_slot_mismatch", "target.epoch must equal epoch_at_slot(data.slot)")
	}
	minSlot := data.Slot + types.Slot(cfg.MinAttestationInclusionDelay)
	maxSlot := data.Slot + types.Slot(cfg.SlotsPerEpoch)
	if st.Slot < minSlot || st.Slot > maxSlot {
		return errtypes.Validationf("attestation_not_in_inclusion_window", "state slot %d outside [%d,%d]", st.Slot, minSlot, maxSlot)
	}

	attestingIndices, err := AttestingIndices(cfg, st, att)
	if err != nil {
		return err
	}

	indexed := &types.IndexedAttestation{AttestingIndices: attestingIndices, Data: data, Signature: att.Signature}
	if err := verifyIndexedAttestation(cfg, verifier, st, indexed); err != nil {
		return err
	}

	participationFlags, err := attestationParticipationFlags(cfg, st, &data)
	if err != nil {
		return err
	}

	var epochParticipation []byte
	if data.Target.Epoch == currentEpoch {
		epochParticipation = st.CurrentEpochParticipation
	} else {
		epochParticipation = st.PreviousEpochParticipation
	}

	proposerIndex, err := GetBeaconProposerIndex(cfg, st)
	if err != nil {
		return err
	}
	proposerRewardDenominator := (types.Gwei(cfg.WeightDenominator) - types.Gwei(cfg.ProposerWeight)) * types.Gwei(cfg.WeightDenominator) / types.Gwei(cfg.ProposerWeight)

	for _, idx := range attestingIndices {
		existing := epochFlagOf(epochParticipation, idx)
		for _, fw := range []struct {
			flag   byte
			weight uint64
		}{
			{timelySourceFlag, cfg.TimelySourceWeight},
			{timelyTargetFlag, cfg.TimelyTargetWeight},
			{timelyHeadFlag, cfg.TimelyHeadWeight},
		} {
			if participationFlags&fw.flag != 0 && existing&fw.flag == 0 {
				existing |= fw.flag
				br := baseReward(cfg, st, idx)
				increaseBalance(st, proposerIndex, br*types.Gwei(fw.weight)/proposerRewardDenominator)
			}
		}
		epochParticipation[idx] = existing
	}
	return nil
}

// attestationParticipationFlags determines which of source/target/head
// the attestation was timely for, relative to the state it lands in.
func attestationParticipationFlags(cfg *config.Config, st *types.BeaconState, data *types.AttestationData) (byte, error) {
	var justifiedCheckpoint types.Checkpoint
	if data.Target.Epoch == CurrentEpoch(cfg, st) {
		justifiedCheckpoint = st.CurrentJustifiedCheckpoint
	} else {
		justifiedCheckpoint = st.PreviousJustifiedCheckpoint
	}
	isMatchingSource := data.Source == justifiedCheckpoint
	if !isMatchingSource {
		return 0, errtypes.Validationf("attestation_source_mismatch", "source checkpoint does not match the applicable justified checkpoint")
	}
	targetRoot, err := GetBlockRoot(cfg, st, data.Target.Epoch)
	if err != nil {
		return 0, err
	}
	isMatchingTarget := data.Target.Root == targetRoot
	headRoot, err := GetBlockRootAtSlot(cfg, st, data.Slot)
	if err != nil {
		return 0, err
	}
	isMatchingHead := isMatchingTarget && data.BeaconBlockRoot == headRoot

	var flags byte
	if uint64(st.Slot-data.Slot) <= uint64(isqrt(cfg.SlotsPerEpoch)) {
		flags |= timelySourceFlag
	}
	if isMatchingTarget {
		flags |= timelyTargetFlag
	}
	if isMatchingHead && st.Slot == data.Slot+types.Slot(cfg.MinAttestationInclusionDelay) {
		flags |= timelyHeadFlag
	}
	return flags, nil
}

// BeaconCommittee returns the set of validator indices assigned to
// committeeIndex at slot, drawn from the full per-epoch shuffling.
func BeaconCommittee(cfg *config.Config, st *types.BeaconState, slot types.Slot, committeeIndex types.CommitteeIndex) ([]types.ValidatorIndex, error) {
	epoch := EpochAtSlot(cfg, slot)
	indices := ActiveValidatorIndices(st, epoch)
	committeesPerSlot := committeeCountPerSlot(cfg, uint64(len(indices)))
	slotOffset := uint64(slot) % cfg.SlotsPerEpoch
	index := slotOffset*committeesPerSlot + uint64(committeeIndex)
	count := committeesPerSlot * cfg.SlotsPerEpoch

	seed := ShuffleSeed(cfg, st, epoch)
	total := uint64(len(indices))
	if total == 0 {
		return nil, errtypes.Validationf("empty_committee_candidate_set", "no active validators at epoch %d", epoch)
	}
	start := total * index / count
	end := total * (index + 1) / count

	out := make([]types.ValidatorIndex, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, indices[computeShuffledIndex(i, total, seed, cfg.ShuffleRoundCount)])
	}
	return out, nil
}

func committeeCountPerSlot(cfg *config.Config, activeCount uint64) uint64 {
	perSlot := activeCount / cfg.SlotsPerEpoch / cfg.TargetCommitteeSize
	if perSlot < 1 {
		perSlot = 1
	}
	if perSlot > cfg.MaxCommitteesPerSlot {
		perSlot = cfg.MaxCommitteesPerSlot
	}
	return perSlot
}

// committeeIndicesFromBits returns the committee indices flagged in an
// Electra attestation's CommitteeBits vector.
func committeeIndicesFromBits(bits types.Bitvector) []types.CommitteeIndex {
	var out []types.CommitteeIndex
	for i := 0; i < len(bits)*8; i++ {
		if bitSet(bits, i) {
			out = append(out, types.CommitteeIndex(i))
		}
	}
	return out
}

// AttestingIndices resolves an Electra attestation's flattened
// AggregationBits against each committee flagged in CommitteeBits,
// concatenated in index order as get_attesting_indices specifies.
func AttestingIndices(cfg *config.Config, st *types.BeaconState, att *types.Attestation) ([]types.ValidatorIndex, error) {
	committeeIndices := committeeIndicesFromBits(att.CommitteeBits)
	var out []types.ValidatorIndex
	offset := 0
	for _, ci := range committeeIndices {
		committee, err := BeaconCommittee(cfg, st, att.Data.Slot, ci)
		if err != nil {
			return nil, err
		}
		for i, idx := range committee {
			if bitSet(types.Bitvector(att.AggregationBits), offset+i) {
				out = append(out, idx)
			}
		}
		offset += len(committee)
	}
	sortValidatorIndices(out)
	return out, nil
}

func sortValidatorIndices(s []types.ValidatorIndex) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
