// Package state implements the Electra beacon-state transition: per-slot,
// per-epoch and per-block processing, plus the pure getters they share.
// The control flow follows the teacher's transition.go orchestration
// (ExecuteStateTransition -> ProcessBlock/ProcessEpoch calling small
// per-concern helpers); shuffling and proposer election are adapted from
// the swap-or-not implementation in the eth2030 research fork.
package state

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/leancore/beacon/config"
	"github.com/leancore/beacon/crypto/hash"
	"github.com/leancore/beacon/errtypes"
	"github.com/leancore/beacon/types"
)

// CurrentEpoch returns the epoch of st.Slot.
func CurrentEpoch(cfg *config.Config, st *types.BeaconState) types.Epoch {
	return types.Epoch(cfg.EpochAtSlot(uint64(st.Slot)))
}

// StartSlotAtEpoch returns the first slot of epoch.
func StartSlotAtEpoch(cfg *config.Config, epoch types.Epoch) types.Slot {
	return types.Slot(cfg.StartSlotAtEpoch(uint64(epoch)))
}

// EpochAtSlot returns the epoch containing slot.
func EpochAtSlot(cfg *config.Config, slot types.Slot) types.Epoch {
	return types.Epoch(cfg.EpochAtSlot(uint64(slot)))
}

// PreviousEpoch returns CurrentEpoch-1, floored at GENESIS_EPOCH.
func PreviousEpoch(cfg *config.Config, st *types.BeaconState) types.Epoch {
	cur := CurrentEpoch(cfg, st)
	if cur == 0 {
		return 0
	}
	return cur - 1
}

// ActiveValidatorIndices returns every validator index active at epoch,
// in registry order.
func ActiveValidatorIndices(st *types.BeaconState, epoch types.Epoch) []types.ValidatorIndex {
	out := make([]types.ValidatorIndex, 0, len(st.Validators))
	for i := range st.Validators {
		if st.Validators[i].IsActive(epoch) {
			out = append(out, types.ValidatorIndex(i))
		}
	}
	return out
}

// TotalBalance sums effective balances for the given indices, floored at
// EFFECTIVE_BALANCE_INCREMENT to avoid division by zero downstream.
func TotalBalance(cfg *config.Config, st *types.BeaconState, indices []types.ValidatorIndex) types.Gwei {
	var total types.Gwei
	for _, i := range indices {
		total += st.Validators[i].EffectiveBalance
	}
	if total < types.Gwei(cfg.EffectiveBalanceIncrement) {
		return types.Gwei(cfg.EffectiveBalanceIncrement)
	}
	return total
}

// TotalActiveBalance sums effective balances of all validators active at
// the current epoch.
func TotalActiveBalance(cfg *config.Config, st *types.BeaconState) types.Gwei {
	return TotalBalance(cfg, st, ActiveValidatorIndices(st, CurrentEpoch(cfg, st)))
}

// domainedSeed derives the per-epoch seed used for shuffling, proposer
// election and sync-committee selection: hash(domain_type || epoch ||
// randao_mix_at(epoch + EPOCHS_PER_HISTORICAL_VECTOR - MIN_SEED_LOOKAHEAD - 1)).
func domainedSeed(cfg *config.Config, st *types.BeaconState, epoch types.Epoch, domainType [4]byte) [32]byte {
	mixEpoch := epoch + types.Epoch(cfg.EpochsPerHistoricalVector) - types.Epoch(cfg.MinSeedLookahead) - 1
	mix := st.RandaoMixes[uint64(mixEpoch)%cfg.EpochsPerHistoricalVector]

	var buf [44]byte
	copy(buf[:4], domainType[:])
	binary.LittleEndian.PutUint64(buf[4:12], uint64(epoch))
	copy(buf[12:], mix[:])
	return sha256.Sum256(buf[:])
}

// ShuffleSeed returns the shuffling/proposer seed for epoch.
func ShuffleSeed(cfg *config.Config, st *types.BeaconState, epoch types.Epoch) [32]byte {
	return domainedSeed(cfg, st, epoch, [4]byte{0x00, 0x00, 0x00, 0x00})
}

// computeShuffledIndex applies the swap-or-not shuffle, adapted from the
// shuffling used for committee and proposer selection across the corpus.
func computeShuffledIndex(index, indexCount uint64, seed [32]byte, rounds int) uint64 {
	if indexCount <= 1 {
		return 0
	}
	cur := index
	for round := 0; round < rounds; round++ {
		var pivotInput [33]byte
		copy(pivotInput[:32], seed[:])
		pivotInput[32] = byte(round)
		pivotHash := sha256.Sum256(pivotInput[:])
		pivot := binary.LittleEndian.Uint64(pivotHash[:8]) % indexCount

		flip := (pivot + indexCount - cur) % indexCount
		position := flip
		if cur > flip {
			position = cur
		}

		var srcInput [37]byte
		copy(srcInput[:32], seed[:])
		srcInput[32] = byte(round)
		binary.LittleEndian.PutUint32(srcInput[33:], uint32(position/256))
		source := sha256.Sum256(srcInput[:])

		byteIdx := (position % 256) / 8
		bitIdx := position % 8
		if (source[byteIdx]>>bitIdx)&1 != 0 {
			cur = flip
		}
	}
	return cur
}

const maxRandomByte = 255

// ComputeProposerIndex picks a proposer from indices, weighted by
// effective balance, using RANDAO-derived randomness over repeated
// shuffled draws until one is accepted.
func ComputeProposerIndex(cfg *config.Config, st *types.BeaconState, indices []types.ValidatorIndex, seed [32]byte) (types.ValidatorIndex, error) {
	if len(indices) == 0 {
		return 0, errtypes.Validationf("empty_proposer_candidate_set", "no active validators")
	}
	total := uint64(len(indices))
	var buf [32 + 8]byte
	copy(buf[:32], seed[:])
	i := uint64(0)
	for {
		shuffledPos := computeShuffledIndex(i%total, total, seed, cfg.ShuffleRoundCount)
		candidate := indices[shuffledPos]

		binary.LittleEndian.PutUint64(buf[32:], i/32)
		randHash := sha256.Sum256(buf[:])
		randByte := uint64(randHash[i%32])

		effBal := uint64(st.Validators[candidate].EffectiveBalance)
		if effBal*maxRandomByte >= uint64(cfg.MaxEffectiveBalanceElectra)*randByte {
			return candidate, nil
		}
		i++
	}
}

// GetBeaconProposerIndex returns the proposer for the state's current slot.
func GetBeaconProposerIndex(cfg *config.Config, st *types.BeaconState) (types.ValidatorIndex, error) {
	epoch := CurrentEpoch(cfg, st)
	seed := domainedSeedForSlot(cfg, st, epoch, st.Slot)
	return ComputeProposerIndex(cfg, st, ActiveValidatorIndices(st, epoch), seed)
}

// domainedSeedForSlot folds the slot into the epoch seed so every slot in
// an epoch gets a distinct proposer draw.
func domainedSeedForSlot(cfg *config.Config, st *types.BeaconState, epoch types.Epoch, slot types.Slot) [32]byte {
	epochSeed := ShuffleSeed(cfg, st, epoch)
	var buf [40]byte
	copy(buf[:32], epochSeed[:])
	binary.LittleEndian.PutUint64(buf[32:], uint64(slot))
	return sha256.Sum256(buf[:])
}

// GetBlockRootAtSlot returns the block root cached at slot, which must be
// within the last SlotsPerHistoricalRoot slots.
func GetBlockRootAtSlot(cfg *config.Config, st *types.BeaconState, slot types.Slot) (types.Root, error) {
	if slot >= st.Slot || st.Slot > slot+types.SlotsPerHistoricalRoot {
		return types.Root{}, errtypes.Validationf("block_root_out_of_range", "slot %d not in range for state at slot %d", slot, st.Slot)
	}
	return st.BlockRoots[uint64(slot)%types.SlotsPerHistoricalRoot], nil
}

// GetBlockRoot returns the block root at the first slot of epoch.
func GetBlockRoot(cfg *config.Config, st *types.BeaconState, epoch types.Epoch) (types.Root, error) {
	return GetBlockRootAtSlot(cfg, st, StartSlotAtEpoch(cfg, epoch))
}

// IsInInactivityLeak reports whether the chain has failed to finalize for
// more than MIN_EPOCHS_TO_INACTIVITY_PENALTY epochs.
func IsInInactivityLeak(cfg *config.Config, st *types.BeaconState) bool {
	return PreviousEpoch(cfg, st)-st.FinalizedCheckpoint.Epoch > types.Epoch(cfg.MinEpochsToInactivityPenalty)
}

// GetValidatorChurnLimit returns the per-epoch activation/exit churn
// limit (Electra: a flat constant, no longer proportional to registry size).
func GetValidatorChurnLimit(cfg *config.Config) types.Gwei {
	return types.Gwei(cfg.MaxPerEpochActivationExitChurnLimit)
}

func GetConsolidationChurnLimit(cfg *config.Config, st *types.BeaconState) types.Gwei {
	limit := GetValidatorChurnLimit(cfg)
	if types.Gwei(cfg.MinPerEpochChurnLimitElectra) > limit {
		return limit
	}
	return limit - types.Gwei(cfg.MinPerEpochChurnLimitElectra)
}

// GetActivationExitChurnLimit is the per-epoch churn shared by deposit
// activation (ProcessPendingDeposits) and exits
// (ComputeExitEpochAndUpdateChurn).
func GetActivationExitChurnLimit(cfg *config.Config, st *types.BeaconState) types.Gwei {
	total := TotalActiveBalance(cfg, st)
	limit := types.Gwei(cfg.MaxPerEpochActivationExitChurnLimit)
	proportional := total / types.Gwei(cfg.ChurnLimitQuotient)
	if proportional < limit {
		return proportional
	}
	return limit
}

// ComputeExitEpochAndUpdateChurn advances EarliestExitEpoch and
// ExitBalanceToConsume to reserve exitBalance's worth of churn, per
// spec.md §4.1.5.
func ComputeExitEpochAndUpdateChurn(cfg *config.Config, st *types.BeaconState, exitBalance types.Gwei) types.Epoch {
	earliestExitEpoch := st.EarliestExitEpoch
	activationExitEpoch := CurrentEpoch(cfg, st) + 1 + types.Epoch(cfg.MaxSeedLookahead)
	if earliestExitEpoch < activationExitEpoch {
		earliestExitEpoch = activationExitEpoch
	}
	churnLimit := GetActivationExitChurnLimit(cfg, st)

	exitBalanceToConsume := st.ExitBalanceToConsume
	if earliestExitEpoch > st.EarliestExitEpoch {
		exitBalanceToConsume = churnLimit
	}

	if exitBalance > exitBalanceToConsume {
		additionalEpochs := (exitBalance-exitBalanceToConsume-1)/churnLimit + 1
		earliestExitEpoch += types.Epoch(additionalEpochs)
		exitBalanceToConsume += types.Gwei(uint64(additionalEpochs)) * churnLimit
	}

	st.ExitBalanceToConsume = exitBalanceToConsume - exitBalance
	st.EarliestExitEpoch = earliestExitEpoch
	return earliestExitEpoch
}

// IsEligibleForActivation reports the Electra activation predicate.
func IsEligibleForActivation(st *types.BeaconState, v *types.Validator) bool {
	return v.ActivationEligibilityEpoch <= st.FinalizedCheckpoint.Epoch &&
		v.ActivationEpoch == types.FarFutureEpoch
}

// GetValidatorFromDeposit builds the registry entry for a brand-new
// depositing pubkey.
func GetValidatorFromDeposit(withdrawalCreds types.WithdrawalCreds, pubkey types.BLSPubkey) *types.Validator {
	return &types.Validator{
		Pubkey:                     pubkey,
		WithdrawalCredentials:      withdrawalCreds,
		EffectiveBalance:           0,
		Slashed:                    false,
		ActivationEligibilityEpoch: types.FarFutureEpoch,
		ActivationEpoch:            types.FarFutureEpoch,
		ExitEpoch:                  types.FarFutureEpoch,
		WithdrawableEpoch:          types.FarFutureEpoch,
	}
}

// ComputeDomain folds a domain type with the fork version and genesis
// validators root, the signing-root namespace every BLS check uses.
func ComputeDomain(domainType [4]byte, forkVersion types.Version, genesisValidatorsRoot types.Root) types.Domain {
	forkDataRoot := computeForkDataRoot(forkVersion, genesisValidatorsRoot)
	var d types.Domain
	copy(d[:4], domainType[:])
	copy(d[4:], forkDataRoot[:28])
	return d
}

func computeForkDataRoot(forkVersion types.Version, genesisValidatorsRoot types.Root) types.Root {
	var buf [36]byte
	copy(buf[:4], forkVersion[:])
	copy(buf[4:], genesisValidatorsRoot[:])
	return hash.HashBytes(buf[:])
}

// ComputeSigningRoot mixes a message root with its signing domain.
func ComputeSigningRoot(messageRoot types.Root, domain types.Domain) types.Root {
	var buf [64]byte
	copy(buf[:32], messageRoot[:])
	copy(buf[32:], domain[:])
	return hash.HashBytes(buf[:])
}
