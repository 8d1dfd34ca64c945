package state

import (
	"crypto/sha256"

	ssz "github.com/ferranbt/fastssz"
	"github.com/sirupsen/logrus"

	"github.com/leancore/beacon/config"
	"github.com/leancore/beacon/types"
)

var log = logrus.WithField("prefix", "state")

// ProcessEpoch applies every per-epoch transition in order, per spec.md
// §4.1.2: justification/finalization, rewards/penalties, registry
// updates, slashings, and the trailing resets. The teacher's
// process_epoch.go groups these the same way, one function per concern.
func ProcessEpoch(cfg *config.Config, st *types.BeaconState) error {
	ProcessJustificationAndFinalization(cfg, st)
	ProcessInactivityUpdates(cfg, st)
	ProcessRewardsAndPenalties(cfg, st)
	if err := ProcessRegistryUpdates(cfg, st); err != nil {
		return err
	}
	if err := ProcessSlashingsReset(cfg, st); err != nil {
		return err
	}
	ProcessEth1DataReset(cfg, st)
	if err := ProcessPendingDeposits(cfg, st); err != nil {
		return err
	}
	if err := ProcessPendingConsolidations(cfg, st); err != nil {
		return err
	}
	ProcessEffectiveBalanceUpdates(cfg, st)
	ProcessSlashingsVectorReset(cfg, st)
	ProcessRandaoMixesReset(cfg, st)
	if err := ProcessHistoricalSummariesUpdate(cfg, st); err != nil {
		return err
	}
	ProcessParticipationFlagUpdates(st)
	if err := ProcessSyncCommitteeUpdates(cfg, st); err != nil {
		return err
	}
	return nil
}

// Participation flag bit positions (TIMELY_SOURCE/TARGET/HEAD), matching
// the packed byte each validator's ParticipationFlags slot holds.
const (
	timelySourceFlag = 1 << 0
	timelyTargetFlag = 1 << 1
	timelyHeadFlag   = 1 << 2
)

func hasFlag(flags byte, flag byte) bool { return flags&flag != 0 }

// unslashedParticipatingBalance sums effective balances of unslashed
// validators whose participation for epoch includes flag.
func unslashedParticipatingBalance(cfg *config.Config, st *types.BeaconState, flag byte, epochParticipation []byte, epoch types.Epoch) types.Gwei {
	var total types.Gwei
	for i := range st.Validators {
		if st.Validators[i].Slashed || !st.Validators[i].IsActive(epoch) {
			continue
		}
		if i < len(epochParticipation) && hasFlag(epochParticipation[i], flag) {
			total += st.Validators[i].EffectiveBalance
		}
	}
	if total < types.Gwei(cfg.EffectiveBalanceIncrement) {
		return types.Gwei(cfg.EffectiveBalanceIncrement)
	}
	return total
}

// ProcessJustificationAndFinalization rotates the justification bits and
// advances the justified/finalized checkpoints per Casper FFG's 4-epoch
// lookback rule (spec.md §4.1.2 step 1).
func ProcessJustificationAndFinalization(cfg *config.Config, st *types.BeaconState) {
	currentEpoch := CurrentEpoch(cfg, st)
	if currentEpoch <= types.Epoch(cfg.GenesisEpoch)+1 {
		return
	}
	previousEpoch := PreviousEpoch(cfg, st)
	totalActive := TotalActiveBalance(cfg, st)

	previousTargetBalance := unslashedParticipatingBalance(cfg, st, timelyTargetFlag, st.PreviousEpochParticipation, previousEpoch)
	currentTargetBalance := unslashedParticipatingBalance(cfg, st, timelyTargetFlag, st.CurrentEpochParticipation, currentEpoch)

	oldPrevJustified := st.PreviousJustifiedCheckpoint
	oldCurrJustified := st.CurrentJustifiedCheckpoint

	st.PreviousJustifiedCheckpoint = oldCurrJustified

	bits := st.JustificationBits[0]
	bits = (bits << 1) & 0x0F

	if uint64(previousTargetBalance)*3 >= uint64(totalActive)*2 {
		root, err := GetBlockRoot(cfg, st, previousEpoch)
		if err == nil {
			st.CurrentJustifiedCheckpoint = types.Checkpoint{Epoch: previousEpoch, Root: root}
			bits |= 0x02
			log.Infof("Previous epoch %d was justified", previousEpoch)
		}
	}
	if uint64(currentTargetBalance)*3 >= uint64(totalActive)*2 {
		root, err := GetBlockRoot(cfg, st, currentEpoch)
		if err == nil {
			st.CurrentJustifiedCheckpoint = types.Checkpoint{Epoch: currentEpoch, Root: root}
			bits |= 0x01
			log.Infof("Current epoch %d was justified", currentEpoch)
		}
	}
	st.JustificationBits[0] = bits

	// Finalization: 4 distinct source-distance rules, checked against the
	// *pre-rotation* justified checkpoints captured above.
	if bits&0x0E == 0x0E && oldPrevJustified.Epoch+3 == currentEpoch {
		st.FinalizedCheckpoint = oldPrevJustified
		log.Infof("New finalized epoch: %d", st.FinalizedCheckpoint.Epoch)
	}
	if bits&0x06 == 0x06 && oldPrevJustified.Epoch+2 == currentEpoch {
		st.FinalizedCheckpoint = oldPrevJustified
		log.Infof("New finalized epoch: %d", st.FinalizedCheckpoint.Epoch)
	}
	if bits&0x07 == 0x07 && oldCurrJustified.Epoch+2 == currentEpoch {
		st.FinalizedCheckpoint = oldCurrJustified
		log.Infof("New finalized epoch: %d", st.FinalizedCheckpoint.Epoch)
	}
	if bits&0x03 == 0x03 && oldCurrJustified.Epoch+1 == currentEpoch {
		st.FinalizedCheckpoint = oldCurrJustified
		log.Infof("New finalized epoch: %d", st.FinalizedCheckpoint.Epoch)
	}

	reportEpochTransitionMetrics(st)
}

// ProcessEth1DataReset clears the eth1 vote accumulator at the end of a
// voting period.
func ProcessEth1DataReset(cfg *config.Config, st *types.BeaconState) {
	nextEpoch := CurrentEpoch(cfg, st) + 1
	if uint64(nextEpoch)%cfg.EpochsPerEth1VotingPeriod == 0 {
		st.Eth1DataVotes = nil
	}
}

// ProcessSlashingsVectorReset zeroes the slashings-vector entry that is
// about to be reused EPOCHS_PER_SLASHINGS_VECTOR epochs from now.
func ProcessSlashingsVectorReset(cfg *config.Config, st *types.BeaconState) {
	nextEpoch := CurrentEpoch(cfg, st) + 1
	st.Slashings[uint64(nextEpoch)%cfg.EpochsPerSlashingsVector] = 0
}

// ProcessSlashingsReset pays out the deferred slashing penalty for every
// validator whose withdrawable_epoch matures this epoch, proportional to
// the total balance slashed in the surrounding window (spec.md §4.1.2).
func ProcessSlashingsReset(cfg *config.Config, st *types.BeaconState) error {
	epoch := CurrentEpoch(cfg, st)
	totalBalance := TotalActiveBalance(cfg, st)

	var sumSlashings types.Gwei
	for _, s := range st.Slashings {
		sumSlashings += s
	}
	adjusted := sumSlashings * types.Gwei(cfg.ProportionalSlashingMultiplierBellatrix)
	if adjusted > totalBalance {
		adjusted = totalBalance
	}

	increment := types.Gwei(cfg.EffectiveBalanceIncrement)
	for i := range st.Validators {
		v := &st.Validators[i]
		if v.Slashed && epoch+types.Epoch(cfg.EpochsPerSlashingsVector)/2 == v.WithdrawableEpoch {
			penaltyNumerator := v.EffectiveBalance / increment * adjusted
			penalty := penaltyNumerator / totalBalance * increment
			decreaseBalance(st, types.ValidatorIndex(i), penalty)
		}
	}
	return nil
}

// ProcessRandaoMixesReset copies the current epoch's randao mix forward
// into the slot MIN_SEED_LOOKAHEAD epochs ahead will consume.
func ProcessRandaoMixesReset(cfg *config.Config, st *types.BeaconState) {
	currentEpoch := CurrentEpoch(cfg, st)
	nextEpoch := currentEpoch + 1
	st.RandaoMixes[uint64(nextEpoch)%cfg.EpochsPerHistoricalVector] = st.RandaoMixes[uint64(currentEpoch)%cfg.EpochsPerHistoricalVector]
}

// ProcessHistoricalSummariesUpdate appends a new (block_roots, state_roots)
// summary once a full SlotsPerHistoricalRoot window has elapsed.
func ProcessHistoricalSummariesUpdate(cfg *config.Config, st *types.BeaconState) error {
	nextEpoch := CurrentEpoch(cfg, st) + 1
	if uint64(nextEpoch)%(types.SlotsPerHistoricalRoot/cfg.SlotsPerEpoch) != 0 {
		return nil
	}
	var blockRootsList, stateRootsList []types.Root
	blockRootsList = append(blockRootsList, st.BlockRoots[:]...)
	stateRootsList = append(stateRootsList, st.StateRoots[:]...)
	blockRoot, err := vectorRoot(blockRootsList)
	if err != nil {
		return err
	}
	stateRoot, err := vectorRoot(stateRootsList)
	if err != nil {
		return err
	}
	st.HistoricalSummaries = append(st.HistoricalSummaries, types.HistoricalSummary{
		BlockSummaryRoot: blockRoot,
		StateSummaryRoot: stateRoot,
	})
	return nil
}

func vectorRoot(roots []types.Root) (types.Root, error) {
	hh := ssz.NewHasher()
	sub := hh.Index()
	for i := range roots {
		hh.PutBytes(roots[i][:])
	}
	hh.Merkleize(sub)
	root, err := hh.HashRoot()
	return types.Root(root), err
}

// ProcessParticipationFlagUpdates rotates current->previous participation
// and clears the current-epoch slate for the new epoch.
func ProcessParticipationFlagUpdates(st *types.BeaconState) {
	st.PreviousEpochParticipation = st.CurrentEpochParticipation
	st.CurrentEpochParticipation = make([]byte, len(st.Validators))
}

// ProcessSyncCommitteeUpdates rotates the sync committee at a period
// boundary, drawing the new NextSyncCommittee from the post-update
// registry.
func ProcessSyncCommitteeUpdates(cfg *config.Config, st *types.BeaconState) error {
	nextEpoch := CurrentEpoch(cfg, st) + 1
	if uint64(nextEpoch)%cfg.EpochsPerSyncCommitteePeriod != 0 {
		return nil
	}
	st.CurrentSyncCommittee = st.NextSyncCommittee
	next, err := ComputeSyncCommittee(cfg, st, nextEpoch+types.Epoch(cfg.EpochsPerSyncCommitteePeriod))
	if err != nil {
		return err
	}
	st.NextSyncCommittee = *next
	return nil
}

// ComputeSyncCommittee draws SYNC_COMMITTEE_SIZE pubkeys (with
// replacement, balance-weighted) effective at epoch.
func ComputeSyncCommittee(cfg *config.Config, st *types.BeaconState, epoch types.Epoch) (*types.SyncCommittee, error) {
	indices := ActiveValidatorIndices(st, epoch)
	seed := domainedSeed(cfg, st, epoch, [4]byte{0x06, 0x00, 0x00, 0x00})
	out := &types.SyncCommittee{}
	total := uint64(len(indices))
	if total == 0 {
		return out, nil
	}
	i := uint64(0)
	for picked := 0; picked < int(cfg.SyncCommitteeSize); {
		shuffledPos := computeShuffledIndex(i%total, total, seed, cfg.ShuffleRoundCount)
		candidate := indices[shuffledPos]

		effBal := uint64(st.Validators[candidate].EffectiveBalance)
		randByte := deriveRandomByte(seed, i)
		if effBal*maxRandomByte >= uint64(cfg.MaxEffectiveBalanceElectra)*uint64(randByte) {
			out.Pubkeys[picked] = st.Validators[candidate].Pubkey
			picked++
		}
		i++
	}
	return out, nil
}

// deriveRandomByte matches the per-draw randomness source used by
// ComputeProposerIndex, reseeded per 32-draw batch.
func deriveRandomByte(seed [32]byte, i uint64) byte {
	var buf [40]byte
	copy(buf[:32], seed[:])
	for j := 0; j < 8; j++ {
		buf[32+j] = byte((i / 32) >> (8 * j))
	}
	digest := sha256.Sum256(buf[:])
	return digest[i%32]
}
