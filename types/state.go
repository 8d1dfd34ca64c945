package types

import ssz "github.com/ferranbt/fastssz"

// Ring-buffer and list-limit constants from the Electra mainnet preset.
// Runtime behaviour (modulo indexing, churn, etc.) reads these from
// config.Config instead; these are the SSZ container's fixed capacities,
// which are schema, not configuration.
const (
	SlotsPerHistoricalRoot      = 8192
	EpochsPerHistoricalVector   = 65536
	EpochsPerSlashingsVector    = 8192
	HistoricalRootsLimit        = 16777216
	ValidatorRegistryLimit      = 1099511627776
	Eth1DataVotesLength         = 2048 // EPOCHS_PER_ETH1_VOTING_PERIOD * SLOTS_PER_EPOCH
	HistoricalSummariesLimit    = 16777216
	PendingDepositsLimit        = 134217728
	PendingPartialWithdrawalsLimit = 134217728
	PendingConsolidationsLimit  = 262144
)

// HistoricalSummary replaces a full HistoricalBatch entry once
// historical_roots is frozen, per the Capella "summaries" design.
type HistoricalSummary struct {
	BlockSummaryRoot Root
	StateSummaryRoot Root
}

func (h *HistoricalSummary) HashTreeRoot() ([32]byte, error) { return htr(h) }

func (h *HistoricalSummary) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(h.BlockSummaryRoot[:])
	hh.PutBytes(h.StateSummaryRoot[:])
	hh.Merkleize(indx)
	return nil
}

// BeaconState is the full Electra consensus state (spec.md §3).
type BeaconState struct {
	GenesisTime           uint64
	GenesisValidatorsRoot Root
	Slot                  Slot
	Fork                  Fork

	LatestBlockHeader BeaconBlockHeader
	BlockRoots        [SlotsPerHistoricalRoot]Root
	StateRoots        [SlotsPerHistoricalRoot]Root
	HistoricalRoots   []Root

	Eth1Data         Eth1Data
	Eth1DataVotes    []Eth1Data
	Eth1DepositIndex uint64

	Validators []Validator
	Balances   []Gwei

	RandaoMixes [EpochsPerHistoricalVector]Root

	Slashings [EpochsPerSlashingsVector]Gwei

	PreviousEpochParticipation []byte
	CurrentEpochParticipation  []byte

	JustificationBits           [1]byte // 4-bit bitvector packed in the low nibble
	PreviousJustifiedCheckpoint Checkpoint
	CurrentJustifiedCheckpoint  Checkpoint
	FinalizedCheckpoint         Checkpoint

	InactivityScores []uint64

	CurrentSyncCommittee SyncCommittee
	NextSyncCommittee    SyncCommittee

	LatestExecutionPayloadHeader ExecutionPayloadHeader

	NextWithdrawalIndex          uint64
	NextWithdrawalValidatorIndex ValidatorIndex

	HistoricalSummaries []HistoricalSummary

	DepositRequestsStartIndex    uint64
	DepositBalanceToConsume      Gwei
	ExitBalanceToConsume         Gwei
	EarliestExitEpoch            Epoch
	ConsolidationBalanceToConsume Gwei
	EarliestConsolidationEpoch   Epoch
	PendingDeposits              []PendingDeposit
	PendingPartialWithdrawals    []PendingPartialWithdrawal
	PendingConsolidations        []PendingConsolidation
}

func (s *BeaconState) HashTreeRoot() ([32]byte, error) { return htr(s) }

func (s *BeaconState) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()

	hh.PutUint64(s.GenesisTime)
	hh.PutBytes(s.GenesisValidatorsRoot[:])
	hh.PutUint64(uint64(s.Slot))
	if err := s.Fork.HashTreeRootWith(hh); err != nil {
		return err
	}
	if err := s.LatestBlockHeader.HashTreeRootWith(hh); err != nil {
		return err
	}
	{
		sub := hh.Index()
		for i := range s.BlockRoots {
			hh.PutBytes(s.BlockRoots[i][:])
		}
		hh.Merkleize(sub)
	}
	{
		sub := hh.Index()
		for i := range s.StateRoots {
			hh.PutBytes(s.StateRoots[i][:])
		}
		hh.Merkleize(sub)
	}
	{
		sub := hh.Index()
		for i := range s.HistoricalRoots {
			hh.PutBytes(s.HistoricalRoots[i][:])
		}
		hh.MerkleizeWithMixin(sub, uint64(len(s.HistoricalRoots)), HistoricalRootsLimit)
	}
	if err := s.Eth1Data.HashTreeRootWith(hh); err != nil {
		return err
	}
	{
		sub := hh.Index()
		for i := range s.Eth1DataVotes {
			if err := s.Eth1DataVotes[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(sub, uint64(len(s.Eth1DataVotes)), Eth1DataVotesLength)
	}
	hh.PutUint64(s.Eth1DepositIndex)
	{
		sub := hh.Index()
		for i := range s.Validators {
			if err := s.Validators[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(sub, uint64(len(s.Validators)), ValidatorRegistryLimit)
	}
	{
		sub := hh.Index()
		for _, b := range s.Balances {
			hh.PutUint64(uint64(b))
		}
		hh.FillUpTo32()
		hh.MerkleizeWithMixin(sub, uint64(len(s.Balances)), ValidatorRegistryLimit)
	}
	{
		sub := hh.Index()
		for i := range s.RandaoMixes {
			hh.PutBytes(s.RandaoMixes[i][:])
		}
		hh.Merkleize(sub)
	}
	{
		sub := hh.Index()
		for _, v := range s.Slashings {
			hh.PutUint64(uint64(v))
		}
		hh.Merkleize(sub)
	}
	{
		sub := hh.Index()
		hh.PutBytes(s.PreviousEpochParticipation)
		hh.MerkleizeWithMixin(sub, uint64(len(s.PreviousEpochParticipation)), ValidatorRegistryLimit)
	}
	{
		sub := hh.Index()
		hh.PutBytes(s.CurrentEpochParticipation)
		hh.MerkleizeWithMixin(sub, uint64(len(s.CurrentEpochParticipation)), ValidatorRegistryLimit)
	}
	hh.PutBytes(s.JustificationBits[:])
	if err := s.PreviousJustifiedCheckpoint.HashTreeRootWith(hh); err != nil {
		return err
	}
	if err := s.CurrentJustifiedCheckpoint.HashTreeRootWith(hh); err != nil {
		return err
	}
	if err := s.FinalizedCheckpoint.HashTreeRootWith(hh); err != nil {
		return err
	}
	{
		sub := hh.Index()
		for _, v := range s.InactivityScores {
			hh.PutUint64(v)
		}
		hh.FillUpTo32()
		hh.MerkleizeWithMixin(sub, uint64(len(s.InactivityScores)), ValidatorRegistryLimit)
	}
	if err := s.CurrentSyncCommittee.HashTreeRootWith(hh); err != nil {
		return err
	}
	if err := s.NextSyncCommittee.HashTreeRootWith(hh); err != nil {
		return err
	}
	if err := s.LatestExecutionPayloadHeader.HashTreeRootWith(hh); err != nil {
		return err
	}
	hh.PutUint64(s.NextWithdrawalIndex)
	hh.PutUint64(uint64(s.NextWithdrawalValidatorIndex))
	{
		sub := hh.Index()
		for i := range s.HistoricalSummaries {
			if err := s.HistoricalSummaries[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(sub, uint64(len(s.HistoricalSummaries)), HistoricalSummariesLimit)
	}
	hh.PutUint64(s.DepositRequestsStartIndex)
	hh.PutUint64(uint64(s.DepositBalanceToConsume))
	hh.PutUint64(uint64(s.ExitBalanceToConsume))
	hh.PutUint64(uint64(s.EarliestExitEpoch))
	hh.PutUint64(uint64(s.ConsolidationBalanceToConsume))
	hh.PutUint64(uint64(s.EarliestConsolidationEpoch))
	{
		sub := hh.Index()
		for i := range s.PendingDeposits {
			if err := s.PendingDeposits[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(sub, uint64(len(s.PendingDeposits)), PendingDepositsLimit)
	}
	{
		sub := hh.Index()
		for i := range s.PendingPartialWithdrawals {
			if err := s.PendingPartialWithdrawals[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(sub, uint64(len(s.PendingPartialWithdrawals)), PendingPartialWithdrawalsLimit)
	}
	{
		sub := hh.Index()
		for i := range s.PendingConsolidations {
			if err := s.PendingConsolidations[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(sub, uint64(len(s.PendingConsolidations)), PendingConsolidationsLimit)
	}

	hh.Merkleize(indx)
	return nil
}

// Copy returns a deep copy of the state. Every per-block and per-epoch
// processing step mutates a clone, never the original, per spec.md §7.
func (s *BeaconState) Copy() *BeaconState {
	cp := *s
	cp.LatestBlockHeader = *s.LatestBlockHeader.Copy()
	cp.HistoricalRoots = append([]Root(nil), s.HistoricalRoots...)
	cp.Eth1DataVotes = append([]Eth1Data(nil), s.Eth1DataVotes...)
	cp.Validators = make([]Validator, len(s.Validators))
	for i := range s.Validators {
		cp.Validators[i] = *s.Validators[i].Copy()
	}
	cp.Balances = append([]Gwei(nil), s.Balances...)
	cp.PreviousEpochParticipation = append([]byte(nil), s.PreviousEpochParticipation...)
	cp.CurrentEpochParticipation = append([]byte(nil), s.CurrentEpochParticipation...)
	cp.InactivityScores = append([]uint64(nil), s.InactivityScores...)
	cp.HistoricalSummaries = append([]HistoricalSummary(nil), s.HistoricalSummaries...)
	cp.PendingDeposits = append([]PendingDeposit(nil), s.PendingDeposits...)
	cp.PendingPartialWithdrawals = append([]PendingPartialWithdrawal(nil), s.PendingPartialWithdrawals...)
	cp.PendingConsolidations = append([]PendingConsolidation(nil), s.PendingConsolidations...)
	return &cp
}
