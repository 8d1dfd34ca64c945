// Package config holds the Electra preset and the chain-wide constants the
// state transition and fork-choice store are parameterized by. Network
// parameters are process-wide in spirit but are modeled here as an explicit
// object passed to constructors rather than a package-level mutable
// singleton, per the "Global state" design note.
package config

// Config collects every preset constant consumed by the state transition,
// fork choice, and lean chain. Values below match the Electra mainnet
// preset; callers building minimal/test configs should start from
// Mainnet() and override only what a scenario needs.
type Config struct {
	// Time
	SecondsPerSlot   uint64
	SlotsPerEpoch    uint64
	IntervalsPerSlot uint64

	GenesisSlot  uint64
	GenesisEpoch uint64
	FarFutureEpoch uint64

	// Ring buffer / list sizes
	SlotsPerHistoricalRoot   uint64
	EpochsPerSlashingsVector uint64
	EpochsPerHistoricalVector uint64
	HistoricalRootsLimit     uint64
	ValidatorRegistryLimit   uint64

	// Rewards and penalties
	BaseRewardFactor                        uint64
	WeightDenominator                       uint64
	TimelySourceWeight                      uint64
	TimelyTargetWeight                      uint64
	TimelyHeadWeight                        uint64
	SyncRewardWeight                        uint64
	ProposerWeight                          uint64
	InactivityScoreBias                     uint64
	InactivityScoreRecoveryRate             uint64
	InactivityPenaltyQuotientBellatrix      uint64
	ProportionalSlashingMultiplierBellatrix uint64
	MinSlashingPenaltyQuotientElectra       uint64
	WhistleblowerRewardQuotient             uint64

	// Validator lifecycle
	MinActivationBalance                 uint64
	EjectionBalance                      uint64
	MinValidatorWithdrawabilityDelay     uint64
	ShardCommitteePeriod                 uint64
	MaxEffectiveBalanceElectra           uint64
	EffectiveBalanceIncrement            uint64
	HysteresisQuotient                   uint64
	HysteresisDownwardMultiplier         uint64
	HysteresisUpwardMultiplier           uint64
	MinPerEpochChurnLimitElectra         uint64
	MaxPerEpochActivationExitChurnLimit  uint64
	MinActivationBalanceChurnLimitFactor uint64
	ChurnLimitQuotient                   uint64
	MinSeedLookahead                     uint64
	MaxSeedLookahead                     uint64
	ShuffleRoundCount                    int
	MinEpochsToInactivityPenalty         uint64

	// Attestations
	MinAttestationInclusionDelay uint64
	MaxCommitteesPerSlot         uint64
	TargetCommitteeSize          uint64
	MaxValidatorsPerCommittee    uint64

	// Fork versioning
	GenesisForkVersion [4]byte

	// Signature domains (first 4 bytes of every signing domain)
	DomainBeaconProposer      [4]byte
	DomainBeaconAttester      [4]byte
	DomainRandao              [4]byte
	DomainVoluntaryExit       [4]byte
	DomainSyncCommittee       [4]byte
	DomainBLSToExecutionChange [4]byte
	DomainDeposit              [4]byte

	// Deposits / withdrawals / consolidations
	MaxDepositsPerBlock          uint64
	MaxPendingDepositsPerEpoch   uint64
	MaxWithdrawalsPerPayload     uint64
	MaxPendingPartialsPerWithdrawalsSweep uint64
	MaxConsolidationRequestsPerPayload    uint64

	// Eth1
	EpochsPerEth1VotingPeriod uint64

	// Sync committee
	SyncCommitteeSize              uint64
	EpochsPerSyncCommitteePeriod   uint64

	// Blobs
	MaxBlobsPerBlockElectra uint64

	// Fork choice
	ProposerScoreBoost                  uint64
	ReorgHeadWeightThreshold            uint64
	ReorgParentWeightThreshold          uint64
	ReorgMaxEpochsSinceFinalization     uint64

	// Lean chain (§4.3 / PQ research track)
	LeanHistoricalRootsLimit uint64
	LeanJustificationBitlistCap uint64
}

// Mainnet returns the Electra mainnet preset.
func Mainnet() *Config {
	return &Config{
		SecondsPerSlot:   12,
		SlotsPerEpoch:    32,
		IntervalsPerSlot: 3,

		GenesisSlot:    0,
		GenesisEpoch:   0,
		FarFutureEpoch: ^uint64(0),

		SlotsPerHistoricalRoot:    8192,
		EpochsPerSlashingsVector:  8192,
		EpochsPerHistoricalVector: 65536,
		HistoricalRootsLimit:      1 << 24,
		ValidatorRegistryLimit:    1 << 40,

		BaseRewardFactor:                        64,
		WeightDenominator:                       64,
		TimelySourceWeight:                      14,
		TimelyTargetWeight:                      26,
		TimelyHeadWeight:                        14,
		SyncRewardWeight:                        2,
		ProposerWeight:                          8,
		InactivityScoreBias:                     4,
		InactivityScoreRecoveryRate:             16,
		InactivityPenaltyQuotientBellatrix:      16777216,
		ProportionalSlashingMultiplierBellatrix: 3,
		MinSlashingPenaltyQuotientElectra:       4096,
		WhistleblowerRewardQuotient:             512,

		MinActivationBalance:                 32_000_000_000,
		EjectionBalance:                      16_000_000_000,
		MinValidatorWithdrawabilityDelay:     256,
		ShardCommitteePeriod:                 256,
		MaxEffectiveBalanceElectra:           2048_000_000_000,
		EffectiveBalanceIncrement:            1_000_000_000,
		HysteresisQuotient:                   4,
		HysteresisDownwardMultiplier:         1,
		HysteresisUpwardMultiplier:           5,
		MinPerEpochChurnLimitElectra:         128_000_000_000,
		MaxPerEpochActivationExitChurnLimit:  256_000_000_000,
		MinActivationBalanceChurnLimitFactor: 1,
		ChurnLimitQuotient:                   65536,
		MinSeedLookahead:                     1,
		MaxSeedLookahead:                     4,
		ShuffleRoundCount:                    90,
		MinEpochsToInactivityPenalty:         4,

		MinAttestationInclusionDelay: 1,
		MaxCommitteesPerSlot:         64,
		TargetCommitteeSize:          128,
		MaxValidatorsPerCommittee:    2048,

		GenesisForkVersion: [4]byte{0x00, 0x00, 0x00, 0x00},

		DomainBeaconProposer:       [4]byte{0x00, 0x00, 0x00, 0x00},
		DomainBeaconAttester:       [4]byte{0x01, 0x00, 0x00, 0x00},
		DomainRandao:               [4]byte{0x02, 0x00, 0x00, 0x00},
		DomainVoluntaryExit:        [4]byte{0x04, 0x00, 0x00, 0x00},
		DomainSyncCommittee:        [4]byte{0x07, 0x00, 0x00, 0x00},
		DomainBLSToExecutionChange: [4]byte{0x0A, 0x00, 0x00, 0x00},
		DomainDeposit:              [4]byte{0x03, 0x00, 0x00, 0x00},

		MaxDepositsPerBlock:                   16,
		MaxPendingDepositsPerEpoch:            16,
		MaxWithdrawalsPerPayload:              16,
		MaxPendingPartialsPerWithdrawalsSweep: 8,
		MaxConsolidationRequestsPerPayload:    2,

		EpochsPerEth1VotingPeriod: 64,

		SyncCommitteeSize:            512,
		EpochsPerSyncCommitteePeriod: 256,

		MaxBlobsPerBlockElectra: 9,

		ProposerScoreBoost:              40,
		ReorgHeadWeightThreshold:        20,
		ReorgParentWeightThreshold:      160,
		ReorgMaxEpochsSinceFinalization: 2,

		LeanHistoricalRootsLimit:    262144,
		LeanJustificationBitlistCap: 4096,
	}
}

// Minimal returns a small preset suited to unit tests and local scenarios,
// mirroring the "minimal" preset used throughout the teacher's spectest
// harness (smaller epoch length, smaller validator-facing constants).
func Minimal() *Config {
	c := Mainnet()
	c.SlotsPerEpoch = 8
	c.SlotsPerHistoricalRoot = 64
	c.EpochsPerSlashingsVector = 64
	c.EpochsPerHistoricalVector = 64
	c.EpochsPerEth1VotingPeriod = 4
	c.EpochsPerSyncCommitteePeriod = 8
	c.ShardCommitteePeriod = 64
	c.MinValidatorWithdrawabilityDelay = 8
	return c
}

// StartSlotAtEpoch returns the first slot of the given epoch.
func (c *Config) StartSlotAtEpoch(epoch uint64) uint64 {
	return epoch * c.SlotsPerEpoch
}

// EpochAtSlot returns the epoch containing the given slot.
func (c *Config) EpochAtSlot(slot uint64) uint64 {
	return slot / c.SlotsPerEpoch
}

// IsShufflingStable reports whether slot is not the first slot of its
// epoch, i.e. the committee shuffling carried over from the prior slot is
// still valid for proposer-reorg purposes.
func (c *Config) IsShufflingStable(slot uint64) bool {
	return slot%c.SlotsPerEpoch != 0
}

// Features toggles small, reviewed behavioral switches. Unlike Config,
// these are not protocol constants — its one field records the lean
// finalization Open Question decision in DESIGN.md (kept as an explicit
// struct, not global mutable flags, per the teacher's shared/featureconfig
// pattern). No code path reads it.
type Features struct {
	// StrictLeanFinalization names the 3sf-mini strict
	// `source.slot+1 == target.slot` finalization rule; lean/state.go does
	// not read it and always applies the looser rule. Always false:
	// spec.md's Open Questions section requires preserving the "no
	// justifiable slot in between" rule instead. Kept as a field (not
	// deleted) so the divergence is documented in code, not just prose.
	StrictLeanFinalization bool
}

// DefaultFeatures returns the feature set this module is built against.
func DefaultFeatures() *Features {
	return &Features{StrictLeanFinalization: false}
}
