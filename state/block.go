package state

import (
	"context"

	"github.com/leancore/beacon/config"
	"github.com/leancore/beacon/crypto/bls"
	"github.com/leancore/beacon/crypto/hash"
	"github.com/leancore/beacon/errtypes"
	"github.com/leancore/beacon/types"
)

// ProcessBlockHeader validates the incoming block's envelope against the
// cached LatestBlockHeader and caches a new header with a zero state root
// (filled in at the next ProcessSlot), per spec.md §4.1.3.
func ProcessBlockHeader(cfg *config.Config, st *types.BeaconState, block *types.BeaconBlock) error {
	if block.Slot != st.Slot {
		return errtypes.Validationf("block_slot_mismatch", "block.slot %d != state.slot %d", block.Slot, st.Slot)
	}
	if block.Slot <= st.LatestBlockHeader.Slot {
		return errtypes.Validationf("block_slot_not_increasing", "block.slot %d must exceed latest header slot %d", block.Slot, st.LatestBlockHeader.Slot)
	}
	proposer, err := GetBeaconProposerIndex(cfg, st)
	if err != nil {
		return err
	}
	if block.ProposerIndex != proposer {
		return errtypes.Validationf("wrong_proposer", "block declares proposer %d, expected %d", block.ProposerIndex, proposer)
	}

	headerRoot, err := st.LatestBlockHeader.HashTreeRoot()
	if err != nil {
		return errtypes.Storage("latest_header_root", err)
	}
	if block.ParentRoot != types.Root(headerRoot) {
		return errtypes.Validationf("parent_root_mismatch", "block.parent_root != tree_hash_root(latest_block_header)")
	}

	if st.Validators[block.ProposerIndex].Slashed {
		return errtypes.Validationf("proposer_slashed", "proposer %d is slashed", block.ProposerIndex)
	}

	bodyRoot, err := block.Body.HashTreeRoot()
	if err != nil {
		return errtypes.Storage("body_root", err)
	}
	st.LatestBlockHeader = types.BeaconBlockHeader{
		Slot:          block.Slot,
		ProposerIndex: block.ProposerIndex,
		ParentRoot:    block.ParentRoot,
		StateRoot:     types.ZeroRoot,
		BodyRoot:      types.Root(bodyRoot),
	}
	return nil
}

// ProcessRandao verifies the proposer's RANDAO reveal and mixes it into
// the current epoch's randao_mixes entry.
func ProcessRandao(cfg *config.Config, verifier bls.Verifier, st *types.BeaconState, block *types.BeaconBlock) error {
	epoch := CurrentEpoch(cfg, st)
	proposer := st.Validators[block.ProposerIndex]

	domain := ComputeDomain(cfg.DomainRandao, st.Fork.CurrentVersion, st.GenesisValidatorsRoot)
	epochRoot := epochSigningRoot(epoch)
	signingRoot := ComputeSigningRoot(epochRoot, domain)
	reveal := block.Body.RandaoReveal
	if !verifier.Verify(proposer.Pubkey[:], signingRoot[:], reveal[:]) {
		return errtypes.Validationf("invalid_randao_reveal", "proposer %d", block.ProposerIndex)
	}

	mixIdx := uint64(epoch) % cfg.EpochsPerHistoricalVector
	current := st.RandaoMixes[mixIdx]
	revealHash := hash.HashBytes(reveal[:])
	st.RandaoMixes[mixIdx] = mixHash(current, types.Root(revealHash))
	return nil
}

func epochSigningRoot(epoch types.Epoch) types.Root {
	var buf [32]byte
	b := uint64(epoch)
	for i := 0; i < 8; i++ {
		buf[i] = byte(b >> (8 * i))
	}
	return buf
}

// mixHash xors two roots, the RANDAO combination primitive.
func mixHash(a, b types.Root) types.Root {
	var out types.Root
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// ProcessEth1Data records the block's eth1 vote and latches it into
// state.Eth1Data once a majority accumulates within the voting period.
func ProcessEth1Data(cfg *config.Config, st *types.BeaconState, vote *types.Eth1Data) {
	st.Eth1DataVotes = append(st.Eth1DataVotes, *vote)
	count := 0
	for _, v := range st.Eth1DataVotes {
		if v == *vote {
			count++
		}
	}
	if uint64(count*2) > cfg.EpochsPerEth1VotingPeriod*cfg.SlotsPerEpoch {
		st.Eth1Data = *vote
	}
}

// ProcessWithdrawals computes the expected withdrawal set (pending
// partials first, then a validator sweep) and requires the payload's
// withdrawal list to match exactly, per spec.md §4.1.3.
func ProcessWithdrawals(cfg *config.Config, st *types.BeaconState, payload *types.ExecutionPayload) error {
	expected, partialCount := ExpectedWithdrawals(cfg, st)
	if len(payload.Withdrawals) != len(expected) {
		return errtypes.Validationf("withdrawals_count_mismatch", "got %d, expected %d", len(payload.Withdrawals), len(expected))
	}
	for i := range expected {
		if payload.Withdrawals[i] != expected[i] {
			return errtypes.Validationf("withdrawals_mismatch", "withdrawal %d does not match expected", i)
		}
	}

	for _, w := range expected {
		decreaseBalance(st, w.ValidatorIndex, w.Amount)
	}

	// Drop the pending-partial entries that were just paid out.
	st.PendingPartialWithdrawals = st.PendingPartialWithdrawals[partialCount:]

	if len(expected) > 0 {
		st.NextWithdrawalIndex = uint64(expected[len(expected)-1].Index) + 1
	}
	if len(expected) == int(cfg.MaxWithdrawalsPerPayload) {
		last := expected[len(expected)-1]
		st.NextWithdrawalValidatorIndex = (last.ValidatorIndex + 1) % types.ValidatorIndex(len(st.Validators))
	} else {
		st.NextWithdrawalValidatorIndex = (st.NextWithdrawalValidatorIndex + types.ValidatorIndex(cfg.MaxPendingPartialsPerWithdrawalsSweep)) % types.ValidatorIndex(len(st.Validators))
	}
	return nil
}

// ExpectedWithdrawals returns the withdrawal list a proposer must include
// this slot and the number of pending-partial entries consumed.
func ExpectedWithdrawals(cfg *config.Config, st *types.BeaconState) ([]types.Withdrawal, int) {
	epoch := CurrentEpoch(cfg, st)
	withdrawalIndex := st.NextWithdrawalIndex
	var out []types.Withdrawal

	partialsConsumed := 0
	for _, pw := range st.PendingPartialWithdrawals {
		if uint64(len(out)) >= cfg.MaxPendingPartialsPerWithdrawalsSweep || pw.WithdrawableEpoch > epoch {
			break
		}
		v := &st.Validators[pw.ValidatorIndex]
		hasBalance := st.Balances[pw.ValidatorIndex] > types.Gwei(cfg.MinActivationBalance)
		isWithdrawable := v.ExitEpoch == types.FarFutureEpoch
		if hasBalance && isWithdrawable {
			amount := pw.Amount
			if excess := st.Balances[pw.ValidatorIndex] - types.Gwei(cfg.MinActivationBalance); excess < amount {
				amount = excess
			}
			out = append(out, types.Withdrawal{
				Index: withdrawalIndex, ValidatorIndex: pw.ValidatorIndex,
				Address: executionAddress(v), Amount: amount,
			})
			withdrawalIndex++
		}
		partialsConsumed++
	}

	validatorIndex := st.NextWithdrawalValidatorIndex
	n := types.ValidatorIndex(len(st.Validators))
	if n == 0 {
		return out, partialsConsumed
	}
	bound := n
	if bound > types.ValidatorIndex(cfg.MaxPendingPartialsPerWithdrawalsSweep*4) {
		bound = types.ValidatorIndex(cfg.MaxPendingPartialsPerWithdrawalsSweep * 4)
	}
	for i := types.ValidatorIndex(0); i < bound && uint64(len(out)) < cfg.MaxWithdrawalsPerPayload; i++ {
		idx := (validatorIndex + i) % n
		v := &st.Validators[idx]
		balance := st.Balances[idx]
		amount := withdrawableAmount(cfg, v, balance)
		if amount > 0 {
			out = append(out, types.Withdrawal{
				Index: withdrawalIndex, ValidatorIndex: idx, Address: executionAddress(v), Amount: amount,
			})
			withdrawalIndex++
		}
	}
	return out, partialsConsumed
}

func executionAddress(v *types.Validator) types.ExecutionAddr {
	var addr types.ExecutionAddr
	copy(addr[:], v.WithdrawalCredentials[12:])
	return addr
}

func withdrawableAmount(cfg *config.Config, v *types.Validator, balance types.Gwei) types.Gwei {
	isFullyWithdrawable := v.HasExecutionWithdrawalCredential() && v.WithdrawableEpoch <= types.FarFutureEpoch && v.ExitEpoch != types.FarFutureEpoch
	if isFullyWithdrawable {
		return balance
	}
	if v.HasCompoundingWithdrawalCredential() && balance > types.Gwei(cfg.MinActivationBalance) {
		return balance - types.Gwei(cfg.MinActivationBalance)
	}
	return 0
}

func decreaseBalance(st *types.BeaconState, idx types.ValidatorIndex, amount types.Gwei) {
	if amount > st.Balances[idx] {
		st.Balances[idx] = 0
		return
	}
	st.Balances[idx] -= amount
}

func increaseBalance(st *types.BeaconState, idx types.ValidatorIndex, amount types.Gwei) {
	st.Balances[idx] += amount
}

// ProcessExecutionPayload checks parent-hash/prev-randao/timestamp
// continuity, enforces the blob-count ceiling, and hands the payload to
// the execution engine for verification before caching its header.
func ProcessExecutionPayload(cfg *config.Config, v Verifiers, st *types.BeaconState, block *types.BeaconBlock) error {
	payload := &block.Body.ExecutionPayload
	if payload.ParentHash != st.LatestExecutionPayloadHeader.BlockHash {
		return errtypes.Validationf("parent_hash_mismatch", "payload.parent_hash != latest cached block hash")
	}
	expectedRandao := st.RandaoMixes[uint64(CurrentEpoch(cfg, st))%cfg.EpochsPerHistoricalVector]
	if payload.PrevRandao != expectedRandao {
		return errtypes.Validationf("prev_randao_mismatch", "payload.prev_randao != current randao mix")
	}
	expectedTimestamp := st.GenesisTime + (uint64(block.Slot)-cfg.GenesisSlot)*cfg.SecondsPerSlot
	if payload.Timestamp != expectedTimestamp {
		return errtypes.Validationf("timestamp_mismatch", "payload.timestamp %d != expected %d", payload.Timestamp, expectedTimestamp)
	}
	if uint64(len(block.Body.BlobKZGCommitments)) > cfg.MaxBlobsPerBlockElectra {
		return errtypes.Validationf("too_many_blobs", "%d commitments exceeds limit %d", len(block.Body.BlobKZGCommitments), cfg.MaxBlobsPerBlockElectra)
	}

	versionedHashes := make([]types.VersionedHash, len(block.Body.BlobKZGCommitments))
	for i, c := range block.Body.BlobKZGCommitments {
		versionedHashes[i] = commitmentToVersionedHash(c)
	}

	parentRoot, err := st.LatestBlockHeader.HashTreeRoot()
	if err != nil {
		return errtypes.Storage("parent_beacon_root", err)
	}
	accepted, err := v.Engine.VerifyAndNotifyNewPayload(context.Background(), payload, versionedHashes, types.Root(parentRoot), &block.Body.ExecutionRequests)
	if err != nil {
		return errtypes.EngineUnavailable(err)
	}
	if !accepted {
		return errtypes.Validationf("execution_payload_rejected", "execution engine rejected new payload")
	}

	header, err := types.HeaderFromPayload(payload)
	if err != nil {
		return errtypes.Storage("execution_payload_header", err)
	}
	st.LatestExecutionPayloadHeader = *header
	return nil
}

// commitmentToVersionedHash derives EIP-4844's versioned hash (0x01
// prefix || sha256(commitment)[1:]) from a KZG commitment.
func commitmentToVersionedHash(commitment [48]byte) types.VersionedHash {
	digest := hash.HashBytes(commitment[:])
	var out types.VersionedHash
	out[0] = 0x01
	copy(out[1:], digest[1:])
	return out
}

// CommitmentToVersionedHash is the exported form commitmentToVersionedHash
// uses internally, shared with the fork-choice store's data-availability
// check so both sites derive the same versioned hash from a commitment.
func CommitmentToVersionedHash(commitment [48]byte) types.VersionedHash {
	return commitmentToVersionedHash(commitment)
}

// ProcessSyncAggregate verifies the sync committee's aggregate signature
// over the previous slot's block root and pays participants/proposer.
func ProcessSyncAggregate(cfg *config.Config, verifier bls.Verifier, st *types.BeaconState, agg *types.SyncAggregate) error {
	committee := st.CurrentSyncCommittee
	var participantPubkeys [][]byte
	for i, pk := range committee.Pubkeys {
		if bitSet(agg.SyncCommitteeBits, i) {
			p := pk
			participantPubkeys = append(participantPubkeys, p[:])
		}
	}

	prevSlot := types.Slot(0)
	if st.Slot > 0 {
		prevSlot = st.Slot - 1
	}
	prevRoot, err := GetBlockRootAtSlotLoose(st, prevSlot)
	if err != nil {
		return err
	}
	domain := ComputeDomain(cfg.DomainSyncCommittee, st.Fork.CurrentVersion, st.GenesisValidatorsRoot)
	signingRoot := ComputeSigningRoot(prevRoot, domain)

	if len(participantPubkeys) > 0 && !verifier.FastAggregateVerify(participantPubkeys, signingRoot[:], agg.SyncCommitteeSignature[:]) {
		return errtypes.Validationf("invalid_sync_committee_signature", "aggregate signature check failed")
	}

	totalActiveIncrements := TotalActiveBalance(cfg, st) / types.Gwei(cfg.EffectiveBalanceIncrement)
	totalBaseRewards := baseRewardPerIncrement(cfg, st) * types.Gwei(totalActiveIncrements)
	maxParticipantRewards := totalBaseRewards * types.Gwei(cfg.SyncRewardWeight) / types.Gwei(cfg.WeightDenominator) / types.Gwei(cfg.SlotsPerEpoch)
	participantReward := maxParticipantRewards / types.Gwei(cfg.SyncCommitteeSize)
	proposerReward := participantReward * types.Gwei(cfg.ProposerWeight) / (types.Gwei(cfg.WeightDenominator) - types.Gwei(cfg.ProposerWeight))

	proposerIndex, err := GetBeaconProposerIndex(cfg, st)
	if err != nil {
		return err
	}
	for i, pk := range committee.Pubkeys {
		idx, ok := validatorIndexByPubkey(st, pk)
		if !ok {
			continue
		}
		if bitSet(agg.SyncCommitteeBits, i) {
			increaseBalance(st, idx, participantReward)
			increaseBalance(st, proposerIndex, proposerReward)
		} else {
			decreaseBalance(st, idx, participantReward)
		}
	}
	return nil
}

func bitSet(bits types.Bitvector, i int) bool {
	if i/8 >= len(bits) {
		return false
	}
	return bits[i/8]&(1<<uint(i%8)) != 0
}

func validatorIndexByPubkey(st *types.BeaconState, pubkey types.BLSPubkey) (types.ValidatorIndex, bool) {
	for i := range st.Validators {
		if st.Validators[i].Pubkey == pubkey {
			return types.ValidatorIndex(i), true
		}
	}
	return 0, false
}

// GetBlockRootAtSlotLoose is like GetBlockRootAtSlot but tolerates slot ==
// state.Slot (used by process_sync_aggregate, where "previous slot" can
// equal the state's own pre-advance slot at genesis).
func GetBlockRootAtSlotLoose(st *types.BeaconState, slot types.Slot) (types.Root, error) {
	if st.Slot > slot+types.SlotsPerHistoricalRoot {
		return types.Root{}, errtypes.Validationf("block_root_out_of_range", "slot %d too far in the past", slot)
	}
	return st.BlockRoots[uint64(slot)%types.SlotsPerHistoricalRoot], nil
}
