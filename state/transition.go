package state

import (
	"fmt"

	"github.com/leancore/beacon/config"
	"github.com/leancore/beacon/crypto/bls"
	"github.com/leancore/beacon/errtypes"
	"github.com/leancore/beacon/execution"
	"github.com/leancore/beacon/types"
)

// Verifiers bundles the pure capability traits the transition consumes.
// Passed explicitly to every entry point rather than stashed on a
// receiver, so a caller can swap in mocks per spec.md §9 "Dynamic dispatch".
type Verifiers struct {
	BLS    bls.Verifier
	Engine execution.ExecutionEngine
}

// ProcessSlot snapshots the pre-state root and header root into the ring
// buffers before the slot advances, per spec.md §4.1.1.
func ProcessSlot(cfg *config.Config, st *types.BeaconState) error {
	stateRoot, err := st.HashTreeRoot()
	if err != nil {
		return errtypes.Storage("process_slot_state_root", err)
	}
	st.StateRoots[uint64(st.Slot)%types.SlotsPerHistoricalRoot] = types.Root(stateRoot)

	if st.LatestBlockHeader.StateRoot == types.ZeroRoot {
		st.LatestBlockHeader.StateRoot = types.Root(stateRoot)
	}

	headerRoot, err := st.LatestBlockHeader.HashTreeRoot()
	if err != nil {
		return errtypes.Storage("process_slot_header_root", err)
	}
	st.BlockRoots[uint64(st.Slot)%types.SlotsPerHistoricalRoot] = types.Root(headerRoot)
	return nil
}

// ProcessSlots advances st from its current slot up to (but not
// including) targetSlot, running ProcessEpoch at every epoch boundary
// crossed along the way. Per spec.md §4.1.1, targetSlot must exceed the
// current slot.
func ProcessSlots(cfg *config.Config, st *types.BeaconState, targetSlot types.Slot) error {
	if st.Slot >= targetSlot {
		return errtypes.Validationf("process_slots_non_increasing", "target slot %d must exceed current slot %d", targetSlot, st.Slot)
	}
	for st.Slot < targetSlot {
		if err := ProcessSlot(cfg, st); err != nil {
			return err
		}
		if (st.Slot+1)%types.Slot(cfg.SlotsPerEpoch) == 0 {
			if err := ProcessEpoch(cfg, st); err != nil {
				return err
			}
		}
		st.Slot++
	}
	return nil
}

// StateTransition is the top-level entry point: advance slots up to
// block.Slot, then apply the block's own processing. When validateResult
// is true the resulting state root is checked against block.StateRoot
// (false lets a proposer compute the root for a block still being built).
func StateTransition(cfg *config.Config, v Verifiers, st *types.BeaconState, signed *types.SignedBeaconBlock, validateResult bool) error {
	block := &signed.Message
	if st.Slot < block.Slot {
		if err := ProcessSlots(cfg, st, block.Slot); err != nil {
			return err
		}
	}

	if err := verifyProposerSignature(cfg, v.BLS, st, signed); err != nil {
		return err
	}

	if err := ProcessBlock(cfg, v, st, block); err != nil {
		return err
	}

	if validateResult {
		root, err := st.HashTreeRoot()
		if err != nil {
			return errtypes.Storage("state_transition_state_root", err)
		}
		if types.Root(root) != block.StateRoot {
			return errtypes.Validationf("state_root_mismatch", "computed %x, block declares %x", root, block.StateRoot)
		}
	}
	return nil
}

func verifyProposerSignature(cfg *config.Config, verifier bls.Verifier, st *types.BeaconState, signed *types.SignedBeaconBlock) error {
	proposer := st.Validators[signed.Message.ProposerIndex]
	domain := ComputeDomain(cfg.DomainBeaconProposer, st.Fork.CurrentVersion, st.GenesisValidatorsRoot)
	msgRoot, err := signed.Message.HashTreeRoot()
	if err != nil {
		return errtypes.Storage("proposer_signature_root", err)
	}
	signingRoot := ComputeSigningRoot(types.Root(msgRoot), domain)
	if !verifier.Verify(proposer.Pubkey[:], signingRoot[:], signed.Signature[:]) {
		return errtypes.Validationf("invalid_proposer_signature", "proposer %d", signed.Message.ProposerIndex)
	}
	return nil
}

// ProcessBlock applies every per-block processing step in order
// (spec.md §4.1.3), aborting on the first rule violation without
// mutating st further (callers always operate on clones, so a partial
// application here is simply discarded by the caller).
func ProcessBlock(cfg *config.Config, v Verifiers, st *types.BeaconState, block *types.BeaconBlock) error {
	if err := ProcessBlockHeader(cfg, st, block); err != nil {
		return fmt.Errorf("process_block_header: %w", err)
	}
	if err := ProcessWithdrawals(cfg, st, &block.Body.ExecutionPayload); err != nil {
		return fmt.Errorf("process_withdrawals: %w", err)
	}
	if err := ProcessExecutionPayload(cfg, v, st, block); err != nil {
		return fmt.Errorf("process_execution_payload: %w", err)
	}
	if err := ProcessRandao(cfg, v.BLS, st, block); err != nil {
		return fmt.Errorf("process_randao: %w", err)
	}
	ProcessEth1Data(cfg, st, &block.Body.Eth1Data)
	if err := ProcessOperations(cfg, v, st, block); err != nil {
		return fmt.Errorf("process_operations: %w", err)
	}
	if err := ProcessSyncAggregate(cfg, v.BLS, st, &block.Body.SyncAggregate); err != nil {
		return fmt.Errorf("process_sync_aggregate: %w", err)
	}
	return nil
}
