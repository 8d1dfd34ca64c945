// Package lean implements the lean chain (spec.md §4.3): the
// post-quantum research track's simplified consensus — a state
// transition over LeanState/LeanBlock, a vote-weighted fork-choice head,
// and a `3·count ≥ 2·N` justification/finalization accumulator. Grounded
// on the `ream` (Rust) original's state.rs and lean_chain.rs, translated
// into the teacher's error-taxonomy/mutex-owned-store idiom used by the
// forkchoice package.
package lean

import (
	"bytes"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/leancore/beacon/errtypes"
	"github.com/leancore/beacon/types"
)

var log = logrus.WithField("prefix", "lean")

// JustificationMap is the decoded form of LeanState's flattened
// justifications_roots/justifications_validators lists: which validators
// have voted to justify each pending root.
type JustificationMap map[types.Root]types.Bitlist

func bitlistBytes(numBits int) int {
	return (numBits + 7) / 8
}

func bitGet(data types.Bitlist, i int) bool {
	byteIdx := i / 8
	if byteIdx < 0 || byteIdx >= len(data) {
		return false
	}
	return data[byteIdx]&(1<<uint(i%8)) != 0
}

func bitSetTrue(data *types.Bitlist, i int) {
	byteIdx := i / 8
	for byteIdx >= len(*data) {
		*data = append(*data, 0)
	}
	(*data)[byteIdx] |= 1 << uint(i%8)
}

func popcount(data types.Bitlist, n int) int {
	count := 0
	for i := 0; i < n; i++ {
		if bitGet(data, i) {
			count++
		}
	}
	return count
}

// GetJustifications reconstructs a root -> voter-bitlist map from st's
// flattened SSZ lists, mirroring ream's state.rs get_justifications.
func GetJustifications(st *types.LeanState) JustificationMap {
	n := int(st.Config.NumValidators)
	out := make(JustificationMap, len(st.JustificationsRoots))
	for i, root := range st.JustificationsRoots {
		bits := make(types.Bitlist, bitlistBytes(n))
		base := i * n
		for v := 0; v < n; v++ {
			if bitGet(st.JustificationsValidators, base+v) {
				bitSetTrue(&bits, v)
			}
		}
		out[root] = bits
	}
	return out
}

// SetJustifications flattens m back into st's justifications_roots and
// justifications_validators lists, sorted by root so the SSZ encoding is
// deterministic regardless of Go's map iteration order, mirroring ream's
// set_justifications.
func SetJustifications(st *types.LeanState, m JustificationMap) {
	n := int(st.Config.NumValidators)
	roots := make([]types.Root, 0, len(m))
	for r := range m {
		roots = append(roots, r)
	}
	sort.Slice(roots, func(i, j int) bool { return bytes.Compare(roots[i][:], roots[j][:]) < 0 })

	flattened := make(types.Bitlist, bitlistBytes(len(roots)*n))
	for i, root := range roots {
		bits := m[root]
		base := i * n
		for v := 0; v < n; v++ {
			if bitGet(bits, v) {
				bitSetTrue(&flattened, base+v)
			}
		}
	}
	st.JustificationsRoots = roots
	st.JustificationsValidators = flattened
}

// StateTransition advances st through every empty slot up to
// signed.Message.Slot, applies the block, and — if validateResult — checks
// the block's declared state root against the result. validSignatures is
// supplied by the caller; PQ vote/block signature verification itself is
// outside this module (spec.md's "BLS/KZG primitives consumed via trait
// only" applies analogously here — the lean chain has no signature trait
// defined in scope).
func StateTransition(st *types.LeanState, signed *types.SignedLeanBlock, validSignatures, validateResult bool) error {
	if !validSignatures {
		return errtypes.Validationf("lean_invalid_signature", "signature is not valid")
	}
	block := &signed.Message
	if err := ProcessSlots(st, block.Slot); err != nil {
		return err
	}
	if err := ProcessBlock(st, block); err != nil {
		return err
	}
	if validateResult {
		root, err := st.HashTreeRoot()
		if err != nil {
			return errtypes.Storage("lean_state_root", err)
		}
		if block.StateRoot != types.Root(root) {
			return errtypes.Validationf("lean_state_root_mismatch", "block's declared state root does not match the transitioned state")
		}
	}
	return nil
}

// ProcessSlots advances st one slot at a time up to (not including a
// block at) slot, caching the pre-block state root into
// latest_block_header the first time each slot is touched.
func ProcessSlots(st *types.LeanState, slot types.Slot) error {
	if st.Slot >= slot {
		return errtypes.Validationf("lean_slot_not_advancing", "state slot %d must be less than target slot %d", st.Slot, slot)
	}
	for st.Slot < slot {
		if err := processSlot(st); err != nil {
			return err
		}
		st.Slot++
	}
	return nil
}

func processSlot(st *types.LeanState) error {
	if st.LatestBlockHeader.StateRoot == types.ZeroRoot {
		root, err := st.HashTreeRoot()
		if err != nil {
			return errtypes.Storage("lean_slot_state_root", err)
		}
		st.LatestBlockHeader.StateRoot = types.Root(root)
	}
	return nil
}

// ProcessBlock runs the header check and then every operation in the
// block body (currently just attestations — other lean operations land
// here as the research track grows them).
func ProcessBlock(st *types.LeanState, block *types.LeanBlock) error {
	if err := processBlockHeader(st, block); err != nil {
		return err
	}
	return ProcessAttestations(st, block.Body.Attestations)
}

func processBlockHeader(st *types.LeanState, block *types.LeanBlock) error {
	if block.Slot != st.Slot {
		return errtypes.Validationf("lean_block_slot_mismatch", "block slot %d does not match state slot %d", block.Slot, st.Slot)
	}
	if block.Slot <= st.LatestBlockHeader.Slot {
		return errtypes.Validationf("lean_block_not_newer", "block slot %d is not after latest header slot %d", block.Slot, st.LatestBlockHeader.Slot)
	}
	if uint64(block.ProposerIndex) != uint64(block.Slot)%st.Config.NumValidators {
		return errtypes.Validationf("lean_block_wrong_proposer", "proposer %d is not slot %d's designated proposer", block.ProposerIndex, block.Slot)
	}
	parentHeaderRoot, err := st.LatestBlockHeader.HashTreeRoot()
	if err != nil {
		return errtypes.Storage("lean_latest_header_root", err)
	}
	if block.ParentRoot != types.Root(parentHeaderRoot) {
		return errtypes.Validationf("lean_block_parent_mismatch", "block's parent_root does not match the latest block header root")
	}

	// The genesis block root can only be computed after the genesis
	// state exists, so the first real block (post-genesis) patches the
	// checkpoints' root fields to the genesis root it was built against,
	// resolving the circular dependency (spec.md §9).
	if st.LatestBlockHeader.Slot == 0 {
		st.LatestJustified.Root = block.ParentRoot
		st.LatestFinalized.Root = block.ParentRoot
	}

	st.HistoricalBlockHashes = append(st.HistoricalBlockHashes, block.ParentRoot)
	st.JustifiedSlots = append(st.JustifiedSlots, st.LatestBlockHeader.Slot == 0)

	emptySlots := uint64(block.Slot) - uint64(st.LatestBlockHeader.Slot) - 1
	for i := uint64(0); i < emptySlots; i++ {
		st.HistoricalBlockHashes = append(st.HistoricalBlockHashes, types.ZeroRoot)
		st.JustifiedSlots = append(st.JustifiedSlots, false)
	}

	bodyRoot, err := block.Body.HashTreeRoot()
	if err != nil {
		return errtypes.Storage("lean_block_body_root", err)
	}
	st.LatestBlockHeader = types.LeanBlockHeader{
		Slot: block.Slot, ProposerIndex: block.ProposerIndex,
		ParentRoot: block.ParentRoot, StateRoot: types.ZeroRoot, BodyRoot: types.Root(bodyRoot),
	}
	return nil
}

// ProcessAttestations folds a block's votes into the justification
// accumulator, justifying and possibly finalizing checkpoints along the
// way, per spec.md §4.3.5.
func ProcessAttestations(st *types.LeanState, attestations []types.SignedVote) error {
	justifications := GetJustifications(st)
	numValidators := int(st.Config.NumValidators)

	for _, signed := range attestations {
		vote := signed.Message

		if int(vote.Source.Slot) >= len(st.JustifiedSlots) {
			return errtypes.Validationf("lean_vote_source_unknown", "source slot %d has no justified_slots entry", vote.Source.Slot)
		}
		if !st.JustifiedSlots[vote.Source.Slot] {
			continue
		}
		if int(vote.Target.Slot) >= len(st.JustifiedSlots) {
			return errtypes.Validationf("lean_vote_target_unknown", "target slot %d has no justified_slots entry", vote.Target.Slot)
		}
		if st.JustifiedSlots[vote.Target.Slot] {
			continue
		}
		if vote.Source.Root != st.HistoricalBlockHashes[vote.Source.Slot] {
			continue
		}
		if vote.Target.Root != st.HistoricalBlockHashes[vote.Target.Slot] {
			continue
		}
		if vote.Target.Slot <= vote.Source.Slot {
			continue
		}
		if !isJustifiableSlot(st.LatestFinalized.Slot, vote.Target.Slot) {
			continue
		}

		bits, ok := justifications[vote.Target.Root]
		if !ok {
			bits = make(types.Bitlist, bitlistBytes(numValidators))
		}
		bitSetTrue(&bits, int(vote.ValidatorID))
		justifications[vote.Target.Root] = bits

		if count := popcount(bits, numValidators); 3*count >= 2*numValidators {
			st.LatestJustified = vote.Target
			st.JustifiedSlots[vote.Target.Slot] = true
			delete(justifications, vote.Target.Root)
			log.Infof("Justification event: slot=%d root=%x", vote.Target.Slot, vote.Target.Root)
			justifiedSlotGauge.Set(float64(vote.Target.Slot))

			if isNextJustifiableSlot(st.LatestFinalized.Slot, vote.Source.Slot, vote.Target.Slot) {
				st.LatestFinalized = vote.Source
				log.Infof("Finalization event: slot=%d root=%x", vote.Source.Slot, vote.Source.Root)
				finalizedSlotGauge.Set(float64(vote.Source.Slot))
			}
		}
	}

	SetJustifications(st, justifications)
	return nil
}

// isNextJustifiableSlot reports whether no slot strictly between source
// and target is itself justifiable against finalizedSlot — i.e. target is
// the very next justifiable checkpoint after source, the finalization
// trigger condition from spec.md §4.3.5.
func isNextJustifiableSlot(finalizedSlot, sourceSlot, targetSlot types.Slot) bool {
	for slot := sourceSlot + 1; slot < targetSlot; slot++ {
		if isJustifiableSlot(finalizedSlot, slot) {
			return false
		}
	}
	return true
}
