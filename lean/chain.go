package lean

import (
	"sync"

	"github.com/leancore/beacon/errtypes"
	"github.com/leancore/beacon/storage"
	"github.com/leancore/beacon/types"
)

// LeanChain is the single-owner actor for one lean-chain instance,
// mirroring forkchoice.Store's shape: an in-memory block/state tree
// behind a mutex, with KVStore as the persistence mirror. Grounded on
// ream's LeanChain (lean_chain.rs), minus the validator_id field — a
// single LeanChain here can serve proposals/votes for any of the
// validators passed into ProposeBlock/BuildVote, rather than managing
// exactly one.
type LeanChain struct {
	kv storage.KVStore

	mu sync.Mutex

	blocks   map[types.Root]*types.LeanBlock
	states   map[types.Root]*types.LeanState
	children map[types.Root][]types.Root

	// latestNewVotes holds gossip votes not yet folded into
	// latestKnownVotes (spec.md §4.3.2's acceptance window).
	latestNewVotes   map[uint64]types.SignedVote
	latestKnownVotes map[uint64]types.SignedVote

	genesisRoot   types.Root
	numValidators uint64
	safeTarget    types.Root
	head          types.Root
}

// New anchors a LeanChain at genesisBlock/genesisState, which must agree
// on their state root (the circular-dependency resolution in
// processBlockHeader only fires once that first real block arrives).
func New(genesisBlock *types.SignedLeanBlock, genesisState *types.LeanState, kv storage.KVStore) (*LeanChain, error) {
	stateRoot, err := genesisState.HashTreeRoot()
	if err != nil {
		return nil, errtypes.Storage("lean_genesis_state_root", err)
	}
	if genesisBlock.Message.StateRoot != types.Root(stateRoot) {
		return nil, errtypes.Validationf("lean_genesis_state_root_mismatch", "genesis block's state_root does not match genesis state")
	}
	genesisRootBytes, err := genesisBlock.Message.HashTreeRoot()
	if err != nil {
		return nil, errtypes.Storage("lean_genesis_block_root", err)
	}
	genesisRoot := types.Root(genesisRootBytes)

	c := &LeanChain{
		kv: kv,

		blocks:   map[types.Root]*types.LeanBlock{genesisRoot: &genesisBlock.Message},
		states:   map[types.Root]*types.LeanState{genesisRoot: genesisState},
		children: make(map[types.Root][]types.Root),

		latestNewVotes:   make(map[uint64]types.SignedVote),
		latestKnownVotes: make(map[uint64]types.SignedVote),

		genesisRoot:   genesisRoot,
		numValidators: genesisState.Config.NumValidators,
		safeTarget:    genesisRoot,
		head:          genesisRoot,
	}

	if kv != nil {
		if err := kv.Insert(storage.TableLeanBlock, genesisRoot, storage.EncodeSlotPrefixed(0, nil)); err != nil {
			return nil, errtypes.Storage("lean_genesis_persist_block", err)
		}
	}
	return c, nil
}

// Head returns the chain's current fork-choice head root.
func (c *LeanChain) Head() types.Root {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head
}

// SafeTarget returns the most recently computed safe-voting-target root.
func (c *LeanChain) SafeTarget() types.Root {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.safeTarget
}

func (c *LeanChain) Block(root types.Root) (*types.LeanBlock, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.blocks[root]
	return b, ok
}

func (c *LeanChain) State(root types.Root) (*types.LeanState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[root]
	return st, ok
}

// UpdateSafeTarget recomputes safe_target from latest_new_votes with a
// 2/3-of-N weight floor, restricted to the subtree rooted at the latest
// justified checkpoint (spec.md §4.3.1). Called at slot fraction 2/4.
func (c *LeanChain) UpdateSafeTarget() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	justifiedRoot, err := c.latestJustifiedRootLocked()
	if err != nil {
		return err
	}
	minScore := (c.numValidators*2 + 2) / 3
	target, err := c.forkChoiceHead(c.latestNewVotes, justifiedRoot, minScore)
	if err != nil {
		return err
	}
	c.safeTarget = target
	return nil
}

// AcceptNewVotes folds latest_new_votes into latest_known_votes (keeping,
// per validator, whichever vote has the higher slot) and recomputes the
// head. Called at slot fraction 3/4 and at block-proposal time (spec.md
// §4.3.2/§4.3.3).
func (c *LeanChain) AcceptNewVotes() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acceptNewVotesLocked()
}

func (c *LeanChain) acceptNewVotesLocked() error {
	for id, vote := range c.latestNewVotes {
		existing, ok := c.latestKnownVotes[id]
		if !ok || existing.Message.Slot < vote.Message.Slot {
			c.latestKnownVotes[id] = vote
			if c.kv != nil {
				if err := c.kv.PutVote(types.ValidatorIndex(id), nil); err != nil {
					return errtypes.Storage("lean_persist_vote", err)
				}
			}
		}
	}
	c.latestNewVotes = make(map[uint64]types.SignedVote)
	return c.updateHeadLocked()
}

func (c *LeanChain) updateHeadLocked() error {
	justifiedRoot, err := c.latestJustifiedRootLocked()
	if err != nil {
		return err
	}
	head, err := c.forkChoiceHead(c.latestKnownVotes, justifiedRoot, 0)
	if err != nil {
		return err
	}
	c.head = head
	return nil
}

func (c *LeanChain) latestJustifiedRootLocked() (types.Root, error) {
	st, ok := c.states[c.genesisRoot]
	if !ok {
		return types.Root{}, errtypes.Storage("lean_genesis_state_missing", nil)
	}
	// Every post-genesis state shares the same latest_justified as of its
	// own slot; the genesis state always holds the chain-wide default
	// until the first justification event, after which callers care about
	// head's own state. Use head's state once a head has been elected.
	// Until the first block patches it, the checkpoint root is the zero
	// placeholder, which stands for the genesis block.
	root := st.LatestJustified.Root
	if headState, ok := c.states[c.head]; ok {
		root = headState.LatestJustified.Root
	}
	if root == types.ZeroRoot {
		return c.genesisRoot, nil
	}
	return root, nil
}

// OnAttestationFromGossip records a single gossip vote into
// latest_new_votes, keeping only the highest-slot vote per validator.
func (c *LeanChain) OnAttestationFromGossip(signed types.SignedVote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := signed.Message.ValidatorID
	if existing, ok := c.latestNewVotes[id]; !ok || existing.Message.Slot < signed.Message.Slot {
		c.latestNewVotes[id] = signed
	}
}

// OnAttestationFromBlock batch-ingests the votes carried in a freshly
// validated block body, clearing any now-stale entry out of
// latest_new_votes and updating latest_known_votes directly (blocks skip
// the acceptance-window buffering gossip votes go through).
func (c *LeanChain) OnAttestationFromBlock(votes []types.SignedVote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onAttestationFromBlockLocked(votes)
}

// OnBlock validates and applies signed against its parent's post-state,
// then folds its votes in and recomputes the head, per ream's
// lean_chain.rs on_block.
func (c *LeanChain) OnBlock(signed *types.SignedLeanBlock) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	blockRootBytes, err := signed.Message.HashTreeRoot()
	if err != nil {
		return errtypes.Storage("lean_block_root", err)
	}
	blockRoot := types.Root(blockRootBytes)
	if _, known := c.blocks[blockRoot]; known {
		return nil
	}

	parentState, ok := c.states[signed.Message.ParentRoot]
	if !ok {
		return errtypes.Ignoref("lean_unknown_parent", "parent %x not known", signed.Message.ParentRoot)
	}
	state := parentState.Copy()
	if err := StateTransition(state, signed, true, true); err != nil {
		return err
	}

	block := signed.Message
	c.blocks[blockRoot] = &block
	c.states[blockRoot] = state
	c.children[block.ParentRoot] = append(c.children[block.ParentRoot], blockRoot)

	if c.kv != nil {
		if err := c.kv.Insert(storage.TableLeanBlock, blockRoot, storage.EncodeSlotPrefixed(block.Slot, nil)); err != nil {
			return errtypes.Storage("lean_persist_block", err)
		}
	}

	if err := c.onAttestationFromBlockLocked(block.Body.Attestations); err != nil {
		return err
	}
	return c.updateHeadLocked()
}

// onAttestationFromBlockLocked is OnAttestationFromBlock's body, shared
// with OnBlock which already holds mu.
func (c *LeanChain) onAttestationFromBlockLocked(votes []types.SignedVote) error {
	for _, signed := range votes {
		id := signed.Message.ValidatorID
		if latest, ok := c.latestNewVotes[id]; ok && latest.Message.Slot < signed.Message.Slot {
			delete(c.latestNewVotes, id)
		}
		existing, ok := c.latestKnownVotes[id]
		if !ok || existing.Message.Slot < signed.Message.Slot {
			c.latestKnownVotes[id] = signed
			if c.kv != nil {
				if err := c.kv.PutVote(types.ValidatorIndex(id), nil); err != nil {
					return errtypes.Storage("lean_persist_vote", err)
				}
			}
		}
	}
	return nil
}

// GetVoteTarget computes the checkpoint a vote cast now should target:
// start at head, walk back up to 3 parents while head is ahead of
// safe_target, then keep walking parents until the candidate's slot is
// justifiable against latest_finalized (spec.md §4.3.4).
func (c *LeanChain) GetVoteTarget() (types.LeanCheckpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target, ok := c.blocks[c.head]
	if !ok {
		return types.LeanCheckpoint{}, errtypes.Storage("lean_head_missing", nil)
	}
	safeTarget, ok := c.blocks[c.safeTarget]
	if !ok {
		return types.LeanCheckpoint{}, errtypes.Storage("lean_safe_target_missing", nil)
	}

	for i := 0; i < 3 && target.Slot > safeTarget.Slot; i++ {
		parent, ok := c.blocks[target.ParentRoot]
		if !ok {
			return types.LeanCheckpoint{}, errtypes.Storage("lean_vote_target_parent_missing", nil)
		}
		target = parent
	}

	finalizedSlot := c.latestFinalizedSlotLocked()
	for !isJustifiableSlot(finalizedSlot, target.Slot) {
		parent, ok := c.blocks[target.ParentRoot]
		if !ok {
			return types.LeanCheckpoint{}, errtypes.Storage("lean_vote_target_parent_missing", nil)
		}
		target = parent
	}

	root, err := target.HashTreeRoot()
	if err != nil {
		return types.LeanCheckpoint{}, errtypes.Storage("lean_vote_target_root", err)
	}
	return types.LeanCheckpoint{Root: types.Root(root), Slot: target.Slot}, nil
}

func (c *LeanChain) latestFinalizedSlotLocked() types.Slot {
	if headState, ok := c.states[c.head]; ok {
		return headState.LatestFinalized.Slot
	}
	return 0
}

// BuildVote assembles the vote validatorID should cast at slot: head is
// the current chain head, target comes from GetVoteTarget, and source is
// the latest justified checkpoint of the head's own state.
func (c *LeanChain) BuildVote(validatorID uint64, slot types.Slot) (types.Vote, error) {
	target, err := c.GetVoteTarget()
	if err != nil {
		return types.Vote{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	headBlock, ok := c.blocks[c.head]
	if !ok {
		return types.Vote{}, errtypes.Storage("lean_head_missing", nil)
	}
	headState, ok := c.states[c.head]
	if !ok {
		return types.Vote{}, errtypes.Storage("lean_head_state_missing", nil)
	}

	return types.Vote{
		ValidatorID: validatorID,
		Slot:        slot,
		Head:        types.LeanCheckpoint{Root: c.head, Slot: headBlock.Slot},
		Target:      target,
		Source:      headState.LatestJustified,
	}, nil
}

// GetProposalHead accepts any outstanding new votes then returns the
// resulting head, spec.md §4.3.3's `get_proposal_head`.
func (c *LeanChain) GetProposalHead() (types.Root, error) {
	if err := c.AcceptNewVotes(); err != nil {
		return types.Root{}, err
	}
	return c.Head(), nil
}

// ProposeBlock builds the block for slot: clone the proposal head's
// post-state, advance it to slot, then iteratively pull in every known
// vote whose source equals the advancing state's justified checkpoint
// and that the block doesn't carry yet, recomputing roots as it goes.
func (c *LeanChain) ProposeBlock(slot types.Slot) (*types.LeanBlock, error) {
	head, err := c.GetProposalHead()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	headState, ok := c.states[head]
	if !ok {
		c.mu.Unlock()
		return nil, errtypes.Storage("lean_proposal_head_state_missing", nil)
	}
	numValidators := c.numValidators
	knownVotes := make(map[uint64]types.SignedVote, len(c.latestKnownVotes))
	for id, v := range c.latestKnownVotes {
		knownVotes[id] = v
	}
	c.mu.Unlock()

	block := &types.LeanBlock{
		Slot:          slot,
		ProposerIndex: types.ValidatorIndex(uint64(slot) % numValidators),
		ParentRoot:    head,
		StateRoot:     types.ZeroRoot,
	}

	state := headState.Copy()
	emptyBlock := types.SignedLeanBlock{Message: *block}
	if err := StateTransition(state, &emptyBlock, true, false); err != nil {
		return nil, err
	}

	for {
		if err := ProcessAttestations(state, block.Body.Attestations); err != nil {
			return nil, err
		}
		added := false
		for _, vote := range knownVotes {
			if vote.Message.Source != state.LatestJustified {
				continue
			}
			if containsVote(block.Body.Attestations, vote) {
				continue
			}
			block.Body.Attestations = append(block.Body.Attestations, vote)
			added = true
		}
		if !added {
			break
		}
	}

	bodyRoot, err := block.Body.HashTreeRoot()
	if err != nil {
		return nil, errtypes.Storage("lean_proposal_body_root", err)
	}
	state.LatestBlockHeader.BodyRoot = types.Root(bodyRoot)

	stateRoot, err := state.HashTreeRoot()
	if err != nil {
		return nil, errtypes.Storage("lean_proposal_state_root", err)
	}
	block.StateRoot = types.Root(stateRoot)
	return block, nil
}

func containsVote(votes []types.SignedVote, v types.SignedVote) bool {
	for _, existing := range votes {
		if existing.Message == v.Message && existing.Signature == v.Signature {
			return true
		}
	}
	return false
}
