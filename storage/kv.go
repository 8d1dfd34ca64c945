// Package storage defines the key-value abstraction every chain (beacon
// or lean) persists through: named tables keyed by block root or slot,
// plus a handful of singleton fields for the checkpoints and the clock.
// The on-disk engine itself is out of scope; KVStore only fixes the
// surface that Store and LeanChain are written against, grounded on the
// teacher's db.BeaconDB bucket layout (state.go, block_operations.go).
package storage

import (
	"errors"

	"github.com/leancore/beacon/types"
)

// ErrNotFound is returned by Get when the table has no entry for key.
var ErrNotFound = errors.New("storage: not found")

// Table names a logical bucket. The set is fixed by the external
// interface contract; callers never invent new ones at runtime.
type Table string

const (
	TableBeaconBlock      Table = "beacon_block"
	TableBeaconState      Table = "beacon_state"
	TableSlotIndex        Table = "slot_index"
	TableLeanBlock        Table = "lean_block"
	TableLeanState        Table = "lean_state"
	TableLatestKnownVotes Table = "latest_known_votes"
	TableBlobsAndProofs   Table = "blobs_and_proofs"
)

// Singleton names one of the scalar fields tracked outside the tables.
type Singleton string

const (
	SingletonFinalizedCheckpoint           Singleton = "finalized_checkpoint"
	SingletonJustifiedCheckpoint           Singleton = "justified_checkpoint"
	SingletonUnrealizedJustifiedCheckpoint Singleton = "unrealized_justified_checkpoint"
	SingletonUnrealizedFinalizedCheckpoint Singleton = "unrealized_finalized_checkpoint"
	SingletonGenesisTime                   Singleton = "genesis_time"
	SingletonTime                          Singleton = "time"
)

// Entry is one batch_insert member: a table, its key and the value to
// store under it.
type Entry struct {
	Table Table
	Key   types.Root
	Value []byte
}

// KVStore is the persistence boundary Store and LeanChain are coded
// against. A single logical write (on_block, on_tick) is expected to
// land in one BatchInsert call plus at most a few singleton writes, per
// spec.md's "single write critical section per fork-choice operation".
type KVStore interface {
	Get(table Table, key types.Root) ([]byte, error)
	Insert(table Table, key types.Root, value []byte) error
	Contains(table Table, key types.Root) bool
	BatchInsert(entries []Entry) error

	// GetHighestSlot returns the root and slot of the highest-slot entry
	// in the slot index, or ok=false if the table is empty.
	GetHighestSlot() (root types.Root, slot types.Slot, ok bool)

	// GetAllVotes returns every (validator index -> vote bytes) entry
	// currently in the latest_known_votes table.
	GetAllVotes() (map[types.ValidatorIndex][]byte, error)
	PutVote(index types.ValidatorIndex, value []byte) error

	GetSingleton(name Singleton) ([]byte, bool)
	PutSingleton(name Singleton, value []byte) error

	Close() error
}
