// Package execution defines the ExecutionEngine capability trait the
// state transition depends on for payload validation and blob retrieval
// (spec.md §6). Only the interface is in scope; Client wraps
// go-ethereum's RPC types the way the teacher's powchain.Web3Service
// wraps an ethclient, but the Engine API transport itself is external.
package execution

import (
	"context"

	"github.com/leancore/beacon/types"
)

// ExecutionEngine is the capability interface state.ProcessExecutionPayload
// and the fork-choice store's data-availability check depend on.
type ExecutionEngine interface {
	// VerifyAndNotifyNewPayload hands the execution layer a new payload
	// plus its blob versioned hashes and parent beacon block root, and
	// reports whether the EL accepted it.
	VerifyAndNotifyNewPayload(ctx context.Context, payload *types.ExecutionPayload, versionedHashes []types.VersionedHash, parentBeaconBlockRoot types.Root, requests *types.ExecutionRequests) (bool, error)

	// GetBlobs fetches (blob, proof) pairs by versioned hash; a nil entry
	// at index i means the EL does not have that blob.
	GetBlobs(ctx context.Context, versionedHashes []types.VersionedHash) ([]*BlobAndProof, error)
}

// BlobAndProof pairs a blob with its KZG proof, as returned by
// engine_getBlobsV1.
type BlobAndProof struct {
	Blob  [131072]byte
	Proof [48]byte
}

// ErrEngineUnavailable is wrapped into errtypes.EngineUnavailable by
// callers; kept here so Client and Mock share one sentinel identity.
var ErrEngineUnavailable = errUnavailable{}

type errUnavailable struct{}

func (errUnavailable) Error() string { return "execution: engine unreachable" }
