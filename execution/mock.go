package execution

import (
	"context"

	"github.com/leancore/beacon/types"
)

// Mock is a test double for ExecutionEngine: it accepts every payload and
// returns a zero-filled blob with a proof whose first byte is 0x01 for
// every requested hash, unless configured otherwise.
type Mock struct {
	RejectPayload bool
	Unavailable   bool
	MissingBlobAt map[int]bool
}

var _ ExecutionEngine = (*Mock)(nil)

func (m *Mock) VerifyAndNotifyNewPayload(ctx context.Context, payload *types.ExecutionPayload, versionedHashes []types.VersionedHash, parentBeaconBlockRoot types.Root, requests *types.ExecutionRequests) (bool, error) {
	if m.Unavailable {
		return false, ErrEngineUnavailable
	}
	return !m.RejectPayload, nil
}

func (m *Mock) GetBlobs(ctx context.Context, versionedHashes []types.VersionedHash) ([]*BlobAndProof, error) {
	if m.Unavailable {
		return nil, ErrEngineUnavailable
	}
	out := make([]*BlobAndProof, len(versionedHashes))
	for i := range versionedHashes {
		if m.MissingBlobAt[i] {
			continue
		}
		bp := &BlobAndProof{}
		bp.Proof[0] = 0x01 // non-zero so crypto/kzg.Mock accepts it
		out[i] = bp
	}
	return out, nil
}
