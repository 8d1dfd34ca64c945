package execution

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/leancore/beacon/types"
)

var log = logrus.WithField("prefix", "execution")

var (
	newPayloadCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "execution_new_payload_calls_total",
		Help: "Number of engine_newPayload calls issued to the execution client.",
	})
	newPayloadRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "execution_new_payload_rejected_total",
		Help: "Number of engine_newPayload calls rejected by the execution client.",
	})
	blobFetchCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "execution_get_blobs_calls_total",
		Help: "Number of engine_getBlobsV1 calls issued to the execution client.",
	})
)

// Client is the production ExecutionEngine backed by go-ethereum's JSON-RPC
// client talking the Engine API, mirroring how the teacher's Web3Service
// wraps an ethclient.Client rather than hand-rolling RPC framing.
type Client struct {
	rpc *rpc.Client
}

var _ ExecutionEngine = (*Client)(nil)

// Dial connects to an Engine API endpoint (typically authenticated with a
// JWT the caller has already configured on the rpc.Client transport).
func Dial(ctx context.Context, url string) (*Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("execution: dial %s: %w", url, err)
	}
	return &Client{rpc: c}, nil
}

type payloadStatusV1 struct {
	Status          string  `json:"status"`
	LatestValidHash *common.Hash `json:"latestValidHash"`
	ValidationError *string `json:"validationError"`
}

func (c *Client) VerifyAndNotifyNewPayload(ctx context.Context, payload *types.ExecutionPayload, versionedHashes []types.VersionedHash, parentBeaconBlockRoot types.Root, requests *types.ExecutionRequests) (bool, error) {
	newPayloadCalls.Inc()

	wire := toPayloadJSON(payload)
	hashes := make([]common.Hash, len(versionedHashes))
	for i, h := range versionedHashes {
		hashes[i] = common.Hash(h)
	}

	var result payloadStatusV1
	err := c.rpc.CallContext(ctx, &result, "engine_newPayloadV4", wire, hashes, common.Hash(parentBeaconBlockRoot), toRequestsJSON(requests))
	if err != nil {
		log.WithError(err).Warn("engine_newPayloadV4 call failed")
		return false, ErrEngineUnavailable
	}

	switch result.Status {
	case "VALID":
		return true, nil
	case "INVALID", "INVALID_BLOCK_HASH":
		newPayloadRejected.Inc()
		return false, nil
	default: // SYNCING, ACCEPTED: the EL has not yet reached a verdict.
		return false, ErrEngineUnavailable
	}
}

func (c *Client) GetBlobs(ctx context.Context, versionedHashes []types.VersionedHash) ([]*BlobAndProof, error) {
	blobFetchCalls.Inc()

	hexHashes := make([]hexutil.Bytes, len(versionedHashes))
	for i, h := range versionedHashes {
		hexHashes[i] = h[:]
	}

	var raw []*struct {
		Blob  hexutil.Bytes `json:"blob"`
		Proof hexutil.Bytes `json:"proof"`
	}
	if err := c.rpc.CallContext(ctx, &raw, "engine_getBlobsV1", hexHashes); err != nil {
		log.WithError(err).Warn("engine_getBlobsV1 call failed")
		return nil, ErrEngineUnavailable
	}

	out := make([]*BlobAndProof, len(raw))
	for i, r := range raw {
		if r == nil {
			continue
		}
		bp := &BlobAndProof{}
		copy(bp.Blob[:], r.Blob)
		copy(bp.Proof[:], r.Proof)
		out[i] = bp
	}
	return out, nil
}

func toPayloadJSON(p *types.ExecutionPayload) json.RawMessage {
	txs := make([]hexutil.Bytes, len(p.Transactions))
	for i, tx := range p.Transactions {
		txs[i] = tx
	}
	wire := struct {
		ParentHash    common.Hash     `json:"parentHash"`
		FeeRecipient  common.Address  `json:"feeRecipient"`
		StateRoot     common.Hash     `json:"stateRoot"`
		ReceiptsRoot  common.Hash     `json:"receiptsRoot"`
		LogsBloom     hexutil.Bytes   `json:"logsBloom"`
		PrevRandao    common.Hash     `json:"prevRandao"`
		BlockNumber   hexutil.Uint64  `json:"blockNumber"`
		GasLimit      hexutil.Uint64  `json:"gasLimit"`
		GasUsed       hexutil.Uint64  `json:"gasUsed"`
		Timestamp     hexutil.Uint64  `json:"timestamp"`
		ExtraData     hexutil.Bytes   `json:"extraData"`
		BaseFeePerGas hexutil.Bytes   `json:"baseFeePerGas"`
		BlockHash     common.Hash     `json:"blockHash"`
		Transactions  []hexutil.Bytes `json:"transactions"`
		BlobGasUsed   hexutil.Uint64  `json:"blobGasUsed"`
		ExcessBlobGas hexutil.Uint64  `json:"excessBlobGas"`
	}{
		ParentHash: common.Hash(p.ParentHash), FeeRecipient: common.Address(p.FeeRecipient),
		StateRoot: common.Hash(p.StateRoot), ReceiptsRoot: common.Hash(p.ReceiptsRoot),
		LogsBloom: p.LogsBloom[:], PrevRandao: common.Hash(p.PrevRandao),
		BlockNumber: hexutil.Uint64(p.BlockNumber), GasLimit: hexutil.Uint64(p.GasLimit),
		GasUsed: hexutil.Uint64(p.GasUsed), Timestamp: hexutil.Uint64(p.Timestamp),
		ExtraData: p.ExtraData, BaseFeePerGas: p.BaseFeePerGas[:],
		BlockHash: common.Hash(p.BlockHash), Transactions: txs,
		BlobGasUsed: hexutil.Uint64(p.BlobGasUsed), ExcessBlobGas: hexutil.Uint64(p.ExcessBlobGas),
	}
	raw, _ := json.Marshal(wire)
	return raw
}

func toRequestsJSON(r *types.ExecutionRequests) json.RawMessage {
	if r == nil {
		raw, _ := json.Marshal([]hexutil.Bytes{})
		return raw
	}
	raw, _ := json.Marshal(r)
	return raw
}
