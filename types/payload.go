package types

import ssz "github.com/ferranbt/fastssz"

const (
	maxBytesPerTransaction = 1073741824
	maxTransactionsPerPayload = 1048576
	maxExtraDataBytes         = 32
	maxWithdrawalsPerPayload  = 16
	maxBlobCommitmentsPerBlock = 4096
)

// Withdrawal is an execution-layer credit produced by process_withdrawals.
type Withdrawal struct {
	Index          uint64
	ValidatorIndex ValidatorIndex
	Address        ExecutionAddr
	Amount         Gwei
}

func (w *Withdrawal) HashTreeRoot() ([32]byte, error) { return htr(w) }

func (w *Withdrawal) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutUint64(w.Index)
	hh.PutUint64(uint64(w.ValidatorIndex))
	hh.PutBytes(w.Address[:])
	hh.PutUint64(uint64(w.Amount))
	hh.Merkleize(indx)
	return nil
}

// ExecutionPayload is the full EL block body attached to a beacon block.
type ExecutionPayload struct {
	ParentHash    Root
	FeeRecipient  ExecutionAddr
	StateRoot     Root
	ReceiptsRoot  Root
	LogsBloom     [256]byte
	PrevRandao    Root
	BlockNumber   uint64
	GasLimit      uint64
	GasUsed       uint64
	Timestamp     uint64
	ExtraData     []byte
	BaseFeePerGas Root // little-endian uint256, stored as raw 32 bytes
	BlockHash     Root
	Transactions  [][]byte
	Withdrawals   []Withdrawal
	BlobGasUsed   uint64
	ExcessBlobGas uint64
}

func (p *ExecutionPayload) HashTreeRoot() ([32]byte, error) { return htr(p) }

func (p *ExecutionPayload) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(p.ParentHash[:])
	hh.PutBytes(p.FeeRecipient[:])
	hh.PutBytes(p.StateRoot[:])
	hh.PutBytes(p.ReceiptsRoot[:])
	hh.PutBytes(p.LogsBloom[:])
	hh.PutBytes(p.PrevRandao[:])
	hh.PutUint64(p.BlockNumber)
	hh.PutUint64(p.GasLimit)
	hh.PutUint64(p.GasUsed)
	hh.PutUint64(p.Timestamp)
	{
		elemIndx := hh.Index()
		hh.PutBytes(p.ExtraData)
		hh.MerkleizeWithMixin(elemIndx, uint64(len(p.ExtraData)), (maxExtraDataBytes+31)/32)
	}
	hh.PutBytes(p.BaseFeePerGas[:])
	hh.PutBytes(p.BlockHash[:])
	{
		txIndx := hh.Index()
		for _, tx := range p.Transactions {
			elemIndx := hh.Index()
			hh.PutBytes(tx)
			hh.MerkleizeWithMixin(elemIndx, uint64(len(tx)), (maxBytesPerTransaction+31)/32)
		}
		hh.MerkleizeWithMixin(txIndx, uint64(len(p.Transactions)), maxTransactionsPerPayload)
	}
	{
		wIndx := hh.Index()
		for i := range p.Withdrawals {
			if err := p.Withdrawals[i].HashTreeRootWith(hh); err != nil {
				return err
			}
		}
		hh.MerkleizeWithMixin(wIndx, uint64(len(p.Withdrawals)), maxWithdrawalsPerPayload)
	}
	hh.PutUint64(p.BlobGasUsed)
	hh.PutUint64(p.ExcessBlobGas)
	hh.Merkleize(indx)
	return nil
}

// ExecutionPayloadHeader is the commitment cached in BeaconState in place
// of the full payload body.
type ExecutionPayloadHeader struct {
	ParentHash       Root
	FeeRecipient     ExecutionAddr
	StateRoot        Root
	ReceiptsRoot     Root
	LogsBloom        [256]byte
	PrevRandao       Root
	BlockNumber      uint64
	GasLimit         uint64
	GasUsed          uint64
	Timestamp        uint64
	ExtraData        []byte
	BaseFeePerGas    Root
	BlockHash        Root
	TransactionsRoot Root
	WithdrawalsRoot  Root
	BlobGasUsed      uint64
	ExcessBlobGas    uint64
}

func (h *ExecutionPayloadHeader) HashTreeRoot() ([32]byte, error) { return htr(h) }

func (h *ExecutionPayloadHeader) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(h.ParentHash[:])
	hh.PutBytes(h.FeeRecipient[:])
	hh.PutBytes(h.StateRoot[:])
	hh.PutBytes(h.ReceiptsRoot[:])
	hh.PutBytes(h.LogsBloom[:])
	hh.PutBytes(h.PrevRandao[:])
	hh.PutUint64(h.BlockNumber)
	hh.PutUint64(h.GasLimit)
	hh.PutUint64(h.GasUsed)
	hh.PutUint64(h.Timestamp)
	{
		elemIndx := hh.Index()
		hh.PutBytes(h.ExtraData)
		hh.MerkleizeWithMixin(elemIndx, uint64(len(h.ExtraData)), (maxExtraDataBytes+31)/32)
	}
	hh.PutBytes(h.BaseFeePerGas[:])
	hh.PutBytes(h.BlockHash[:])
	hh.PutBytes(h.TransactionsRoot[:])
	hh.PutBytes(h.WithdrawalsRoot[:])
	hh.PutUint64(h.BlobGasUsed)
	hh.PutUint64(h.ExcessBlobGas)
	hh.Merkleize(indx)
	return nil
}

// HeaderFromPayload builds the commitment header cached in state after
// verify_and_notify_new_payload succeeds. Transactions/withdrawals are
// reduced to their list roots rather than kept in full.
func HeaderFromPayload(p *ExecutionPayload) (*ExecutionPayloadHeader, error) {
	txRoot, err := transactionsRoot(p.Transactions)
	if err != nil {
		return nil, err
	}
	wRoot, err := withdrawalsRoot(p.Withdrawals)
	if err != nil {
		return nil, err
	}
	return &ExecutionPayloadHeader{
		ParentHash: p.ParentHash, FeeRecipient: p.FeeRecipient, StateRoot: p.StateRoot,
		ReceiptsRoot: p.ReceiptsRoot, LogsBloom: p.LogsBloom, PrevRandao: p.PrevRandao,
		BlockNumber: p.BlockNumber, GasLimit: p.GasLimit, GasUsed: p.GasUsed, Timestamp: p.Timestamp,
		ExtraData: p.ExtraData, BaseFeePerGas: p.BaseFeePerGas, BlockHash: p.BlockHash,
		TransactionsRoot: txRoot, WithdrawalsRoot: wRoot,
		BlobGasUsed: p.BlobGasUsed, ExcessBlobGas: p.ExcessBlobGas,
	}, nil
}

func transactionsRoot(txs [][]byte) (Root, error) {
	hh := ssz.NewHasher()
	txIndx := hh.Index()
	for _, tx := range txs {
		elemIndx := hh.Index()
		hh.PutBytes(tx)
		hh.MerkleizeWithMixin(elemIndx, uint64(len(tx)), (maxBytesPerTransaction+31)/32)
	}
	hh.MerkleizeWithMixin(txIndx, uint64(len(txs)), maxTransactionsPerPayload)
	r, err := hh.HashRoot()
	return Root(r), err
}

func withdrawalsRoot(ws []Withdrawal) (Root, error) {
	hh := ssz.NewHasher()
	wIndx := hh.Index()
	for i := range ws {
		if err := ws[i].HashTreeRootWith(hh); err != nil {
			return Root{}, err
		}
	}
	hh.MerkleizeWithMixin(wIndx, uint64(len(ws)), maxWithdrawalsPerPayload)
	r, err := hh.HashRoot()
	return Root(r), err
}

// BlobIdentifier keys the store's blob-and-proof cache.
type BlobIdentifier struct {
	BlockRoot Root
	Index     uint64
}

// VersionedHash is the KZG-commitment-derived identifier exchanged with
// the execution engine for blob retrieval.
type VersionedHash [32]byte
