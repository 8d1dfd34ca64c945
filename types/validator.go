package types

import ssz "github.com/ferranbt/fastssz"

// ValidatorsRoot tree-hashes a validator registry list the same way the
// BeaconState.Validators field does, for deriving genesis_validators_root
// before the full state exists.
func ValidatorsRoot(vs []Validator) (Root, error) {
	hh := ssz.NewHasher()
	sub := hh.Index()
	for i := range vs {
		if err := vs[i].HashTreeRootWith(hh); err != nil {
			return Root{}, err
		}
	}
	hh.MerkleizeWithMixin(sub, uint64(len(vs)), ValidatorRegistryLimit)
	r, err := hh.HashRoot()
	return Root(r), err
}

// FarFutureEpoch marks validators that have not activated, exited, been
// slashed, or become withdrawable.
const FarFutureEpoch Epoch = 1<<64 - 1

// Validator is the registry entry for a single staker.
type Validator struct {
	Pubkey                     BLSPubkey
	WithdrawalCredentials      WithdrawalCreds
	EffectiveBalance           Gwei
	Slashed                    bool
	ActivationEligibilityEpoch Epoch
	ActivationEpoch            Epoch
	ExitEpoch                  Epoch
	WithdrawableEpoch          Epoch
}

func (v *Validator) HashTreeRoot() ([32]byte, error) { return htr(v) }

func (v *Validator) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(v.Pubkey[:])
	hh.PutBytes(v.WithdrawalCredentials[:])
	hh.PutUint64(uint64(v.EffectiveBalance))
	hh.PutBool(v.Slashed)
	hh.PutUint64(uint64(v.ActivationEligibilityEpoch))
	hh.PutUint64(uint64(v.ActivationEpoch))
	hh.PutUint64(uint64(v.ExitEpoch))
	hh.PutUint64(uint64(v.WithdrawableEpoch))
	hh.Merkleize(indx)
	return nil
}

func (v *Validator) Copy() *Validator {
	cp := *v
	return &cp
}

// IsActive reports whether the validator is active at the given epoch.
func (v *Validator) IsActive(epoch Epoch) bool {
	return v.ActivationEpoch <= epoch && epoch < v.ExitEpoch
}

// IsSlashable reports whether the validator can still be slashed at epoch.
func (v *Validator) IsSlashable(epoch Epoch) bool {
	return !v.Slashed && v.ActivationEpoch <= epoch && epoch < v.WithdrawableEpoch
}

// IsEligibleForActivationQueue reports the Electra activation-eligibility
// predicate (effective balance reaches the minimum activation balance).
func (v *Validator) IsEligibleForActivationQueue(minActivationBalance Gwei) bool {
	return v.ActivationEligibilityEpoch == FarFutureEpoch && v.EffectiveBalance >= minActivationBalance
}

// HasCompoundingWithdrawalCredential reports the Electra 0x02 prefix that
// enables compounding balances above 32 ETH.
func (v *Validator) HasCompoundingWithdrawalCredential() bool {
	return len(v.WithdrawalCredentials) == 32 && v.WithdrawalCredentials[0] == 0x02
}

// HasExecutionWithdrawalCredential reports the 0x01 (non-compounding) or
// 0x02 (compounding) prefix used for execution withdrawal addresses.
func (v *Validator) HasExecutionWithdrawalCredential() bool {
	return len(v.WithdrawalCredentials) == 32 &&
		(v.WithdrawalCredentials[0] == 0x01 || v.WithdrawalCredentials[0] == 0x02)
}

// PendingDeposit is an Electra queue entry awaiting balance crediting.
type PendingDeposit struct {
	Pubkey                BLSPubkey
	WithdrawalCredentials WithdrawalCreds
	Amount                Gwei
	Signature             BLSSignature
	Slot                  Slot
}

func (p *PendingDeposit) HashTreeRoot() ([32]byte, error) { return htr(p) }

func (p *PendingDeposit) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutBytes(p.Pubkey[:])
	hh.PutBytes(p.WithdrawalCredentials[:])
	hh.PutUint64(uint64(p.Amount))
	hh.PutBytes(p.Signature[:])
	hh.PutUint64(uint64(p.Slot))
	hh.Merkleize(indx)
	return nil
}

// PendingPartialWithdrawal is an Electra queue entry for a validator's
// voluntary partial withdrawal above the minimum activation balance.
type PendingPartialWithdrawal struct {
	ValidatorIndex    ValidatorIndex
	Amount            Gwei
	WithdrawableEpoch Epoch
}

func (p *PendingPartialWithdrawal) HashTreeRoot() ([32]byte, error) { return htr(p) }

func (p *PendingPartialWithdrawal) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutUint64(uint64(p.ValidatorIndex))
	hh.PutUint64(uint64(p.Amount))
	hh.PutUint64(uint64(p.WithdrawableEpoch))
	hh.Merkleize(indx)
	return nil
}

// PendingConsolidation queues a source validator's balance to merge into
// a target validator once the source is withdrawable.
type PendingConsolidation struct {
	SourceIndex ValidatorIndex
	TargetIndex ValidatorIndex
}

func (p *PendingConsolidation) HashTreeRoot() ([32]byte, error) { return htr(p) }

func (p *PendingConsolidation) HashTreeRootWith(hh *ssz.Hasher) error {
	indx := hh.Index()
	hh.PutUint64(uint64(p.SourceIndex))
	hh.PutUint64(uint64(p.TargetIndex))
	hh.Merkleize(indx)
	return nil
}
