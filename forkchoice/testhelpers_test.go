package forkchoice

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leancore/beacon/config"
	"github.com/leancore/beacon/crypto/bls"
	"github.com/leancore/beacon/crypto/kzg"
	"github.com/leancore/beacon/execution"
	"github.com/leancore/beacon/state"
	"github.com/leancore/beacon/types"
)

// newTestStore anchors a fresh Store at a genesis state with numValidators
// identically-staked validators, each at MinActivationBalance, so callers
// can reason about vote/boost weights in round numbers.
func newTestStore(t *testing.T, numValidators int) (*Store, *config.Config, types.Root) {
	t.Helper()
	cfg := config.Minimal()

	validators := make([]types.Validator, numValidators)
	balances := make([]types.Gwei, numValidators)
	for i := range validators {
		balances[i] = types.Gwei(cfg.MinActivationBalance)
	}

	genesisState := state.GenesisFromDeposits(cfg, 0, types.Eth1Data{}, validators, balances)

	v := state.Verifiers{BLS: &bls.Mock{}, Engine: &execution.Mock{}}
	s, err := New(cfg, v, &kzg.Mock{}, nil, genesisState)
	require.NoError(t, err)

	return s, cfg, s.justifiedCheckpoint.Root
}
