package state

import (
	"encoding/hex"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/leancore/beacon/types"
)

var (
	validatorBalancesGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "state_validator_balances",
		Help: "Balances of validators, updated on epoch transition",
	}, []string{
		"validator",
	})
	lastSlotGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "state_last_slot",
		Help: "Last slot number of the processed state",
	})
	lastJustifiedEpochGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "state_last_justified_epoch",
		Help: "Last justified epoch of the processed state",
	})
	lastPrevJustifiedEpochGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "state_last_prev_justified_epoch",
		Help: "Last prev justified epoch of the processed state",
	})
	lastFinalizedEpochGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "state_last_finalized_epoch",
		Help: "Last finalized epoch of the processed state",
	})
)

func reportEpochTransitionMetrics(st *types.BeaconState) {
	for i, bal := range st.Balances {
		if i >= len(st.Validators) {
			break
		}
		validatorBalancesGauge.WithLabelValues(
			"0x" + hex.EncodeToString(st.Validators[i].Pubkey[:]),
		).Set(float64(bal))
	}
	lastSlotGauge.Set(float64(st.Slot))
	lastJustifiedEpochGauge.Set(float64(st.CurrentJustifiedCheckpoint.Epoch))
	lastPrevJustifiedEpochGauge.Set(float64(st.PreviousJustifiedCheckpoint.Epoch))
	lastFinalizedEpochGauge.Set(float64(st.FinalizedCheckpoint.Epoch))
}
