package forkchoice

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	headSlotGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forkchoice_head_slot",
		Help: "Slot of the current LMD-GHOST head",
	})
	headWeightGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forkchoice_head_weight",
		Help: "Effective-balance weight backing the current head",
	})
)
