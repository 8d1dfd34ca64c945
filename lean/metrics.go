package lean

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	justifiedSlotGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lean_justified_slot",
		Help: "Slot of the lean chain's latest justified checkpoint",
	})
	finalizedSlotGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lean_finalized_slot",
		Help: "Slot of the lean chain's latest finalized checkpoint",
	})
)
