package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var boltInsertsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "storage_bolt_inserts_total",
	Help: "Number of key/value pairs written to the bolt store.",
})
