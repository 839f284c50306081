package vault

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var decryptFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "debtorkeeper_decrypt_failures_total",
	Help: "Stored debtor records that failed authentication on read.",
}, []string{"path"})
