// Package metrics exposes Prometheus instrumentation for ledger
// operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SettlementsCreated counts settlements recorded, labeled by source.
	SettlementsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simard_settlements_created_total",
		Help: "Settlements recorded, by source tag.",
	}, []string{"source"})

	// GuaranteesCreated counts guarantees issued.
	GuaranteesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simard_guarantees_created_total",
		Help: "Guarantees issued.",
	})

	// GuaranteesClaimed counts guarantees converted into settlements.
	GuaranteesClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simard_guarantees_claimed_total",
		Help: "Guarantees claimed into settlements.",
	})

	// GuaranteesCanceled counts guarantee cancellations.
	GuaranteesCanceled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simard_guarantees_canceled_total",
		Help: "Guarantees canceled.",
	})

	// QuotesExecuted counts quotes consumed by swaps and deposits.
	QuotesExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simard_quotes_executed_total",
		Help: "Quotes marked used.",
	})

	// CardsIssued counts virtual cards issued.
	CardsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simard_cards_issued_total",
		Help: "Virtual cards issued.",
	})

	// CompensatingCancellations counts guarantee rollbacks after failed
	// card issuance.
	CompensatingCancellations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "simard_compensating_cancellations_total",
		Help: "Guarantees canceled to compensate a failed card issuance.",
	})

	// ExpiredUnclaimedGuarantees tracks guarantees past expiration that
	// were never claimed or canceled.
	ExpiredUnclaimedGuarantees = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "simard_expired_unclaimed_guarantees",
		Help: "Guarantees past their expiration still unclaimed.",
	})

	// UpstreamFailures counts external collaborator failures by provider.
	UpstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simard_upstream_failures_total",
		Help: "External provider call failures, by provider.",
	}, []string{"provider"})
)
