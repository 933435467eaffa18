package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Metrics counts the core billing actions. Exposed via /metrics on the HTTP
// server.
type Metrics struct {
	LedgerTransactions *prometheus.CounterVec
	SettlementsCreated prometheus.Counter
	SettlementsDeleted prometheus.Counter
	PayoutsCreated     prometheus.Counter
	PayoutTransitions  *prometheus.CounterVec
	DueDateRecalcs     prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		LedgerTransactions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lingodesk",
			Name:      "ledger_transactions_total",
			Help:      "Balance transactions appended, by type.",
		}, []string{"type"}),
		SettlementsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "lingodesk",
			Name:      "settlements_created_total",
			Help:      "Settlements created.",
		}),
		SettlementsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "lingodesk",
			Name:      "settlements_deleted_total",
			Help:      "Settlements deleted.",
		}),
		PayoutsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "lingodesk",
			Name:      "payouts_created_total",
			Help:      "Teacher payouts created.",
		}),
		PayoutTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lingodesk",
			Name:      "payout_status_transitions_total",
			Help:      "Payout status transitions, by from/to status.",
		}, []string{"from", "to"}),
		DueDateRecalcs: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "lingodesk",
			Name:      "due_date_recalculations_total",
			Help:      "Pending payments whose due date was recalculated.",
		}),
	}
}

var Module = fx.Module("metrics",
	fx.Provide(New),
)
