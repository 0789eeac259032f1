// Package metrics declares the Prometheus collectors updated by the sqlite
// package. Collectors register with the default registry on init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for StatementsTotal and StatementErrorsTotal.
const (
	OpRun     = "run"
	OpExec    = "exec"
	OpQuery   = "query"
	OpPrepare = "prepare"
)

// Label values for TransactionsTotal.
const (
	KindTransaction = "transaction"
	KindSavepoint   = "savepoint"

	OutcomeBegin    = "begin"
	OutcomeCommit   = "commit"
	OutcomeRollback = "rollback"
	OutcomeError    = "error"
)

// Label values for StatementCacheTotal.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

var (
	StatementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlbridge_statements_total",
		Help: "Cumulative number of statements executed, by operation.",
	}, []string{"op"})
	StatementErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlbridge_statement_errors_total",
		Help: "Cumulative number of statements rejected by the engine, by operation.",
	}, []string{"op"})
	TransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlbridge_transactions_total",
		Help: "Cumulative number of transaction and savepoint transitions.",
	}, []string{"kind", "outcome"})
	MigrationsAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sqlbridge_migrations_applied_total",
		Help: "Cumulative number of schema migrations applied and committed.",
	})
	MigrationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sqlbridge_migration_failures_total",
		Help: "Cumulative number of migration runs rolled back after a failure.",
	})
	StatementCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sqlbridge_statement_cache_total",
		Help: "Prepared statement cache lookups, by result.",
	}, []string{"result"})
)

// ObserveStatement records one statement execution and whether it failed.
func ObserveStatement(op string, err error) {
	StatementsTotal.WithLabelValues(op).Inc()
	if err != nil {
		StatementErrorsTotal.WithLabelValues(op).Inc()
	}
}

// ObserveTransaction records one transaction state transition.
func ObserveTransaction(savepoint bool, outcome string) {
	kind := KindTransaction
	if savepoint {
		kind = KindSavepoint
	}
	TransactionsTotal.WithLabelValues(kind, outcome).Inc()
}
