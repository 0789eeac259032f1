package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveStatement(t *testing.T) {
	runs := testutil.ToFloat64(StatementsTotal.WithLabelValues(OpRun))
	failures := testutil.ToFloat64(StatementErrorsTotal.WithLabelValues(OpRun))

	ObserveStatement(OpRun, nil)
	ObserveStatement(OpRun, errors.New("boom"))

	assert.Equal(t, runs+2, testutil.ToFloat64(StatementsTotal.WithLabelValues(OpRun)))
	assert.Equal(t, failures+1, testutil.ToFloat64(StatementErrorsTotal.WithLabelValues(OpRun)))
}

func TestObserveTransaction(t *testing.T) {
	before := testutil.ToFloat64(TransactionsTotal.WithLabelValues(KindSavepoint, OutcomeCommit))
	ObserveTransaction(true, OutcomeCommit)
	assert.Equal(t, before+1, testutil.ToFloat64(TransactionsTotal.WithLabelValues(KindSavepoint, OutcomeCommit)))
}
