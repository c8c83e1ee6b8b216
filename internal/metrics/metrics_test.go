package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordOperation(t *testing.T) {
	counter := CommentOperationsTotal.WithLabelValues("create", ResultSuccess)
	before := testutil.ToFloat64(counter)

	RecordOperation("create", ResultSuccess, 0.01)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestRecordOperation_SeparatesResults(t *testing.T) {
	ok := CommentOperationsTotal.WithLabelValues("edit", ResultSuccess)
	missing := CommentOperationsTotal.WithLabelValues("edit", ResultNotFound)
	okBefore := testutil.ToFloat64(ok)
	missingBefore := testutil.ToFloat64(missing)

	RecordOperation("edit", ResultNotFound, 0.002)

	assert.Equal(t, okBefore, testutil.ToFloat64(ok))
	assert.Equal(t, missingBefore+1, testutil.ToFloat64(missing))
}

func TestWebSocketSessionsGauge(t *testing.T) {
	before := testutil.ToFloat64(WebSocketSessions)

	WebSocketSessions.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(WebSocketSessions))

	WebSocketSessions.Dec()
	assert.Equal(t, before, testutil.ToFloat64(WebSocketSessions))
}

func TestBroadcastCounters(t *testing.T) {
	created := BroadcastMessagesTotal.WithLabelValues("comment_created")
	before := testutil.ToFloat64(created)
	droppedBefore := testutil.ToFloat64(BroadcastDroppedTotal)

	created.Inc()
	BroadcastDroppedTotal.Inc()

	assert.Equal(t, before+1, testutil.ToFloat64(created))
	assert.Equal(t, droppedBefore+1, testutil.ToFloat64(BroadcastDroppedTotal))
}
