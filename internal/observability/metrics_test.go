package observability

import (
	"testing"
	"time"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("member.a", "GET", "/healthz", 200, 12*time.Millisecond)
	RecordProxyCreated("member.a", "kv")
	RecordProxyDestroyed("member.a", "kv")
	RecordDestroyFanoutFailure("member.a", "member.b")
	ObserveDestroyDuration("member.a", "kv", 24*time.Millisecond)
	RecordEventDispatched("member.a")
	RecordEventDropped("member.a")
}
