package httpgw

import (
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterAuditDropCounter(t *testing.T) {
	t.Parallel()

	var drops atomic.Int64
	drops.Store(3)

	reg := prometheus.NewRegistry()
	RegisterAuditDropCounter(reg, drops.Load)

	expected := `
# HELP ledgergate_audit_drops_total Total audit records dropped due to backpressure
# TYPE ledgergate_audit_drops_total counter
ledgergate_audit_drops_total 3
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "ledgergate_audit_drops_total"); err != nil {
		t.Fatalf("GatherAndCompare() error: %v", err)
	}
}

func TestRegisterKeyGauge(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	RegisterKeyGauge(reg, func() int { return 12 })

	expected := `
# HELP ledgergate_rate_limit_keys Number of active rate limit keys
# TYPE ledgergate_rate_limit_keys gauge
ledgergate_rate_limit_keys 12
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "ledgergate_rate_limit_keys"); err != nil {
		t.Fatalf("GatherAndCompare() error: %v", err)
	}
}
