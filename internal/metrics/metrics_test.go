package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/tinu/internal/core"
	"firestige.xyz/tinu/internal/log"
)

func TestObserve(t *testing.T) {
	a := core.Attachment{Direction: core.Inbound, Role: core.Initiator}
	c := PacketsTotal.WithLabelValues("inbound", "initiator", "offload")
	before := testutil.ToFloat64(c)

	Observe(a, core.Result{Reason: core.ReasonOffload}, 300*time.Nanosecond)
	Observe(a, core.Result{Reason: core.ReasonOffload}, 300*time.Nanosecond)

	assert.Equal(t, before+2, testutil.ToFloat64(c))
}

func TestServerServesMetrics(t *testing.T) {
	BridgeErrorsTotal.WithLabelValues("eth0", OpWrite).Inc()

	s := NewServer("127.0.0.1:0", "")
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `tinu_bridge_errors_total{interface="eth0",op="write"}`))
}

func TestServerBindFailure(t *testing.T) {
	s := NewServer("127.0.0.1:0", "/m")
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	other := NewServer(s.Addr(), "/m")
	assert.Error(t, other.Start(context.Background()))
}

func TestStopWithoutStart(t *testing.T) {
	assert.NoError(t, NewServer(":0", "").Stop(context.Background()))
}

func TestWatchLimiter(t *testing.T) {
	reg := prometheus.NewRegistry()
	l := log.NewLimiter(log.AdvisoryConfig{Interval: time.Hour, Burst: 1})
	require.NoError(t, WatchLimiter(reg, l))

	now := time.Now()
	l.Allow("offload", now)
	l.Allow("offload", now)
	l.Allow("offload", now)

	n, err := testutil.GatherAndCount(reg, "tinu_advisory_suppressed_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, mfs, 1)
	assert.Equal(t, 2.0, mfs[0].GetMetric()[0].GetCounter().GetValue())

	assert.Error(t, WatchLimiter(reg, l), "second registration")
}
