package docrender

import (
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	rec := NewPrometheusRecorder(reg)

	rec.ObserveRender(BackendBasic, PersistToPath, outcomeSuccess, 20*time.Millisecond, 2048)
	rec.ObserveRender(BackendBasic, PersistToPath, outcomeSuccess, 30*time.Millisecond, 4096)
	rec.ObserveRender(BackendChrome, InlineStream, KindResource.String(), time.Second, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(rec.renders.WithLabelValues("basic", "persist", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.renders.WithLabelValues("chrome", "inline", "resource")))

	expected := `
# HELP docrender_renders_total Renders by backend, delivery mode and outcome
# TYPE docrender_renders_total counter
docrender_renders_total{backend="basic",delivery="persist",outcome="success"} 2
docrender_renders_total{backend="chrome",delivery="inline",outcome="resource"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "docrender_renders_total"))

	// Failed renders are not counted towards output size.
	assert.Equal(t, 2, testutil.CollectAndCount(rec.duration))
	assert.Equal(t, 1, testutil.CollectAndCount(rec.size))
}

func TestNewPrometheusRecorderOwnRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusRecorder(nil)
		NewPrometheusRecorder(nil)
	})
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NoopRecorder{}
	assert.NotPanics(t, func() {
		r.ObserveRender(BackendBasic, InlineStream, "success", time.Second, 1)
	})
}
