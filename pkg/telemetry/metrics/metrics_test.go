package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Helper function to create test config
func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:                 true,
		Namespace:               "test",
		Subsystem:               "engine",
		DecisionDurationBuckets: []float64{0.0001, 0.001, 0.01},
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)

	if collector.config != cfg {
		t.Error("Collector config not set correctly")
	}
	if collector.Registry() != registry {
		t.Error("Collector registry not set correctly")
	}
}

func TestCollector_Defaults(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	NewCollector(cfg, nil)

	if cfg.Namespace != "callisto" || cfg.Subsystem != "engine" {
		t.Errorf("unexpected naming defaults %q/%q", cfg.Namespace, cfg.Subsystem)
	}
	if len(cfg.DecisionDurationBuckets) == 0 {
		t.Error("decision buckets should default")
	}
}

func TestCollector_RecordDecision(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordDecision("redirect", "redirect", 50*time.Microsecond)
	collector.RecordDecision("pass", "same_site", 20*time.Microsecond)
	collector.RecordDecision("pass", "same_site", 30*time.Microsecond)

	dm := collector.decisionMetrics
	if got := testutil.ToFloat64(dm.decisionsTotal.WithLabelValues("redirect", "redirect")); got != 1 {
		t.Errorf("redirect decisions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(dm.decisionsTotal.WithLabelValues("pass", "same_site")); got != 2 {
		t.Errorf("same_site decisions = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(dm.decisionDuration); got != 1 {
		t.Errorf("duration histogram series = %d, want 1", got)
	}
}

func TestCollector_RecordDetectionAndProbe(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordDetection("ezproxy", "match")
	collector.RecordDetection("vpn-gateway", "decline")
	collector.RecordDetection("vpn-gateway", "decline")
	collector.RecordProbe("observed")

	dm := collector.detectionMetrics
	if got := testutil.ToFloat64(dm.detectionsTotal.WithLabelValues("ezproxy", "match")); got != 1 {
		t.Errorf("ezproxy matches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(dm.detectionsTotal.WithLabelValues("vpn-gateway", "decline")); got != 2 {
		t.Errorf("vpn declines = %v, want 2", got)
	}
	if got := testutil.ToFloat64(dm.probesTotal.WithLabelValues("observed")); got != 1 {
		t.Errorf("observed probes = %v, want 1", got)
	}
}

func TestCollector_Learning(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordQueueDrop()
	collector.RecordQueueDrop()
	collector.RecordAssociation("added")
	collector.UpdateRegistrySize(3, 12)

	lm := collector.learningMetrics
	if got := testutil.ToFloat64(lm.droppedTotal); got != 2 {
		t.Errorf("dropped = %v, want 2", got)
	}
	if got := testutil.ToFloat64(lm.associationsTotal.WithLabelValues("added")); got != 1 {
		t.Errorf("added associations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(lm.proxies); got != 3 {
		t.Errorf("proxies gauge = %v, want 3", got)
	}
	if got := testutil.ToFloat64(lm.hosts); got != 12 {
		t.Errorf("hosts gauge = %v, want 12", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	collector := NewCollector(cfg, prometheus.NewRegistry())

	collector.RecordQueueDrop()
	collector.RecordDecision("redirect", "redirect", time.Millisecond)

	if got := testutil.ToFloat64(collector.learningMetrics.droppedTotal); got != 0 {
		t.Errorf("disabled collector recorded %v drops", got)
	}
}

func TestCollector_Nil(t *testing.T) {
	var collector *Collector

	// Must not panic.
	collector.RecordDecision("pass", "not_proxied", time.Microsecond)
	collector.RecordDetection("ezproxy", "decline")
	collector.RecordProbe("error")
	collector.RecordQueueDrop()
	collector.RecordAssociation("known")
	collector.UpdateRegistrySize(1, 1)
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	collector.RecordDetection("ezproxy", "match")

	srv := httptest.NewServer(collector.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), `test_engine_detections_total{detector="ezproxy",result="match"} 1`) {
		t.Errorf("scrape output missing detection counter:\n%s", body)
	}
}
