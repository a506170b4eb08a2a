package metrics_test

import (
	"sync"
	"testing"

	"github.com/creachadair/duplex/metrics"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
)

func TestNil(t *testing.T) {
	var m *metrics.M
	m.Count("x", 1)
	m.SetMaxValue("y", 2)
	if v, ok := m.Value(metrics.Counter, "x"); ok || v != 0 {
		t.Errorf("Value on nil: got (%d, %v), want (0, false)", v, ok)
	}
	m.Each(func(metrics.Kind, string, int64) { t.Error("Each on nil called f") })
}

func TestM(t *testing.T) {
	m := metrics.New()

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Count("packages_read", 1)
			m.Count("bytes_read", int64(i))
			m.SetMaxValue("max_frame_bytes", int64(i))
		}()
	}
	wg.Wait()
	m.SetMaxValue("negative", -5)

	counters, maxes := make(map[string]int64), make(map[string]int64)
	m.Snapshot(counters, maxes)
	if diff := cmp.Diff(map[string]int64{"packages_read": 10, "bytes_read": 55}, counters); diff != "" {
		t.Errorf("Counters (-want, +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]int64{"max_frame_bytes": 10, "negative": -5}, maxes); diff != "" {
		t.Errorf("Max values (-want, +got):\n%s", diff)
	}

	if v, ok := m.Value(metrics.MaxValue, "max_frame_bytes"); !ok || v != 10 {
		t.Errorf("Value: got (%d, %v), want (10, true)", v, ok)
	}

	var order []string
	m.Each(func(k metrics.Kind, name string, _ int64) { order = append(order, k.String()+":"+name) })
	want := []string{"counter:bytes_read", "counter:packages_read", "max:max_frame_bytes", "max:negative"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("Each order (-want, +got):\n%s", diff)
	}
}

func TestCollector(t *testing.T) {
	m := metrics.New()
	m.Count("packages_written", 3)
	m.Count("bytes-written", 12)
	m.SetMaxValue("max_frame_bytes", 7)

	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewCollector(m, "duplex", prometheus.Labels{"peer": "test"}))
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: unexpected error: %v", err)
	}

	got := make(map[string]float64)
	for _, mf := range mfs {
		for _, pm := range mf.GetMetric() {
			if c := pm.GetCounter(); c != nil {
				got[mf.GetName()] = c.GetValue()
			} else if g := pm.GetGauge(); g != nil {
				got[mf.GetName()] = g.GetValue()
			}
			if lp := pm.GetLabel(); len(lp) != 1 || lp[0].GetValue() != "test" {
				t.Errorf("Metric %q labels: got %v", mf.GetName(), lp)
			}
		}
	}
	want := map[string]float64{
		"duplex_packages_written_total": 3,
		"duplex_bytes_written_total":    12,
		"duplex_max_frame_bytes_max":    7,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Gathered metrics (-want, +got):\n%s", diff)
	}
}
