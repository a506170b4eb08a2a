// Package metrics defines a concurrently-accessible metrics collector for
// duplex channels.
//
// A *metrics.M value tracks integer counters and maximum values. A metric has
// a caller-assigned string name that is not interpreted by the collector
// except to locate its stored value. An M can be shared among many channels,
// which then report their totals together.
package metrics

import (
	"sort"
	"sync"
)

// Kind distinguishes the kinds of metric stored in an M.
type Kind int

const (
	Counter  Kind = iota + 1 // a running total
	MaxValue                 // the largest value observed
)

func (k Kind) String() string {
	switch k {
	case Counter:
		return "counter"
	case MaxValue:
		return "max"
	default:
		return "unknown"
	}
}

// An M collects counters and maximum value trackers. A nil *M is valid, and
// discards all metrics. The methods of an *M are safe for concurrent use by
// multiple goroutines.
type M struct {
	mu      sync.Mutex
	counter map[string]int64
	maxVal  map[string]int64
}

// New creates a new, empty metrics collector.
func New() *M {
	return &M{counter: make(map[string]int64), maxVal: make(map[string]int64)}
}

// Count adds n to the counter named, defining it if it does not exist.
func (m *M) Count(name string, n int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter[name] += n
}

// SetMaxValue sets the max tracker named to the greater of n and its current
// value, defining it if it does not exist.
func (m *M) SetMaxValue(name string, n int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.maxVal[name]; !ok || n > cur {
		m.maxVal[name] = n
	}
}

// Value reports the current value of the metric of the given kind and name,
// and whether it is defined.
func (m *M) Value(kind Kind, name string) (int64, bool) {
	if m == nil {
		return 0, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var v int64
	var ok bool
	switch kind {
	case Counter:
		v, ok = m.counter[name]
	case MaxValue:
		v, ok = m.maxVal[name]
	}
	return v, ok
}

// Snapshot copies an atomic snapshot of the counters and max value trackers
// into the provided non-nil maps.
func (m *M) Snapshot(counters, maxValues map[string]int64) {
	m.Each(func(kind Kind, name string, value int64) {
		if kind == Counter {
			counters[name] = value
		} else {
			maxValues[name] = value
		}
	})
}

// Each calls f with each metric defined in m, counters first, each kind in
// order by name. The values are an atomic snapshot; f may safely call the
// methods of m.
func (m *M) Each(f func(kind Kind, name string, value int64)) {
	if m == nil {
		return
	}
	type entry struct {
		kind  Kind
		name  string
		value int64
	}
	m.mu.Lock()
	all := make([]entry, 0, len(m.counter)+len(m.maxVal))
	for name, v := range m.counter {
		all = append(all, entry{Counter, name, v})
	}
	for name, v := range m.maxVal {
		all = append(all, entry{MaxValue, name, v})
	}
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].kind != all[j].kind {
			return all[i].kind < all[j].kind
		}
		return all[i].name < all[j].name
	})
	for _, e := range all {
		f(e.kind, e.name, e.value)
	}
}
