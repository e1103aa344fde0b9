package resilient

import (
	"sync"
	"time"
)

type serviceCounters struct {
	Count         int64
	TotalDuration time.Duration
	Errors        int64
}

// Metrics holds advisory call counters. They never gate control flow; the
// server exposes Summary for diagnostics only.
type Metrics struct {
	mu       sync.Mutex
	services map[string]*serviceCounters
	hits     int64
	misses   int64
}

func NewMetrics() *Metrics {
	return &Metrics{services: make(map[string]*serviceCounters)}
}

// RecordCall records one dispatched remote call.
func (m *Metrics) RecordCall(service string, d time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.services[service]
	if c == nil {
		c = &serviceCounters{}
		m.services[service] = c
	}
	c.Count++
	c.TotalDuration += d
	if !success {
		c.Errors++
	}
}

// RecordCacheAccess records one cache lookup.
func (m *Metrics) RecordCacheAccess(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

// Summary returns a snapshot suitable for JSON encoding.
func (m *Metrics) Summary() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make(map[string]any, len(m.services))
	for name, c := range m.services {
		avg := time.Duration(0)
		if c.Count > 0 {
			avg = c.TotalDuration / time.Duration(c.Count)
		}
		errRate := 0.0
		if c.Count > 0 {
			errRate = float64(c.Errors) / float64(c.Count) * 100
		}
		calls[name] = map[string]any{
			"count":      c.Count,
			"avg_ms":     avg.Milliseconds(),
			"error_rate": errRate,
		}
	}

	total := m.hits + m.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(m.hits) / float64(total) * 100
	}

	return map[string]any{
		"api_calls": calls,
		"cache": map[string]any{
			"hits":     m.hits,
			"misses":   m.misses,
			"hit_rate": hitRate,
		},
	}
}
