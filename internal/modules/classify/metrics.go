package classify

import "sync"

// Metrics are process-scoped classification counters. They reset on restart
// and are injected rather than global so tests get a fresh instance.
type Metrics struct {
	mu        sync.Mutex
	attempts  int64
	successes int64
	retries   int64
	fallbacks int64
}

type MetricsSnapshot struct {
	Attempts    int64   `json:"attempts"`
	Successes   int64   `json:"successes"`
	Retries     int64   `json:"retries"`
	Fallbacks   int64   `json:"fallbacks"`
	SuccessRate float64 `json:"success_rate"`
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) RecordAttempt() {
	m.mu.Lock()
	m.attempts++
	m.mu.Unlock()
}

func (m *Metrics) RecordSuccess() {
	m.mu.Lock()
	m.successes++
	m.mu.Unlock()
}

func (m *Metrics) RecordRetry() {
	m.mu.Lock()
	m.retries++
	m.mu.Unlock()
}

func (m *Metrics) RecordFallback() {
	m.mu.Lock()
	m.fallbacks++
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := MetricsSnapshot{
		Attempts:  m.attempts,
		Successes: m.successes,
		Retries:   m.retries,
		Fallbacks: m.fallbacks,
	}
	if m.attempts > 0 {
		snap.SuccessRate = float64(m.successes) / float64(m.attempts)
	}
	return snap
}
