package observability

import (
	"sync"
)

// Outcomes recorded per handled action.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	actionCount  map[string]int64
	errorCount   map[string]int64
	requestCount map[string]int64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Actions  map[string]int64 `json:"actions"`
	Errors   map[string]int64 `json:"errors"`
	Requests map[string]int64 `json:"requests"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		actionCount:  make(map[string]int64),
		errorCount:   make(map[string]int64),
		requestCount: make(map[string]int64),
	}
}

// RecordAction counts a handled bot action by outcome.
func (m *Metrics) RecordAction(action, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actionCount[action+"|"+outcome]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(source, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[source+"|"+code]++
}

// RecordRequest counts dashboard HTTP requests.
func (m *Metrics) RecordRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[method+" "+route+"|"+statusClass(status)]++
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Actions:  copyCounts(m.actionCount),
		Errors:   copyCounts(m.errorCount),
		Requests: copyCounts(m.requestCount),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
