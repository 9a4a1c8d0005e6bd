package metrics

import (
	"sort"
	"sync"
	"time"
)

// maxSamples bounds each latency window.
const maxSamples = 1000

type Metrics struct {
	mutex         sync.RWMutex
	requests      int64
	statusCodes   map[int]int64
	outcomes      map[string]int64
	responseTimes []time.Duration
	backends      map[string]*backendStats
	startTime     time.Time
}

type backendStats struct {
	selections    int64
	outcomes      map[string]int64
	exchangeTimes []time.Duration
	healthy       bool
}

type Snapshot struct {
	TotalRequests int64                     `json:"total_requests"`
	Uptime        time.Duration             `json:"uptime"`
	Algorithm     string                    `json:"algorithm"`
	StatusCodes   map[int]int64             `json:"status_codes"`
	Outcomes      map[string]int64          `json:"outcomes"`
	Latency       Latency                   `json:"latency"`
	Backends      map[string]BackendMetrics `json:"backends"`
}

type BackendMetrics struct {
	Selections int64            `json:"selections"`
	Exchanges  int64            `json:"exchanges"`
	Healthy    bool             `json:"healthy"`
	Outcomes   map[string]int64 `json:"outcomes"`
	Latency    Latency          `json:"latency"`
}

type Latency struct {
	Avg time.Duration `json:"avg"`
	P50 time.Duration `json:"p50"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		statusCodes: make(map[int]int64),
		outcomes:    make(map[string]int64),
		backends:    make(map[string]*backendStats),
		startTime:   time.Now(),
	}
}

func (m *Metrics) IncrementRequests() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.requests++
}

// RecordResponse records one finished client response.
func (m *Metrics) RecordResponse(duration time.Duration, statusCode int, outcome string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.responseTimes = appendSample(m.responseTimes, duration)
	m.statusCodes[statusCode]++
	if outcome != "" {
		m.outcomes[outcome]++
	}
}

func (m *Metrics) RecordBackendSelection(backend string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.backend(backend).selections++
}

// RecordExchange records one finished backend exchange.
func (m *Metrics) RecordExchange(backend string, duration time.Duration, outcome string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	b := m.backend(backend)
	b.exchangeTimes = appendSample(b.exchangeTimes, duration)
	b.outcomes[outcome]++
}

func (m *Metrics) UpdateHealthStatus(backend string, healthy bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.backend(backend).healthy = healthy
}

// backend must be called with the write lock held.
func (m *Metrics) backend(address string) *backendStats {
	b, ok := m.backends[address]
	if !ok {
		b = &backendStats{outcomes: make(map[string]int64), healthy: true}
		m.backends[address] = b
	}
	return b
}

func (m *Metrics) Snapshot(algorithm string) Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		TotalRequests: m.requests,
		Uptime:        time.Since(m.startTime),
		Algorithm:     algorithm,
		StatusCodes:   copyCounts(m.statusCodes),
		Outcomes:      copyCounts(m.outcomes),
		Latency:       summarize(m.responseTimes),
		Backends:      make(map[string]BackendMetrics, len(m.backends)),
	}

	for address, b := range m.backends {
		var exchanges int64
		for _, n := range b.outcomes {
			exchanges += n
		}

		snap.Backends[address] = BackendMetrics{
			Selections: b.selections,
			Exchanges:  exchanges,
			Healthy:    b.healthy,
			Outcomes:   copyCounts(b.outcomes),
			Latency:    summarize(b.exchangeTimes),
		}
	}

	return snap
}

func appendSample(samples []time.Duration, d time.Duration) []time.Duration {
	samples = append(samples, d)
	if len(samples) > maxSamples {
		samples = samples[1:]
	}
	return samples
}

func copyCounts[K comparable](src map[K]int64) map[K]int64 {
	dst := make(map[K]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func summarize(durations []time.Duration) Latency {
	if len(durations) == 0 {
		return Latency{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	return Latency{
		Avg: average(sorted),
		P50: percentile(sorted, 0.50),
		P95: percentile(sorted, 0.95),
		P99: percentile(sorted, 0.99),
	}
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
