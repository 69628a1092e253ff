package gateway

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/valyala/fasthttp"
)

type ProviderMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	LastLatencyMs    atomic.Int64
	ConsecutiveFails atomic.Int32
	LastErrorTime    atomic.Int64
	LastSuccessTime  atomic.Int64

	mu        sync.RWMutex
	latencies []int64
	window    int
}

func NewProviderMetrics() *ProviderMetrics {
	return &ProviderMetrics{
		latencies: make([]int64, 0, 100),
		window:    100,
	}
}

func (m *ProviderMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.LastLatencyMs.Store(latencyMs)
	m.ConsecutiveFails.Store(0)
	m.LastSuccessTime.Store(time.Now().Unix())

	m.mu.Lock()
	if len(m.latencies) >= m.window {
		m.latencies = m.latencies[1:]
	}
	m.latencies = append(m.latencies, latencyMs)
	m.mu.Unlock()
}

// RecordFailure counts a transport-level failure. Provider rejections are not failures.
func (m *ProviderMetrics) RecordFailure() int32 {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.LastErrorTime.Store(time.Now().Unix())
	return m.ConsecutiveFails.Add(1)
}

func (m *ProviderMetrics) AvgLatencyMs() int64 {
	ok := m.SuccessfulReqs.Load()
	if ok == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / ok
}

func (m *ProviderMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

func (m *ProviderMetrics) P95LatencyMs() int64 {
	m.mu.RLock()
	sorted := make([]int64, len(m.latencies))
	copy(sorted, m.latencies)
	m.mu.RUnlock()

	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)) * 0.95)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type ProviderState int32

const (
	StateHealthy ProviderState = iota
	StateDegraded
	StateCircuitOpen
)

func (s ProviderState) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Provider is one upstream server slot with its own credentials and breaker.
type Provider struct {
	server           model.Server
	url              string
	token            string
	client           *fasthttp.Client
	metrics          *ProviderMetrics
	state            atomic.Int32
	circuitOpenUntil atomic.Int64
}

func NewProvider(server model.Server, url, token string, client *fasthttp.Client) *Provider {
	p := &Provider{
		server:  server,
		url:     url,
		token:   token,
		client:  client,
		metrics: NewProviderMetrics(),
	}
	p.state.Store(int32(StateHealthy))
	return p
}

func (p *Provider) Server() model.Server { return p.server }

func (p *Provider) Metrics() *ProviderMetrics { return p.metrics }

func (p *Provider) GetState() ProviderState {
	return ProviderState(p.state.Load())
}

func (p *Provider) SetState(state ProviderState) {
	p.state.Store(int32(state))
}

// IsAvailable is false only while the circuit is open. Once the cool-down has
// passed the provider is let through as degraded, and one more failure reopens it.
func (p *Provider) IsAvailable() bool {
	if p.GetState() != StateCircuitOpen {
		return true
	}
	if time.Now().UnixMilli() >= p.circuitOpenUntil.Load() {
		p.state.CompareAndSwap(int32(StateCircuitOpen), int32(StateDegraded))
		return true
	}
	return false
}

func (p *Provider) openCircuit(cooldown time.Duration) {
	p.circuitOpenUntil.Store(time.Now().Add(cooldown).UnixMilli())
	p.SetState(StateCircuitOpen)
}

type ProviderStats struct {
	Server           string  `json:"server"`
	URL              string  `json:"url"`
	State            string  `json:"state"`
	TotalRequests    int64   `json:"total_requests"`
	SuccessfulReqs   int64   `json:"successful_requests"`
	FailedReqs       int64   `json:"failed_requests"`
	SuccessRate      float64 `json:"success_rate"`
	AvgLatencyMs     int64   `json:"avg_latency_ms"`
	P95LatencyMs     int64   `json:"p95_latency_ms"`
	LastLatencyMs    int64   `json:"last_latency_ms"`
	ConsecutiveFails int32   `json:"consecutive_fails"`
}

func (p *Provider) Stats() ProviderStats {
	return ProviderStats{
		Server:           string(p.server),
		URL:              p.url,
		State:            p.GetState().String(),
		TotalRequests:    p.metrics.TotalRequests.Load(),
		SuccessfulReqs:   p.metrics.SuccessfulReqs.Load(),
		FailedReqs:       p.metrics.FailedReqs.Load(),
		SuccessRate:      p.metrics.SuccessRate(),
		AvgLatencyMs:     p.metrics.AvgLatencyMs(),
		P95LatencyMs:     p.metrics.P95LatencyMs(),
		LastLatencyMs:    p.metrics.LastLatencyMs.Load(),
		ConsecutiveFails: p.metrics.ConsecutiveFails.Load(),
	}
}
