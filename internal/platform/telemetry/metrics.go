// Package telemetry keeps in-process HTTP and domain metrics and serves
// them in the Prometheus text exposition format.
package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

var defaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// histogram has fixed bucket boundaries. Bucket counts are stored
// non-cumulative and summed at export.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64
	count        int64
	sum          uint64 // math.Float64bits
	mu           sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	atomicAddFloat64(&h.sum, v)

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			return
		}
	}
}

func (h *histogram) Count() int64 { return atomic.LoadInt64(&h.count) }

func (h *histogram) Sum() float64 { return math.Float64frombits(atomic.LoadUint64(&h.sum)) }

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	cum := make([]int64, len(h.bucketCounts))
	var running int64
	for i, c := range h.bucketCounts {
		running += c
		cum[i] = running
	}
	return cum
}

func atomicAddFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(addr, old, next) {
			return
		}
	}
}

// gaugeFunc is sampled on every scrape.
type gaugeFunc struct {
	name, help string
	read       func() int64
}

// Metrics collects request latencies, labeled counters and sampled gauges.
type Metrics struct {
	service string
	active  int64

	mu       sync.RWMutex
	requests map[string]*histogram // method|route|status
	counters map[string]*int64     // metric|label
	help     map[string]string
	gauges   []gaugeFunc
}

// New returns an empty registry tagged with service.
func New(service string) *Metrics {
	if service == "" {
		service = "booking-server"
	}
	return &Metrics{
		service:  service,
		requests: make(map[string]*histogram),
		counters: make(map[string]*int64),
		help:     make(map[string]string),
	}
}

// Describe sets the HELP text of a counter.
func (m *Metrics) Describe(metric, help string) {
	m.mu.Lock()
	m.help[metric] = help
	m.mu.Unlock()
}

// Inc adds one to metric{outcome=label}.
func (m *Metrics) Inc(metric, label string) {
	key := metric + "|" + label
	m.mu.RLock()
	p, ok := m.counters[key]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		if p, ok = m.counters[key]; !ok {
			p = new(int64)
			m.counters[key] = p
		}
		m.mu.Unlock()
	}
	atomic.AddInt64(p, 1)
}

// Count reads metric{outcome=label}.
func (m *Metrics) Count(metric, label string) int64 {
	m.mu.RLock()
	p, ok := m.counters[metric+"|"+label]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(p)
}

// Gauge registers a value read at scrape time.
func (m *Metrics) Gauge(name, help string, read func() int64) {
	m.mu.Lock()
	m.gauges = append(m.gauges, gaugeFunc{name: name, help: help, read: read})
	m.mu.Unlock()
}

func (m *Metrics) requestHistogram(key string) *histogram {
	m.mu.RLock()
	h, ok := m.requests[key]
	m.mu.RUnlock()
	if ok {
		return h
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok = m.requests[key]; !ok {
		h = newHistogram(defaultDurationBuckets)
		m.requests[key] = h
	}
	return h
}

// Middleware records the duration of every request by route pattern.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&m.active, 1)
			start := time.Now()

			err := next(c)
			atomic.AddInt64(&m.active, -1)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			key := c.Request().Method + "|" + route + "|" + strconv.Itoa(status)
			m.requestHistogram(key).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry at /metrics.
func (m *Metrics) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.String(http.StatusOK, m.Render())
	}
}

// Render writes every metric in exposition format with stable ordering.
func (m *Metrics) Render() string {
	var b strings.Builder

	m.mu.RLock()
	reqKeys := sortedKeys(m.requests)
	requests := make(map[string]*histogram, len(m.requests))
	for k, v := range m.requests {
		requests[k] = v
	}
	counterKeys := sortedKeys(m.counters)
	counters := make(map[string]int64, len(m.counters))
	for k, p := range m.counters {
		counters[k] = atomic.LoadInt64(p)
	}
	help := make(map[string]string, len(m.help))
	for k, v := range m.help {
		help[k] = v
	}
	gauges := append([]gaugeFunc(nil), m.gauges...)
	m.mu.RUnlock()

	fmt.Fprintf(&b, "# HELP service_info Static service labels.\n# TYPE service_info gauge\n")
	fmt.Fprintf(&b, "service_info{service=%q} 1\n\n", m.service)

	const dur = "http_server_request_duration_seconds"
	fmt.Fprintf(&b, "# HELP %s Duration of HTTP requests in seconds.\n# TYPE %s histogram\n", dur, dur)
	for _, key := range reqKeys {
		parts := strings.SplitN(key, "|", 3)
		labels := fmt.Sprintf("method=%q,route=%q,status_code=%q", parts[0], parts[1], parts[2])
		writeHistogram(&b, dur, labels, requests[key])
	}
	b.WriteByte('\n')

	fmt.Fprintf(&b, "# HELP http_server_active_requests Number of in-flight HTTP requests.\n")
	fmt.Fprintf(&b, "# TYPE http_server_active_requests gauge\nhttp_server_active_requests %d\n\n", atomic.LoadInt64(&m.active))

	last := ""
	for _, key := range counterKeys {
		metric, label, _ := strings.Cut(key, "|")
		if metric != last {
			if last != "" {
				b.WriteByte('\n')
			}
			if h := help[metric]; h != "" {
				fmt.Fprintf(&b, "# HELP %s %s\n", metric, h)
			}
			fmt.Fprintf(&b, "# TYPE %s counter\n", metric)
			last = metric
		}
		fmt.Fprintf(&b, "%s{outcome=%q} %d\n", metric, label, counters[key])
	}
	if last != "" {
		b.WriteByte('\n')
	}

	for _, g := range gauges {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", g.name, g.help, g.name, g.name, g.read())
	}
	return b.String()
}

func writeHistogram(b *strings.Builder, name, labels string, h *histogram) {
	cum := h.cumulativeBuckets()
	total := h.Count()
	for i, boundary := range h.boundaries {
		fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, boundary, cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, total)
	fmt.Fprintf(b, "%s_sum{%s} %g\n", name, labels, h.Sum())
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, total)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
