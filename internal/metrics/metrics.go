package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradesim/internal/market"
	"tradesim/internal/model"
)

// Metrics holds all Prometheus metrics for the simulator.
type Metrics struct {
	TicksTotal       *prometheus.CounterVec   // labels: kind
	InstrumentsMoved *prometheus.CounterVec   // labels: kind, direction
	TickDuration     *prometheus.HistogramVec // labels: kind
	UniverseSize     *prometheus.GaugeVec     // labels: kind
	SnapshotSeq      *prometheus.GaugeVec     // labels: kind
	SinkErrors       *prometheus.CounterVec   // labels: kind
	SnapshotsDropped *prometheus.CounterVec   // labels: kind

	LedgerOps *prometheus.CounterVec // labels: op, kind, result

	WSClients         prometheus.Gauge
	WSMessagesDropped prometheus.Counter
	HTTPRequests      *prometheus.CounterVec   // labels: route, code
	HTTPDuration      *prometheus.HistogramVec // labels: route

	RedisCircuitBreakerState *prometheus.GaugeVec   // labels: breaker; 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips *prometheus.CounterVec // labels: breaker
}

// New creates every metric and registers it with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	kind := []string{"kind"}
	m := &Metrics{
		TicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesim_ticks_total",
			Help: "Ticks applied per universe",
		}, kind),
		InstrumentsMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesim_instruments_moved_total",
			Help: "Instrument price moves per universe and direction",
		}, []string{"kind", "direction"}),
		TickDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradesim_tick_duration_seconds",
			Help:    "Time to compute one tick of a universe",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, kind),
		UniverseSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tradesim_universe_size",
			Help: "Instruments in the latest snapshot",
		}, kind),
		SnapshotSeq: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tradesim_snapshot_seq",
			Help: "Sequence number of the latest snapshot",
		}, kind),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesim_snapshot_sink_errors_total",
			Help: "Snapshot sink publish failures",
		}, kind),
		SnapshotsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesim_snapshots_dropped_total",
			Help: "Snapshots not published to Redis because the circuit breaker was open",
		}, kind),
		LedgerOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesim_ledger_ops_total",
			Help: "Ledger operations by outcome",
		}, []string{"op", "kind", "result"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradesim_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		WSMessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradesim_ws_messages_dropped_total",
			Help: "Snapshot messages dropped for slow WebSocket clients",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesim_http_requests_total",
			Help: "HTTP API requests by route and status",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradesim_http_request_duration_seconds",
			Help:    "HTTP API latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		RedisCircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tradesim_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"breaker"}),
		RedisCircuitBreakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradesim_redis_circuit_breaker_trips_total",
			Help: "Times a Redis circuit breaker tripped open",
		}, []string{"breaker"}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.InstrumentsMoved,
		m.TickDuration,
		m.UniverseSize,
		m.SnapshotSeq,
		m.SinkErrors,
		m.SnapshotsDropped,
		m.LedgerOps,
		m.WSClients,
		m.WSMessagesDropped,
		m.HTTPRequests,
		m.HTTPDuration,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
	)
	return m
}

// ObserveTick implements market.Observer.
func (m *Metrics) ObserveTick(kind model.Kind, stats market.TickStats, size int, took time.Duration) {
	k := string(kind)
	m.TicksTotal.WithLabelValues(k).Inc()
	m.InstrumentsMoved.WithLabelValues(k, "up").Add(float64(stats.Up))
	m.InstrumentsMoved.WithLabelValues(k, "down").Add(float64(stats.Down))
	m.InstrumentsMoved.WithLabelValues(k, "flat").Add(float64(stats.Moved - stats.Up - stats.Down))
	m.TickDuration.WithLabelValues(k).Observe(took.Seconds())
	m.UniverseSize.WithLabelValues(k).Set(float64(size))
	m.SnapshotSeq.WithLabelValues(k).Inc()
}

// ObserveSinkError implements market.Observer.
func (m *Metrics) ObserveSinkError(kind model.Kind) {
	m.SinkErrors.WithLabelValues(string(kind)).Inc()
}

// ObserveTrade implements account.Observer.
func (m *Metrics) ObserveTrade(op string, kind model.Kind, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	k := string(kind)
	if k == "" {
		k = "none"
	}
	m.LedgerOps.WithLabelValues(op, k, result).Inc()
}

// ObserveHTTP records one API request.
func (m *Metrics) ObserveHTTP(route string, code int, took time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(took.Seconds())
}

// BreakerStateChange records a circuit breaker transition. Callers pass
// the numeric state so this package does not depend on the store.
func (m *Metrics) BreakerStateChange(breaker string, to int, open bool) {
	m.RedisCircuitBreakerState.WithLabelValues(breaker).Set(float64(to))
	if open {
		m.RedisCircuitBreakerTrips.WithLabelValues(breaker).Inc()
	}
}

var _ market.Observer = (*Metrics)(nil)

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	StoreBackend    string                   `json:"store_backend"`
	StoreOK         bool                     `json:"store_ok"`
	RedisConnected  bool                     `json:"redis_connected"`
	RedisLatencyMs  float64                  `json:"redis_latency_ms"`
	SQLiteLatencyMs float64                  `json:"sqlite_latency_ms"`
	LastTick        map[model.Kind]time.Time `json:"last_tick"`
	LastCheckAt     time.Time                `json:"last_check_at"`
	StartedAt       time.Time                `json:"started_at"`

	// StaleAfter marks the market degraded when no tick arrived for this long.
	StaleAfter time.Duration `json:"-"`
}

// NewHealthStatus returns a health status for the given store backend.
// The memory backend is always healthy.
func NewHealthStatus(backend string, staleAfter time.Duration) *HealthStatus {
	return &HealthStatus{
		StoreBackend: backend,
		StoreOK:      backend == "memory",
		LastTick:     make(map[model.Kind]time.Time, 2),
		StartedAt:    time.Now(),
		StaleAfter:   staleAfter,
	}
}

// SetLastTick records the time of the latest snapshot of kind.
func (h *HealthStatus) SetLastTick(kind model.Kind, t time.Time) {
	h.mu.Lock()
	h.LastTick[kind] = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetStoreOK(v bool) {
	h.mu.Lock()
	h.StoreOK = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	if h.StoreBackend == "redis" {
		h.StoreOK = err == nil
	}
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.StoreOK = err == nil
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks until ctx ends.
// Either dependency may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	check := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if rdb != nil {
			h.CheckRedis(probeCtx, rdb)
		}
		if sqlDB != nil {
			h.CheckSQLite(probeCtx, sqlDB)
		}
	}
	check()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				check()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overall := "healthy"
	code := http.StatusOK

	tickAge := make(map[string]string, len(h.LastTick))
	marketStale := h.StaleAfter > 0 && len(h.LastTick) == 0 && time.Since(h.StartedAt) > h.StaleAfter
	for kind, at := range h.LastTick {
		age := time.Since(at)
		tickAge[string(kind)] = age.Round(time.Millisecond).String()
		if h.StaleAfter > 0 && age > h.StaleAfter {
			marketStale = true
		}
	}
	if !h.StoreOK || marketStale {
		overall = "degraded"
		code = http.StatusServiceUnavailable
	}
	if !h.StoreOK && marketStale {
		overall = "unhealthy"
	}

	status := struct {
		Status          string            `json:"status"`
		Uptime          string            `json:"uptime"`
		StoreBackend    string            `json:"store_backend"`
		StoreOK         bool              `json:"store_ok"`
		RedisConnected  bool              `json:"redis_connected"`
		RedisLatencyMs  float64           `json:"redis_latency_ms"`
		SQLiteLatencyMs float64           `json:"sqlite_latency_ms"`
		TickAge         map[string]string `json:"tick_age"`
		LastCheckAt     string            `json:"last_check_at"`
	}{
		Status:          overall,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		StoreBackend:    h.StoreBackend,
		StoreOK:         h.StoreOK,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		TickAge:         tickAge,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server over gatherer.
func NewServer(addr string, gatherer prometheus.Gatherer, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
