// Package netmon decides whether the backend is reachable. Passive events
// (the client's online/offline signal) are trusted immediately; a periodic
// HEAD probe catches the cases where the client claims to be online but
// requests do not get through.
package netmon

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"veiled-verse/internal/metrics"

	"go.uber.org/zap"
)

const Unknown = "unknown"

type Config struct {
	ProbeURL      string
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	// InitiallyOnline is the state before any event or probe.
	InitiallyOnline bool
}

func DefaultConfig() Config {
	return Config{
		ProbeInterval:   30 * time.Second,
		ProbeTimeout:    5 * time.Second,
		InitiallyOnline: true,
	}
}

type Monitor struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger

	mu              sync.RWMutex
	online          bool
	connectionType  string
	connectionSpeed string

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(online bool)
}

func New(cfg Config, logger *zap.Logger) *Monitor {
	def := DefaultConfig()
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = def.ProbeInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Monitor{
		cfg:             cfg,
		client:          &http.Client{Timeout: cfg.ProbeTimeout},
		logger:          logger,
		online:          cfg.InitiallyOnline,
		connectionType:  Unknown,
		connectionSpeed: Unknown,
		subs:            make(map[int]func(bool)),
	}
	metrics.NetworkOnline.Set(boolGauge(m.online))
	return m
}

// Run probes on every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	if m.cfg.ProbeURL == "" {
		m.logger.Warn("network probe disabled, no probe url configured")
		return
	}

	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	m.logger.Info("network monitor started",
		zap.String("probe_url", m.cfg.ProbeURL),
		zap.Duration("interval", m.cfg.ProbeInterval))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("network monitor stopped")
			return
		case <-ticker.C:
			m.periodicProbe(ctx)
		}
	}
}

// periodicProbe only ever promotes offline to online. A failed probe while
// online is logged and left to passive events or RetryConnection.
func (m *Monitor) periodicProbe(ctx context.Context) {
	latency, err := m.probe(ctx)
	if err != nil {
		m.logger.Debug("network probe failed", zap.Error(err))
		return
	}
	m.logger.Debug("network probe ok", zap.Duration("latency", latency))
	if !m.IsOnline() {
		m.setOnline(true)
	}
}

// RetryConnection probes once and applies the result in either direction.
func (m *Monitor) RetryConnection(ctx context.Context) (time.Duration, error) {
	latency, err := m.probe(ctx)
	if err != nil {
		m.setOnline(false)
		return 0, err
	}
	m.setOnline(true)
	return latency, nil
}

func (m *Monitor) probe(ctx context.Context) (time.Duration, error) {
	if m.cfg.ProbeURL == "" {
		return 0, fmt.Errorf("no probe url configured")
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.cfg.ProbeURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build probe request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	start := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to reach %s: %w", m.cfg.ProbeURL, err)
	}
	resp.Body.Close()
	latency := time.Since(start)

	if resp.StatusCode >= 500 {
		return 0, fmt.Errorf("probe returned status %d", resp.StatusCode)
	}

	metrics.NetworkProbeLatencySeconds.Observe(latency.Seconds())
	return latency, nil
}

// HandleEvent applies a passive online/offline signal.
func (m *Monitor) HandleEvent(online bool) {
	m.setOnline(online)
}

// SetConnectionInfo records best-effort connection metadata; empty values
// reset to "unknown".
func (m *Monitor) SetConnectionInfo(connectionType, speed string) {
	if connectionType == "" {
		connectionType = Unknown
	}
	if speed == "" {
		speed = Unknown
	}
	m.mu.Lock()
	m.connectionType = connectionType
	m.connectionSpeed = speed
	m.mu.Unlock()
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

func (m *Monitor) ConnectionType() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connectionType
}

func (m *Monitor) ConnectionSpeed() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connectionSpeed
}

// Subscribe registers fn for state transitions. fn runs on its own goroutine
// and must not assume ordering between subscribers. The returned func
// unsubscribes.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Monitor) setOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if !changed {
		return
	}

	metrics.NetworkOnline.Set(boolGauge(online))
	m.logger.Info("network status changed", zap.Bool("online", online))

	m.subMu.Lock()
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.subMu.Unlock()

	for _, fn := range subs {
		go fn(online)
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
