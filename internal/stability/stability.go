// Package stability implements the Scenario Stability Tracker (C12):
// windowed flake-rate tracking and auto-quarantine/auto-unquarantine
// over repeated orchestrations of the same scenario (§4.12). It is
// purely additive telemetry — it never blocks an orchestration, it
// only annotates the emitted summary (§4.7).
package stability

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/testgpt-run/testgpt/internal/domain"
)

// Config holds the Tracker's thresholds, matching internal/config's
// Stability struct field-for-field (§4.14).
type Config struct {
	WindowSize                   int
	FlakeThreshold               float64
	MinRuns                      int
	AutoQuarantine               bool
	AutoUnquarantine             bool
	UnquarantineThreshold        float64
	ConsecutiveFailuresThreshold int
}

func (c Config) withDefaults() Config {
	if c.WindowSize <= 0 {
		c.WindowSize = 10
	}
	if c.FlakeThreshold <= 0 {
		c.FlakeThreshold = 0.3
	}
	if c.MinRuns <= 0 {
		c.MinRuns = 3
	}
	if c.UnquarantineThreshold <= 0 {
		c.UnquarantineThreshold = 0.9
	}
	return c
}

type quarantineEntry struct {
	Reason          string    `json:"reason"`
	QuarantinedAt   time.Time `json:"quarantined_at"`
	AutoQuarantined bool      `json:"auto_quarantined"`
}

type scenarioHistory struct {
	Records             []domain.StabilityRecord `json:"records"` // most recent first
	ConsecutiveFailures int                       `json:"consecutive_failures"`
	ConsecutivePasses   int                       `json:"consecutive_passes"`
}

// Tracker is the in-process, file-persisted Stability Tracker. Safe
// for concurrent use.
type Tracker struct {
	log    zerolog.Logger
	cfg    Config
	path   string

	mu         sync.Mutex
	history    map[string]*scenarioHistory
	quarantine map[string]*quarantineEntry
}

// New opens (or creates) a Tracker persisted at path.
func New(log zerolog.Logger, path string, cfg Config) (*Tracker, error) {
	t := &Tracker{
		log:        log,
		cfg:        cfg.withDefaults(),
		path:       path,
		history:    make(map[string]*scenarioHistory),
		quarantine: make(map[string]*quarantineEntry),
	}
	if err := t.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading stability data: %w", err)
	}
	return t, nil
}

// Record prepends a StabilityRecord to the scenario's windowed history,
// recomputes StabilityMetrics, and applies any auto-quarantine or
// auto-unquarantine transition the new metrics trigger (§4.12).
func (t *Tracker) Record(scenarioID string, outcome domain.StabilityOutcome, runID string) domain.StabilityMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	hist, ok := t.history[scenarioID]
	if !ok {
		hist = &scenarioHistory{}
		t.history[scenarioID] = hist
	}

	record := domain.StabilityRecord{
		ScenarioID: scenarioID,
		Outcome:    outcome,
		RunID:      runID,
		RecordedAt: time.Now(),
	}
	hist.Records = append([]domain.StabilityRecord{record}, hist.Records...)

	switch outcome {
	case domain.StabilityPass:
		hist.ConsecutivePasses++
		hist.ConsecutiveFailures = 0
	case domain.StabilityFail:
		hist.ConsecutiveFailures++
		hist.ConsecutivePasses = 0
	}

	// Keep a buffer beyond the window so shrinking WindowSize doesn't
	// lose history that a later config change might want back.
	maxHistory := t.cfg.WindowSize * 2
	if len(hist.Records) > maxHistory {
		hist.Records = hist.Records[:maxHistory]
	}

	metrics := t.metricsUnlocked(scenarioID)
	t.applyTransitions(scenarioID, metrics)
	metrics.Quarantined = t.isQuarantinedUnlocked(scenarioID)

	if err := t.save(); err != nil {
		t.log.Warn().Err(err).Str("scenario_id", scenarioID).Msg("failed to persist stability data")
	}
	return metrics
}

// Metrics returns the current StabilityMetrics for a scenario.
func (t *Tracker) Metrics(scenarioID string) domain.StabilityMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := t.metricsUnlocked(scenarioID)
	m.Quarantined = t.isQuarantinedUnlocked(scenarioID)
	return m
}

// FlakeThreshold returns the configured flake-rate threshold, so
// callers (the Orchestrator's summary annotator) can decide whether a
// scenario's metrics warrant a stability footnote without duplicating
// the threshold (§4.12).
func (t *Tracker) FlakeThreshold() float64 { return t.cfg.FlakeThreshold }

// IsQuarantined reports whether a scenario is currently quarantined.
func (t *Tracker) IsQuarantined(scenarioID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isQuarantinedUnlocked(scenarioID)
}

func (t *Tracker) isQuarantinedUnlocked(scenarioID string) bool {
	_, ok := t.quarantine[scenarioID]
	return ok
}

// Quarantine manually quarantines a scenario (§4.12's manual override).
func (t *Tracker) Quarantine(scenarioID, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.quarantine[scenarioID] = &quarantineEntry{
		Reason:        reason,
		QuarantinedAt: time.Now(),
	}
	t.log.Info().Str("scenario_id", scenarioID).Str("reason", reason).Msg("scenario quarantined")
	return t.save()
}

// Unquarantine manually lifts a scenario's quarantine.
func (t *Tracker) Unquarantine(scenarioID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.quarantine, scenarioID)
	t.log.Info().Str("scenario_id", scenarioID).Msg("scenario unquarantined")
	return t.save()
}

func (t *Tracker) metricsUnlocked(scenarioID string) domain.StabilityMetrics {
	m := domain.StabilityMetrics{ScenarioID: scenarioID, WindowSize: t.cfg.WindowSize}

	hist, ok := t.history[scenarioID]
	if !ok || len(hist.Records) == 0 {
		return m
	}

	windowEnd := t.cfg.WindowSize
	if windowEnd > len(hist.Records) {
		windowEnd = len(hist.Records)
	}
	for i := 0; i < windowEnd; i++ {
		switch hist.Records[i].Outcome {
		case domain.StabilityPass:
			m.PassCount++
		case domain.StabilityFail:
			m.FailCount++
		}
	}
	total := m.PassCount + m.FailCount
	if total > 0 {
		m.FlakeRate = float64(m.FailCount) / float64(total)
	}
	m.ConsecutiveFailures = hist.ConsecutiveFailures
	m.ConsecutivePasses = hist.ConsecutivePasses
	return m
}

// applyTransitions auto-quarantines on N consecutive failures or an
// elevated flake rate, and auto-unquarantines an auto-quarantined
// scenario once its success rate over at least MinRuns windowed runs
// reaches UnquarantineThreshold, always logging the transition — never
// silently (§4.12). Manual quarantines are never lifted here.
func (t *Tracker) applyTransitions(scenarioID string, metrics domain.StabilityMetrics) {
	total := metrics.PassCount + metrics.FailCount
	_, quarantined := t.quarantine[scenarioID]

	if !quarantined && t.cfg.AutoQuarantine {
		reason := ""
		if t.cfg.ConsecutiveFailuresThreshold > 0 && metrics.ConsecutiveFailures >= t.cfg.ConsecutiveFailuresThreshold {
			reason = fmt.Sprintf("%d consecutive failures", metrics.ConsecutiveFailures)
		} else if total >= t.cfg.MinRuns && metrics.FlakeRate >= t.cfg.FlakeThreshold {
			reason = fmt.Sprintf("%.0f%% failure rate over %d runs", metrics.FlakeRate*100, total)
		}
		if reason != "" {
			t.quarantine[scenarioID] = &quarantineEntry{
				Reason:          "auto-quarantined: " + reason,
				QuarantinedAt:   time.Now(),
				AutoQuarantined: true,
			}
			t.log.Warn().Str("scenario_id", scenarioID).Str("reason", reason).Msg("scenario auto-quarantined")
		}
	}

	if quarantined && t.cfg.AutoUnquarantine {
		entry := t.quarantine[scenarioID]
		successRate := 1 - metrics.FlakeRate
		if entry.AutoQuarantined && total >= t.cfg.MinRuns && successRate >= t.cfg.UnquarantineThreshold {
			delete(t.quarantine, scenarioID)
			t.log.Info().Str("scenario_id", scenarioID).Float64("success_rate", successRate).Msg("scenario auto-unquarantined")
		}
	}
}

type storageData struct {
	History    map[string]*scenarioHistory `json:"history"`
	Quarantine map[string]*quarantineEntry `json:"quarantine"`
}

func (t *Tracker) load() error {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return err
	}
	var s storageData
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parsing stability data: %w", err)
	}
	if s.History != nil {
		t.history = s.History
	}
	if s.Quarantine != nil {
		t.quarantine = s.Quarantine
	}
	return nil
}

func (t *Tracker) save() error {
	s := storageData{History: t.history, Quarantine: t.quarantine}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing stability data: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("creating stability directory: %w", err)
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, t.path)
}
