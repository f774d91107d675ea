package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/vaultlynx/internal/analyzer"
	"github.com/bl4ck0w1/vaultlynx/internal/vault"
	"github.com/bl4ck0w1/vaultlynx/pkg/models"
	"github.com/bl4ck0w1/vaultlynx/pkg/utils"
)

type Stage string

const (
	StageIdle            Stage = "idle"
	StageReading         Stage = "reading"
	StageInitialAnalysis Stage = "initial_analysis"
	StagePasswordLeaks   Stage = "password_leaks"
	StageComplete        Stage = "complete"
)

var Stages = []Stage{StageIdle, StageReading, StageInitialAnalysis, StagePasswordLeaks, StageComplete}

var (
	ErrSuperseded = errors.New("analysis superseded by a newer load")
	ErrNoEngine   = errors.New("session has no analysis engine")
)

// Engine is the analysis pipeline a session drives.
type Engine interface {
	Analyze(export *models.VaultExport, progress analyzer.ProgressFunc) models.AnalysisResult
	AnalyzeLeaks(ctx context.Context, items []models.AnalyzedItem, progress analyzer.ProgressFunc) (models.LeakResult, error)
}

type Snapshot struct {
	ID             string                       `json:"id,omitempty" yaml:"id,omitempty"`
	Source         string                       `json:"source,omitempty" yaml:"source,omitempty"`
	Stage          Stage                        `json:"analysisStage" yaml:"analysis_stage"`
	Progress       int                          `json:"progress" yaml:"progress"`
	TotalItems     int                          `json:"totalItems" yaml:"total_items"`
	ProcessedItems int                          `json:"processedItems" yaml:"processed_items"`
	Items          []models.AnalyzedItem        `json:"results,omitempty" yaml:"results,omitempty"`
	Summary        *models.VaultAnalysisSummary `json:"summary,omitempty" yaml:"summary,omitempty"`
	Error          string                       `json:"error,omitempty" yaml:"error,omitempty"`
	LeakCheckError string                       `json:"leakCheckError,omitempty" yaml:"leak_check_error,omitempty"`
	LeakErrors     int                          `json:"leakErrors" yaml:"leak_errors"`
	StartedAt      *time.Time                   `json:"startedAt,omitempty" yaml:"started_at,omitempty"`
	CompletedAt    *time.Time                   `json:"completedAt,omitempty" yaml:"completed_at,omitempty"`
}

// HasResults reports whether the synchronous pass has produced items.
func (s Snapshot) HasResults() bool {
	return s.Summary != nil
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Items = models.CloneItems(s.Items)
	if s.Summary != nil {
		sum := *s.Summary
		out.Summary = &sum
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

type Session struct {
	engine  Engine
	parse   func(name string, raw []byte) (*models.VaultExport, error)
	logger  *logrus.Logger
	metrics *utils.MetricsCollector

	mu         sync.RWMutex
	generation uint64
	cancel     context.CancelFunc
	state      Snapshot

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

func New(engine Engine, logger *logrus.Logger, metrics *utils.MetricsCollector) *Session {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Session{
		engine:  engine,
		parse:   vault.ParseNamed,
		logger:  logger,
		metrics: metrics,
		state:   Snapshot{Stage: StageIdle},
		subs:    make(map[int]chan Event),
	}
	s.recordStage(StageIdle)
	return s
}

// Handle tracks the breach pass started by Load.
type Handle struct {
	ID   string
	done chan struct{}
	snap Snapshot
	err  error
}

func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the breach pass finishes. It returns ErrSuperseded when a later
// Load or Clear replaced this run before it completed.
func (h *Handle) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-h.done:
		return h.snap.clone(), h.err
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Load replaces whatever the session holds with the vault in raw. Parsing and the
// synchronous pass complete before Load returns; the breach pass continues in the
// background and is tracked by the returned Handle.
func (s *Session) Load(ctx context.Context, name string, raw []byte) (*Handle, error) {
	if s.engine == nil {
		return nil, ErrNoEngine
	}
	gen := s.reset()

	now := time.Now().UTC()
	id := uuid.NewString()
	s.mu.Lock()
	if s.generation == gen {
		s.state.ID = id
		s.state.Source = name
		s.state.StartedAt = &now
	}
	s.mu.Unlock()
	log := s.logger.WithFields(logrus.Fields{"session_id": id, "source": name})

	if !s.setStage(gen, StageReading, 0) {
		return nil, ErrSuperseded
	}
	export, err := s.parse(name, raw)
	if err != nil {
		log.WithError(err).Warn("vault load rejected")
		s.fail(gen, err)
		s.metrics.IncCounter(utils.MetricSessionLoads, 1, prometheus.Labels{"result": "invalid"})
		return nil, err
	}

	total := 0
	for _, rec := range export.Items {
		if rec.Valid() {
			total++
		}
	}
	if !s.setStage(gen, StageInitialAnalysis, total) {
		return nil, ErrSuperseded
	}
	result := s.engine.Analyze(export, func(done, total int) {
		s.setProgress(gen, done, total)
	})

	candidates := 0
	for _, it := range result.Items {
		if it.Password() != "" {
			candidates++
		}
	}

	leakCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		cancel()
		return nil, ErrSuperseded
	}
	s.cancel = cancel
	s.state.Items = models.CloneItems(result.Items)
	summary := result.Summary
	s.state.Summary = &summary
	s.enterStageLocked(StagePasswordLeaks, candidates)
	s.mu.Unlock()

	log.WithFields(logrus.Fields{
		"items":      summary.TotalItems,
		"candidates": candidates,
	}).Info("initial analysis complete, checking breaches")
	s.metrics.IncCounter(utils.MetricSessionLoads, 1, prometheus.Labels{"result": "ok"})

	h := &Handle{ID: id, done: make(chan struct{})}
	go s.runLeaks(leakCtx, cancel, gen, h, result.Items, log)
	return h, nil
}

func (s *Session) runLeaks(ctx context.Context, cancel context.CancelFunc, gen uint64, h *Handle, items []models.AnalyzedItem, log *logrus.Entry) {
	defer close(h.done)
	defer cancel()

	res, err := s.engine.AnalyzeLeaks(ctx, items, func(done, total int) {
		s.setProgress(gen, done, total)
	})

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		h.err = ErrSuperseded
		log.Debug("discarding breach results from a replaced load")
		return
	}
	s.cancel = nil
	s.state.Items = res.Items
	if s.state.Summary != nil {
		s.state.Summary.PasswordStats.LeakedCount = res.LeakedCount
	}
	s.state.LeakErrors = res.Errors
	switch {
	case err != nil:
		s.state.LeakCheckError = fmt.Sprintf("breach check failed: %v", err)
	case res.Checked > 0 && res.Errors == res.Checked:
		s.state.LeakCheckError = fmt.Sprintf("breach check failed for all %d passwords", res.Errors)
	}
	completed := time.Now().UTC()
	s.state.CompletedAt = &completed
	s.enterStageLocked(StageComplete, s.state.TotalItems)
	s.state.ProcessedItems = s.state.TotalItems
	s.state.Progress = 100
	h.snap = s.state.clone()
	s.mu.Unlock()

	s.publish(Event{
		Type:           EventComplete,
		SessionID:      h.snap.ID,
		Stage:          StageComplete,
		Progress:       100,
		TotalItems:     h.snap.TotalItems,
		ProcessedItems: h.snap.ProcessedItems,
		Error:          h.snap.LeakCheckError,
		LeakedCount:    res.LeakedCount,
	})

	entry := log.WithFields(logrus.Fields{"leaked": res.LeakedCount, "lookup_errors": res.Errors})
	if h.snap.LeakCheckError != "" {
		entry.Warn(h.snap.LeakCheckError)
	} else {
		entry.Info("analysis complete")
	}
}

// Clear cancels any in-flight work and returns the session to idle.
func (s *Session) Clear() {
	s.reset()
	s.publish(Event{Type: EventStage, Stage: StageIdle})
}

// CancelLeaks stops an in-flight breach pass but keeps the load. The pass still
// completes, with whatever lookups finished and LeakCheckError set.
func (s *Session) CancelLeaks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

func (s *Session) Stage() Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Stage
}

func (s *Session) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.subMu.Lock()
	defer s.subMu.Unlock()

	stats := map[string]interface{}{
		"session_id":      s.state.ID,
		"stage":           s.state.Stage,
		"progress":        s.state.Progress,
		"total_items":     s.state.TotalItems,
		"processed_items": s.state.ProcessedItems,
		"subscribers":     len(s.subs),
		"generation":      s.generation,
	}
	if s.state.Summary != nil {
		stats["leaked"] = s.state.Summary.PasswordStats.LeakedCount
		stats["duplicates"] = s.state.Summary.PasswordStats.DuplicateCount
	}
	return stats
}

func (s *Session) reset() uint64 {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	gen := s.generation
	s.state = Snapshot{Stage: StageIdle}
	s.mu.Unlock()
	s.recordStage(StageIdle)
	return gen
}

func (s *Session) fail(gen uint64, err error) {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	id := s.state.ID
	s.state = Snapshot{ID: id, Stage: StageIdle, Error: err.Error()}
	s.mu.Unlock()

	s.recordStage(StageIdle)
	s.publish(Event{Type: EventError, SessionID: id, Stage: StageIdle, Error: err.Error()})
}

func (s *Session) setStage(gen uint64, stage Stage, total int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	s.enterStageLocked(stage, total)
	return true
}

// enterStageLocked resets the per-stage counters. Callers hold s.mu.
func (s *Session) enterStageLocked(stage Stage, total int) {
	s.state.Stage = stage
	s.state.TotalItems = total
	s.state.ProcessedItems = 0
	s.state.Progress = 0
	s.recordStage(stage)
	s.publish(Event{Type: EventStage, SessionID: s.state.ID, Stage: stage, TotalItems: total})
}

func (s *Session) setProgress(gen uint64, done, total int) {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	s.state.ProcessedItems = done
	s.state.TotalItems = total
	s.state.Progress = utils.Percent(done, total)
	ev := Event{
		Type:           EventProgress,
		SessionID:      s.state.ID,
		Stage:          s.state.Stage,
		Progress:       s.state.Progress,
		TotalItems:     total,
		ProcessedItems: done,
	}
	s.mu.Unlock()
	s.publish(ev)
}

func (s *Session) recordStage(active Stage) {
	for _, st := range Stages {
		v := 0.0
		if st == active {
			v = 1
		}
		s.metrics.SetGauge(utils.MetricSessionStage, v, prometheus.Labels{"stage": string(st)})
	}
}
