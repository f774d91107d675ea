package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bl4ck0w1/vaultlynx/internal/analyzer"
	"github.com/bl4ck0w1/vaultlynx/internal/domain"
	"github.com/bl4ck0w1/vaultlynx/internal/vault"
	"github.com/bl4ck0w1/vaultlynx/pkg/models"
	"github.com/bl4ck0w1/vaultlynx/pkg/utils"
)

type constEvaluator struct{}

func (constEvaluator) Evaluate(password string, _ []string) *models.PasswordStrength {
	if password == "" {
		return nil
	}
	return &models.PasswordStrength{Score: 4, Suggestions: []string{}}
}

// stubBreach answers from counts. When hold is set, the first call parks until
// released or cancelled and then reports every password as leaked.
type stubBreach struct {
	counts  map[string]int
	err     error
	hold    chan struct{}
	entered chan struct{}

	mu    sync.Mutex
	calls int
}

func (b *stubBreach) BatchCheck(ctx context.Context, candidates []models.PasswordCandidate, progress func(done, total int)) (map[int]int, error) {
	b.mu.Lock()
	b.calls++
	call := b.calls
	b.mu.Unlock()

	if call == 1 && b.hold != nil {
		if b.entered != nil {
			close(b.entered)
		}
		select {
		case <-ctx.Done():
			out := map[int]int{}
			for _, c := range candidates {
				out[c.Index] = 999
			}
			return out, ctx.Err()
		case <-b.hold:
		}
	}

	out := make(map[int]int, len(candidates))
	for i, c := range candidates {
		out[c.Index] = b.counts[c.Password]
		if progress != nil {
			progress(i+1, len(candidates))
		}
	}
	return out, b.err
}

func newSession(breach *stubBreach) *Session {
	engine := analyzer.New(domain.NewExtractor(), constEvaluator{}, breach, analyzer.Config{}, utils.NopLogger(), nil)
	return New(engine, utils.NopLogger(), nil)
}

func vaultJSON(t *testing.T, passwords ...string) []byte {
	t.Helper()
	items := make([]map[string]interface{}, 0, len(passwords))
	for i, pw := range passwords {
		items = append(items, map[string]interface{}{
			"id":   fmt.Sprintf("item-%04d", i),
			"name": fmt.Sprintf("Item %d", i),
			"login": map[string]interface{}{
				"uris":     []map[string]interface{}{{"uri": fmt.Sprintf("https://site%d.example.com", i)}},
				"password": pw,
			},
			"revisionDate": "2025-01-01T00:00:00.000Z",
		})
	}
	raw, err := json.Marshal(map[string]interface{}{"encrypted": false, "items": items})
	require.NoError(t, err)
	return raw
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNewSessionIsIdle(t *testing.T) {
	s := newSession(&stubBreach{})
	snap := s.Snapshot()
	assert.Equal(t, StageIdle, snap.Stage)
	assert.False(t, snap.HasResults())
	assert.Empty(t, snap.Items)
}

func TestLoadRunsToComplete(t *testing.T) {
	breach := &stubBreach{counts: map[string]int{"leaked-password": 42}}
	s := newSession(breach)

	h, err := s.Load(context.Background(), "export.json", vaultJSON(t, "leaked-password", "Fresh#Pass2025", ""))
	require.NoError(t, err)
	require.NotNil(t, h)

	snap, err := h.Wait(waitCtx(t))
	require.NoError(t, err)

	assert.Equal(t, StageComplete, snap.Stage)
	assert.Equal(t, 100, snap.Progress)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, h.ID, snap.ID)
	assert.Equal(t, "export.json", snap.Source)
	assert.Empty(t, snap.LeakCheckError)
	require.NotNil(t, snap.CompletedAt)

	require.Len(t, snap.Items, 3)
	assert.True(t, snap.Items[0].IsLeaked)
	assert.Equal(t, 42, snap.Items[0].LeakCount)
	assert.Equal(t, models.RiskModerate, snap.Items[0].RiskLevel)
	assert.False(t, snap.Items[1].IsLeaked)

	require.NotNil(t, snap.Summary)
	assert.Equal(t, 3, snap.Summary.TotalItems)
	assert.Equal(t, 1, snap.Summary.PasswordStats.LeakedCount)
	assert.Equal(t, 1, snap.Summary.PasswordStats.EmptyCount)

	assert.Equal(t, snap, s.Snapshot())
}

func TestLoadRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		source string
		raw    []byte
		want   error
	}{
		{"malformed json", "vault.json", []byte("{not json"), vault.ErrMalformedJSON},
		{"wrong extension", "vault.txt", []byte(`{"items":[]}`), vault.ErrInvalidExtension},
		{"encrypted", "vault.json", []byte(`{"encrypted":true,"items":[]}`), vault.ErrEncryptedExport},
		{"no valid items", "vault.json", []byte(`{"items":[{"id":"x"}]}`), vault.ErrNoValidItems},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession(&stubBreach{})
			events, unsubscribe := s.Subscribe(16)
			defer unsubscribe()

			h, err := s.Load(context.Background(), tt.source, tt.raw)
			assert.Nil(t, h)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			snap := s.Snapshot()
			assert.Equal(t, StageIdle, snap.Stage)
			assert.NotEmpty(t, snap.Error)
			assert.False(t, snap.HasResults())

			var sawError bool
			for len(events) > 0 {
				if ev := <-events; ev.Type == EventError {
					sawError = true
					assert.Equal(t, StageIdle, ev.Stage)
				}
			}
			assert.True(t, sawError)
		})
	}
}

func TestLoadEmitsStagesInOrder(t *testing.T) {
	s := newSession(&stubBreach{counts: map[string]int{}})
	events, unsubscribe := s.Subscribe(256)

	h, err := s.Load(context.Background(), "v.json", vaultJSON(t, "alpha-pass-1", "bravo-pass-2"))
	require.NoError(t, err)
	_, err = h.Wait(waitCtx(t))
	require.NoError(t, err)
	unsubscribe()

	var (
		stages       []Stage
		lastProgress = map[Stage]int{}
		completed    bool
	)
	for ev := range events {
		switch ev.Type {
		case EventStage:
			stages = append(stages, ev.Stage)
		case EventProgress:
			assert.GreaterOrEqual(t, ev.Progress, lastProgress[ev.Stage])
			lastProgress[ev.Stage] = ev.Progress
		case EventComplete:
			completed = true
		}
	}
	assert.Equal(t, []Stage{StageReading, StageInitialAnalysis, StagePasswordLeaks, StageComplete}, stages)
	assert.Equal(t, 100, lastProgress[StageInitialAnalysis])
	assert.Equal(t, 100, lastProgress[StagePasswordLeaks])
	assert.True(t, completed)
}

func TestLoadEntersPasswordLeaksBeforeReturning(t *testing.T) {
	breach := &stubBreach{hold: make(chan struct{})}
	s := newSession(breach)

	h, err := s.Load(context.Background(), "v.json", vaultJSON(t, "alpha-pass-1"))
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Equal(t, StagePasswordLeaks, snap.Stage)
	assert.True(t, snap.HasResults(), "synchronous results are usable while breaches are checked")
	assert.Len(t, snap.Items, 1)

	close(breach.hold)
	snap, err = h.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, StageComplete, snap.Stage)
}

func TestNewLoadDiscardsStaleBreachResults(t *testing.T) {
	breach := &stubBreach{hold: make(chan struct{}), entered: make(chan struct{}), counts: map[string]int{}}
	s := newSession(breach)

	first, err := s.Load(context.Background(), "first.json", vaultJSON(t, "first-password"))
	require.NoError(t, err)
	<-breach.entered

	second, err := s.Load(context.Background(), "second.json", vaultJSON(t, "second-password", "another-one"))
	require.NoError(t, err)

	_, err = first.Wait(waitCtx(t))
	assert.ErrorIs(t, err, ErrSuperseded)

	snap, err := second.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "second.json", snap.Source)
	require.Len(t, snap.Items, 2)
	for _, it := range snap.Items {
		assert.False(t, it.IsLeaked, "results from the replaced load must not leak into the new one")
	}
	assert.Equal(t, 0, snap.Summary.PasswordStats.LeakedCount)
	assert.Equal(t, snap, s.Snapshot())
}

func TestClearCancelsInFlightPass(t *testing.T) {
	breach := &stubBreach{hold: make(chan struct{}), entered: make(chan struct{})}
	s := newSession(breach)

	h, err := s.Load(context.Background(), "v.json", vaultJSON(t, "alpha-pass-1"))
	require.NoError(t, err)
	<-breach.entered

	s.Clear()
	_, err = h.Wait(waitCtx(t))
	assert.ErrorIs(t, err, ErrSuperseded)

	snap := s.Snapshot()
	assert.Equal(t, StageIdle, snap.Stage)
	assert.False(t, snap.HasResults())
	assert.Empty(t, snap.Error)
}

func TestCancelLeaksKeepsResults(t *testing.T) {
	breach := &stubBreach{hold: make(chan struct{}), entered: make(chan struct{})}
	s := newSession(breach)

	h, err := s.Load(context.Background(), "v.json", vaultJSON(t, "alpha-pass-1", "bravo-pass-2"))
	require.NoError(t, err)
	<-breach.entered

	s.CancelLeaks()
	snap, err := h.Wait(waitCtx(t))
	require.NoError(t, err)

	assert.Equal(t, h.ID, snap.ID)
	assert.Equal(t, StageComplete, snap.Stage)
	assert.Contains(t, snap.LeakCheckError, context.Canceled.Error())
	require.True(t, snap.HasResults())
	assert.Equal(t, 2, snap.Summary.TotalItems)
	assert.Len(t, snap.Items, 2)
	assert.Equal(t, snap, s.Snapshot())

	s.CancelLeaks()
	assert.Equal(t, StageComplete, s.Stage(), "cancelling with nothing in flight is a no-op")
}

func TestLoadContextCancellationDoesNotStopBreachPass(t *testing.T) {
	s := newSession(&stubBreach{counts: map[string]int{"alpha-pass-1": 3}})
	ctx, cancel := context.WithCancel(context.Background())

	h, err := s.Load(ctx, "v.json", vaultJSON(t, "alpha-pass-1"))
	require.NoError(t, err)
	cancel()

	snap, err := h.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, StageComplete, snap.Stage)
}

func TestBreachFailureStillCompletes(t *testing.T) {
	s := newSession(&stubBreach{counts: map[string]int{"alpha-pass-1": -1, "bravo-pass-2": -1}})

	h, err := s.Load(context.Background(), "v.json", vaultJSON(t, "alpha-pass-1", "bravo-pass-2"))
	require.NoError(t, err)
	snap, err := h.Wait(waitCtx(t))
	require.NoError(t, err)

	assert.Equal(t, StageComplete, snap.Stage)
	assert.Equal(t, 2, snap.LeakErrors)
	assert.Contains(t, snap.LeakCheckError, "breach check failed")
	assert.Len(t, snap.Items, 2)
	assert.Equal(t, 0, snap.Summary.PasswordStats.LeakedCount)
}

func TestBreachPassErrorIsRecorded(t *testing.T) {
	s := newSession(&stubBreach{counts: map[string]int{}, err: errors.New("upstream unavailable")})

	h, err := s.Load(context.Background(), "v.json", vaultJSON(t, "alpha-pass-1"))
	require.NoError(t, err)
	snap, err := h.Wait(waitCtx(t))
	require.NoError(t, err)

	assert.Equal(t, StageComplete, snap.Stage)
	assert.Contains(t, snap.LeakCheckError, "upstream unavailable")
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := newSession(&stubBreach{counts: map[string]int{}})
	h, err := s.Load(context.Background(), "v.json", vaultJSON(t, "alpha-pass-1"))
	require.NoError(t, err)
	_, err = h.Wait(waitCtx(t))
	require.NoError(t, err)

	snap := s.Snapshot()
	*snap.Items[0].Login.Password = "tampered"
	snap.Items[0].RiskLevel = models.RiskCritical
	snap.Summary.TotalItems = 99

	again := s.Snapshot()
	assert.Equal(t, "alpha-pass-1", again.Items[0].Password())
	assert.Equal(t, models.RiskStrong, again.Items[0].RiskLevel)
	assert.Equal(t, 1, again.Summary.TotalItems)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	s := newSession(&stubBreach{counts: map[string]int{}})
	events, unsubscribe := s.Subscribe(0)
	defer unsubscribe()

	h, err := s.Load(context.Background(), "v.json", vaultJSON(t, "a-password-1", "b-password-2", "c-password-3"))
	require.NoError(t, err)
	_, err = h.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := newSession(&stubBreach{})
	events, unsubscribe := s.Subscribe(1)
	unsubscribe()
	unsubscribe()

	_, ok := <-events
	assert.False(t, ok)
	assert.Equal(t, 0, s.GetStats()["subscribers"])
}

func TestWaitHonoursContext(t *testing.T) {
	breach := &stubBreach{hold: make(chan struct{})}
	s := newSession(breach)
	h, err := s.Load(context.Background(), "v.json", vaultJSON(t, "alpha-pass-1"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(breach.hold)
	<-h.Done()
}

func TestLoadWithoutEngine(t *testing.T) {
	s := New(nil, utils.NopLogger(), nil)
	_, err := s.Load(context.Background(), "v.json", []byte(`{}`))
	assert.ErrorIs(t, err, ErrNoEngine)
}
