package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/agent/persistence"
	"github.com/BaSui01/mysteryshopper/types"
)

// ErrNotRunning is returned by Subscribe and Cancel for journeys that are not in flight.
var ErrNotRunning = errors.New("journey is not running")

const (
	defaultMaxConcurrent    = 2
	defaultSaveTimeout      = 10 * time.Second
	defaultSubscriberBuffer = 16
)

// JourneyRunner runs one journey to completion. *journey.Controller satisfies it.
type JourneyRunner interface {
	Run(ctx context.Context, req journey.Request, observer journey.Observer) (*journey.Journey, error)
}

// RejectionRecorder counts requests refused because every slot was taken.
type RejectionRecorder interface {
	RecordJourneyRejected()
}

// Snapshot is a point-in-time view of a journey known to the Manager.
// Journey is nil while the journey is still running.
type Snapshot struct {
	ID        string            `json:"id"`
	StartURL  string            `json:"start_url"`
	Goal      string            `json:"goal"`
	Status    journey.Status    `json:"status"`
	StartedAt time.Time         `json:"started_at"`
	Progress  *journey.Progress `json:"progress,omitempty"`
	Journey   *journey.Journey  `json:"journey,omitempty"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxConcurrent bounds the number of journeys running at once.
func WithMaxConcurrent(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxConcurrent = n
		}
	}
}

// WithRejectionRecorder reports refused starts, usually to the metrics collector.
func WithRejectionRecorder(r RejectionRecorder) Option {
	return func(m *Manager) { m.rejections = r }
}

// WithSaveTimeout bounds the store write after a journey ends.
func WithSaveTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.saveTimeout = d
		}
	}
}

// WithObserver adds an observer that sees the progress of every journey.
func WithObserver(o journey.Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// Manager runs journeys in the background and tracks them until they are stored.
type Manager struct {
	runner        JourneyRunner
	store         persistence.Store
	logger        *zap.Logger
	rejections    RejectionRecorder
	observer      journey.Observer
	maxConcurrent int
	saveTimeout   time.Duration

	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	running  map[string]*execution
	draining bool
}

type execution struct {
	snapshot    Snapshot
	cancel      context.CancelFunc
	done        chan struct{}
	result      *journey.Journey
	subscribers map[int]chan journey.Progress
	nextSub     int
}

// NewManager creates a Manager. A nil store keeps finished journeys in memory.
func NewManager(runner JourneyRunner, store persistence.Store, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = persistence.NewMemoryStore(0)
	}
	m := &Manager{
		runner:        runner,
		store:         store,
		logger:        logger.With(zap.String("component", "runner")),
		maxConcurrent: defaultMaxConcurrent,
		saveTimeout:   defaultSaveTimeout,
		running:       make(map[string]*execution),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.sem = semaphore.NewWeighted(int64(m.maxConcurrent))
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// MaxConcurrent returns the configured concurrency bound.
func (m *Manager) MaxConcurrent() int { return m.maxConcurrent }

// Start validates req and launches the journey in the background. It returns
// the journey ID, or a JOURNEY_BUSY error when every slot is taken.
func (m *Manager) Start(req journey.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draining {
		return "", types.NewError(types.ErrServiceUnavailable, "runner is shutting down").
			WithHTTPStatus(http.StatusServiceUnavailable)
	}
	if _, dup := m.running[req.ID]; dup {
		return "", types.NewError(types.ErrInvalidRequest, "journey already running: "+req.ID).
			WithHTTPStatus(http.StatusConflict)
	}
	if !m.sem.TryAcquire(1) {
		if m.rejections != nil {
			m.rejections.RecordJourneyRejected()
		}
		m.logger.Warn("journey rejected, all slots busy", zap.Int("max_concurrent", m.maxConcurrent))
		return "", types.NewError(types.ErrJourneyBusy,
			fmt.Sprintf("%d journeys already running", m.maxConcurrent)).
			WithHTTPStatus(http.StatusTooManyRequests).
			WithRetryable(true)
	}

	ctx, cancel := context.WithCancel(m.ctx)
	exec := &execution{
		snapshot: Snapshot{
			ID:        req.ID,
			StartURL:  req.StartURL,
			Goal:      req.Goal,
			Status:    journey.StatusRunning,
			StartedAt: time.Now(),
		},
		cancel:      cancel,
		done:        make(chan struct{}),
		subscribers: make(map[int]chan journey.Progress),
	}
	m.running[req.ID] = exec
	m.wg.Add(1)

	go m.run(ctx, exec, req)

	m.logger.Info("journey accepted", zap.String("journey_id", req.ID), zap.String("url", req.StartURL))
	return req.ID, nil
}

func (m *Manager) run(ctx context.Context, exec *execution, req journey.Request) {
	defer m.wg.Done()
	defer close(exec.done)
	defer m.sem.Release(1)
	defer exec.cancel()

	logger := m.logger.With(zap.String("journey_id", req.ID))
	observer := journey.ObserverFunc(func(p journey.Progress) { m.publish(exec, p) })

	j, err := m.safeRun(ctx, req, observer)
	if err != nil {
		logger.Error("journey failed before it started", zap.Error(err))
		now := time.Now()
		j = &journey.Journey{
			ID:           req.ID,
			StartURL:     req.StartURL,
			Goal:         req.Goal,
			MaxSteps:     req.MaxSteps,
			Status:       journey.StatusAborted,
			FinishReason: journey.ReasonLoadFailed,
			Steps:        []journey.StepRecord{},
			Warnings:     []string{err.Error()},
			StartedAt:    exec.snapshot.StartedAt,
			FinishedAt:   now,
		}
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.saveTimeout)
	if err := m.store.Save(saveCtx, j); err != nil {
		logger.Error("failed to store journey", zap.Error(err))
	}
	cancel()

	m.mu.Lock()
	exec.result = j
	for id, ch := range exec.subscribers {
		close(ch)
		delete(exec.subscribers, id)
	}
	delete(m.running, req.ID)
	m.mu.Unlock()
}

// safeRun keeps a panicking runner from taking the process down.
func (m *Manager) safeRun(ctx context.Context, req journey.Request, observer journey.Observer) (j *journey.Journey, err error) {
	defer func() {
		if r := recover(); r != nil {
			j, err = nil, fmt.Errorf("journey panicked: %v", r)
		}
	}()
	return m.runner.Run(ctx, req, observer)
}

func (m *Manager) publish(exec *execution, p journey.Progress) {
	m.mu.Lock()
	exec.snapshot.Progress = &p
	subs := make([]chan journey.Progress, 0, len(exec.subscribers))
	for _, ch := range exec.subscribers {
		subs = append(subs, ch)
	}
	for _, ch := range subs {
		select {
		case ch <- p:
		default:
			m.logger.Debug("subscriber lagging, progress dropped",
				zap.String("journey_id", p.JourneyID), zap.String("phase", string(p.Phase)))
		}
	}
	m.mu.Unlock()

	if m.observer != nil {
		m.observer.OnProgress(p)
	}
}

// Get returns the in-flight snapshot of id, or the stored journey once it has ended.
func (m *Manager) Get(ctx context.Context, id string) (Snapshot, error) {
	m.mu.RLock()
	if exec, ok := m.running[id]; ok {
		snap := exec.copySnapshot()
		m.mu.RUnlock()
		return snap, nil
	}
	m.mu.RUnlock()

	j, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Snapshot{}, types.NewError(types.ErrNotFound, "journey not found: "+id).
				WithHTTPStatus(http.StatusNotFound).
				WithCause(err)
		}
		return Snapshot{}, err
	}
	return finishedSnapshot(j), nil
}

// List returns running journeys, newest first, followed by the stored page.
// Running journeys are only included on the first page.
func (m *Manager) List(ctx context.Context, filter persistence.Filter) ([]Snapshot, error) {
	out := []Snapshot{}
	if filter.Offset == 0 && (filter.Status == "" || filter.Status == journey.StatusRunning) {
		m.mu.RLock()
		for _, exec := range m.running {
			out = append(out, exec.copySnapshot())
		}
		m.mu.RUnlock()
		sort.Slice(out, func(a, b int) bool {
			if !out[a].StartedAt.Equal(out[b].StartedAt) {
				return out[a].StartedAt.After(out[b].StartedAt)
			}
			return out[a].ID < out[b].ID
		})
	}
	if filter.Status == journey.StatusRunning {
		return out, nil
	}

	stored, err := m.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, j := range stored {
		out = append(out, finishedSnapshot(j))
	}
	return out, nil
}

// Subscribe returns a channel of progress updates for a running journey. The
// latest update, if any, is delivered first. The channel is closed when the
// journey ends or cancel is called. Slow readers miss updates.
func (m *Manager) Subscribe(id string) (<-chan journey.Progress, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exec, ok := m.running[id]
	if !ok {
		return nil, nil, ErrNotRunning
	}
	ch := make(chan journey.Progress, defaultSubscriberBuffer)
	if exec.snapshot.Progress != nil {
		ch <- *exec.snapshot.Progress
	}
	subID := exec.nextSub
	exec.nextSub++
	exec.subscribers[subID] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if sub, ok := exec.subscribers[subID]; ok {
				close(sub)
				delete(exec.subscribers, subID)
			}
		})
	}
	return ch, cancel, nil
}

// Cancel asks a running journey to stop. The journey still ends Finished with
// reason canceled and is stored.
func (m *Manager) Cancel(id string) error {
	m.mu.RLock()
	exec, ok := m.running[id]
	m.mu.RUnlock()
	if !ok {
		return ErrNotRunning
	}
	m.logger.Info("journey cancel requested", zap.String("journey_id", id))
	exec.cancel()
	return nil
}

// Wait blocks until the journey id ends and returns it. Journeys that are not
// running are looked up in the store.
func (m *Manager) Wait(ctx context.Context, id string) (*journey.Journey, error) {
	m.mu.RLock()
	exec, ok := m.running[id]
	m.mu.RUnlock()
	if !ok {
		snap, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return snap.Journey, nil
	}

	select {
	case <-exec.done:
		return exec.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Running returns the number of journeys in flight.
func (m *Manager) Running() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.running)
}

// Shutdown stops accepting journeys, cancels the running ones and waits for
// them to be stored or for ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.draining = true
	m.mu.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("runner stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("runner shutdown: %w", ctx.Err())
	}
}

func (e *execution) copySnapshot() Snapshot {
	snap := e.snapshot
	if e.snapshot.Progress != nil {
		p := *e.snapshot.Progress
		snap.Progress = &p
	}
	return snap
}

func finishedSnapshot(j *journey.Journey) Snapshot {
	return Snapshot{
		ID:        j.ID,
		StartURL:  j.StartURL,
		Goal:      j.Goal,
		Status:    j.Status,
		StartedAt: j.StartedAt,
		Journey:   j,
	}
}
