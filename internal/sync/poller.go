package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/change-adapter/internal/event"
	"github.com/nhle/change-adapter/internal/metrics"
	"github.com/nhle/change-adapter/internal/model"
	"github.com/nhle/change-adapter/internal/source"
	"github.com/nhle/change-adapter/internal/store"
)

// CheckState represents whether a health check is in flight for an instance.
type CheckState int

const (
	CheckIdle CheckState = iota
	CheckRunning
)

// InstanceStatus is the poller's view of one instance. It is kept for
// display only; adapters never consult it.
type InstanceStatus struct {
	InstanceID string
	State      CheckState
	// LastStatus is empty until the instance emitted its first event.
	LastStatus model.Status
	LastCheck  time.Time
	LastError  error
	Records    int
}

// CheckResult is sent on the results channel after every health check.
type CheckResult struct {
	InstanceID string
	Status     model.Status
	Records    []model.ChangeTicket
	Err        error
	// Dropped is set when the response had no body and was discarded.
	Dropped bool
}

// Checker is the part of an adapter the poller drives.
type Checker interface {
	ID() string
	On(status model.Status, l event.Listener)
	Healthcheck(ctx context.Context) <-chan source.Result[[]model.ChangeTicket]
}

// checkTimeout is the maximum time allowed for a single health check.
const checkTimeout = 30 * time.Second

// defaultInterval applies when an instance is registered without one.
const defaultInterval = 60 * time.Second

// instanceEntry holds a registered adapter and its schedule.
type instanceEntry struct {
	checker  Checker
	interval time.Duration
	trigger  chan struct{}
}

// Poller runs periodic health checks for registered adapter instances,
// persists fetched tickets and status history, and updates metrics.
type Poller struct {
	store    store.Store
	metrics  *metrics.Metrics
	log      zerolog.Logger
	entries  []*instanceEntry
	statuses map[string]*InstanceStatus
	resultCh chan CheckResult
	ctx      context.Context
	cancel   context.CancelFunc
	wg       gosync.WaitGroup
	mu       gosync.Mutex
	running  bool
	now      func() time.Time
}

// New creates a new Poller. m may be nil to disable metrics.
func New(s store.Store, m *metrics.Metrics, log zerolog.Logger) *Poller {
	return &Poller{
		store:    s,
		metrics:  m,
		log:      log,
		statuses: make(map[string]*InstanceStatus),
		resultCh: make(chan CheckResult, 16),
		now:      time.Now,
	}
}

// Register adds an adapter to the poller. It subscribes to the adapter's
// events so that every ONLINE/OFFLINE emission updates the instance status
// and metrics, including emissions triggered outside the poller. An
// adapter registered while the poller runs starts polling immediately.
func (p *Poller) Register(c Checker, interval time.Duration) {
	if interval <= 0 {
		interval = defaultInterval
	}

	c.On(model.StatusOnline, p.onStatus)
	c.On(model.StatusOffline, p.onStatus)

	p.mu.Lock()
	defer p.mu.Unlock()

	id := c.ID()
	entry := &instanceEntry{
		checker:  c,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}
	p.entries = append(p.entries, entry)
	p.statuses[id] = &InstanceStatus{InstanceID: id, State: CheckIdle}

	if p.running {
		p.wg.Add(1)
		go p.pollInstance(p.ctx, entry)
	}
}

// onStatus is the bus listener registered on every adapter.
func (p *Poller) onStatus(status model.Status, payload event.Payload) {
	p.mu.Lock()
	if st, ok := p.statuses[payload.ID]; ok {
		st.LastStatus = status
	}
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.ObserveStatus(payload.ID, status)
	}
}

// Start launches one polling goroutine per registered instance. Each runs
// an immediate check, then one per interval, until ctx is cancelled or
// Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true

	p.ctx, p.cancel = context.WithCancel(ctx)
	for _, entry := range p.entries {
		p.wg.Add(1)
		go p.pollInstance(p.ctx, entry)
	}
}

// Stop halts all polling goroutines and waits for them to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
}

// Results returns the channel on which check results are published.
// Results are dropped when nobody keeps up with the channel.
func (p *Poller) Results() <-chan CheckResult {
	return p.resultCh
}

// RefreshAll triggers an immediate check of every registered instance.
func (p *Poller) RefreshAll() {
	p.mu.Lock()
	entries := make([]*instanceEntry, len(p.entries))
	copy(entries, p.entries)
	p.mu.Unlock()

	for _, entry := range entries {
		requestCheck(entry)
	}
}

// RefreshInstance triggers an immediate check of one instance and
// reports whether it is registered.
func (p *Poller) RefreshInstance(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, entry := range p.entries {
		if entry.checker.ID() == id {
			requestCheck(entry)
			return true
		}
	}
	return false
}

// requestCheck queues a manual check; one pending request is enough.
func requestCheck(entry *instanceEntry) {
	select {
	case entry.trigger <- struct{}{}:
	default:
	}
}

// GetStatuses returns the current status of all registered instances
// in registration order.
func (p *Poller) GetStatuses() []InstanceStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]InstanceStatus, 0, len(p.entries))
	for _, entry := range p.entries {
		statuses = append(statuses, *p.statuses[entry.checker.ID()])
	}
	return statuses
}

// pollInstance runs the polling loop for a single instance.
func (p *Poller) pollInstance(ctx context.Context, entry *instanceEntry) {
	defer p.wg.Done()

	ticker := time.NewTicker(entry.interval)
	defer ticker.Stop()

	// Do an initial check immediately.
	p.CheckNow(ctx, entry.checker)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.CheckNow(ctx, entry.checker)
		case <-entry.trigger:
			p.CheckNow(ctx, entry.checker)
		}
	}
}

// CheckNow performs a single health check, stores its outcome, and
// publishes a CheckResult. It blocks until the check completes.
func (p *Poller) CheckNow(ctx context.Context, c Checker) CheckResult {
	id := c.ID()
	p.setState(id, CheckRunning)
	defer p.setState(id, CheckIdle)

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	log := p.log.With().Str("instance", id).Logger()

	res, ok := <-c.Healthcheck(ctx)
	if !ok {
		result := CheckResult{InstanceID: id, Dropped: true}
		log.Debug().Msg("health check produced no result")
		p.finish(result)
		return result
	}

	now := p.now()
	result := CheckResult{InstanceID: id, Records: res.Value, Err: res.Err}

	// Persist with a fresh context so a cancelled poll still records.
	storeCtx, storeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer storeCancel()

	if res.Err != nil {
		result.Status = model.StatusOffline
		if p.metrics != nil {
			p.metrics.ObserveError(id, errorKind(res.Err))
		}
		p.record(storeCtx, log, model.StatusEvent{
			InstanceID: id,
			Status:     model.StatusOffline,
			Message:    res.Err.Error(),
			CreatedAt:  now,
		})
		p.finish(result)
		return result
	}

	result.Status = model.StatusOnline
	if p.metrics != nil {
		p.metrics.ObserveRecords(id, len(res.Value))
	}
	p.record(storeCtx, log, model.StatusEvent{
		InstanceID: id,
		Status:     model.StatusOnline,
		CreatedAt:  now,
	})
	if p.store != nil && len(res.Value) > 0 {
		if err := p.store.UpsertTickets(storeCtx, id, res.Value, now); err != nil {
			log.Error().Err(err).Msg("storing fetched tickets")
		}
	}

	p.finish(result)
	return result
}

// record writes a status event to the store, logging failures.
func (p *Poller) record(ctx context.Context, log zerolog.Logger, ev model.StatusEvent) {
	if p.store == nil {
		return
	}
	if err := p.store.RecordStatus(ctx, ev); err != nil {
		log.Error().Err(err).Msg("recording status event")
	}
}

// finish updates the instance status and publishes the result.
func (p *Poller) finish(result CheckResult) {
	p.mu.Lock()
	if st, ok := p.statuses[result.InstanceID]; ok {
		st.LastCheck = p.now()
		st.LastError = result.Err
		if result.Err == nil && !result.Dropped {
			st.Records = len(result.Records)
		}
	}
	p.mu.Unlock()

	p.sendResult(result)
}

// setState updates the check state for an instance.
func (p *Poller) setState(id string, state CheckState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st, ok := p.statuses[id]; ok {
		st.State = state
	}
}

// sendResult sends a CheckResult on the result channel without blocking.
func (p *Poller) sendResult(result CheckResult) {
	select {
	case p.resultCh <- result:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

// errorKind classifies a fetch error for metrics.
func errorKind(err error) string {
	switch {
	case source.IsAuthError(err):
		return "auth"
	case source.IsMalformed(err):
		return "malformed"
	default:
		return "transport"
	}
}
