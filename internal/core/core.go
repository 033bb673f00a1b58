// Package core owns the authoritative client-side view of the task
// collection: the raw collection as last known from the store or the
// change feed, the criteria-filtered view, and the derived metrics.
// Mutations commit only after a confirmed store response; push events and
// local mutations funnel through the same by-id patch helpers so the
// collection's uniqueness invariant has a single code path.
package core

import (
	"context"
	"log"
	"sync"

	"github.com/tasklabs/taskmate/internal/store"
	"github.com/tasklabs/taskmate/internal/task"
)

// Snapshot is the read-only state handed to the presentation layer.
type Snapshot struct {
	Tasks    []task.Task
	Metrics  task.Metrics
	Criteria task.Criteria
	Loading  bool
	LastErr  error
	Live     bool // change feed currently attached
}

type Core struct {
	store store.Store
	feed  store.Feed // nil = manual refresh only

	mu       sync.Mutex
	raw      []task.Task // full collection as last known
	view     []task.Task // criteria-applied view
	metrics  task.Metrics
	criteria task.Criteria
	loading  bool
	lastErr  error
	live     bool
	gen      uint64 // fetch generation; stale results are discarded

	updates     chan struct{} // coalesced change signal for the UI
	metricsKick chan struct{} // coalesced async metrics refresh
	cancel      context.CancelFunc
	unsubscribe func()
}

// New creates a Core over the store. feed may be nil, in which case the
// core relies on manual or polled refresh only.
func New(st store.Store, feed store.Feed) *Core {
	return &Core{
		store:       st,
		feed:        feed,
		metrics:     task.EmptyMetrics(),
		criteria:    task.DefaultCriteria(),
		loading:     true,
		updates:     make(chan struct{}, 1),
		metricsKick: make(chan struct{}, 1),
	}
}

// Start attaches the change feed when available, starts the background
// loops, and kicks the initial fetch. A feed that cannot be subscribed is
// downgraded to a log line; manual refresh still works.
func (c *Core) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	if c.feed != nil {
		events, unsub, err := c.feed.Subscribe(runCtx)
		if err != nil {
			log.Printf("[core] realtime unavailable, falling back to manual refresh: %v", err)
		} else {
			c.unsubscribe = unsub
			c.setLive(true)
			go c.eventLoop(runCtx, events)
		}
	}

	go c.metricsLoop(runCtx)

	go func() {
		if err := c.Refresh(runCtx); err != nil {
			log.Printf("[core] initial refresh: %v", err)
		}
	}()

	return nil
}

// Close releases the feed subscription and stops the background loops.
func (c *Core) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	if c.cancel != nil {
		c.cancel()
	}
}

// Updates delivers a coalesced signal whenever the snapshot changed.
func (c *Core) Updates() <-chan struct{} {
	return c.updates
}

func (c *Core) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Tasks:    append([]task.Task(nil), c.view...),
		Metrics:  c.metrics,
		Criteria: c.criteria,
		Loading:  c.loading,
		LastErr:  c.lastErr,
		Live:     c.live,
	}
}

// SetCriteria replaces the criteria wholesale and refetches. Only the most
// recently initiated fetch may apply its result; superseded in-flight
// fetches are discarded.
func (c *Core) SetCriteria(ctx context.Context, crit task.Criteria) error {
	c.mu.Lock()
	c.criteria = crit
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	return c.fetch(ctx, gen, crit)
}

// Refresh re-runs the criteria-change flow unconditionally. It is the
// fallback when the push feed is unavailable or its connection dropped.
func (c *Core) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	crit := c.criteria
	c.mu.Unlock()
	return c.fetch(ctx, gen, crit)
}

// fetch runs List and Metrics concurrently. On success it replaces the
// whole snapshot; on failure it records lastErr and leaves the previous
// data visible (stale but available).
func (c *Core) fetch(ctx context.Context, gen uint64, crit task.Criteria) error {
	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()
	c.notify()

	var (
		wg      sync.WaitGroup
		metrics task.Metrics
		mErr    error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		metrics, mErr = c.store.Metrics(ctx)
	}()
	tasks, listErr := c.store.List(ctx, crit)
	wg.Wait()

	c.mu.Lock()
	if gen != c.gen {
		// Superseded by a newer fetch; its result owns the state.
		c.mu.Unlock()
		return nil
	}
	c.loading = false

	err := listErr
	if err == nil {
		err = mErr
	}
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		c.notify()
		return err
	}

	c.raw = tasks
	c.view = append([]task.Task(nil), tasks...) // store already applied criteria
	c.metrics = metrics
	c.lastErr = nil
	c.mu.Unlock()
	c.notify()
	return nil
}

// Create persists the task and, once confirmed, prepends it to both the
// raw collection and the current view without waiting for a refetch.
func (c *Core) Create(ctx context.Context, in task.CreateInput) (*task.Task, error) {
	t, err := c.store.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.upsertRaw(*t)
	c.view = prependOrReplace(c.view, *t)
	c.mu.Unlock()

	c.notify()
	c.kickMetrics()
	return t, nil
}

// Update writes the patch and, once confirmed, replaces the matching
// entry by id in both collections.
func (c *Core) Update(ctx context.Context, id string, p task.Patch) (*task.Task, error) {
	t, err := c.store.Update(ctx, id, p)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.replaceRaw(*t)
	c.view = replaceByID(c.view, *t)
	c.mu.Unlock()

	c.notify()
	c.kickMetrics()
	return t, nil
}

// Delete removes the task remotely and, once confirmed, locally.
func (c *Core) Delete(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}

	c.mu.Lock()
	c.removeRaw(id)
	c.view = removeByID(c.view, id)
	c.mu.Unlock()

	c.notify()
	c.kickMetrics()
	return nil
}

// ChangeStatus is sugar for Update(task.id, {status}).
func (c *Core) ChangeStatus(ctx context.Context, t *task.Task, s task.Status) (*task.Task, error) {
	if t == nil || t.ID == "" {
		return nil, store.Validationf("change status: task with id is required")
	}
	return c.Update(ctx, t.ID, task.Patch{Status: task.StatusPtr(s)})
}

// eventLoop consumes the change feed until it closes or the context ends.
// A closed feed flips the live flag so the UI can surface the fallback.
func (c *Core) eventLoop(ctx context.Context, events <-chan store.ChangeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				c.setLive(false)
				c.notify()
				log.Printf("[core] change feed dropped, manual refresh available")
				return
			}
			c.applyEvent(evt)
		}
	}
}

// applyEvent reconciles one push event: INSERT upserts by id, UPDATE
// replaces by id (no-op if absent), DELETE removes by old id (no-op if
// absent). The view is recomputed strictly from the updated raw
// collection, never from the stale view, to avoid drift.
func (c *Core) applyEvent(evt store.ChangeEvent) {
	c.mu.Lock()
	switch evt.Type {
	case store.ChangeInsert:
		if evt.New != nil {
			c.upsertRaw(*evt.New)
		}
	case store.ChangeUpdate:
		if evt.New != nil {
			c.replaceRaw(*evt.New)
		}
	case store.ChangeDelete:
		if evt.Old != nil {
			c.removeRaw(evt.Old.ID)
		}
	}
	c.view = task.Apply(c.raw, c.criteria)
	c.mu.Unlock()

	c.notify()
	c.kickMetrics()
}

// metricsLoop serves coalesced metrics refreshes. Rapid bursts collapse
// into at most one queued refresh, but every kick is eventually reflected.
func (c *Core) metricsLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.metricsKick:
			m, err := c.store.Metrics(ctx)
			c.mu.Lock()
			if err != nil {
				log.Printf("[core] metrics refresh: %v", err)
			} else {
				c.metrics = m
			}
			c.mu.Unlock()
			c.notify()
		}
	}
}

func (c *Core) kickMetrics() {
	select {
	case c.metricsKick <- struct{}{}:
	default:
	}
}

func (c *Core) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

func (c *Core) setLive(v bool) {
	c.mu.Lock()
	c.live = v
	c.mu.Unlock()
}

// The by-id patch helpers below are the single code path for collection
// mutation; they preserve the at-most-one-entry-per-id invariant.

func (c *Core) upsertRaw(t task.Task) {
	c.raw = prependOrReplace(c.raw, t)
}

func (c *Core) replaceRaw(t task.Task) {
	c.raw = replaceByID(c.raw, t)
}

func (c *Core) removeRaw(id string) {
	c.raw = removeByID(c.raw, id)
}

func prependOrReplace(list []task.Task, t task.Task) []task.Task {
	for i := range list {
		if list[i].ID == t.ID {
			list[i] = t
			return list
		}
	}
	return append([]task.Task{t}, list...)
}

func replaceByID(list []task.Task, t task.Task) []task.Task {
	for i := range list {
		if list[i].ID == t.ID {
			list[i] = t
			break
		}
	}
	return list
}

func removeByID(list []task.Task, id string) []task.Task {
	for i := range list {
		if list[i].ID == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
