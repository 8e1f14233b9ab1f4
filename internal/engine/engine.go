package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sync"
	"time"
)

const (
	DefaultDebounce     = 1 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultFetchTimeout = 30 * time.Second
)

// Options configures an Engine. The zero value is usable; defaults fill in.
type Options[T Entity] struct {
	// Debounce is the quiet period after the last edit before a write is
	// committed. Defaults to one second.
	Debounce     time.Duration
	WriteTimeout time.Duration
	FetchTimeout time.Duration

	// Queue, when set, makes writes made while offline durable across
	// restarts. Without it the offline buffer is memory only.
	Queue *OfflineQueue

	// OnStatus observes per-entity status transitions.
	OnStatus func(id string, s Status)
	// OnConflict fires when a write is rejected by its precondition.
	OnConflict func(id string)
	// OnRemoteDelete fires when a remote delete (or refetch diff) removes an
	// entity, so UI selection can be cleared upstream.
	OnRemoteDelete func(id string)

	// IsTombstone recognizes soft-deleted copies. A conflict whose remote
	// side is a tombstone means the entity was deleted on another device;
	// AcceptRemote then removes it instead of adopting the copy.
	IsTombstone func(doc T) bool

	Logf func(format string, args ...any)
}

// writer tracks the optimistic write buffer for one entity. All access is
// guarded by Engine.mu.
type writer[T Entity] struct {
	buffered T     // local doc including unsent edits
	base     T     // last payload known to be on the server
	baseline int64 // version precondition for the next write
	hasBase  bool  // false for a local create
	timer    *time.Timer
	inflight bool
	remove   bool   // pending delete rather than put
	seq      uint64 // bumps per edit; stale completions compare against it
}

// Engine synchronizes one collection. Construct with New, then Start; all
// methods are safe for concurrent use.
type Engine[T Entity] struct {
	store  Store[T]
	cache  *Cache[T]
	status *StatusTracker
	opts   Options[T]

	mu        sync.Mutex
	writers   map[string]*writer[T]
	conflicts map[string]*Conflict[T]
	online    bool
	started   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New[T Entity](store Store[T], opts Options[T]) *Engine[T] {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Logf == nil {
		opts.Logf = log.Printf
	}

	e := &Engine[T]{
		store:     store,
		cache:     NewCache[T](),
		opts:      opts,
		writers:   make(map[string]*writer[T]),
		conflicts: make(map[string]*Conflict[T]),
		online:    true,
	}
	e.status = NewStatusTracker(opts.OnStatus)
	return e
}

// Start subscribes to the change feed, performs the initial fetch and replays
// any queued writes from a previous run. It returns with the subscription
// established and the cache populated; the feed keeps running until Stop.
func (e *Engine[T]) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	feed, err := e.store.Subscribe(e.ctx)
	if err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}
	if err := e.resync(e.ctx); err != nil {
		feed.Close()
		return err
	}
	e.replayQueue()

	e.wg.Add(1)
	go e.runFeed(feed)
	return nil
}

// Stop cancels the feed and all pending debounce timers. Buffered edits stay
// in the offline queue (when configured) for the next run.
func (e *Engine[T]) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	e.cancel()
	for _, w := range e.writers {
		if w.timer != nil {
			w.timer.Stop()
		}
	}
	e.mu.Unlock()

	e.wg.Wait()
}

// Cache exposes the entity cache for rendering and queries.
func (e *Engine[T]) Cache() *Cache[T] { return e.cache }

// Get returns the current local copy of the entity.
func (e *Engine[T]) Get(id string) (T, bool) { return e.cache.Get(id) }

// List snapshots the cache in query order.
func (e *Engine[T]) List(q Query[T]) []T { return e.cache.List(q) }

// Status reports the sync state of one entity.
func (e *Engine[T]) Status(id string) Status { return e.status.Get(id) }

// Create registers a brand-new entity (client-assigned id), visible in the
// cache immediately and written to the store after the debounce window.
func (e *Engine[T]) Create(doc T) error {
	id := doc.EntityID()

	e.mu.Lock()
	if _, ok := e.cache.Get(id); ok {
		e.mu.Unlock()
		return ErrExists
	}
	w := &writer[T]{buffered: doc, hasBase: false, baseline: 0}
	w.seq++
	e.writers[id] = w
	e.cache.Upsert(doc)
	e.afterEditLocked(id, w)
	e.mu.Unlock()

	e.status.Set(id, StatusPending)
	return nil
}

// Edit merges a field patch into the entity's local payload immediately and
// (re)starts its debounce timer. Edits to the same entity coalesce into one
// pending write; edits to different entities debounce independently.
func (e *Engine[T]) Edit(id string, patch func(T) T) error {
	e.mu.Lock()
	w, ok := e.writers[id]
	if !ok {
		doc, found := e.cache.Get(id)
		if !found {
			e.mu.Unlock()
			return ErrNotFound
		}
		w = &writer[T]{buffered: doc, base: doc, hasBase: true, baseline: doc.EntityVersion()}
		e.writers[id] = w
	}

	w.buffered = patch(w.buffered)
	w.remove = false
	w.seq++
	e.cache.Upsert(w.buffered)
	e.afterEditLocked(id, w)
	e.mu.Unlock()

	e.status.Set(id, StatusPending)
	return nil
}

// Delete removes the entity from the cache immediately and schedules the
// remote delete through the same serialized write path.
func (e *Engine[T]) Delete(id string) error {
	e.mu.Lock()
	w, ok := e.writers[id]
	if !ok {
		doc, found := e.cache.Get(id)
		if !found {
			e.mu.Unlock()
			return ErrNotFound
		}
		w = &writer[T]{buffered: doc, base: doc, hasBase: true, baseline: doc.EntityVersion()}
		e.writers[id] = w
	}

	w.remove = true
	w.seq++
	e.cache.Remove(id)
	e.afterEditLocked(id, w)
	e.mu.Unlock()

	e.status.Set(id, StatusPending)
	return nil
}

// afterEditLocked persists the buffered write when offline, otherwise resets
// the entity's debounce timer. Caller holds e.mu.
func (e *Engine[T]) afterEditLocked(id string, w *writer[T]) {
	if !e.online {
		e.persistLocked(id, w)
		return
	}
	if _, conflicted := e.conflicts[id]; conflicted {
		// flushing with a stale baseline would only re-raise the conflict;
		// the buffered edits go out with the resolution
		return
	}

	if w.timer != nil {
		w.timer.Stop()
	}
	seq := w.seq
	w.timer = time.AfterFunc(e.opts.Debounce, func() {
		e.flush(id, seq)
	})
}

func (e *Engine[T]) persistLocked(id string, w *writer[T]) {
	if e.opts.Queue == nil {
		return
	}
	var err error
	if w.remove {
		err = e.opts.Queue.Delete(id, w.baseline)
	} else {
		err = e.opts.Queue.Put(id, w.buffered, w.baseline)
	}
	if err != nil {
		e.opts.Logf("offline queue write failed for %s: %v", id, err)
	}
}

// flush commits the buffered write for one entity. Superseded invocations
// (an edit bumped seq after this timer was armed) are dropped; the newer
// timer will flush the merged payload.
func (e *Engine[T]) flush(id string, seq uint64) {
	e.mu.Lock()
	if !e.started {
		// a fired timer can still reach here after Stop
		e.mu.Unlock()
		return
	}
	w, ok := e.writers[id]
	if !ok || w.seq != seq {
		e.mu.Unlock()
		return
	}
	if w.inflight {
		// at most one write per entity; perform reschedules when it resolves
		e.mu.Unlock()
		return
	}
	if !e.online {
		e.persistLocked(id, w)
		e.mu.Unlock()
		return
	}

	if !w.remove && w.hasBase && reflect.DeepEqual(w.buffered, w.base) {
		// no-op edit: never touches the network
		delete(e.writers, id)
		e.mu.Unlock()
		e.status.Set(id, StatusSynced)
		return
	}

	w.inflight = true
	doc := w.buffered
	baseline := w.baseline
	remove := w.remove
	// Add under the mutex: Stop flips started before Wait, so a flush past
	// the started check has registered before Wait can return
	e.wg.Add(1)
	e.mu.Unlock()

	e.status.Set(id, StatusSyncing)

	go e.perform(id, doc, baseline, remove, seq)
}

func (e *Engine[T]) perform(id string, doc T, baseline int64, remove bool, seq uint64) {
	defer e.wg.Done()

	parent := e.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, e.opts.WriteTimeout)
	defer cancel()

	if remove {
		err := e.store.Delete(ctx, id)
		e.completeDelete(id, seq, err)
		return
	}

	saved, err := e.store.Put(ctx, doc, baseline)
	e.completePut(id, doc, seq, saved, err)
}

func (e *Engine[T]) completeDelete(id string, seq uint64, err error) {
	e.mu.Lock()
	w, ok := e.writers[id]
	if !ok {
		e.mu.Unlock()
		return
	}
	w.inflight = false

	if err != nil {
		e.mu.Unlock()
		e.opts.Logf("delete of %s failed: %v", id, err)
		e.status.Set(id, StatusError)
		return
	}

	if w.seq != seq && !w.remove {
		// recreated or edited after the delete was issued; write it back
		e.rescheduleLocked(id, w)
		e.mu.Unlock()
		e.status.Set(id, StatusPending)
		return
	}

	delete(e.writers, id)
	e.dequeue(id)
	e.mu.Unlock()

	e.status.Forget(id)
}

func (e *Engine[T]) completePut(id string, sent T, seq uint64, saved T, err error) {
	e.mu.Lock()
	w, ok := e.writers[id]
	if !ok {
		e.mu.Unlock()
		return
	}
	w.inflight = false

	switch {
	case err == nil:
		if w.seq != seq || w.remove {
			// superseded while in flight: the acknowledged copy becomes the
			// new baseline and the merged payload goes out immediately
			w.base = sent
			w.hasBase = true
			w.baseline = saved.EntityVersion()
			e.rescheduleLocked(id, w)
			e.mu.Unlock()
			e.status.Set(id, StatusPending)
			return
		}
		delete(e.writers, id)
		e.cache.Upsert(saved)
		e.dequeue(id)
		e.mu.Unlock()
		e.status.Set(id, StatusSynced)
		return

	case isConflict[T](err):
		remote := conflictRemote[T](err)
		e.conflicts[id] = &Conflict[T]{
			ID:         id,
			Local:      w.buffered,
			Remote:     remote,
			DetectedAt: time.Now(),
		}
		cb := e.opts.OnConflict
		e.dequeue(id)
		e.mu.Unlock()
		e.status.Set(id, StatusConflict)
		if cb != nil {
			cb(id)
		}
		return

	default:
		// transport or validation failure: the edit stays buffered,
		// eligible for retry
		e.mu.Unlock()
		e.opts.Logf("write of %s failed: %v", id, err)
		e.status.Set(id, StatusError)
		return
	}
}

// rescheduleLocked arms an immediate follow-up flush for a writer whose
// in-flight write just resolved while newer edits were buffered.
func (e *Engine[T]) rescheduleLocked(id string, w *writer[T]) {
	if w.timer != nil {
		w.timer.Stop()
	}
	seq := w.seq
	w.timer = time.AfterFunc(0, func() {
		e.flush(id, seq)
	})
}

func (e *Engine[T]) dequeue(id string) {
	if e.opts.Queue == nil {
		return
	}
	if err := e.opts.Queue.Remove(id); err != nil {
		e.opts.Logf("offline queue remove failed for %s: %v", id, err)
	}
}

// Retry re-arms the write for an entity in the error state.
func (e *Engine[T]) Retry(id string) error {
	e.mu.Lock()
	w, ok := e.writers[id]
	if !ok {
		e.mu.Unlock()
		return ErrNotFound
	}
	e.rescheduleLocked(id, w)
	e.mu.Unlock()

	e.status.Set(id, StatusPending)
	return nil
}

// Conflicts lists the unresolved conflicts.
func (e *Engine[T]) Conflicts() []*Conflict[T] {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*Conflict[T], 0, len(e.conflicts))
	for _, c := range e.conflicts {
		out = append(out, c)
	}
	return out
}

// Conflict returns the recorded conflict for one entity.
func (e *Engine[T]) Conflict(id string) (*Conflict[T], bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.conflicts[id]
	return c, ok
}

// Resolve settles a conflict. AcceptRemote adopts the remote copy and drops
// the local edits, removing the entity when the remote copy is a tombstone;
// KeepLocal force-pushes the local payload using the
// remote's version as the new precondition. Either way the baseline advances
// to whichever write ultimately succeeded.
func (e *Engine[T]) Resolve(id string, r Resolution) error {
	e.mu.Lock()
	c, ok := e.conflicts[id]
	if !ok {
		e.mu.Unlock()
		return ErrNoConflict
	}
	delete(e.conflicts, id)

	switch r {
	case AcceptRemote:
		delete(e.writers, id)
		tombstone := e.opts.IsTombstone != nil && e.opts.IsTombstone(c.Remote)
		if tombstone {
			e.cache.Remove(id)
		} else {
			e.cache.Upsert(c.Remote)
		}
		e.dequeue(id)
		cb := e.opts.OnRemoteDelete
		e.mu.Unlock()

		if tombstone {
			e.status.Forget(id)
			if cb != nil {
				cb(id)
			}
			return nil
		}
		e.status.Set(id, StatusSynced)
		return nil

	case KeepLocal:
		w, ok := e.writers[id]
		if !ok {
			w = &writer[T]{buffered: c.Local}
			e.writers[id] = w
			w.seq++
		}
		w.base = c.Remote
		w.hasBase = true
		w.baseline = c.Remote.EntityVersion()
		e.rescheduleLocked(id, w)
		e.mu.Unlock()
		e.status.Set(id, StatusPending)
		return nil

	default:
		e.mu.Unlock()
		return ErrNoConflict
	}
}

// SetOnline flips connectivity. Coming back online resubscription is handled
// by the feed loop; queued and pending writes replay through the normal
// precondition path after a fresh fetch.
func (e *Engine[T]) SetOnline(online bool) {
	e.mu.Lock()
	was := e.online
	e.online = online
	e.mu.Unlock()

	if online && !was {
		if e.ctx != nil {
			if err := e.resync(e.ctx); err != nil {
				e.opts.Logf("resync after reconnect failed: %v", err)
			}
		}
		e.replayQueue()
		e.flushPending()
	}
}

func (e *Engine[T]) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// flushPending arms an immediate flush for every writer with buffered edits.
func (e *Engine[T]) flushPending() {
	e.mu.Lock()
	for id, w := range e.writers {
		if w.inflight {
			continue
		}
		if _, conflicted := e.conflicts[id]; conflicted {
			continue
		}
		e.rescheduleLocked(id, w)
	}
	e.mu.Unlock()
}

// replayQueue restores writers from the durable queue (after a restart) and
// flushes them in enqueue order through the normal precondition path.
func (e *Engine[T]) replayQueue() {
	if e.opts.Queue == nil {
		return
	}
	entries, err := e.opts.Queue.Entries()
	if err != nil {
		e.opts.Logf("offline queue replay failed: %v", err)
		return
	}

	for _, entry := range entries {
		e.mu.Lock()
		w, ok := e.writers[entry.ID]
		if !ok {
			w = &writer[T]{baseline: entry.Baseline}
			if entry.Op == queueOpDelete {
				w.remove = true
			} else {
				var doc T
				if err := json.Unmarshal(entry.Doc, &doc); err != nil {
					e.mu.Unlock()
					e.opts.Logf("dropping undecodable queued write for %s: %v", entry.ID, err)
					e.dequeue(entry.ID)
					continue
				}
				w.buffered = doc
				if remote, found := e.cache.Get(entry.ID); found {
					w.base = remote
					w.hasBase = true
				}
				e.cache.Upsert(doc)
			}
			w.seq++
			e.writers[entry.ID] = w
		}
		if !w.inflight {
			e.rescheduleLocked(entry.ID, w)
		}
		e.mu.Unlock()
		e.status.Set(entry.ID, StatusPending)
	}
}

func isConflict[T Entity](err error) bool {
	var c *ConflictError[T]
	return errors.As(err, &c)
}

func conflictRemote[T Entity](err error) T {
	var c *ConflictError[T]
	if errors.As(err, &c) {
		return c.Remote
	}
	var zero T
	return zero
}
