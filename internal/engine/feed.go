package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// runFeed consumes the subscription opened by Start and keeps one logical
// subscription alive for the collection from then on. The feed delivers
// at-most-once, best-effort notifications, so after every resubscribe the
// full collection is refetched and diffed against the cache instead of
// trusting that no event was missed.
func (e *Engine[T]) runFeed(feed Feed[T]) {
	defer e.wg.Done()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	for {
		select {
		case <-e.ctx.Done():
			if feed != nil {
				feed.Close()
			}
			return
		default:
		}

		if feed == nil {
			var err error
			feed, err = e.store.Subscribe(e.ctx)
			if err != nil {
				e.opts.Logf("subscribe failed: %v", err)
				if !sleepCtx(e.ctx, bo.NextBackOff()) {
					return
				}
				continue
			}

			if err := e.resync(e.ctx); err != nil {
				e.opts.Logf("%v", err)
				feed.Close()
				feed = nil
				if !sleepCtx(e.ctx, bo.NextBackOff()) {
					return
				}
				continue
			}
			bo.Reset()
		}

	consume:
		for {
			select {
			case <-e.ctx.Done():
				feed.Close()
				return
			case ev, ok := <-feed.Events():
				if !ok {
					break consume
				}
				e.apply(ev)
			}
		}
		feed.Close()
		feed = nil
		e.opts.Logf("change feed dropped, resubscribing")
	}
}

// apply commits one remote change event to the cache in arrival order. The
// stale-write guard in Upsert rejects events older than the cached copy.
func (e *Engine[T]) apply(ev Event[T]) {
	switch ev.Type {
	case EventInsert, EventUpdate:
		e.cache.Upsert(ev.Doc)

	case EventDelete:
		removed := e.cache.Remove(ev.ID)

		e.mu.Lock()
		_, editing := e.writers[ev.ID]
		e.mu.Unlock()
		if !editing {
			e.status.Forget(ev.ID)
		}
		if removed && e.opts.OnRemoteDelete != nil {
			e.opts.OnRemoteDelete(ev.ID)
		}
	}
}

// resync fetches the full scoped collection and reconciles it with the
// cache: fresher documents are upserted, ids absent remotely are removed.
// Entities with buffered local edits are left to the write path, which
// validates their baseline against the store when it flushes.
func (e *Engine[T]) resync(ctx context.Context) error {
	fctx, cancel := context.WithTimeout(ctx, e.opts.FetchTimeout)
	defer cancel()

	docs, err := e.store.FetchAll(fctx)
	if err != nil {
		return fmt.Errorf("refetch failed: %w", err)
	}

	seen := make(map[string]bool, len(docs))
	var removed []string

	e.mu.Lock()
	for _, doc := range docs {
		id := doc.EntityID()
		seen[id] = true
		if _, ok := e.writers[id]; ok {
			continue
		}
		e.cache.Upsert(doc)
	}
	for _, id := range e.cache.IDs() {
		if seen[id] {
			continue
		}
		if _, ok := e.writers[id]; ok {
			continue
		}
		if e.cache.Remove(id) {
			removed = append(removed, id)
		}
	}
	cb := e.opts.OnRemoteDelete
	e.mu.Unlock()

	for _, id := range removed {
		e.status.Forget(id)
		if cb != nil {
			cb(id)
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
