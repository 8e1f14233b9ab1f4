package engine

import (
	"sync"
	"testing"
	"time"
)

func TestFeedInsertAndUpdate(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(t, store, Options[testDoc]{})

	// the subscription exists before Start returns, so emitting right away
	// is safe
	if store.subCount() != 1 {
		t.Fatalf("subscriptions after start = %d, want 1", store.subCount())
	}

	now := time.Now()
	store.emit(Event[testDoc]{
		Type: EventInsert,
		ID:   "n1",
		Doc:  testDoc{ID: "n1", Title: "from-feed", UpdatedAt: now, Version: 1},
	})

	waitFor(t, func() bool {
		_, ok := e.Get("n1")
		return ok
	}, "insert event to land")

	store.emit(Event[testDoc]{
		Type: EventUpdate,
		ID:   "n1",
		Doc:  testDoc{ID: "n1", Title: "updated", UpdatedAt: now.Add(time.Second), Version: 2},
	})

	waitFor(t, func() bool {
		d, _ := e.Get("n1")
		return d.Version == 2
	}, "update event to land")

	d, _ := e.Get("n1")
	if d.Title != "updated" {
		t.Errorf("cache title = %q, want updated", d.Title)
	}
}

func TestFeedStaleEventIgnored(t *testing.T) {
	store := newFakeStore(seedDoc("n1", "fresh", 5))
	e := newTestEngine(t, store, Options[testDoc]{})

	// out-of-order delivery: an event older than the cached copy
	store.emit(Event[testDoc]{
		Type: EventUpdate,
		ID:   "n1",
		Doc:  testDoc{ID: "n1", Title: "stale", UpdatedAt: time.Now(), Version: 4},
	})

	time.Sleep(50 * time.Millisecond)
	d, _ := e.Get("n1")
	if d.Title != "fresh" || d.Version != 5 {
		t.Errorf("cache = %q v%d after stale event, want fresh v5", d.Title, d.Version)
	}
}

func TestFeedRemoteDelete(t *testing.T) {
	store := newFakeStore(seedDoc("n1", "doomed", 1))

	var mu sync.Mutex
	var cleared []string
	e := newTestEngine(t, store, Options[testDoc]{
		OnRemoteDelete: func(id string) {
			mu.Lock()
			cleared = append(cleared, id)
			mu.Unlock()
		},
	})

	store.emit(Event[testDoc]{Type: EventDelete, ID: "n1"})

	waitFor(t, func() bool {
		_, ok := e.Get("n1")
		return !ok
	}, "delete event to land")

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(cleared) == 1 && cleared[0] == "n1"
	}, "selection-clear signal")
}

func TestFeedDropTriggersResubscribeAndRefetch(t *testing.T) {
	store := newFakeStore(seedDoc("n1", "one", 1))
	e := newTestEngine(t, store, Options[testDoc]{})

	if store.subCount() != 1 {
		t.Fatalf("subscriptions after start = %d, want 1", store.subCount())
	}

	// a document written while the feed is down is only visible via refetch
	store.setDoc(seedDoc("n2", "missed", 1))
	store.dropFeed()

	waitFor(t, func() bool { return store.subCount() >= 2 }, "resubscription")
	waitFor(t, func() bool {
		_, ok := e.Get("n2")
		return ok
	}, "refetch to recover the missed document")
}

func TestResyncRemovesVanishedEntities(t *testing.T) {
	store := newFakeStore(seedDoc("n1", "one", 1), seedDoc("n2", "two", 1))

	var mu sync.Mutex
	var cleared []string
	e := newTestEngine(t, store, Options[testDoc]{
		OnRemoteDelete: func(id string) {
			mu.Lock()
			cleared = append(cleared, id)
			mu.Unlock()
		},
	})

	if e.Cache().Len() != 2 {
		t.Fatalf("cache len after start = %d, want 2", e.Cache().Len())
	}

	// deleted remotely while the feed was down: no event, only absence
	store.mu.Lock()
	delete(store.docs, "n2")
	store.mu.Unlock()
	store.dropFeed()

	waitFor(t, func() bool {
		_, ok := e.Get("n2")
		return !ok
	}, "vanished entity to be removed")

	mu.Lock()
	defer mu.Unlock()
	if len(cleared) != 1 || cleared[0] != "n2" {
		t.Errorf("OnRemoteDelete calls = %v, want [n2]", cleared)
	}
}

func TestResyncKeepsLocallyEditedEntities(t *testing.T) {
	store := newFakeStore(seedDoc("n1", "one", 1))
	e := newTestEngine(t, store, Options[testDoc]{Debounce: time.Hour}) // hold the flush

	if err := e.Edit("n1", func(d testDoc) testDoc { d.Title = "local"; return d }); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}

	store.dropFeed()
	waitFor(t, func() bool { return store.subCount() >= 2 }, "resubscription")

	// refetch must not clobber the buffered local edit
	time.Sleep(50 * time.Millisecond)
	d, _ := e.Get("n1")
	if d.Title != "local" {
		t.Errorf("refetch clobbered local edit: title = %q", d.Title)
	}
	if e.Status("n1") != StatusPending {
		t.Errorf("status = %s, want pending", e.Status("n1"))
	}
}
