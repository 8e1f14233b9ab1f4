package engine

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func openTestQueue(t *testing.T) *OfflineQueue {
	t.Helper()

	q, err := OpenOfflineQueue(filepath.Join(t.TempDir(), "queue.db"), "notes")
	if err != nil {
		t.Fatalf("OpenOfflineQueue() error = %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func TestQueueCoalescesPerEntity(t *testing.T) {
	q := openTestQueue(t)

	if err := q.Put("a", seedDoc("a", "first", 0), 3); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := q.Put("b", seedDoc("b", "other", 0), 1); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	// a second edit to "a" coalesces: doc replaced, position and baseline kept
	if err := q.Put("a", seedDoc("a", "second", 0), 9); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	entries, err := q.Entries()
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].ID != "a" || entries[1].ID != "b" {
		t.Errorf("order = [%s %s], want [a b]", entries[0].ID, entries[1].ID)
	}
	if entries[0].Baseline != 3 {
		t.Errorf("coalesced baseline = %d, want the original 3", entries[0].Baseline)
	}

	var doc testDoc
	if err := json.Unmarshal(entries[0].Doc, &doc); err != nil {
		t.Fatalf("decode queued doc: %v", err)
	}
	if doc.Title != "second" {
		t.Errorf("queued doc title = %q, want second", doc.Title)
	}
}

func TestQueueDeleteReplacesPut(t *testing.T) {
	q := openTestQueue(t)

	if err := q.Put("a", seedDoc("a", "draft", 0), 2); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := q.Delete("a", 2); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	entries, _ := q.Entries()
	if len(entries) != 1 || entries[0].Op != queueOpDelete {
		t.Fatalf("entries = %+v, want single delete", entries)
	}
}

func TestQueueRemove(t *testing.T) {
	q := openTestQueue(t)

	q.Put("a", seedDoc("a", "x", 0), 1)
	if err := q.Remove("a"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := q.Remove("a"); err != nil {
		t.Fatalf("second Remove() error = %v", err)
	}

	n, _ := q.Len()
	if n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}
}

func TestOfflineEditsReplayOnReconnect(t *testing.T) {
	store := newFakeStore(seedDoc("n1", "one", 1), seedDoc("n2", "two", 1))
	q := openTestQueue(t)
	e := newTestEngine(t, store, Options[testDoc]{Queue: q})

	e.SetOnline(false)

	for _, title := range []string{"offline-a", "offline-b"} {
		title := title
		if err := e.Edit("n1", func(d testDoc) testDoc { d.Title = title; return d }); err != nil {
			t.Fatalf("Edit() error = %v", err)
		}
	}
	if err := e.Edit("n2", func(d testDoc) testDoc { d.Title = "offline-c"; return d }); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}

	time.Sleep(4 * testDebounce)
	if store.putCount() != 0 {
		t.Fatalf("writes issued while offline: %d", store.putCount())
	}
	if e.Status("n1") != StatusPending {
		t.Errorf("offline status = %s, want pending", e.Status("n1"))
	}

	e.SetOnline(true)
	waitFor(t, func() bool {
		return e.Status("n1") == StatusSynced && e.Status("n2") == StatusSynced
	}, "offline edits to replay")

	// present in the store exactly once each, no double-flush
	if got := len(store.putsFor("n1")); got != 1 {
		t.Errorf("writes for n1 = %d, want 1", got)
	}
	if got := len(store.putsFor("n2")); got != 1 {
		t.Errorf("writes for n2 = %d, want 1", got)
	}
	d1, _ := store.doc("n1")
	if d1.Title != "offline-b" {
		t.Errorf("store title = %q, want the coalesced offline-b", d1.Title)
	}

	n, _ := q.Len()
	if n != 0 {
		t.Errorf("queue Len() after replay = %d, want 0", n)
	}
}

func TestOfflineEditConflictsOnReconnect(t *testing.T) {
	store := newFakeStore(seedDoc("n1", "one", 1))
	q := openTestQueue(t)
	e := newTestEngine(t, store, Options[testDoc]{Queue: q})

	e.SetOnline(false)
	if err := e.Edit("n1", func(d testDoc) testDoc { d.Title = "mine"; return d }); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}

	// someone else writes the entity while this client is offline
	store.setDoc(testDoc{ID: "n1", Title: "theirs", UpdatedAt: time.Now(), Version: 2})

	e.SetOnline(true)
	waitFor(t, func() bool { return e.Status("n1") == StatusConflict }, "conflict on reconnect")

	// neither side was silently overwritten
	remote, _ := store.doc("n1")
	if remote.Title != "theirs" {
		t.Errorf("remote payload = %q, want theirs untouched", remote.Title)
	}
	c, ok := e.Conflict("n1")
	if !ok || c.Local.Title != "mine" {
		t.Fatalf("conflict record missing or wrong: %+v", c)
	}

	n, _ := q.Len()
	if n != 0 {
		t.Errorf("queue Len() after conflict capture = %d, want 0", n)
	}
}

func TestQueueSurvivesRestart(t *testing.T) {
	store := newFakeStore(seedDoc("n1", "one", 1))
	path := filepath.Join(t.TempDir(), "queue.db")

	q1, err := OpenOfflineQueue(path, "notes")
	if err != nil {
		t.Fatalf("OpenOfflineQueue() error = %v", err)
	}
	e1 := newTestEngine(t, store, Options[testDoc]{Queue: q1})
	e1.SetOnline(false)
	if err := e1.Edit("n1", func(d testDoc) testDoc { d.Title = "persisted"; return d }); err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	e1.Stop()
	q1.Close()

	q2, err := OpenOfflineQueue(path, "notes")
	if err != nil {
		t.Fatalf("reopen queue: %v", err)
	}
	t.Cleanup(func() { q2.Close() })

	// a fresh engine (new process) replays the durable queue on start
	e2 := newTestEngine(t, store, Options[testDoc]{Queue: q2})
	waitFor(t, func() bool {
		d, _ := store.doc("n1")
		return d.Title == "persisted"
	}, "queued write to replay after restart")

	waitFor(t, func() bool { return e2.Status("n1") == StatusSynced }, "replayed entity to sync")
	n, _ := q2.Len()
	if n != 0 {
		t.Errorf("queue Len() after replay = %d, want 0", n)
	}
}
