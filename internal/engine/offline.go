package engine

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

const (
	queueOpPut    = "put"
	queueOpDelete = "delete"
)

// QueuedWrite is one durable pending write. Writes coalesce per entity: a
// later edit replaces the document but keeps the original sequence number and
// baseline, so replay order and the precondition both reflect when editing
// began.
type QueuedWrite struct {
	Seq      uint64          `json:"seq"`
	Op       string          `json:"op"`
	ID       string          `json:"id"`
	Doc      json.RawMessage `json:"doc,omitempty"`
	Baseline int64           `json:"baseline"`
}

// OfflineQueue buffers writes made while disconnected, in edit order, backed
// by a bbolt bucket so queued edits survive a process restart.
type OfflineQueue struct {
	db     *bolt.DB
	bucket []byte
}

// OpenOfflineQueue opens (or creates) the queue file and the bucket for one
// collection. The bolt file lock is exclusive, so each collection gets its
// own file.
func OpenOfflineQueue(path, collection string) (*OfflineQueue, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open offline queue: %w", err)
	}

	bucket := []byte("queue:" + collection)
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create queue bucket: %w", err)
	}

	return &OfflineQueue{db: db, bucket: bucket}, nil
}

func (q *OfflineQueue) Close() error {
	return q.db.Close()
}

// Put enqueues (or coalesces) a pending write for the entity.
func (q *OfflineQueue) Put(id string, doc any, baseline int64) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode queued write: %w", err)
	}
	return q.enqueue(QueuedWrite{Op: queueOpPut, ID: id, Doc: raw, Baseline: baseline})
}

// Delete enqueues a pending delete, replacing any queued write for the id.
func (q *OfflineQueue) Delete(id string, baseline int64) error {
	return q.enqueue(QueuedWrite{Op: queueOpDelete, ID: id, Baseline: baseline})
}

func (q *OfflineQueue) enqueue(w QueuedWrite) error {
	return q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(q.bucket)

		if key, existing := findEntry(b, w.ID); key != nil {
			// coalesce: keep the original position and baseline
			w.Seq = existing.Seq
			w.Baseline = existing.Baseline
			raw, err := json.Marshal(w)
			if err != nil {
				return err
			}
			return b.Put(key, raw)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		w.Seq = seq
		raw, err := json.Marshal(w)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), raw)
	})
}

// Remove drops the queued write for the entity, if any. Called when the write
// is acknowledged or captured as a conflict, making replay exactly-once.
func (q *OfflineQueue) Remove(id string) error {
	return q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(q.bucket)
		if key, _ := findEntry(b, id); key != nil {
			return b.Delete(key)
		}
		return nil
	})
}

// Entries returns the queued writes in enqueue order.
func (q *OfflineQueue) Entries() ([]QueuedWrite, error) {
	var out []QueuedWrite
	err := q.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(q.bucket).ForEach(func(_, v []byte) error {
			var w QueuedWrite
			if err := json.Unmarshal(v, &w); err != nil {
				return err
			}
			out = append(out, w)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read offline queue: %w", err)
	}
	return out, nil
}

func (q *OfflineQueue) Len() (int, error) {
	n := 0
	err := q.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(q.bucket).Stats().KeyN
		return nil
	})
	return n, err
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func findEntry(b *bolt.Bucket, id string) ([]byte, *QueuedWrite) {
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var w QueuedWrite
		if err := json.Unmarshal(v, &w); err != nil {
			continue
		}
		if w.ID == id {
			key := make([]byte, len(k))
			copy(key, k)
			return key, &w
		}
	}
	return nil, nil
}
