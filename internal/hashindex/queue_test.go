package hashindex

import "testing"

func reserveAndPut(t *testing.T, q *pendingQueue, id int64, digest string, ready bool) {
	t.Helper()
	if err := q.reservePriority(id, Digest(digest)); err != nil {
		t.Fatalf("reservePriority(%d, %q): %v", id, digest, err)
	}
	if err := q.putValue(Digest(digest), QueueEntry{ID: id, PersistentRef: []byte("ref")}); err != nil {
		t.Fatalf("putValue(%q): %v", digest, err)
	}
	if ready {
		q.setReady(id)
	}
}

func TestPendingQueueUniqueness(t *testing.T) {
	q := newPendingQueue()
	if err := q.reservePriority(1, Digest("h1")); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if err := q.reservePriority(2, Digest("h1")); err == nil {
		t.Fatalf("second reserve of same digest should fail")
	}
}

// TestPopMinIfReadyStopsAtFirstNonReady exercises SPEC_FULL.md §9's one tricky
// primitive: the drain must stop at the first non-ready entry even
// when later entries are ready, and must resume once that blocker
// becomes ready.
func TestPopMinIfReadyStopsAtFirstNonReady(t *testing.T) {
	q := newPendingQueue()
	reserveAndPut(t, q, 1, "h1", false)
	reserveAndPut(t, q, 2, "h2", true)
	reserveAndPut(t, q, 3, "h3", true)

	if _, _, _, ok := q.popMinIfReady(); ok {
		t.Fatalf("expected no drain: id 1 is not ready")
	}

	q.setReady(1)

	id, digest, _, ok := q.popMinIfReady()
	if !ok || id != 1 || string(digest) != "h1" {
		t.Fatalf("expected to drain id 1, got id=%d digest=%q ok=%v", id, digest, ok)
	}

	id, digest, _, ok = q.popMinIfReady()
	if !ok || id != 2 || string(digest) != "h2" {
		t.Fatalf("expected to drain id 2 next, got id=%d digest=%q ok=%v", id, digest, ok)
	}

	id, digest, _, ok = q.popMinIfReady()
	if !ok || id != 3 || string(digest) != "h3" {
		t.Fatalf("expected to drain id 3 next, got id=%d digest=%q ok=%v", id, digest, ok)
	}

	if q.len() != 0 {
		t.Fatalf("expected empty queue after full drain, got len=%d", q.len())
	}
}

func TestPendingQueueUpdateValue(t *testing.T) {
	q := newPendingQueue()
	reserveAndPut(t, q, 1, "h1", false)

	err := q.updateValue(Digest("h1"), func(qe QueueEntry) QueueEntry {
		qe.Payload = []byte("payload")
		return qe
	})
	if err != nil {
		t.Fatalf("updateValue: %v", err)
	}

	entry, ok := q.findEntry(Digest("h1"))
	if !ok || string(entry.Payload) != "payload" {
		t.Fatalf("expected updated payload, got entry=%+v ok=%v", entry, ok)
	}
}

func TestPendingQueueUpdateValueUnknownDigest(t *testing.T) {
	q := newPendingQueue()
	err := q.updateValue(Digest("missing"), func(qe QueueEntry) QueueEntry { return qe })
	if err == nil {
		t.Fatalf("expected error updating unreserved digest")
	}
}
