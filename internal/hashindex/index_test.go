package hashindex

import (
	"context"
	"testing"
	"time"
)

// openTestIndex opens an Index backed by a temp-file database: file-based
// databases are more reliable than in-memory ones across connection-pool
// scenarios.
func openTestIndex(t *testing.T, clock Clock) *Index {
	t.Helper()
	path := t.TempDir() + "/hash_index.db"
	idx, err := Open(context.Background(), Config{
		Path:       path,
		Clock:      clock,
		NoFileLock: true,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := idx.Close(context.Background()); err != nil {
			t.Fatalf("Close: %v", err)
		}
	})
	return idx
}

// TestSingleRoundTrip exercises SPEC_FULL.md's round-trip scenario: reserve, commit, flush,
// then fetch back payload and persistent ref.
func TestSingleRoundTrip(t *testing.T) {
	ctx := context.Background()
	clock := NewManualClock(time.Unix(0, 0))
	idx := openTestIndex(t, clock)

	digest := idx.NewDigest([]byte("payload-one"))
	known, err := idx.Reserve(ctx, HashEntry{Digest: digest, Level: 0, Payload: []byte("hello")})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if known {
		t.Fatalf("expected a fresh digest to be unknown")
	}

	if _, result, err := idx.FetchPersistentRef(ctx, digest); err != nil || result != FetchRetry {
		t.Fatalf("expected FetchRetry before commit, got result=%v err=%v", result, err)
	}

	if err := idx.Commit(ctx, digest, []byte("blob-ref-1")); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	ref, result, err := idx.FetchPersistentRef(ctx, digest)
	if err != nil || result != FetchFound || string(ref) != "blob-ref-1" {
		t.Fatalf("expected persistent ref after commit+flush, got ref=%q result=%v err=%v", ref, result, err)
	}

	payload, present, found, err := idx.FetchPayload(ctx, digest)
	if err != nil || !found || !present || string(payload) != "hello" {
		t.Fatalf("expected payload round-trip, got payload=%q present=%v found=%v err=%v", payload, present, found, err)
	}

	exists, err := idx.HashExists(ctx, digest)
	if err != nil || !exists {
		t.Fatalf("expected HashExists true, got %v err=%v", exists, err)
	}
}

// TestDuplicateReservation exercises SPEC_FULL.md's duplicate-reservation scenario: reserving an
// already-known digest reports it known instead of creating a second row.
func TestDuplicateReservation(t *testing.T) {
	ctx := context.Background()
	clock := NewManualClock(time.Unix(0, 0))
	idx := openTestIndex(t, clock)

	digest := idx.NewDigest([]byte("dup"))
	if _, err := idx.Reserve(ctx, HashEntry{Digest: digest}); err != nil {
		t.Fatalf("first Reserve: %v", err)
	}

	known, err := idx.Reserve(ctx, HashEntry{Digest: digest})
	if err != nil {
		t.Fatalf("second Reserve: %v", err)
	}
	if !known {
		t.Fatalf("expected the second reservation of the same digest to report known")
	}

	if err := idx.Commit(ctx, digest, []byte("ref")); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	known, err = idx.Reserve(ctx, HashEntry{Digest: digest})
	if err != nil {
		t.Fatalf("Reserve after commit: %v", err)
	}
	if !known {
		t.Fatalf("expected a durable digest to also report known on reservation")
	}
}

// TestOrderedDrain exercises SPEC_FULL.md's out-of-order commit scenario: three reservations commit
// out of order, but the Durable Store must receive them id-ascending.
func TestOrderedDrain(t *testing.T) {
	ctx := context.Background()
	clock := NewManualClock(time.Unix(0, 0))
	idx := openTestIndex(t, clock)

	d1 := idx.NewDigest([]byte("first"))
	d2 := idx.NewDigest([]byte("second"))
	d3 := idx.NewDigest([]byte("third"))

	for _, d := range []Digest{d1, d2, d3} {
		if _, err := idx.Reserve(ctx, HashEntry{Digest: d}); err != nil {
			t.Fatalf("Reserve(%q): %v", d, err)
		}
	}

	// Before any commit, every digest's ref is not yet assigned.
	if _, result, err := idx.FetchPersistentRef(ctx, d3); err != nil || result != FetchRetry {
		t.Fatalf("expected d3 to be retry before its own commit, got result=%v err=%v", result, err)
	}

	// Commit out of order: third, then first. A commit assigns the ref
	// synchronously, so FetchPersistentRef observes it immediately even
	// while the row itself is still queued behind a lower id waiting to
	// drain into the Durable Store.
	if err := idx.Commit(ctx, d3, []byte("ref3")); err != nil {
		t.Fatalf("Commit(d3): %v", err)
	}
	if _, result, err := idx.FetchPersistentRef(ctx, d3); err != nil || result != FetchFound {
		t.Fatalf("expected d3's ref to be visible right after its own commit, got result=%v err=%v", result, err)
	}

	if err := idx.Commit(ctx, d1, []byte("ref1")); err != nil {
		t.Fatalf("Commit(d1): %v", err)
	}
	if err := idx.Commit(ctx, d2, []byte("ref2")); err != nil {
		t.Fatalf("Commit(d2): %v", err)
	}
	for _, d := range []Digest{d1, d2, d3} {
		if _, result, err := idx.FetchPersistentRef(ctx, d); err != nil || result != FetchFound {
			t.Fatalf("expected %q durable after full drain, got result=%v err=%v", d, result, err)
		}
	}

	// All three must have physically reached the Durable Store in id
	// order, which we can only observe indirectly: closing the index
	// (after a Flush) asserts the Pending Queue is empty.
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

// TestCallbackWaitsForFlush exercises SPEC_FULL.md's flush-gated callback scenario: a callback
// registered for a pending digest must not fire on Commit alone, only
// after the following Flush commits the transaction.
func TestCallbackWaitsForFlush(t *testing.T) {
	ctx := context.Background()
	clock := NewManualClock(time.Unix(0, 0))
	idx := openTestIndex(t, clock)

	digest := idx.NewDigest([]byte("cb"))
	if _, err := idx.Reserve(ctx, HashEntry{Digest: digest}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	fired := false
	found, err := idx.CallAfterHashIsCommitted(ctx, digest, func() { fired = true })
	if err != nil || !found {
		t.Fatalf("expected registration to succeed, found=%v err=%v", found, err)
	}

	if err := idx.Commit(ctx, digest, []byte("ref")); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if fired {
		t.Fatalf("callback fired before Flush")
	}

	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if !fired {
		t.Fatalf("callback did not fire after Flush")
	}
}

// TestCallbackOnDurableDigestFiresImmediately exercises SPEC_FULL.md's already-durable callback scenario:
// registering a callback for a digest that is already durable runs it
// synchronously, without waiting on a Flush.
func TestCallbackOnDurableDigestFiresImmediately(t *testing.T) {
	ctx := context.Background()
	clock := NewManualClock(time.Unix(0, 0))
	idx := openTestIndex(t, clock)

	digest := idx.NewDigest([]byte("already-durable"))
	if _, err := idx.Reserve(ctx, HashEntry{Digest: digest}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := idx.Commit(ctx, digest, []byte("ref")); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	fired := false
	found, err := idx.CallAfterHashIsCommitted(ctx, digest, func() { fired = true })
	if err != nil || !found {
		t.Fatalf("expected registration against a durable digest to succeed, found=%v err=%v", found, err)
	}
	if !fired {
		t.Fatalf("expected the callback to fire synchronously for an already-durable digest")
	}
}

// TestUpdateBeforeCommitPersists exercises SPEC_FULL.md's update-before-commit scenario: updating a
// still-pending reservation's payload and ref before commit must persist
// through Commit, Flush, and a reopen of the same database file.
func TestUpdateBeforeCommitPersists(t *testing.T) {
	ctx := context.Background()
	clock := NewManualClock(time.Unix(0, 0))
	path := t.TempDir() + "/hash_index.db"

	idx, err := Open(ctx, Config{Path: path, Clock: clock, NoFileLock: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	digest := idx.NewDigest([]byte("update-me"))
	if _, err := idx.Reserve(ctx, HashEntry{Digest: digest, Payload: []byte("draft")}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := idx.UpdateReserved(ctx, HashEntry{Digest: digest, Payload: []byte("final")}); err != nil {
		t.Fatalf("UpdateReserved: %v", err)
	}
	if err := idx.Commit(ctx, digest, []byte("final-ref")); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := idx.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(ctx, Config{Path: path, Clock: clock, NoFileLock: true})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() {
		if err := reopened.Close(ctx); err != nil {
			t.Fatalf("Close reopened: %v", err)
		}
	}()

	payload, present, found, err := reopened.FetchPayload(ctx, digest)
	if err != nil || !found || !present || string(payload) != "final" {
		t.Fatalf("expected the updated payload to survive a reopen, got payload=%q present=%v found=%v err=%v", payload, present, found, err)
	}
	ref, result, err := reopened.FetchPersistentRef(ctx, digest)
	if err != nil || result != FetchFound || string(ref) != "final-ref" {
		t.Fatalf("expected the persistent ref to survive a reopen, got ref=%q result=%v err=%v", ref, result, err)
	}

	// The id counter must resume above the previous high-water mark, not
	// collide with what is already durable: committing drains the new
	// entry into the Durable Store, where a reused id would fail to insert.
	postReopen := reopened.NewDigest([]byte("post-reopen"))
	if _, err := reopened.Reserve(ctx, HashEntry{Digest: postReopen}); err != nil {
		t.Fatalf("Reserve after reopen: %v", err)
	}
	if err := reopened.Commit(ctx, postReopen, []byte("post-reopen-ref")); err != nil {
		t.Fatalf("Commit after reopen: %v", err)
	}
}

// TestCloseRejectsPendingReservations exercises SPEC_FULL.md §4.7's shutdown
// assertion: closing with an uncommitted reservation is a contract
// violation, not a silent data loss.
func TestCloseRejectsPendingReservations(t *testing.T) {
	ctx := context.Background()
	clock := NewManualClock(time.Unix(0, 0))
	path := t.TempDir() + "/hash_index.db"

	idx, err := Open(ctx, Config{Path: path, Clock: clock, NoFileLock: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	digest := idx.NewDigest([]byte("left-pending"))
	if _, err := idx.Reserve(ctx, HashEntry{Digest: digest}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	if err := idx.Close(ctx); err == nil {
		t.Fatalf("expected Close to reject an index with an uncommitted reservation")
	}
}

// TestSetFlushIntervalAppliesLive exercises the config hot-reload path:
// shrinking the flush interval lets a subsequent commit auto-flush
// sooner than the original interval would have allowed.
func TestSetFlushIntervalAppliesLive(t *testing.T) {
	ctx := context.Background()
	clock := NewManualClock(time.Unix(0, 0))
	idx := openTestIndex(t, clock)

	digest := idx.NewDigest([]byte("auto-flush"))
	if _, err := idx.Reserve(ctx, HashEntry{Digest: digest}); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	fired := false
	if _, err := idx.CallAfterHashIsCommitted(ctx, digest, func() { fired = true }); err != nil {
		t.Fatalf("CallAfterHashIsCommitted: %v", err)
	}

	idx.SetFlushInterval(1 * time.Second)
	clock.Advance(2 * time.Second)

	if err := idx.Commit(ctx, digest, []byte("ref")); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !fired {
		t.Fatalf("expected the shrunk flush interval to auto-flush on commit")
	}
}

// TestFetchUnknownDigest confirms an never-reserved digest reports not
// known across every read path.
func TestFetchUnknownDigest(t *testing.T) {
	ctx := context.Background()
	clock := NewManualClock(time.Unix(0, 0))
	idx := openTestIndex(t, clock)

	digest := idx.NewDigest([]byte("never-seen"))
	if exists, err := idx.HashExists(ctx, digest); err != nil || exists {
		t.Fatalf("expected HashExists false for an unknown digest, got %v err=%v", exists, err)
	}
	if _, _, found, err := idx.FetchPayload(ctx, digest); err != nil || found {
		t.Fatalf("expected FetchPayload not found, got found=%v err=%v", found, err)
	}
	if _, result, err := idx.FetchPersistentRef(ctx, digest); err != nil || result != FetchNotKnown {
		t.Fatalf("expected FetchNotKnown, got result=%v err=%v", result, err)
	}
	if found, err := idx.CallAfterHashIsCommitted(ctx, digest, func() {}); err != nil || found {
		t.Fatalf("expected callback registration against an unknown digest to report not found, got found=%v err=%v", found, err)
	}
}
