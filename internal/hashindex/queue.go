package hashindex

import "container/heap"

// pendingQueue is the unique priority queue described in SPEC_FULL.md §4.2: an
// id-ordered map of reserved entries, a digest→id index enforcing
// digest uniqueness, and a set of ids marked ready to drain.
//
// Grounded on original_source/src/hat/ordered_collection.rs's
// BTreeMap-based OrderedCollection: find_min/pop_min_when there become
// the min-heap below, since Go's standard library has no ordered map.
type pendingQueue struct {
	entries  map[int64]*QueueEntry
	digests  map[string]int64 // digest (as string) -> id
	idDigest map[int64]Digest // id -> digest, the reverse of digests
	ready    map[int64]bool
	minHeap  idHeap
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{
		entries:  make(map[int64]*QueueEntry),
		digests:  make(map[string]int64),
		idDigest: make(map[int64]Digest),
		ready:    make(map[int64]bool),
	}
}

// idHeap is a min-heap of reservation ids still pending in the queue.
type idHeap []int64

func (h idHeap) Len() int            { return len(h) }
func (h idHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x interface{}) { *h = append(*h, x.(int64)) }
func (h *idHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// reservePriority inserts a placeholder for digest at id. It fails if
// digest is already present, enforcing invariant 1 of SPEC_FULL.md §3.
func (q *pendingQueue) reservePriority(id int64, digest Digest) error {
	key := string(digest)
	if _, exists := q.digests[key]; exists {
		return malformed("digest %x already reserved", digest)
	}
	q.digests[key] = id
	q.idDigest[id] = digest
	q.entries[id] = nil
	heap.Push(&q.minHeap, id)
	return nil
}

// putValue attaches entry to a previously reserved digest.
func (q *pendingQueue) putValue(digest Digest, entry QueueEntry) error {
	id, ok := q.digests[string(digest)]
	if !ok {
		return malformed("putValue on unreserved digest %x", digest)
	}
	q.entries[id] = &entry
	return nil
}

func (q *pendingQueue) findID(digest Digest) (int64, bool) {
	id, ok := q.digests[string(digest)]
	return id, ok
}

func (q *pendingQueue) findEntry(digest Digest) (QueueEntry, bool) {
	id, ok := q.digests[string(digest)]
	if !ok {
		return QueueEntry{}, false
	}
	e := q.entries[id]
	if e == nil {
		return QueueEntry{}, false
	}
	return *e, true
}

// updateValue applies f to the current entry for digest in place. It
// fails if digest is absent.
func (q *pendingQueue) updateValue(digest Digest, f func(QueueEntry) QueueEntry) error {
	id, ok := q.digests[string(digest)]
	if !ok {
		return malformed("updateValue on unreserved digest %x", digest)
	}
	e := q.entries[id]
	if e == nil {
		return malformed("updateValue before putValue for digest %x", digest)
	}
	updated := f(*e)
	q.entries[id] = &updated
	return nil
}

// setReady marks id ready to drain. Idempotent.
func (q *pendingQueue) setReady(id int64) {
	q.ready[id] = true
}

// popMinIfReady removes and returns the minimum-id entry if it is
// ready; otherwise it leaves the queue untouched and returns false.
// This is the one tricky primitive in SPEC_FULL.md §9: drain stops at the
// first non-ready entry even if later entries are ready.
func (q *pendingQueue) popMinIfReady() (id int64, digest Digest, entry QueueEntry, ok bool) {
	for q.minHeap.Len() > 0 {
		top := q.minHeap[0]
		e, present := q.entries[top]
		if !present {
			// Defensive: should not happen, entries are removed together
			// with their heap slot.
			heap.Pop(&q.minHeap)
			continue
		}
		if e == nil || !q.ready[top] {
			return 0, nil, QueueEntry{}, false
		}
		heap.Pop(&q.minHeap)
		foundDigest := q.idDigest[top]
		delete(q.entries, top)
		delete(q.digests, string(foundDigest))
		delete(q.idDigest, top)
		delete(q.ready, top)
		return top, foundDigest, *e, true
	}
	return 0, nil, QueueEntry{}, false
}

func (q *pendingQueue) len() int {
	return len(q.entries)
}
