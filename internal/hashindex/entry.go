package hashindex

// HashEntry is a caller-supplied record describing a digest to be
// registered with the index. Payload and PersistentRef are opaque bytes;
// a nil slice is "absent" and distinct from an empty-but-present slice
// while the entry is still in the Pending Queue; once it has drained to
// the Durable Store, an empty payload reads back as absent (see
// durableStore.locate).
type HashEntry struct {
	Digest        Digest
	Level         int64
	Payload       []byte
	PersistentRef []byte
}

// QueueEntry is the in-memory record for a digest that has been reserved
// but not yet drained to the Durable Store.
type QueueEntry struct {
	ID            int64
	Level         int64
	Payload       []byte
	PersistentRef []byte

	// Ready is flipped true by Commit; only ready entries may drain.
	Ready bool
}

func (e QueueEntry) toHashEntry(d Digest) HashEntry {
	return HashEntry{
		Digest:        d,
		Level:         e.Level,
		Payload:       e.Payload,
		PersistentRef: e.PersistentRef,
	}
}
