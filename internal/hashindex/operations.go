package hashindex

import "context"

// assertNonEmpty enforces the precondition common to every message in
// SPEC_FULL.md §4.6: every digest must be non-empty. Violations are fatal
// programmer errors (SPEC_FULL.md §7), so this panics rather than returning an
// error; dispatch's recover converts the panic into the index's
// latched fatal state.
func assertNonEmpty(digest Digest) {
	if digest.Empty() {
		panic(malformed("empty digest"))
	}
}

// handle routes msg to its operation and returns the single reply that
// operation produces, per the message ABI of SPEC_FULL.md §4.6.
func (idx *Index) handle(ctx context.Context, msg Msg) (Reply, error) {
	switch m := msg.(type) {
	case MsgHashExists:
		assertNonEmpty(m.Digest)
		entry, err := idx.locate(ctx, m.Digest)
		if err != nil {
			return Reply{}, err
		}
		if entry == nil {
			return Reply{Kind: ReplyHashNotKnown}, nil
		}
		return Reply{Kind: ReplyHashKnown}, nil

	case MsgFetchPayload:
		assertNonEmpty(m.Digest)
		entry, err := idx.locate(ctx, m.Digest)
		if err != nil {
			return Reply{}, err
		}
		if entry == nil {
			return Reply{Kind: ReplyHashNotKnown}, nil
		}
		return Reply{Kind: ReplyPayload, PayloadPresent: entry.Payload != nil, Payload: entry.Payload}, nil

	case MsgFetchPersistentRef:
		assertNonEmpty(m.Digest)
		entry, err := idx.locate(ctx, m.Digest)
		if err != nil {
			return Reply{}, err
		}
		if entry == nil {
			return Reply{Kind: ReplyHashNotKnown}, nil
		}
		if entry.PersistentRef == nil {
			return Reply{Kind: ReplyRetry}, nil
		}
		return Reply{Kind: ReplyPersistentRef, PersistentRef: entry.PersistentRef}, nil

	case MsgReserve:
		assertNonEmpty(m.Entry.Digest)
		existing, err := idx.locate(ctx, m.Entry.Digest)
		if err != nil {
			return Reply{}, err
		}
		if existing != nil {
			return Reply{Kind: ReplyHashKnown}, nil
		}
		if err := idx.reserve(ctx, m.Entry); err != nil {
			return Reply{}, err
		}
		return Reply{Kind: ReplyReserveOK}, nil

	case MsgUpdateReserved:
		assertNonEmpty(m.Entry.Digest)
		if err := idx.updateReserved(ctx, m.Entry); err != nil {
			return Reply{}, err
		}
		return Reply{Kind: ReplyReserveOK}, nil

	case MsgCommit:
		assertNonEmpty(m.Digest)
		if err := idx.commit(ctx, m.Digest, m.BlobRef); err != nil {
			return Reply{}, err
		}
		return Reply{Kind: ReplyCommitOK}, nil

	case MsgCallAfterHashIsCommitted:
		assertNonEmpty(m.Digest)
		known, err := idx.registerHashCallback(ctx, m.Digest, m.Callback)
		if err != nil {
			return Reply{}, err
		}
		if !known {
			return Reply{Kind: ReplyHashNotKnown}, nil
		}
		return Reply{Kind: ReplyCallbackRegistered}, nil

	case MsgFlush:
		if err := idx.flush(ctx); err != nil {
			return Reply{}, err
		}
		return Reply{Kind: ReplyCommitOK}, nil

	case setFlushIntervalMsg:
		idx.timer.setInterval(m.interval)
		return Reply{Kind: ReplyCommitOK}, nil

	case shutdownMsg:
		return idx.dispatchShutdown()

	default:
		panic(malformed("unknown message type %T", msg))
	}
}

// locate consults the Pending Queue first, then the Durable Store
// (SPEC_FULL.md §4.6's locate(d)).
func (idx *Index) locate(ctx context.Context, digest Digest) (*QueueEntry, error) {
	if entry, ok := idx.queue.findEntry(digest); ok {
		return &entry, nil
	}
	return idx.store.locate(ctx, digest)
}

// reserve assigns a fresh id to entry.Digest and places it in the
// Pending Queue (SPEC_FULL.md §4.6's Reserve). Callers must already have
// confirmed the digest is unknown.
func (idx *Index) reserve(ctx context.Context, entry HashEntry) error {
	if err := idx.maybeFlush(ctx); err != nil {
		return err
	}

	id := idx.ids.next()
	if err := idx.queue.reservePriority(id, entry.Digest); err != nil {
		panic(err)
	}
	if err := idx.queue.putValue(entry.Digest, QueueEntry{
		ID:            id,
		Level:         entry.Level,
		Payload:       entry.Payload,
		PersistentRef: entry.PersistentRef,
	}); err != nil {
		panic(err)
	}
	return nil
}

// updateReserved updates the in-place level/payload/persistent_ref of a
// digest that is still in the Pending Queue. If the digest has already
// drained to the Durable Store, this silently no-ops (SPEC_FULL.md §4.6).
func (idx *Index) updateReserved(ctx context.Context, entry HashEntry) error {
	if _, ok := idx.queue.findEntry(entry.Digest); ok {
		return idx.queue.updateValue(entry.Digest, func(qe QueueEntry) QueueEntry {
			qe.Level = entry.Level
			qe.Payload = entry.Payload
			qe.PersistentRef = entry.PersistentRef
			return qe
		})
	}

	// Not pending: either already drained to the Durable Store (a
	// silent no-op per SPEC_FULL.md §4.6) or never reserved (fatal).
	durable, err := idx.store.locate(ctx, entry.Digest)
	if err != nil {
		return err
	}
	if durable == nil {
		panic(malformed("update_reserved on unreserved digest %x", entry.Digest))
	}
	return nil
}

// registerHashCallback implements CallAfterHashIsComitted (SPEC_FULL.md §4.6):
// if the digest is still pending, the callback is queued; if it is
// already durable, the callback fires immediately; otherwise the
// digest is unknown and registration fails.
func (idx *Index) registerHashCallback(ctx context.Context, digest Digest, cont func()) (bool, error) {
	if _, ok := idx.queue.findEntry(digest); ok {
		idx.cbs.add(digest, cont)
		return true, nil
	}
	entry, err := idx.store.locate(ctx, digest)
	if err != nil {
		return false, err
	}
	if entry != nil {
		cont()
		return true, nil
	}
	return false, nil
}

// insertCompletedInOrder drains every consecutive ready minimum from
// the Pending Queue into the Durable Store, in id order (SPEC_FULL.md §4.6's
// greedy drain, invariant 3).
func (idx *Index) insertCompletedInOrder(ctx context.Context) error {
	for {
		id, digest, entry, ok := idx.queue.popMinIfReady()
		if !ok {
			return nil
		}
		if entry.PersistentRef == nil {
			panic(malformed("digest %x committed without a persistent_ref", digest))
		}
		if err := idx.store.insert(ctx, id, digest, entry.Level, entry.Payload, entry.PersistentRef); err != nil {
			return err
		}
		idx.cbs.allowFlush(digest)
	}
}

// commit implements Commit (SPEC_FULL.md §4.6): update the persistent_ref of a
// pending digest, mark it ready, then drain as far as ordering allows.
func (idx *Index) commit(ctx context.Context, digest Digest, blobRef []byte) error {
	id, ok := idx.queue.findID(digest)
	if !ok {
		panic(malformed("commit of unknown or already-drained digest %x", digest))
	}

	if err := idx.queue.updateValue(digest, func(qe QueueEntry) QueueEntry {
		qe.PersistentRef = blobRef
		return qe
	}); err != nil {
		panic(err)
	}
	idx.queue.setReady(id)

	if err := idx.insertCompletedInOrder(ctx); err != nil {
		return err
	}

	return idx.maybeFlush(ctx)
}

// maybeFlush calls flush when the flush timer has fired (SPEC_FULL.md §4.6).
func (idx *Index) maybeFlush(ctx context.Context) error {
	if idx.timer.didFire() {
		return idx.flush(ctx)
	}
	return nil
}

// flush commits the trailing transaction and then releases ready
// callbacks, in that order, so every fired callback observes a durable
// database (SPEC_FULL.md §4.4, §4.6).
func (idx *Index) flush(ctx context.Context) error {
	if err := idx.store.commitAndBegin(ctx); err != nil {
		return err
	}
	idx.cbs.flushAll()
	return nil
}
