package hashindex

import "context"

// The methods below are thin, typed wrappers over Send, one per
// message kind, for callers that would rather not construct Msg values
// by hand (e.g. the hashidx CLI and most tests). They carry no logic of
// their own; all semantics live in operations.go.

// HashExists reports whether digest is known anywhere in the index.
func (idx *Index) HashExists(ctx context.Context, digest Digest) (bool, error) {
	reply, err := idx.Send(ctx, MsgHashExists{Digest: digest})
	if err != nil {
		return false, err
	}
	return reply.Kind == ReplyHashKnown, nil
}

// FetchPayload returns the payload for digest. found is false if the
// digest is unknown; present distinguishes a known-but-absent payload
// from one that carries bytes.
func (idx *Index) FetchPayload(ctx context.Context, digest Digest) (payload []byte, present bool, found bool, err error) {
	reply, err := idx.Send(ctx, MsgFetchPayload{Digest: digest})
	if err != nil {
		return nil, false, false, err
	}
	if reply.Kind == ReplyHashNotKnown {
		return nil, false, false, nil
	}
	return reply.Payload, reply.PayloadPresent, true, nil
}

// FetchResult discriminates the three outcomes of FetchPersistentRef.
type FetchResult int

const (
	// FetchFound means the persistent ref is present and returned.
	FetchFound FetchResult = iota
	// FetchRetry means the digest is known but not yet committed;
	// the caller should retry after Commit.
	FetchRetry
	// FetchNotKnown means the digest is unknown.
	FetchNotKnown
)

// FetchPersistentRef returns the external blob reference for digest.
func (idx *Index) FetchPersistentRef(ctx context.Context, digest Digest) ([]byte, FetchResult, error) {
	reply, err := idx.Send(ctx, MsgFetchPersistentRef{Digest: digest})
	if err != nil {
		return nil, FetchNotKnown, err
	}
	switch reply.Kind {
	case ReplyHashNotKnown:
		return nil, FetchNotKnown, nil
	case ReplyRetry:
		return nil, FetchRetry, nil
	default:
		return reply.PersistentRef, FetchFound, nil
	}
}

// Reserve registers entry.Digest as reserved. known is true if the
// digest was already present (no state change was made).
func (idx *Index) Reserve(ctx context.Context, entry HashEntry) (known bool, err error) {
	reply, err := idx.Send(ctx, MsgReserve{Entry: entry})
	if err != nil {
		return false, err
	}
	return reply.Kind == ReplyHashKnown, nil
}

// UpdateReserved updates a still-pending reservation in place.
func (idx *Index) UpdateReserved(ctx context.Context, entry HashEntry) error {
	_, err := idx.Send(ctx, MsgUpdateReserved{Entry: entry})
	return err
}

// Commit finalizes digest with blobRef and marks it ready, then drains
// every consecutive ready entry from the lowest pending id upward to the
// Durable Store. digest stays queued while any lower id is not yet ready.
func (idx *Index) Commit(ctx context.Context, digest Digest, blobRef []byte) error {
	_, err := idx.Send(ctx, MsgCommit{Digest: digest, BlobRef: blobRef})
	return err
}

// CallAfterHashIsCommitted registers cont to run once digest's row is
// durable. found is false if digest is unknown to the index.
func (idx *Index) CallAfterHashIsCommitted(ctx context.Context, digest Digest, cont func()) (found bool, err error) {
	reply, err := idx.Send(ctx, MsgCallAfterHashIsCommitted{Digest: digest, Callback: cont})
	if err != nil {
		return false, err
	}
	return reply.Kind == ReplyCallbackRegistered, nil
}

// Flush commits the trailing transaction and releases ready callbacks.
func (idx *Index) Flush(ctx context.Context) error {
	_, err := idx.Send(ctx, MsgFlush{})
	return err
}
