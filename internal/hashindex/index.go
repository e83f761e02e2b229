package hashindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// DefaultFlushInterval is the default period between automatic flushes
// (SPEC_FULL.md §6).
const DefaultFlushInterval = 10 * time.Second

// DefaultBusyTimeout bounds how long a writer waits behind another
// transaction before giving up.
const DefaultBusyTimeout = 5 * time.Second

// Config carries the construction-time settings of SPEC_FULL.md §6.
type Config struct {
	// Path is the database file path, or an ncruces/go-sqlite3 memory
	// DSN (e.g. ":memory:") for tests.
	Path string
	// FlushInterval is the duration between automatic flushes.
	// Zero selects DefaultFlushInterval.
	FlushInterval time.Duration
	// DigestWidth is the number of leading bytes of the raw hash
	// retained as a Digest. Zero selects the full hash width.
	DigestWidth int
	// BusyTimeout bounds SQLite's writer-contention retry. Zero selects
	// DefaultBusyTimeout.
	BusyTimeout time.Duration
	// Clock overrides the flush timer's clock; nil selects the real
	// wall clock.
	Clock Clock
	// Logger receives structured progress/error messages; nil selects
	// a discard logger.
	Logger Logger
	// NoFileLock disables the gofrs/flock file lock, for in-memory
	// tests where Path names no real file.
	NoFileLock bool
}

// Index is the Hash Index actor of SPEC_FULL.md §2: a single goroutine owning
// the Durable Store, Pending Queue, Id Counter, Callback Registry, and
// Flush Timer, serializing all access through requests().
type Index struct {
	cfg   Config
	store *durableStore
	queue *pendingQueue
	ids   *idCounter
	cbs   *callbackRegistry
	timer *flushTimer
	log   Logger
	lock  *flock.Flock

	requests chan request
	done     chan struct{}
	fatal    *Error
}

type request struct {
	msg   Msg
	reply chan response
}

type response struct {
	reply Reply
	err   error
}

// Open constructs a Hash Index at cfg.Path: it opens (or creates) the
// database, applies the schema, seeds the Id Counter from the current
// max id, and starts the dispatcher goroutine (SPEC_FULL.md §4.7).
func Open(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = DefaultBusyTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = newDiscardLogger()
	}

	var lock *flock.Flock
	if !cfg.NoFileLock {
		lock = flock.New(cfg.Path + ".lock")
		locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
		if err != nil || !locked {
			return nil, storageErr("acquire file lock", err)
		}
	}

	store, err := openDurableStore(ctx, cfg.Path, int(cfg.BusyTimeout.Milliseconds()))
	if err != nil {
		if lock != nil {
			lock.Unlock()
		}
		return nil, err
	}

	maxID, err := store.maxID(ctx)
	if err != nil {
		store.close()
		if lock != nil {
			lock.Unlock()
		}
		return nil, err
	}

	idx := &Index{
		cfg:      cfg,
		store:    store,
		queue:    newPendingQueue(),
		ids:      newIDCounter(maxID),
		cbs:      newCallbackRegistry(),
		timer:    newFlushTimer(cfg.Clock, cfg.FlushInterval),
		log:      log,
		lock:     lock,
		requests: make(chan request),
		done:     make(chan struct{}),
	}
	go idx.run()
	log.Info("hash index opened", "path", cfg.Path, "next_id", idx.ids.n)
	return idx, nil
}

// run is the dispatcher loop of SPEC_FULL.md §4.6 and §5: it reads one request
// at a time and handles it to completion, including any synchronous
// drain and callback invocations, before reading the next.
func (idx *Index) run() {
	defer close(idx.done)
	for req := range idx.requests {
		reply, err := idx.dispatch(req.msg)
		req.reply <- response{reply: reply, err: err}
	}
}

// dispatch routes a single message, recovering from the panics that
// assertNonEmpty and the other malformed-request checks raise for fatal
// conditions (SPEC_FULL.md §7), and treating a returned error of a fatal
// Kind the same way: once triggered, the index latches a fatal error and
// refuses all further requests rather than leaving invariants silently
// broken.
func (idx *Index) dispatch(msg Msg) (reply Reply, err error) {
	if idx.fatal != nil {
		return Reply{}, idx.fatal
	}
	defer func() {
		if r := recover(); r != nil {
			hErr, ok := r.(*Error)
			if !ok {
				hErr = newError(KindStorageError, "panic", fmt.Errorf("%v", r))
			}
			idx.fatal = hErr
			idx.log.Error("hash index entered fatal state", "error", hErr)
			reply, err = Reply{}, hErr
		}
	}()
	ctx := context.Background()
	reply, err = idx.handle(ctx, msg)
	var hErr *Error
	if errors.As(err, &hErr) && hErr.Kind.Fatal() {
		idx.fatal = hErr
		idx.log.Error("hash index entered fatal state", "error", hErr)
	}
	return reply, err
}

// NewDigest hashes data under this index's configured digest width
// (SPEC_FULL.md §6's digest_width), so callers never have to thread the
// configured width through by hand.
func (idx *Index) NewDigest(data []byte) Digest {
	return NewDigest(data, idx.cfg.DigestWidth)
}

// Send submits msg to the dispatcher and blocks for its reply. It is
// the one entry point every other Index method funnels through, and is
// safe to call concurrently with other Sends: the dispatcher goroutine
// serializes all access (SPEC_FULL.md §5). It is NOT safe to call concurrently
// with Close — callers must ensure every producer has finished before
// shutting the index down, per SPEC_FULL.md §4.7.
func (idx *Index) Send(ctx context.Context, msg Msg) (Reply, error) {
	req := request{msg: msg, reply: make(chan response, 1)}
	select {
	case idx.requests <- req:
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	case <-idx.done:
		return Reply{}, fmt.Errorf("hash index closed")
	}
	select {
	case resp := <-req.reply:
		return resp.reply, resp.err
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

// shutdownMsg is an internal-only message used by Close: it rides the
// same serialized requests channel as every producer message, so the
// final queue/callback emptiness assertion and trailing commit run
// on the dispatcher goroutine after every already-queued request has
// drained, never concurrently with one.
type shutdownMsg struct{}

func (shutdownMsg) isMsg() {}

// setFlushIntervalMsg is an internal-only message used by
// SetFlushInterval: it rides the same serialized requests channel so
// the flush timer's interval is only ever touched by the dispatcher
// goroutine.
type setFlushIntervalMsg struct{ interval time.Duration }

func (setFlushIntervalMsg) isMsg() {}

// SetFlushInterval changes the period between automatic flushes
// without disturbing any other index state (SPEC_FULL.md §2's C11 config
// hot-reload: only flush_interval may change on a running index).
// Errors are logged rather than returned, since no caller can act on a
// failure to reconfigure a background timer.
func (idx *Index) SetFlushInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	if _, err := idx.Send(context.Background(), setFlushIntervalMsg{interval: d}); err != nil {
		idx.log.Warn("failed to apply new flush interval", "error", err)
	}
}

// Close performs the shutdown sequence of SPEC_FULL.md §4.7: a final Flush,
// then an assertion that the queue and callback registry are empty
// before committing the trailing transaction. A non-empty queue
// indicates a caller left a reservation uncommitted, which is a fatal
// contract violation.
func (idx *Index) Close(ctx context.Context) error {
	if _, err := idx.Send(ctx, MsgFlush{}); err != nil {
		return err
	}
	_, err := idx.Send(ctx, shutdownMsg{})
	close(idx.requests)
	<-idx.done
	if idx.lock != nil {
		idx.lock.Unlock()
	}
	if err != nil {
		idx.log.Error("hash index failed to close cleanly", "error", err)
	} else {
		idx.log.Info("hash index closed")
	}
	return err
}

func (idx *Index) dispatchShutdown() (Reply, error) {
	if idx.queue.len() != 0 {
		return Reply{}, malformed("shutdown with %d entries still pending (committed digests missing)", idx.queue.len())
	}
	if idx.cbs.len() != 0 {
		return Reply{}, malformed("shutdown with %d callbacks still registered", idx.cbs.len())
	}
	if err := idx.store.commit(); err != nil {
		return Reply{}, err
	}
	return Reply{}, idx.store.close()
}
