package hashindex

// callbackRegistry holds per-digest lists of deferred continuations,
// released only after the next durable commit that follows the
// digest's drain (SPEC_FULL.md §4.4).
//
// Grounded on original_source/src/hat/hash_index.rs's CallbackContainer:
// callback.add/allow_flush_of/flush there map directly to add/allowFlush
// /flushAll below; Go's closures stand in for the original's
// Thunk<'static>.
type callbackRegistry struct {
	entries map[string]*callbackEntry
}

type callbackEntry struct {
	digest    Digest
	conts     []func()
	flushable bool
}

func newCallbackRegistry() *callbackRegistry {
	return &callbackRegistry{entries: make(map[string]*callbackEntry)}
}

// add appends cont to digest's list, creating a non-flushable entry if
// none exists yet.
func (r *callbackRegistry) add(digest Digest, cont func()) {
	key := string(digest)
	e, ok := r.entries[key]
	if !ok {
		e = &callbackEntry{digest: digest}
		r.entries[key] = e
	}
	e.conts = append(e.conts, cont)
}

// allowFlush marks digest eligible for its continuations to fire on the
// next flushAll. Called once the digest's row has been written to the
// Durable Store.
func (r *callbackRegistry) allowFlush(digest Digest) {
	key := string(digest)
	e, ok := r.entries[key]
	if !ok {
		e = &callbackEntry{digest: digest}
		r.entries[key] = e
	}
	e.flushable = true
}

// flushAll invokes, in registration order, the continuations of every
// digest marked flushable, then forgets those digests. Non-flushable
// digests are left untouched.
func (r *callbackRegistry) flushAll() {
	for key, e := range r.entries {
		if !e.flushable {
			continue
		}
		for _, cont := range e.conts {
			cont()
		}
		delete(r.entries, key)
	}
}

func (r *callbackRegistry) len() int {
	return len(r.entries)
}
