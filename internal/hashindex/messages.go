package hashindex

// Msg is the discriminated message ABI of SPEC_FULL.md §4.6 and §6: the Hash
// Index accepts exactly these eight message kinds, one at a time.
type Msg interface{ isMsg() }

// MsgHashExists checks whether Digest is known anywhere in the index.
// Reply: ReplyHashKnown or ReplyHashNotKnown.
type MsgHashExists struct{ Digest Digest }

// MsgFetchPayload locates the local payload for Digest.
// Reply: ReplyPayload or ReplyHashNotKnown.
type MsgFetchPayload struct{ Digest Digest }

// MsgFetchPersistentRef locates the external blob reference for Digest.
// Reply: ReplyPersistentRef, ReplyRetry, or ReplyHashNotKnown.
type MsgFetchPersistentRef struct{ Digest Digest }

// MsgReserve registers Entry.Digest as reserved, ensuring at most one
// upload attempt per digest.
// Reply: ReplyHashKnown or ReplyReserveOK.
type MsgReserve struct{ Entry HashEntry }

// MsgUpdateReserved updates a still-pending reservation's level,
// payload, or persistent ref in place.
// Reply: ReplyReserveOK.
type MsgUpdateReserved struct{ Entry HashEntry }

// MsgCommit finalizes Digest with BlobRef, triggering an in-order drain
// to the Durable Store.
// Reply: ReplyCommitOK.
type MsgCommit struct {
	Digest  Digest
	BlobRef []byte
}

// MsgCallAfterHashIsCommitted registers Callback to run once Digest's
// row has been written and the database has durably committed.
// Reply: ReplyCallbackRegistered or ReplyHashNotKnown.
type MsgCallAfterHashIsCommitted struct {
	Digest   Digest
	Callback func()
}

// MsgFlush commits the trailing transaction and releases ready
// callbacks.
// Reply: ReplyCommitOK.
type MsgFlush struct{}

func (MsgHashExists) isMsg()               {}
func (MsgFetchPayload) isMsg()             {}
func (MsgFetchPersistentRef) isMsg()       {}
func (MsgReserve) isMsg()                  {}
func (MsgUpdateReserved) isMsg()           {}
func (MsgCommit) isMsg()                   {}
func (MsgCallAfterHashIsCommitted) isMsg() {}
func (MsgFlush) isMsg()                    {}

// ReplyKind discriminates the Reply ABI of SPEC_FULL.md §4.6 and §6.
type ReplyKind int

const (
	ReplyHashKnown ReplyKind = iota
	ReplyHashNotKnown
	// ReplyEntry is declared but never produced by any operation in
	// this spec; kept for ABI parity with the original Rust Reply
	// enum's unused Entry(HashEntry) variant (SPEC_FULL.md §6: "nine reply
	// kinds").
	ReplyEntry
	ReplyPayload
	ReplyPersistentRef
	ReplyReserveOK
	ReplyCommitOK
	ReplyCallbackRegistered
	ReplyRetry
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyHashKnown:
		return "HashKnown"
	case ReplyHashNotKnown:
		return "HashNotKnown"
	case ReplyEntry:
		return "Entry"
	case ReplyPayload:
		return "Payload"
	case ReplyPersistentRef:
		return "PersistentRef"
	case ReplyReserveOK:
		return "ReserveOK"
	case ReplyCommitOK:
		return "CommitOK"
	case ReplyCallbackRegistered:
		return "CallbackRegistered"
	case ReplyRetry:
		return "Retry"
	default:
		return "Unknown"
	}
}

// Reply is the single return value of every dispatched Msg. Only the
// fields relevant to Kind are meaningful.
type Reply struct {
	Kind ReplyKind

	// PayloadPresent distinguishes a present-but-empty payload from an
	// absent one, for ReplyPayload.
	PayloadPresent bool
	Payload        []byte

	PersistentRef []byte
}
