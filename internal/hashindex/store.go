package hashindex

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// schema is the bit-exact DDL required by SPEC_FULL.md's Durable Store
// section. Re-running it on an existing database is a no-op, using the
// same idempotent CREATE-IF-NOT-EXISTS migration style throughout.
const schema = `
CREATE TABLE IF NOT EXISTS hash_index (
  id       INTEGER PRIMARY KEY,
  hash     BLOB,
  height   INTEGER,
  payload  BLOB,
  blob_ref BLOB);
CREATE UNIQUE INDEX IF NOT EXISTS HashIndex_UniqueHash ON hash_index(hash);
`

// durableStore is the Durable Store of SPEC_FULL.md's component design:
// one table keyed by digest with an auto-increment id, always held
// inside an open write transaction until commitAndBegin ends it.
type durableStore struct {
	db *sql.DB
	tx *sql.Tx
}

// connString builds a SQLite DSN as a file: URI carrying pragmas as
// query parameters, so a writer blocked behind another transaction
// retries instead of failing immediately.
func connString(path string, busyTimeoutMS int) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(OFF)", path, busyTimeoutMS)
}

// openDurableStore opens (creating if necessary) the database at path,
// applies the schema, and leaves a fresh write transaction open.
func openDurableStore(ctx context.Context, path string, busyTimeoutMS int) (*durableStore, error) {
	db, err := sql.Open("sqlite3", connString(path, busyTimeoutMS))
	if err != nil {
		return nil, storageErr("open database", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storageErr("ping database", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, storageErr("create schema", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.Close()
		return nil, storageErr("begin transaction", err)
	}
	return &durableStore{db: db, tx: tx}, nil
}

// locate reads the row for hash, folding an empty payload back to
// "absent" per SPEC_FULL.md §3.
func (s *durableStore) locate(ctx context.Context, hash Digest) (*QueueEntry, error) {
	row := s.tx.QueryRowContext(ctx,
		`SELECT id, height, payload, blob_ref FROM hash_index WHERE hash = ?`, []byte(hash))

	var (
		id            int64
		level         int64
		payload       []byte
		persistentRef []byte
	)
	if err := row.Scan(&id, &level, &payload, &persistentRef); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, storageErr("locate", err)
	}
	entry := &QueueEntry{
		ID:            id,
		Level:         level,
		PersistentRef: persistentRef,
		Ready:         true,
	}
	if len(payload) > 0 {
		entry.Payload = payload
	}
	return entry, nil
}

// insert writes exactly one row. It fails if hash already has a row,
// which would violate invariant 1 of SPEC_FULL.md §3.
func (s *durableStore) insert(ctx context.Context, id int64, hash Digest, level int64, payload, blobRef []byte) error {
	_, err := s.tx.ExecContext(ctx,
		`INSERT INTO hash_index (id, hash, height, payload, blob_ref) VALUES (?, ?, ?, ?, ?)`,
		id, []byte(hash), level, payload, blobRef)
	if err != nil {
		return storageErr(fmt.Sprintf("insert id=%d", id), err)
	}
	return nil
}

// maxID returns the largest id currently durable, or 0 if the table is
// empty.
func (s *durableStore) maxID(ctx context.Context) (int64, error) {
	var maxID sql.NullInt64
	if err := s.tx.QueryRowContext(ctx, `SELECT MAX(id) FROM hash_index`).Scan(&maxID); err != nil {
		return 0, storageErr("max id", err)
	}
	if !maxID.Valid {
		return 0, nil
	}
	return maxID.Int64, nil
}

// commitAndBegin ends the current write transaction durably and opens
// a new one, the boundary callbacks wait on (SPEC_FULL.md §4.1, §4.4).
func (s *durableStore) commitAndBegin(ctx context.Context) error {
	if err := s.tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin transaction", err)
	}
	s.tx = tx
	return nil
}

// commit ends the trailing transaction without opening a new one, for
// shutdown.
func (s *durableStore) commit() error {
	if err := s.tx.Commit(); err != nil {
		return storageErr("final commit", err)
	}
	return nil
}

func (s *durableStore) close() error {
	return s.db.Close()
}
