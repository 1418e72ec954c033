package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vitaliisemenov/videowall-controlplane/internal/database/postgres"
)

// ErrChainEmpty is returned by callers that need at least one event and
// find none (e.g. Verify on a never-written chain).
var ErrChainEmpty = errors.New("audit: chain has no events")

// Schema creates the audit_store table, matching the column set and
// indexes the Python prototype created on startup. The migrations also
// create this table; every statement here is IF NOT EXISTS, so
// EnsureSchema (which cmd/management runs on every start) is a no-op on a
// migrated database and stands up the table on one without migrations.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_store (
  id          BIGSERIAL PRIMARY KEY,
  ts          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  chain_id    TEXT NOT NULL,
  action      TEXT NOT NULL,
  actor       TEXT NOT NULL,
  object_type TEXT NOT NULL,
  object_id   TEXT NOT NULL,
  details     JSONB NOT NULL,
  prev_hash   TEXT NOT NULL,
  hash        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_store_ts ON audit_store(ts);
CREATE INDEX IF NOT EXISTS idx_audit_store_action ON audit_store(action);
CREATE INDEX IF NOT EXISTS idx_audit_store_actor ON audit_store(actor);
`

// Store appends to and queries a single named hash chain. Appends run
// inside a transaction so the "read last hash, compute next hash, insert"
// sequence is atomic under concurrent writers — Postgres's default READ
// COMMITTED isolation plus a row lock on the latest entry would also work,
// but SERIALIZABLE here costs nothing at this write volume and removes any
// doubt about interleaved chains.
type Store struct {
	pool    *postgres.PostgresPool
	chainID string
}

// NewStore builds a Store bound to chainID (the platform runs one chain by
// default, "vw-audit", matching the prototype's default).
func NewStore(pool *postgres.PostgresPool, chainID string) *Store {
	if chainID == "" {
		chainID = "vw-audit"
	}
	return &Store{pool: pool, chainID: chainID}
}

// EnsureSchema creates the audit table if it doesn't already exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

// Append computes the next hash link and inserts the event inside a
// SERIALIZABLE transaction that reads the latest row with SELECT ... FOR
// UPDATE. On an empty chain there is no row to lock; concurrent first
// appends are left to SERIALIZABLE isolation, which fails all but one of
// them with a serialization error.
func (s *Store) Append(ctx context.Context, d Draft) (*Event, error) {
	if d.Details == nil {
		d.Details = map[string]any{}
	}

	tx, err := s.pool.Pool().BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("audit: begin append tx: %w", err)
	}
	defer tx.Rollback(ctx)

	prevHash := GenesisHash
	var row pgx.Row = tx.QueryRow(ctx,
		`SELECT hash FROM audit_store WHERE chain_id=$1 ORDER BY id DESC LIMIT 1 FOR UPDATE`,
		s.chainID)
	if err := row.Scan(&prevHash); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("audit: read chain tail: %w", err)
	}

	// TIMESTAMPTZ only stores microsecond precision, so the hash must be
	// computed from a timestamp already truncated to that precision —
	// otherwise re-reading the row loses sub-microsecond digits and
	// RFC3339Nano's trailing-zero trimming makes the re-hashed string
	// differ from what was hashed at append time, a spurious mismatch.
	ts := time.Now().UTC().Truncate(time.Microsecond)
	hash, err := computeHash(prevHash, ts, s.chainID, d)
	if err != nil {
		return nil, fmt.Errorf("audit: compute hash: %w", err)
	}

	detailsJSON, err := json.Marshal(d.Details)
	if err != nil {
		return nil, fmt.Errorf("audit: marshal details: %w", err)
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO audit_store (ts, chain_id, action, actor, object_type, object_id, details, prev_hash, hash)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		ts, s.chainID, d.Action, d.Actor, d.ObjectType, d.ObjectID, detailsJSON, prevHash, hash,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("audit: insert event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("audit: commit append tx: %w", err)
	}

	return &Event{
		ID: id, Timestamp: ts, ChainID: s.chainID,
		Action: d.Action, Actor: d.Actor, ObjectType: d.ObjectType, ObjectID: d.ObjectID,
		Details: d.Details, PrevHash: prevHash, Hash: hash,
	}, nil
}

// Export returns every event between since and until (zero means
// unbounded), oldest first, for bulk compliance export — uncapped unlike
// Query's 1000-row API pagination limit, since an export legitimately
// wants the whole range.
func (s *Store) Export(ctx context.Context, since, until time.Time) ([]Event, error) {
	clauses := []string{"chain_id=$1"}
	args := []any{s.chainID}
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !since.IsZero() {
		add("ts>=$%d", since)
	}
	if !until.IsZero() {
		add("ts<=$%d", until)
	}
	where := clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}

	q := fmt.Sprintf(`SELECT id, ts, chain_id, action, actor, object_type, object_id, details, prev_hash, hash
		FROM audit_store WHERE %s ORDER BY id ASC`, where)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: export events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("audit: scan exported event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// QueryParams filters Query; zero values mean "unfiltered".
type QueryParams struct {
	Action string
	Actor  string
	Since  time.Time
	Until  time.Time
	Limit  int
}

// Query returns events newest-first matching p.
func (s *Store) Query(ctx context.Context, p QueryParams) ([]Event, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}

	clauses := []string{"chain_id=$1"}
	args := []any{s.chainID}
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if p.Action != "" {
		add("action=$%d", p.Action)
	}
	if p.Actor != "" {
		add("actor=$%d", p.Actor)
	}
	if !p.Since.IsZero() {
		add("ts>=$%d", p.Since)
	}
	if !p.Until.IsZero() {
		add("ts<=$%d", p.Until)
	}

	where := clauses[0]
	for _, c := range clauses[1:] {
		where += " AND " + c
	}

	q := fmt.Sprintf(`SELECT id, ts, chain_id, action, actor, object_type, object_id, details, prev_hash, hash
		FROM audit_store WHERE %s ORDER BY id DESC LIMIT %d`, where, limit)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// scanEvent reads one row shaped like audit_store's full column list.
// Shared by Query, Export, and verify.go's latestDescending.
func scanEvent(row pgx.Row) (Event, error) {
	var e Event
	var detailsJSON []byte
	if err := row.Scan(&e.ID, &e.Timestamp, &e.ChainID, &e.Action, &e.Actor, &e.ObjectType, &e.ObjectID, &detailsJSON, &e.PrevHash, &e.Hash); err != nil {
		return Event{}, err
	}
	if err := json.Unmarshal(detailsJSON, &e.Details); err != nil {
		return Event{}, fmt.Errorf("unmarshal details: %w", err)
	}
	return e, nil
}
