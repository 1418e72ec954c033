package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vitaliisemenov/videowall-controlplane/internal/database/postgres"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/domain"
)

// LayoutRepository is the Postgres-backed store for Layout entities. It
// owns the version-assignment and active-flag-swap transactions that keep
// spec §3's layout invariants (gap-free versions, single active layout)
// intact under concurrent writers.
type LayoutRepository struct {
	pool *postgres.PostgresPool
}

// NewLayoutRepository builds a LayoutRepository over pool.
func NewLayoutRepository(pool *postgres.PostgresPool) *LayoutRepository {
	return &LayoutRepository{pool: pool}
}

const layoutColumns = "id, wall_id, name, version, grid, preset, is_active, created_by, created_at"

func scanLayout(row pgx.Row) (domain.Layout, error) {
	var l domain.Layout
	var gridJSON []byte
	err := row.Scan(&l.ID, &l.WallID, &l.Name, &l.Version, &gridJSON, &l.Preset, &l.Active, &l.CreatedBy, &l.CreatedAt)
	if err != nil {
		return domain.Layout{}, err
	}
	if len(gridJSON) > 0 {
		if err := json.Unmarshal(gridJSON, &l.Grid); err != nil {
			return domain.Layout{}, fmt.Errorf("storage: unmarshal layout grid: %w", err)
		}
	}
	return l, nil
}

// ListByWall returns every layout for wallID, newest version first.
func (r *LayoutRepository) ListByWall(ctx context.Context, wallID int64) ([]domain.Layout, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+layoutColumns+" FROM layouts WHERE wall_id=$1 ORDER BY version DESC", wallID)
	if err != nil {
		return nil, fmt.Errorf("storage: list layouts: %w", err)
	}
	defer rows.Close()

	var out []domain.Layout
	for rows.Next() {
		l, err := scanLayout(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan layout: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Active returns every currently-active layout across all walls, for
// bundle export snapshots.
func (r *LayoutRepository) Active(ctx context.Context) ([]domain.Layout, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+layoutColumns+" FROM layouts WHERE is_active ORDER BY wall_id")
	if err != nil {
		return nil, fmt.Errorf("storage: list active layouts: %w", err)
	}
	defer rows.Close()

	var out []domain.Layout
	for rows.Next() {
		l, err := scanLayout(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan layout: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Get fetches one layout by id.
func (r *LayoutRepository) Get(ctx context.Context, id int64) (domain.Layout, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+layoutColumns+" FROM layouts WHERE id=$1", id)
	l, err := scanLayout(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Layout{}, ErrNotFound
	}
	if err != nil {
		return domain.Layout{}, fmt.Errorf("storage: get layout: %w", err)
	}
	return l, nil
}

// Create inserts a new layout for wallID, assigning version = max(existing)+1
// under a row lock on the wall so concurrent creations serialize rather than
// racing on the version number.
func (r *LayoutRepository) Create(ctx context.Context, l domain.Layout) (domain.Layout, error) {
	gridJSON, err := json.Marshal(l.Grid)
	if err != nil {
		return domain.Layout{}, fmt.Errorf("storage: marshal layout grid: %w", err)
	}

	tx, err := r.pool.Pool().BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Layout{}, fmt.Errorf("storage: begin create layout tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var lockedWallID int64
	if err := tx.QueryRow(ctx, "SELECT id FROM walls WHERE id=$1 FOR UPDATE", l.WallID).Scan(&lockedWallID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Layout{}, ErrNotFound
		}
		return domain.Layout{}, fmt.Errorf("storage: lock wall for layout create: %w", err)
	}

	var nextVersion int
	if err := tx.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) + 1 FROM layouts WHERE wall_id=$1", l.WallID).Scan(&nextVersion); err != nil {
		return domain.Layout{}, fmt.Errorf("storage: compute next layout version: %w", err)
	}

	// Deactivate siblings before the insert: the one-active-per-wall unique
	// index is checked per statement, so an active insert must come second.
	if l.Active {
		if err := deactivateOthers(ctx, tx, l.WallID, 0); err != nil {
			return domain.Layout{}, err
		}
	}

	row := tx.QueryRow(ctx,
		`INSERT INTO layouts (wall_id, name, version, grid, preset, is_active, created_by)
		 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING `+layoutColumns,
		l.WallID, l.Name, nextVersion, gridJSON, l.Preset, l.Active, l.CreatedBy,
	)
	created, err := scanLayout(row)
	if err != nil {
		return domain.Layout{}, fmt.Errorf("storage: insert layout: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Layout{}, fmt.Errorf("storage: commit create layout tx: %w", err)
	}
	return created, nil
}

// Activate marks layoutID active and deactivates any other active layout
// for the same wall, in one transaction — spec §3's "at most one active
// layout per wall" invariant, enforced as an atomic swap rather than a
// read-then-write race.
func (r *LayoutRepository) Activate(ctx context.Context, layoutID int64) (domain.Layout, error) {
	tx, err := r.pool.Pool().BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Layout{}, fmt.Errorf("storage: begin activate tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var wallID int64
	if err := tx.QueryRow(ctx, "SELECT wall_id FROM layouts WHERE id=$1 FOR UPDATE", layoutID).Scan(&wallID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Layout{}, ErrNotFound
		}
		return domain.Layout{}, fmt.Errorf("storage: lock layout for activate: %w", err)
	}

	if err := deactivateOthers(ctx, tx, wallID, layoutID); err != nil {
		return domain.Layout{}, err
	}

	row := tx.QueryRow(ctx, `UPDATE layouts SET is_active=TRUE WHERE id=$1 RETURNING `+layoutColumns, layoutID)
	updated, err := scanLayout(row)
	if err != nil {
		return domain.Layout{}, fmt.Errorf("storage: activate layout: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Layout{}, fmt.Errorf("storage: commit activate tx: %w", err)
	}
	return updated, nil
}

// Update rewrites a layout's name, grid and preset. wall_id, version and
// is_active are left unchanged; activation goes through Activate.
func (r *LayoutRepository) Update(ctx context.Context, l domain.Layout) (domain.Layout, error) {
	gridJSON, err := json.Marshal(l.Grid)
	if err != nil {
		return domain.Layout{}, fmt.Errorf("storage: marshal layout grid: %w", err)
	}
	row := r.pool.QueryRow(ctx, "UPDATE layouts SET name=$2, grid=$3, preset=$4 WHERE id=$1 RETURNING "+layoutColumns, l.ID, l.Name, gridJSON, l.Preset)
	updated, err := scanLayout(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Layout{}, ErrNotFound
	}
	if err != nil {
		return domain.Layout{}, fmt.Errorf("storage: update layout: %w", err)
	}
	return updated, nil
}

func deactivateOthers(ctx context.Context, tx pgx.Tx, wallID, exceptID int64) error {
	if _, err := tx.Exec(ctx, "UPDATE layouts SET is_active=FALSE WHERE wall_id=$1 AND id<>$2 AND is_active", wallID, exceptID); err != nil {
		return fmt.Errorf("storage: deactivate other layouts: %w", err)
	}
	return nil
}

// Delete removes a layout by id; deletion never renumbers the remaining
// versions (gap-free-starting-at-1 is a property of creation order, not
// maintained retroactively).
func (r *LayoutRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM layouts WHERE id=$1", id)
	if err != nil {
		return fmt.Errorf("storage: delete layout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
