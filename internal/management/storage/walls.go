package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vitaliisemenov/videowall-controlplane/internal/database/postgres"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/domain"
)

// WallRepository is the Postgres-backed store for Wall entities.
type WallRepository struct {
	pool *postgres.PostgresPool
}

// NewWallRepository builds a WallRepository over pool.
func NewWallRepository(pool *postgres.PostgresPool) *WallRepository {
	return &WallRepository{pool: pool}
}

const wallColumns = "id, name, wall_type, tile_count, resolution, tags, created_at, updated_at"

func scanWall(row pgx.Row) (domain.Wall, error) {
	var w domain.Wall
	err := row.Scan(&w.ID, &w.Name, &w.Kind, &w.TileCount, &w.Resolution, &w.Tags, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

// List returns every wall, oldest first.
func (r *WallRepository) List(ctx context.Context) ([]domain.Wall, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+wallColumns+" FROM walls ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("storage: list walls: %w", err)
	}
	defer rows.Close()

	var out []domain.Wall
	for rows.Next() {
		w, err := scanWall(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan wall: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Get fetches one wall by id.
func (r *WallRepository) Get(ctx context.Context, id int64) (domain.Wall, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+wallColumns+" FROM walls WHERE id=$1", id)
	w, err := scanWall(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Wall{}, ErrNotFound
	}
	if err != nil {
		return domain.Wall{}, fmt.Errorf("storage: get wall: %w", err)
	}
	return w, nil
}

// GetByMarker fetches the wall carrying marker in its tags, used by the
// reconciler to find the row already linked to a declarative config id.
func (r *WallRepository) GetByMarker(ctx context.Context, marker string) (domain.Wall, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+wallColumns+" FROM walls WHERE $1 = ANY(tags)", marker)
	w, err := scanWall(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Wall{}, ErrNotFound
	}
	if err != nil {
		return domain.Wall{}, fmt.Errorf("storage: get wall by marker: %w", err)
	}
	return w, nil
}

// Create inserts a new wall and returns it with its assigned id and timestamps.
func (r *WallRepository) Create(ctx context.Context, w domain.Wall) (domain.Wall, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO walls (name, wall_type, tile_count, resolution, tags)
		 VALUES ($1,$2,$3,$4,$5) RETURNING `+wallColumns,
		w.Name, w.Kind, w.TileCount, w.Resolution, w.Tags,
	)
	created, err := scanWall(row)
	if err != nil {
		return domain.Wall{}, fmt.Errorf("storage: create wall: %w", err)
	}
	return created, nil
}

// Update overwrites the mutable fields of the wall identified by w.ID.
func (r *WallRepository) Update(ctx context.Context, w domain.Wall) (domain.Wall, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE walls SET name=$2, wall_type=$3, tile_count=$4, resolution=$5, tags=$6, updated_at=NOW()
		 WHERE id=$1 RETURNING `+wallColumns,
		w.ID, w.Name, w.Kind, w.TileCount, w.Resolution, w.Tags,
	)
	updated, err := scanWall(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Wall{}, ErrNotFound
	}
	if err != nil {
		return domain.Wall{}, fmt.Errorf("storage: update wall: %w", err)
	}
	return updated, nil
}

// Delete removes a wall by id (admin-only at the handler layer); layouts
// cascade per the migration's foreign key.
func (r *WallRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM walls WHERE id=$1", id)
	if err != nil {
		return fmt.Errorf("storage: delete wall: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
