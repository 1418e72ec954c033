package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vitaliisemenov/videowall-controlplane/internal/database/postgres"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/domain"
)

// SourceRepository is the Postgres-backed store for Source entities.
type SourceRepository struct {
	pool *postgres.PostgresPool
}

// NewSourceRepository builds a SourceRepository over pool.
func NewSourceRepository(pool *postgres.PostgresPool) *SourceRepository {
	return &SourceRepository{pool: pool}
}

const sourceColumns = "id, name, source_type, protocol, endpoint_url, codec, tags, health_status, created_at, updated_at"

func scanSource(row pgx.Row) (domain.Source, error) {
	var s domain.Source
	err := row.Scan(&s.ID, &s.Name, &s.Kind, &s.Protocol, &s.EndpointURL, &s.Codec, &s.Tags, &s.Health, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// List returns every source, oldest first.
func (r *SourceRepository) List(ctx context.Context) ([]domain.Source, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+sourceColumns+" FROM sources ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("storage: list sources: %w", err)
	}
	defer rows.Close()

	var out []domain.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan source: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get fetches one source by id.
func (r *SourceRepository) Get(ctx context.Context, id int64) (domain.Source, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+sourceColumns+" FROM sources WHERE id=$1", id)
	s, err := scanSource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Source{}, ErrNotFound
	}
	if err != nil {
		return domain.Source{}, fmt.Errorf("storage: get source: %w", err)
	}
	return s, nil
}

// GetByMarker fetches the source carrying marker in its tags.
func (r *SourceRepository) GetByMarker(ctx context.Context, marker string) (domain.Source, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+sourceColumns+" FROM sources WHERE $1 = ANY(tags)", marker)
	s, err := scanSource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Source{}, ErrNotFound
	}
	if err != nil {
		return domain.Source{}, fmt.Errorf("storage: get source by marker: %w", err)
	}
	return s, nil
}

// Create inserts a new source.
func (r *SourceRepository) Create(ctx context.Context, s domain.Source) (domain.Source, error) {
	if s.Health == "" {
		s.Health = domain.HealthUnknown
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO sources (name, source_type, protocol, endpoint_url, codec, tags, health_status)
		 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING `+sourceColumns,
		s.Name, s.Kind, s.Protocol, s.EndpointURL, s.Codec, s.Tags, s.Health,
	)
	created, err := scanSource(row)
	if err != nil {
		return domain.Source{}, fmt.Errorf("storage: create source: %w", err)
	}
	return created, nil
}

// Update overwrites the mutable fields of the source identified by s.ID.
func (r *SourceRepository) Update(ctx context.Context, s domain.Source) (domain.Source, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE sources SET name=$2, source_type=$3, protocol=$4, endpoint_url=$5, codec=$6, tags=$7, updated_at=NOW()
		 WHERE id=$1 RETURNING `+sourceColumns,
		s.ID, s.Name, s.Kind, s.Protocol, s.EndpointURL, s.Codec, s.Tags,
	)
	updated, err := scanSource(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Source{}, ErrNotFound
	}
	if err != nil {
		return domain.Source{}, fmt.Errorf("storage: update source: %w", err)
	}
	return updated, nil
}

// Delete removes a source by id.
func (r *SourceRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM sources WHERE id=$1", id)
	if err != nil {
		return fmt.Errorf("storage: delete source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
