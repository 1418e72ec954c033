package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/vitaliisemenov/videowall-controlplane/internal/audit"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/domain"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/storage"
)

// actor is the audit actor name stamped on every event this package emits.
const actor = "config-reconciler"

// Stats counts the rows a single reconciliation pass touched.
type Stats struct {
	Created int
	Updated int
}

// Summary is the outcome of one reconciliation pass.
type Summary struct {
	Walls         Stats
	Sources       Stats
	ConfigWalls   int
	ConfigSources int
}

// Reconciler upserts Configuration Authority declarations into the
// Management Service's walls/sources tables and audits every change.
type Reconciler struct {
	config  *ConfigClient
	walls   *storage.WallRepository
	sources *storage.SourceRepository
	audit   *audit.Store
	logger  *slog.Logger

	interval time.Duration
	enabled  bool
}

// New builds a Reconciler. interval is the poll period between hash
// checks; enabled false makes Loop a no-op, matching VW_RECONCILE_ENABLED.
func New(config *ConfigClient, walls *storage.WallRepository, sources *storage.SourceRepository, auditStore *audit.Store, logger *slog.Logger, interval time.Duration, enabled bool) *Reconciler {
	return &Reconciler{
		config:   config,
		walls:    walls,
		sources:  sources,
		audit:    auditStore,
		logger:   logger,
		interval: interval,
		enabled:  enabled,
	}
}

// ReconcileOnce runs a single pass: fetch declared walls and sources, then
// upsert each into the Management Service's tables.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (Summary, error) {
	configWalls, err := r.config.Walls(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("reconcile: fetch walls: %w", err)
	}
	configSources, err := r.config.Sources(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("reconcile: fetch sources: %w", err)
	}

	wallStats, err := r.reconcileWalls(ctx, configWalls)
	if err != nil {
		return Summary{}, err
	}
	sourceStats, err := r.reconcileSources(ctx, configSources)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Walls:         wallStats,
		Sources:       sourceStats,
		ConfigWalls:   len(configWalls),
		ConfigSources: len(configSources),
	}
	total := wallStats.Created + wallStats.Updated + sourceStats.Created + sourceStats.Updated
	if total > 0 {
		r.logger.Info("reconciliation applied changes", "total", total, "walls_created", wallStats.Created,
			"walls_updated", wallStats.Updated, "sources_created", sourceStats.Created, "sources_updated", sourceStats.Updated)
	} else {
		r.logger.Debug("reconciliation: no changes")
	}
	return summary, nil
}

func (r *Reconciler) reconcileWalls(ctx context.Context, declared []ConfigWall) (Stats, error) {
	var stats Stats
	for _, cw := range declared {
		proposed := wallFromConfig(cw)
		marker := domain.MarkerFor(cw.ID)

		existing, err := r.walls.GetByMarker(ctx, marker)
		if errors.Is(err, storage.ErrNotFound) {
			created, err := r.walls.Create(ctx, proposed)
			if err != nil {
				return stats, fmt.Errorf("reconcile: create wall %s: %w", cw.ID, err)
			}
			stats.Created++
			if err := r.auditCreate(ctx, "config.reconcile.wall.create", "wall", created.ID, cw.ID, proposed); err != nil {
				return stats, err
			}
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("reconcile: lookup wall %s: %w", cw.ID, err)
		}

		if wallUnchanged(existing, proposed) {
			continue
		}
		proposed.ID = existing.ID
		updated, err := r.walls.Update(ctx, proposed)
		if err != nil {
			return stats, fmt.Errorf("reconcile: update wall %s: %w", cw.ID, err)
		}
		stats.Updated++
		if err := r.auditUpdate(ctx, "config.reconcile.wall.update", "wall", updated.ID, cw.ID, existing, updated); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (r *Reconciler) reconcileSources(ctx context.Context, declared []ConfigSource) (Stats, error) {
	var stats Stats
	for _, cs := range declared {
		proposed := sourceFromConfig(cs)
		marker := domain.MarkerFor(cs.ID)

		existing, err := r.sources.GetByMarker(ctx, marker)
		if errors.Is(err, storage.ErrNotFound) {
			created, err := r.sources.Create(ctx, proposed)
			if err != nil {
				return stats, fmt.Errorf("reconcile: create source %s: %w", cs.ID, err)
			}
			stats.Created++
			if err := r.auditCreate(ctx, "config.reconcile.source.create", "source", created.ID, cs.ID, proposed); err != nil {
				return stats, err
			}
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("reconcile: lookup source %s: %w", cs.ID, err)
		}

		if sourceUnchanged(existing, proposed) {
			continue
		}
		proposed.ID = existing.ID
		proposed.Health = existing.Health
		updated, err := r.sources.Update(ctx, proposed)
		if err != nil {
			return stats, fmt.Errorf("reconcile: update source %s: %w", cs.ID, err)
		}
		stats.Updated++
		if err := r.auditUpdate(ctx, "config.reconcile.source.update", "source", updated.ID, cs.ID, existing, updated); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// wallUnchanged compares the fields the reconciler owns, matching
// reconcile.py's existing/proposed dict equality check.
func wallUnchanged(existing, proposed domain.Wall) bool {
	return existing.Name == proposed.Name &&
		existing.Kind == proposed.Kind &&
		existing.TileCount == proposed.TileCount &&
		existing.Resolution == proposed.Resolution &&
		reflect.DeepEqual(sortedUnique(existing.Tags), proposed.Tags)
}

func sourceUnchanged(existing, proposed domain.Source) bool {
	return existing.Name == proposed.Name &&
		existing.Kind == proposed.Kind &&
		existing.Protocol == proposed.Protocol &&
		existing.EndpointURL == proposed.EndpointURL &&
		existing.Codec == proposed.Codec &&
		reflect.DeepEqual(sortedUnique(existing.Tags), proposed.Tags)
}

func (r *Reconciler) auditCreate(ctx context.Context, action, objectType string, id int64, configID string, fields any) error {
	details := map[string]any{"config_id": configID}
	mergeFields(details, fields)
	_, err := r.audit.Append(ctx, audit.Draft{
		Action: action, Actor: actor, ObjectType: objectType,
		ObjectID: fmt.Sprintf("%d", id), Details: details,
	})
	if err != nil {
		return fmt.Errorf("reconcile: audit %s: %w", action, err)
	}
	return nil
}

func (r *Reconciler) auditUpdate(ctx context.Context, action, objectType string, id int64, configID string, before, after any) error {
	_, err := r.audit.Append(ctx, audit.Draft{
		Action: action, Actor: actor, ObjectType: objectType,
		ObjectID: fmt.Sprintf("%d", id),
		Details: map[string]any{
			"config_id": configID,
			"before":    before,
			"after":     after,
		},
	})
	if err != nil {
		return fmt.Errorf("reconcile: audit %s: %w", action, err)
	}
	return nil
}

func mergeFields(details map[string]any, fields any) {
	switch v := fields.(type) {
	case domain.Wall:
		details["name"] = v.Name
		details["wall_type"] = v.Kind
		details["tile_count"] = v.TileCount
		details["resolution"] = v.Resolution
		details["tags"] = v.Tags
	case domain.Source:
		details["name"] = v.Name
		details["source_type"] = v.Kind
		details["protocol"] = v.Protocol
		details["endpoint_url"] = v.EndpointURL
		details["codec"] = v.Codec
		details["tags"] = v.Tags
	}
}

// Loop polls the Configuration Authority's config hash every interval and
// reconciles whenever it changes. Unreachable or unchanged is treated as
// "skip this pass, retry next interval" — never as an error worth surfacing.
func (r *Reconciler) Loop(ctx context.Context) {
	if !r.enabled {
		r.logger.Info("config reconciliation disabled")
		return
	}
	r.logger.Info("config reconciliation started", "interval", r.interval)

	select {
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
		return
	}

	var lastHash string
	if hash, err := r.config.Version(ctx); err == nil && hash != "" {
		if _, err := r.ReconcileOnce(ctx); err != nil {
			r.logger.Warn("initial reconciliation failed, will retry", "error", err)
		} else {
			lastHash = hash
		}
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hash, err := r.config.Version(ctx)
			if err != nil || hash == "" {
				continue
			}
			if hash == lastHash {
				continue
			}
			r.logger.Info("config hash changed, reconciling", "old_hash", lastHash, "new_hash", hash)
			if _, err := r.ReconcileOnce(ctx); err != nil {
				r.logger.Warn("reconciliation loop error", "error", err)
				continue
			}
			lastHash = hash
		}
	}
}
