package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vendorsync/internal/config"
	"vendorsync/internal/db"
	"vendorsync/internal/feed"
)

// maxDetailLines caps the per-item error log carried on the run record.
const maxDetailLines = 200

// Runner drives one import configuration end to end: fetch, per-item
// upsert in batched transactions, statistics reconciliation, run record.
type Runner struct {
	log zerolog.Logger
	h   *db.Handle
	cfg *config.ImportConfig
}

func NewRunner(log zerolog.Logger, h *db.Handle, cfg *config.ImportConfig) *Runner {
	return &Runner{
		log: log.With().Str("import", cfg.Name).Str("vendor", cfg.Vendor).Logger(),
		h:   h,
		cfg: cfg,
	}
}

// Run executes the import. A returned error is a run-level failure (bad
// configuration, fetch abort); per-item failures are counted on the run
// record and never abort the pass.
func (r *Runner) Run(ctx context.Context) (*db.ImportRun, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	items, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}
	r.log.Info().Int("items", len(items)).Msg("feed fetched")

	mapBy := r.cfg.MapBy
	field := NaturalKeyField(mapBy)
	keys := ItemKeys(items, mapBy)
	pre, err := Snapshot(r.h.DB, field, keys)
	if err != nil {
		return nil, err
	}

	engine := NewEngine(r.log, r.cfg)
	failed, noExtra, details := r.applyAll(ctx, engine, items)

	post, err := Snapshot(r.h.DB, field, keys)
	if err != nil {
		return nil, err
	}
	created, updated := ReconcileCounts(keys, pre, post, len(items), failed)

	run := &db.ImportRun{
		RunID:         uuid.NewString(),
		ConfigName:    r.cfg.Name,
		RunDate:       time.Now().UTC(),
		Total:         len(items),
		Created:       created,
		Updated:       updated,
		Failed:        failed,
		NoExtraImages: noExtra,
		Details:       strings.Join(details, "\n"),
	}
	if err := r.h.DB.Create(run).Error; err != nil {
		return nil, fmt.Errorf("save run record: %w", err)
	}

	ev := r.log.Info()
	if failed > 0 {
		ev = r.log.Warn()
	}
	ev.Str("run_id", run.RunID).
		Int("total", run.Total).
		Int("created", run.Created).
		Int("updated", run.Updated).
		Int("failed", run.Failed).
		Int("no_extra_images", run.NoExtraImages).
		Msg("import finished")
	return run, nil
}

func (r *Runner) fetch(ctx context.Context) ([]feed.Item, error) {
	name := r.cfg.Feed.AdapterName()
	factory, ok := feed.Get(name)
	if !ok {
		return nil, fmt.Errorf("no feed adapter registered as %q", name)
	}
	raw, err := r.cfg.Feed.RawParams()
	if err != nil {
		return nil, err
	}
	fetcher, err := factory(r.log, raw)
	if err != nil {
		return nil, fmt.Errorf("build %s fetcher: %w", name, err)
	}
	items, err := fetcher.Fetch(ctx)
	if err != nil {
		return nil, &FetchError{Config: r.cfg.Name, Err: err}
	}
	return items, nil
}

// applyAll walks the items sequentially. Each item runs under a savepoint
// so its failure rolls back only its own writes; the surrounding
// transaction commits on every batch boundary regardless of how the items
// in it fared.
func (r *Runner) applyAll(ctx context.Context, engine *Engine, items []feed.Item) (failed, noExtra int, details []string) {
	if len(items) == 0 {
		return 0, 0, nil
	}

	tx := r.h.DB.Begin()
	inBatch := 0
	for i, it := range items {
		sp := fmt.Sprintf("item_%d", i)
		tx.SavePoint(sp)

		out, err := engine.UpsertItem(ctx, tx, it)
		if err != nil {
			tx.RollbackTo(sp)
			failed++
			if len(details) < maxDetailLines {
				details = append(details, fmt.Sprintf("ERROR %s: %v", it.BestID(), err))
			}
			r.log.Debug().Err(err).Str("item", it.BestID()).Msg("item failed")
		} else {
			if out.NoExtraImage {
				noExtra++
			}
			r.log.Debug().Str("item", it.BestID()).Bool("created", out.Created).Msg("item applied")
		}

		inBatch++
		if inBatch >= r.cfg.BatchCommit && i < len(items)-1 {
			if err := tx.Commit().Error; err != nil {
				r.log.Error().Err(err).Int("upto", i).Msg("batch commit failed")
			}
			tx = r.h.DB.Begin()
			inBatch = 0
		}
	}
	if err := tx.Commit().Error; err != nil {
		r.log.Error().Err(err).Msg("final commit failed")
	}
	return failed, noExtra, details
}
