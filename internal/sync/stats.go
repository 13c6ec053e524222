package sync

import (
	"fmt"

	"gorm.io/gorm"

	"vendorsync/internal/config"
	"vendorsync/internal/feed"
)

// Run statistics are not trusted from the raw loop counters alone. The
// created/updated split is recomputed from before/after snapshots of the
// catalog: an item was created exactly when its natural key was unknown
// before the run and known after it. This keeps the numbers honest when a
// rolled-back item briefly created a row, or when two feed lines map to the
// same record.

// NaturalKeyField is the product column the snapshots key on for a given
// identity priority.
func NaturalKeyField(mapBy string) string {
	if mapBy == config.MapByBarcode {
		return "barcode"
	}
	return "default_code"
}

// ItemKeys collects the distinct natural keys of the item list, in feed
// order. Items without a usable key are skipped; they can only count as
// failures anyway.
func ItemKeys(items []feed.Item, mapBy string) []string {
	seen := make(map[string]struct{}, len(items))
	keys := make([]string, 0, len(items))
	for _, it := range items {
		k := it.Key(mapBy)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

const snapshotChunk = 500

// Snapshot returns the subset of keys that currently exist in the catalog
// under the given column.
func Snapshot(gdb *gorm.DB, field string, keys []string) (map[string]struct{}, error) {
	known := make(map[string]struct{}, len(keys))
	for start := 0; start < len(keys); start += snapshotChunk {
		end := start + snapshotChunk
		if end > len(keys) {
			end = len(keys)
		}
		var got []string
		if err := gdb.Table("products").Where(field+" IN ?", keys[start:end]).
			Pluck(field, &got).Error; err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", field, err)
		}
		for _, k := range got {
			known[k] = struct{}{}
		}
	}
	return known, nil
}

// ReconcileCounts recomputes the created/updated split from the snapshots.
// created is the number of keys that appeared during the run, capped at the
// number of successful items; updated absorbs the remainder.
func ReconcileCounts(keys []string, pre, post map[string]struct{}, total, failed int) (created, updated int) {
	for _, k := range keys {
		if _, was := pre[k]; was {
			continue
		}
		if _, is := post[k]; is {
			created++
		}
	}
	success := total - failed
	if success < 0 {
		success = 0
	}
	if created > success {
		created = success
	}
	updated = success - created
	return created, updated
}
