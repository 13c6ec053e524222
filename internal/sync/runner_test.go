package sync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorsync/internal/config"
	"vendorsync/internal/db"
	"vendorsync/internal/feed"
)

// stubFeed replays a fixed item list through the adapter registry.
type stubFeed struct {
	items []feed.Item
	err   error
}

func (s *stubFeed) Fetch(ctx context.Context) ([]feed.Item, error) { return s.items, s.err }

var stubItems []feed.Item
var stubErr error

func init() {
	feed.Register("stub", func(log zerolog.Logger, raw json.RawMessage) (feed.Fetcher, error) {
		return &stubFeed{items: stubItems, err: stubErr}, nil
	})
}

func stubConfig() *config.ImportConfig {
	return &config.ImportConfig{
		Name:        "stub-import",
		Vendor:      "acme",
		MapBy:       config.MapBySupplierCode,
		Feed:        config.FeedConfig{Format: "adapter", Adapter: "stub"},
		BatchCommit: 2,
		MaxGallery:  8,
	}
}

func TestRunnerEndToEnd(t *testing.T) {
	h := newTestStore(t)

	// B exists before the run; A is new; C is invalid and must fail.
	require.NoError(t, h.DB.Create(&db.Product{Name: "B old", DefaultCode: "B1"}).Error)

	stubItems = []feed.Item{
		{"name": "Product A", "sku": "A1", "cost": "10,00"},
		{"name": "Product B", "sku": "B1", "cost": "20,00"},
		{"sku": "C1"}, // no name
	}
	stubErr = nil

	run, err := NewRunner(zerolog.Nop(), h, stubConfig()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, run.Total)
	assert.Equal(t, 1, run.Created)
	assert.Equal(t, 1, run.Updated)
	assert.Equal(t, 1, run.Failed)
	assert.NotEmpty(t, run.RunID)
	assert.Contains(t, run.Details, "ERROR C1:")
	assert.Contains(t, run.Notes, "Total: 3 | Created: 1 | Updated: 1 | Failed: 1")

	// The failed item rolled back without touching its neighbors.
	var products int64
	require.NoError(t, h.DB.Model(&db.Product{}).Count(&products).Error)
	assert.EqualValues(t, 2, products)

	var b db.Product
	require.NoError(t, h.DB.Where("default_code = ?", "B1").Take(&b).Error)
	assert.Equal(t, "Product B", b.Name)
	assert.InDelta(t, 20.0, b.StandardPrice, 1e-9)

	// The record is persisted and queryable.
	var stored db.ImportRun
	require.NoError(t, h.DB.Where("run_id = ?", run.RunID).Take(&stored).Error)
	assert.Equal(t, "stub-import", stored.ConfigName)
}

func TestRunnerIdempotentSecondPass(t *testing.T) {
	h := newTestStore(t)

	stubItems = []feed.Item{
		{"name": "Product A", "sku": "A1"},
		{"name": "Product B", "sku": "B1"},
	}
	stubErr = nil

	r := NewRunner(zerolog.Nop(), h, stubConfig())
	first, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Created)
	assert.Equal(t, 0, first.Updated)

	second, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 2, second.Updated)

	var products int64
	require.NoError(t, h.DB.Model(&db.Product{}).Count(&products).Error)
	assert.EqualValues(t, 2, products)
}

func TestRunnerFetchFailureIsFatal(t *testing.T) {
	h := newTestStore(t)

	stubItems = nil
	stubErr = errors.New("service unreachable")

	_, err := NewRunner(zerolog.Nop(), h, stubConfig()).Run(context.Background())
	require.Error(t, err)
	var fe *FetchError
	assert.ErrorAs(t, err, &fe)

	var runs int64
	require.NoError(t, h.DB.Model(&db.ImportRun{}).Count(&runs).Error)
	assert.Zero(t, runs, "aborted runs leave no record")
}

func TestRunnerUnknownAdapter(t *testing.T) {
	h := newTestStore(t)
	cfg := stubConfig()
	cfg.Feed.Adapter = "does-not-exist"

	_, err := NewRunner(zerolog.Nop(), h, cfg).Run(context.Background())
	assert.Error(t, err)
}

func TestRunnerInvalidConfig(t *testing.T) {
	h := newTestStore(t)
	cfg := stubConfig()
	cfg.Feed.Format = "adapter"
	cfg.Feed.Adapter = ""

	_, err := NewRunner(zerolog.Nop(), h, cfg).Run(context.Background())
	assert.Error(t, err)
}
