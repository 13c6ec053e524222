package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestHandle(t *testing.T) *Handle {
	t.Helper()
	h, err := Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, h.Migrate())
	return h
}

func TestOpenUnknownDialect(t *testing.T) {
	_, err := Open("oracle", "dsn")
	assert.Error(t, err)
}

func TestImportRunNotesDerivedOnSave(t *testing.T) {
	h := openTestHandle(t)

	run := &ImportRun{
		RunID:      "r-1",
		ConfigName: "acme",
		RunDate:    time.Now().UTC(),
		Total:      10, Created: 3, Updated: 6, Failed: 1, NoExtraImages: 2,
		Notes: "stale text that must be replaced",
	}
	require.NoError(t, h.DB.Create(run).Error)

	var got ImportRun
	require.NoError(t, h.DB.Where("run_id = ?", "r-1").Take(&got).Error)
	assert.Equal(t, "Total: 10 | Created: 3 | Updated: 6 | Failed: 1 | No extra image: 2", got.Notes)

	// Counts corrected later: the notes follow on the next save.
	got.Failed = 0
	got.Updated = 7
	require.NoError(t, h.DB.Save(&got).Error)
	require.NoError(t, h.DB.Where("run_id = ?", "r-1").Take(&got).Error)
	assert.Equal(t, "Total: 10 | Created: 3 | Updated: 7 | Failed: 0 | No extra image: 2", got.Notes)
}

func TestImportRunResultText(t *testing.T) {
	r := ImportRun{Total: 2, Created: 1, Updated: 1}
	assert.Equal(t, r.Summary(), r.ResultText())

	r.Details = "ERROR X1: missing name\n"
	assert.Equal(t, r.Summary()+"\nERROR X1: missing name", r.ResultText())
}
