package sync

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"vendorsync/internal/db"
)

// newTestStore opens a throwaway sqlite store with the full schema.
func newTestStore(t *testing.T) *db.Handle {
	t.Helper()
	h, err := db.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, h.Migrate())
	return h
}
