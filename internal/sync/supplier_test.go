package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorsync/internal/db"
)

func TestReconcileSupplierLinkCreates(t *testing.T) {
	h := newTestStore(t)
	p := &db.Product{Name: "Widget"}
	require.NoError(t, h.DB.Create(p).Error)

	require.NoError(t, ReconcileSupplierLink(h.DB, "acme", p.ID, "W1", 5))

	var links []db.SupplierLink
	require.NoError(t, h.DB.Where("product_id = ?", p.ID).Find(&links).Error)
	require.Len(t, links, 1)
	assert.Equal(t, "acme", links[0].Vendor)
	assert.Equal(t, "W1", links[0].ProductCode)
	assert.Equal(t, 5, links[0].VendorStockInfo)

	// Idempotent: a second pass updates in place.
	require.NoError(t, ReconcileSupplierLink(h.DB, "acme", p.ID, "W1", 7))
	require.NoError(t, h.DB.Where("product_id = ?", p.ID).Find(&links).Error)
	require.Len(t, links, 1)
	assert.Equal(t, 7, links[0].VendorStockInfo)
}

func TestReconcileSupplierLinkReassignsForeignLink(t *testing.T) {
	h := newTestStore(t)
	p := &db.Product{Name: "Widget"}
	require.NoError(t, h.DB.Create(p).Error)

	old := db.SupplierLink{ProductID: p.ID, Vendor: "previous-partner", ProductCode: "W1", VendorStockInfo: 3}
	require.NoError(t, h.DB.Create(&old).Error)

	require.NoError(t, ReconcileSupplierLink(h.DB, "acme", p.ID, "W1", 9))

	var links []db.SupplierLink
	require.NoError(t, h.DB.Where("product_id = ?", p.ID).Find(&links).Error)
	require.Len(t, links, 1)
	assert.Equal(t, old.ID, links[0].ID, "existing row reassigned, not recreated")
	assert.Equal(t, "acme", links[0].Vendor)
	assert.Equal(t, 9, links[0].VendorStockInfo)
}

func TestReconcileSupplierLinkDropsDuplicates(t *testing.T) {
	h := newTestStore(t)
	p := &db.Product{Name: "Widget"}
	require.NoError(t, h.DB.Create(p).Error)

	mine := db.SupplierLink{ProductID: p.ID, Vendor: "acme", ProductCode: "W1"}
	require.NoError(t, h.DB.Create(&mine).Error)
	require.NoError(t, h.DB.Create(&db.SupplierLink{ProductID: p.ID, Vendor: "other-a", ProductCode: "W1"}).Error)
	require.NoError(t, h.DB.Create(&db.SupplierLink{ProductID: p.ID, Vendor: "other-b", ProductCode: "W1"}).Error)

	require.NoError(t, ReconcileSupplierLink(h.DB, "acme", p.ID, "W1", 2))

	var links []db.SupplierLink
	require.NoError(t, h.DB.Where("product_id = ? AND product_code = ?", p.ID, "W1").Find(&links).Error)
	require.Len(t, links, 1, "exactly one link per (product, code) survives")
	assert.Equal(t, mine.ID, links[0].ID)
}

func TestReconcileSupplierLinkNoops(t *testing.T) {
	h := newTestStore(t)
	assert.NoError(t, ReconcileSupplierLink(h.DB, "", 1, "W1", 0))
	assert.NoError(t, ReconcileSupplierLink(h.DB, "acme", 1, "", 0))

	var count int64
	require.NoError(t, h.DB.Model(&db.SupplierLink{}).Count(&count).Error)
	assert.Zero(t, count)
}
