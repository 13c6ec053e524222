package sync

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorsync/internal/config"
	"vendorsync/internal/db"
	"vendorsync/internal/feed"
)

func testImportConfig() *config.ImportConfig {
	return &config.ImportConfig{
		Name:        "test",
		Vendor:      "acme",
		MapBy:       config.MapBySupplierCode,
		BatchCommit: 100,
		MaxGallery:  8,
	}
}

func TestUpsertItemCreateThenUpdate(t *testing.T) {
	h := newTestStore(t)
	e := NewEngine(zerolog.Nop(), testImportConfig())

	it := feed.Item{
		"name":                  "Monitor 27",
		"sku":                   "M27",
		"barcode":               "8400001",
		"cost":                  "129,90",
		"list_price":            199.0,
		"weight":                "4,2 kg",
		"category":              "Monitores",
		"brand":                 "ViewMax",
		"description_ecommerce": "- Panel IPS\n- 144 Hz",
	}

	out, err := e.UpsertItem(context.Background(), h.DB, it)
	require.NoError(t, err)
	assert.True(t, out.Created)

	var p db.Product
	require.NoError(t, h.DB.Where("default_code = ?", "M27").Take(&p).Error)
	assert.Equal(t, "Monitor 27", p.Name)
	assert.Equal(t, "8400001", p.Barcode)
	assert.InDelta(t, 129.90, p.StandardPrice, 1e-9)
	assert.InDelta(t, 199.0, p.ListPrice, 1e-9)
	assert.InDelta(t, 4.2, p.WeightKg, 1e-9)
	assert.Equal(t, "<ul><li>Panel IPS</li><li>144 Hz</li></ul>", p.WebsiteDescription)
	require.NotNil(t, p.CategoryID)
	require.NotNil(t, p.BrandID)

	var link db.SupplierLink
	require.NoError(t, h.DB.Where("product_id = ?", p.ID).Take(&link).Error)
	assert.Equal(t, "acme", link.Vendor)
	assert.Equal(t, "M27", link.ProductCode)

	// Same item again: update in place, nothing duplicated.
	it["cost"] = "119,00"
	out, err = e.UpsertItem(context.Background(), h.DB, it)
	require.NoError(t, err)
	assert.False(t, out.Created)

	var products, links int64
	require.NoError(t, h.DB.Model(&db.Product{}).Count(&products).Error)
	require.NoError(t, h.DB.Model(&db.SupplierLink{}).Count(&links).Error)
	assert.EqualValues(t, 1, products)
	assert.EqualValues(t, 1, links)

	require.NoError(t, h.DB.Take(&p, p.ID).Error)
	assert.InDelta(t, 119.0, p.StandardPrice, 1e-9)
}

func TestUpsertItemPreservesListPriceWhenOmitted(t *testing.T) {
	h := newTestStore(t)
	e := NewEngine(zerolog.Nop(), testImportConfig())

	it := feed.Item{"name": "Widget", "sku": "W1", "list_price": 19.99}
	_, err := e.UpsertItem(context.Background(), h.DB, it)
	require.NoError(t, err)

	// The next feed drop omits the sale price entirely.
	_, err = e.UpsertItem(context.Background(), h.DB, feed.Item{"name": "Widget", "sku": "W1"})
	require.NoError(t, err)

	var p db.Product
	require.NoError(t, h.DB.Where("default_code = ?", "W1").Take(&p).Error)
	assert.InDelta(t, 19.99, p.ListPrice, 1e-9, "omitted list price must not clobber the stored one")

	// An explicit zero behaves like omitted.
	_, err = e.UpsertItem(context.Background(), h.DB, feed.Item{"name": "Widget", "sku": "W1", "list_price": 0})
	require.NoError(t, err)
	require.NoError(t, h.DB.Where("default_code = ?", "W1").Take(&p).Error)
	assert.InDelta(t, 19.99, p.ListPrice, 1e-9)
}

func TestUpsertItemNeverStealsBarcode(t *testing.T) {
	h := newTestStore(t)
	e := NewEngine(zerolog.Nop(), testImportConfig())

	owner := &db.Product{Name: "Owner", Barcode: "555"}
	require.NoError(t, h.DB.Create(owner).Error)

	other := &db.Product{Name: "Other"}
	require.NoError(t, h.DB.Create(other).Error)
	require.NoError(t, h.DB.Create(&db.SupplierLink{
		ProductID: other.ID, Vendor: "acme", ProductCode: "S2",
	}).Error)

	// The item resolves to Other through its supplier link but carries the
	// barcode Owner already holds.
	_, err := e.UpsertItem(context.Background(), h.DB, feed.Item{
		"name": "Other updated", "sku": "S2", "barcode": "555",
	})
	require.NoError(t, err)

	var got db.Product
	require.NoError(t, h.DB.Take(&got, other.ID).Error)
	assert.Empty(t, got.Barcode)
	got = db.Product{}
	require.NoError(t, h.DB.Take(&got, owner.ID).Error)
	assert.Equal(t, "555", got.Barcode)
}

func TestUpsertItemClearsLegacyDescriptions(t *testing.T) {
	h := newTestStore(t)
	e := NewEngine(zerolog.Nop(), testImportConfig())

	p := &db.Product{
		Name:            "Widget",
		DefaultCode:     "W1",
		Description:     "legacy",
		DescriptionSale: "legacy sale",
	}
	require.NoError(t, h.DB.Create(p).Error)
	require.NoError(t, h.DB.Create(&db.ProductVariant{
		ProductID: p.ID, Description: "variant legacy", DescriptionSale: "variant sale",
	}).Error)

	_, err := e.UpsertItem(context.Background(), h.DB, feed.Item{
		"name": "Widget", "sku": "W1", "description": "Texto plano",
	})
	require.NoError(t, err)

	var got db.Product
	require.NoError(t, h.DB.Take(&got, p.ID).Error)
	assert.Equal(t, "<p>Texto plano</p>", got.WebsiteDescription)
	assert.Empty(t, got.Description)
	assert.Empty(t, got.DescriptionSale)
	assert.Empty(t, got.WebsiteShortDescription)

	var v db.ProductVariant
	require.NoError(t, h.DB.Where("product_id = ?", p.ID).Take(&v).Error)
	assert.Equal(t, "<p>Texto plano</p>", v.WebsiteDescription)
	assert.Empty(t, v.Description)
	assert.Empty(t, v.DescriptionSale)
}

func TestUpsertItemPublishAddsChannel(t *testing.T) {
	h := newTestStore(t)
	cfg := testImportConfig()
	cfg.Publish = true
	cfg.ChannelID = 7
	e := NewEngine(zerolog.Nop(), cfg)

	it := feed.Item{"name": "Widget", "sku": "W1", "public_category": "Informática / Monitores"}
	_, err := e.UpsertItem(context.Background(), h.DB, it)
	require.NoError(t, err)

	var p db.Product
	require.NoError(t, h.DB.Where("default_code = ?", "W1").Take(&p).Error)
	assert.True(t, p.Published)

	count := h.DB.Model(&p).Association("Channels").Count()
	assert.EqualValues(t, 1, count)

	// Re-running does not duplicate the membership.
	_, err = e.UpsertItem(context.Background(), h.DB, it)
	require.NoError(t, err)
	count = h.DB.Model(&p).Association("Channels").Count()
	assert.EqualValues(t, 1, count)

	// Taxonomy nodes were created channel-scoped and assigned.
	cats := h.DB.Model(&p).Association("PublicCategories").Count()
	assert.EqualValues(t, 1, cats, "only the leaf node is assigned")
}

func TestUpsertItemInvalid(t *testing.T) {
	h := newTestStore(t)
	e := NewEngine(zerolog.Nop(), testImportConfig())

	_, err := e.UpsertItem(context.Background(), h.DB, feed.Item{"sku": "S1"})
	assert.ErrorIs(t, err, feed.ErrInvalid)

	var count int64
	require.NoError(t, h.DB.Model(&db.Product{}).Count(&count).Error)
	assert.Zero(t, count, "invalid items leave no trace")
}
