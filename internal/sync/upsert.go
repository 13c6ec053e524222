package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"vendorsync/internal/config"
	"vendorsync/internal/db"
	"vendorsync/internal/feed"
)

// Engine applies one canonical item to the catalog. The work is an ordered
// pipeline of stages over the same record: base upsert, supplier link,
// description/brand, images, categories. The order is fixed and the only
// coupling between stages is the record itself.
type Engine struct {
	log        zerolog.Logger
	cfg        *config.ImportConfig
	categories *CategoryResolver
	images     *ImageSyncer
}

func NewEngine(log zerolog.Logger, cfg *config.ImportConfig) *Engine {
	var strategy *MappingStrategy
	if cfg.CategoryMapPath != "" {
		var err error
		strategy, err = LoadMapping(cfg.CategoryMapPath)
		if err != nil {
			// A broken mapping table degrades to pass-through, same as no table.
			log.Warn().Err(err).Str("path", cfg.CategoryMapPath).Msg("category mapping not loaded")
			strategy = nil
		} else {
			log.Info().Int("pairs", strategy.Len()).Str("path", cfg.CategoryMapPath).Msg("category mapping loaded")
		}
	}
	return &Engine{
		log:        log,
		cfg:        cfg,
		categories: NewCategoryResolver(strategy),
		images:     NewImageSyncer(log),
	}
}

// ItemOutcome reports what one item did to the catalog.
type ItemOutcome struct {
	Created bool
	// NoExtraImage is set when the gallery was attempted but produced
	// nothing, or when an image payload was unreadable (soft failures).
	NoExtraImage bool
}

// UpsertItem runs the stage pipeline for one item inside the caller's
// transaction. A returned error is a hard item failure; image and gallery
// problems are absorbed into the outcome instead.
func (e *Engine) UpsertItem(ctx context.Context, tx *gorm.DB, it feed.Item) (ItemOutcome, error) {
	var out ItemOutcome

	if err := it.Validate(); err != nil {
		return out, err
	}

	p, err := Resolve(tx, e.cfg.Vendor, e.cfg.MapBy, it.SKU(), it.Barcode())
	if err != nil {
		return out, err
	}
	out.Created = p == nil
	if p == nil {
		p = &db.Product{}
	}

	if err := e.stageBase(tx, it, p); err != nil {
		return out, err
	}
	if err := ReconcileSupplierLink(tx, e.cfg.Vendor, p.ID, it.VendorCode(), it.VendorStock()); err != nil {
		return out, err
	}
	if err := e.stageDescriptionBrand(tx, it, p); err != nil {
		return out, err
	}
	e.stageImages(ctx, tx, it, p, &out)
	if err := e.stageCategories(tx, it, p); err != nil {
		return out, err
	}
	return out, nil
}

// stageBase writes the scalar merge of the item onto the record and
// persists it, creating the row when it did not exist.
func (e *Engine) stageBase(tx *gorm.DB, it feed.Item, p *db.Product) error {
	p.Name = it.Name()

	if cost := it.Cost(); cost > 0 {
		p.StandardPrice = cost
	}
	// Absent or zero list price never touches a manually set sale price.
	if lp, ok := it.ListPrice(); ok {
		p.ListPrice = lp
	}
	if w := it.WeightKg(); w > 0 {
		p.WeightKg = w
	}

	if sku := it.SKU(); sku != "" {
		p.DefaultCode = sku
	}
	if barcode := it.Barcode(); barcode != "" {
		free, err := barcodeFree(tx, barcode, p.ID)
		if err != nil {
			return err
		}
		if free {
			p.Barcode = barcode
		}
	}

	categID, err := e.categories.ResolveFlat(tx, it.Category(), e.cfg.DefaultCategory)
	if err != nil {
		return err
	}
	if categID != 0 {
		p.CategoryID = &categID
	}

	p.VendorStock = it.VendorStock()
	if vn := it.VendorName(); vn != "" {
		p.VendorName = vn
	} else if e.cfg.Vendor != "" {
		p.VendorName = e.cfg.Vendor
	}

	if e.cfg.Publish {
		p.Published = true
	}

	if p.ID == 0 {
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("create product %s: %w", it.BestID(), err)
		}
	} else if err := tx.Save(p).Error; err != nil {
		return fmt.Errorf("update product %d: %w", p.ID, err)
	}

	if e.cfg.Publish && e.cfg.ChannelID != 0 {
		ch := db.Channel{ID: e.cfg.ChannelID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ch).Error; err != nil {
			return fmt.Errorf("channel %d: %w", e.cfg.ChannelID, err)
		}
		// Membership is added, never replacing channels already present.
		if err := tx.Model(p).Association("Channels").Append(&ch); err != nil {
			return fmt.Errorf("publish on channel %d: %w", e.cfg.ChannelID, err)
		}
	}
	return nil
}

// barcodeFree reports whether no OTHER record already owns the barcode.
func barcodeFree(tx *gorm.DB, barcode string, selfID uint) (bool, error) {
	var owner db.Product
	err := tx.Where("barcode = ?", barcode).Take(&owner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("barcode owner %q: %w", barcode, err)
	}
	return owner.ID == selfID, nil
}

// stageDescriptionBrand populates the single canonical description surface
// and clears every legacy description field on the record and its variants,
// then links the brand when the item names one.
func (e *Engine) stageDescriptionBrand(tx *gorm.DB, it feed.Item, p *db.Product) error {
	p.WebsiteDescription = AsHTML(it.Description())
	p.Description = ""
	p.DescriptionSale = ""
	p.WebsiteShortDescription = ""

	if brand := it.Brand(); brand != "" {
		b := db.Brand{Name: brand}
		if err := tx.Where("name = ?", brand).FirstOrCreate(&b).Error; err != nil {
			return fmt.Errorf("brand %q: %w", brand, err)
		}
		p.BrandID = &b.ID
	}

	if err := tx.Save(p).Error; err != nil {
		return fmt.Errorf("write description for product %d: %w", p.ID, err)
	}

	if err := tx.Model(&db.ProductVariant{}).Where("product_id = ?", p.ID).
		Updates(map[string]any{
			"website_description":       p.WebsiteDescription,
			"description":               "",
			"description_sale":          "",
			"website_short_description": "",
		}).Error; err != nil {
		return fmt.Errorf("clear variant descriptions for product %d: %w", p.ID, err)
	}
	return nil
}

// stageImages handles the main image and the gallery. Both are soft: a
// failure here never fails the item, it only marks the outcome.
func (e *Engine) stageImages(ctx context.Context, tx *gorm.DB, it feed.Item, p *db.Product, out *ItemOutcome) {
	if url := it.ImageURL(); url != "" {
		if err := e.images.SyncMain(ctx, tx, p, url); err != nil && errors.Is(err, ErrImageUndecodable) {
			out.NoExtraImage = true
		}
	}

	vendorName := it.VendorName()
	if vendorName == "" {
		vendorName = e.cfg.Vendor
	}
	added, attempted, err := e.images.SyncGallery(ctx, tx, p, it, vendorName, e.cfg.ReplaceGallery, e.cfg.MaxGallery)
	if err != nil {
		e.log.Info().Err(err).Str("item", it.BestID()).Msg("gallery skipped")
		out.NoExtraImage = true
		return
	}
	if attempted > 0 && added == 0 {
		out.NoExtraImage = true
	}
}

// stageCategories assigns the taxonomy nodes for every category path the
// item carries. Resolution failures leave the assignment unchanged.
func (e *Engine) stageCategories(tx *gorm.DB, it feed.Item, p *db.Product) error {
	paths := it.CategoryPaths()
	if len(paths) == 0 {
		return nil
	}

	var channel *uint
	if e.cfg.ChannelID != 0 {
		id := e.cfg.ChannelID
		channel = &id
	}

	var nodes []db.PublicCategory
	for _, path := range paths {
		leaf, err := e.categories.ResolvePath(tx, path, channel)
		if err != nil {
			return err
		}
		if leaf != 0 {
			nodes = append(nodes, db.PublicCategory{ID: leaf})
		}
	}
	if len(nodes) == 0 {
		return nil
	}
	if err := tx.Model(p).Association("PublicCategories").Replace(&nodes); err != nil {
		return fmt.Errorf("assign categories for product %d: %w", p.ID, err)
	}
	return nil
}
