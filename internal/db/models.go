package db

import "time"

// Product is the canonical catalog record. Created by the sync engine when
// no identity key matches, updated in place otherwise, never deleted.
type Product struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"index"`
	DefaultCode string `gorm:"index"` // internal reference / SKU
	Barcode     string `gorm:"index"` // EAN/UPC

	StandardPrice float64 // cost
	ListPrice     float64 // sale price; never overwritten when the feed omits it
	WeightKg      float64

	// Exactly one description surface is canonical. The legacy columns are
	// cleared whenever WebsiteDescription is written.
	WebsiteDescription      string `gorm:"type:text"`
	Description             string `gorm:"type:text"`
	DescriptionSale         string `gorm:"type:text"`
	WebsiteShortDescription string `gorm:"type:text"`

	// Main image payload; extra images live in Images.
	Image []byte `gorm:"type:blob"`

	CategoryID *uint
	Category   *Category

	BrandID *uint
	Brand   *Brand

	// Informational vendor fields, separate from real inventory.
	VendorStock int
	VendorName  string

	Published        bool
	Channels         []Channel        `gorm:"many2many:product_channels"`
	PublicCategories []PublicCategory `gorm:"many2many:product_public_categories"`
	Images           []ProductImage
	Variants         []ProductVariant

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// ProductVariant carries the same legacy description surfaces as the
// template; the single-source-of-truth invariant clears both together.
type ProductVariant struct {
	ID        uint `gorm:"primaryKey"`
	ProductID uint `gorm:"index"`

	DefaultCode string `gorm:"index"`

	WebsiteDescription      string `gorm:"type:text"`
	Description             string `gorm:"type:text"`
	DescriptionSale         string `gorm:"type:text"`
	WebsiteShortDescription string `gorm:"type:text"`
}

// SupplierLink associates one vendor with one product via the vendor's own
// product code. At most one link per (product, product_code) survives a
// reconcile pass.
type SupplierLink struct {
	ID          uint   `gorm:"primaryKey"`
	ProductID   uint   `gorm:"index"`
	Vendor      string `gorm:"index"` // vendor identity from the import config
	ProductCode string `gorm:"index"`

	// Stock reported by the vendor on the last import. Informational only.
	VendorStockInfo int

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// ProductImage holds downloaded image payloads. Vendor-origin rows are
// tagged with the source URL so re-runs can skip what is already there;
// manually added images never carry the tags.
type ProductImage struct {
	ID        uint `gorm:"primaryKey"`
	ProductID uint `gorm:"index"`
	Name      string
	Sequence  int
	Data      []byte `gorm:"type:blob"`

	VendorOrigin bool   `gorm:"index"`
	OriginURL    string `gorm:"index"`
	OriginVendor string
}

// Category is the flat classification entity (one level, name-keyed).
type Category struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex"`
}

// PublicCategory is a taxonomy node; (name, parent, channel) tuples are
// unique so repeated resolution of the same path is idempotent.
type PublicCategory struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"index:idx_public_categ_key"`
	ParentID  *uint  `gorm:"index:idx_public_categ_key"`
	ChannelID *uint  `gorm:"index:idx_public_categ_key"`
}

// Brand is get-or-create by name when items carry a brand field.
type Brand struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex"`
}

// Channel is a sales channel products get published on.
type Channel struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

// ImportRun is the persisted log of one orchestrator pass. Counts are
// corrected by the statistics reconciler before the final save; Notes is
// recomputed from the counts on every save.
type ImportRun struct {
	ID         uint   `gorm:"primaryKey"`
	RunID      string `gorm:"uniqueIndex"`
	ConfigName string `gorm:"index"`
	RunDate    time.Time

	Total         int
	Created       int
	Updated       int
	Failed        int
	NoExtraImages int

	Notes   string `gorm:"type:text"`
	Details string `gorm:"type:text"`
}
