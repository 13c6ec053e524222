package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Migrate creates or updates the store schema.
func (h *Handle) Migrate() error {
	if err := h.DB.AutoMigrate(
		&Product{},
		&ProductVariant{},
		&SupplierLink{},
		&ProductImage{},
		&Category{},
		&PublicCategory{},
		&Brand{},
		&Channel{},
		&ImportRun{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

// BeforeSave keeps Notes derived from the counts.
func (r *ImportRun) BeforeSave(*gorm.DB) error {
	r.Notes = r.Summary()
	return nil
}

// Summary renders the run's structured result line. It is recomputed from
// the counts whenever a run is saved, so the persisted notes can never
// drift from the persisted numbers.
func (r *ImportRun) Summary() string {
	return fmt.Sprintf("Total: %d | Created: %d | Updated: %d | Failed: %d | No extra image: %d",
		r.Total, r.Created, r.Updated, r.Failed, r.NoExtraImages)
}

// ResultText is the summary line followed by the raw per-item detail lines.
func (r *ImportRun) ResultText() string {
	if r.Details == "" {
		return r.Summary()
	}
	return r.Summary() + "\n" + strings.TrimRight(r.Details, "\n")
}
