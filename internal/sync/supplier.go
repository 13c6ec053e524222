package sync

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"vendorsync/internal/db"
)

// ReconcileSupplierLink enforces the one-link-per-(product, product_code)
// invariant and writes the canonical link for this vendor.
//
// Links with the same product code but a different owning vendor are
// leftovers of a partner reassignment: the first of them is rewritten to
// this vendor (preserving the row and its history) when no link of ours
// exists yet, and every remaining duplicate is deleted.
func ReconcileSupplierLink(tx *gorm.DB, vendor string, productID uint, productCode string, stockInfo int) error {
	if vendor == "" || productCode == "" {
		return nil
	}

	var mine *db.SupplierLink
	var existing db.SupplierLink
	err := tx.Where("vendor = ? AND product_id = ?", vendor, productID).
		Order("id").Take(&existing).Error
	switch {
	case err == nil:
		mine = &existing
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("find supplier link: %w", err)
	}

	var others []db.SupplierLink
	if err := tx.Where("product_id = ? AND product_code = ? AND vendor <> ?", productID, productCode, vendor).
		Order("id").Find(&others).Error; err != nil {
		return fmt.Errorf("find duplicate supplier links: %w", err)
	}

	if mine == nil && len(others) > 0 {
		// Reassign instead of delete-then-recreate.
		mine = &others[0]
		mine.Vendor = vendor
		others = others[1:]
	}
	for i := range others {
		if err := tx.Delete(&others[i]).Error; err != nil {
			return fmt.Errorf("delete duplicate supplier link %d: %w", others[i].ID, err)
		}
	}

	if mine == nil {
		mine = &db.SupplierLink{ProductID: productID, Vendor: vendor}
	}
	mine.ProductCode = productCode
	mine.VendorStockInfo = stockInfo
	if err := tx.Save(mine).Error; err != nil {
		return fmt.Errorf("save supplier link: %w", err)
	}
	return nil
}
