package sync

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"vendorsync/internal/config"
	"vendorsync/internal/db"
)

// Resolve maps an incoming item to zero-or-one existing product through the
// priority-ordered key chain. The base order is: supplier link owned by this
// vendor, supplier link owned by any vendor (partner reassignment), exact
// default_code, exact barcode. The internal-reference and barcode priorities
// probe their exact match first and then fall through the same chain.
// Returns nil when nothing matches; multiple matches are never merged.
func Resolve(tx *gorm.DB, vendor, mapBy, sku, barcode string) (*db.Product, error) {
	probes := []func() (*db.Product, error){
		func() (*db.Product, error) { return bySupplierLink(tx, vendor, sku) },
		func() (*db.Product, error) { return bySupplierLink(tx, "", sku) },
		func() (*db.Product, error) { return byField(tx, "default_code", sku) },
		func() (*db.Product, error) { return byField(tx, "barcode", barcode) },
	}

	var order []func() (*db.Product, error)
	switch mapBy {
	case config.MapByInternalReference:
		order = []func() (*db.Product, error){probes[2], probes[0], probes[1], probes[3]}
	case config.MapByBarcode:
		order = []func() (*db.Product, error){probes[3], probes[0], probes[1], probes[2]}
	default:
		order = probes
	}

	for _, probe := range order {
		p, err := probe()
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
	}
	return nil, nil
}

// bySupplierLink finds the product behind a supplier link for the given
// product code; an empty vendor matches links owned by anyone.
func bySupplierLink(tx *gorm.DB, vendor, code string) (*db.Product, error) {
	if code == "" {
		return nil, nil
	}
	q := tx.Where("product_code = ?", code)
	if vendor != "" {
		q = q.Where("vendor = ?", vendor)
	}
	var link db.SupplierLink
	if err := q.Order("id").Take(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve supplier link %q: %w", code, err)
	}
	var p db.Product
	if err := tx.Take(&p, link.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // dangling link; treat as no match
		}
		return nil, fmt.Errorf("resolve product %d: %w", link.ProductID, err)
	}
	return &p, nil
}

func byField(tx *gorm.DB, field, value string) (*db.Product, error) {
	if value == "" {
		return nil, nil
	}
	var p db.Product
	if err := tx.Where(field+" = ?", value).Order("id").Take(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve by %s=%q: %w", field, value, err)
	}
	return &p, nil
}
