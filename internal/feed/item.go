package feed

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalid marks items that fail the minimal wire contract: a name plus
// at least one of sku/barcode.
var ErrInvalid = errors.New("invalid item")

// Item is one adapter-normalized product record. The wire contract is a flat
// key-value structure; accessors below resolve the field-name synonyms so
// the engine never touches raw keys.
type Item map[string]any

var (
	reNumber    = regexp.MustCompile(`[-+]?\d*\.?\d+`)
	reWeight    = regexp.MustCompile(`(?i)([0-9]+(?:[.,][0-9]+)?)\s*([a-z]*)`)
	reListSplit = regexp.MustCompile(`[|\n;,]+`)
)

// str renders any scalar value as a trimmed string.
func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		d := decimal.NewFromFloat(s)
		return d.String()
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", s))
	}
}

// first returns the first non-empty value among the given keys.
func (it Item) first(keys ...string) string {
	for _, k := range keys {
		if v, ok := it[k]; ok {
			if s := str(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func (it Item) Name() string    { return it.first("name", "title") }
func (it Item) SKU() string     { return it.first("sku", "default_code") }
func (it Item) Barcode() string { return it.first("barcode", "ean") }

// Cost prefers the explicit cost field and falls back to price. Zero means
// "absent or unparsable" and is never written to the record.
func (it Item) Cost() float64 {
	if v, ok := it["cost"]; ok {
		if c := ParseNumber(v); c > 0 {
			return c
		}
	}
	if v, ok := it["price"]; ok {
		return ParseNumber(v)
	}
	return 0
}

// ListPrice reports the sale price only when the feed carries a strictly
// positive value; omitted and zero are treated identically so manually set
// prices survive the import.
func (it Item) ListPrice() (float64, bool) {
	v, ok := it["list_price"]
	if !ok || v == nil {
		return 0, false
	}
	p := ParseNumber(v)
	if p <= 0 {
		return 0, false
	}
	return p, true
}

// WeightKg normalizes the weight field to kilograms, rounded to 6 decimal
// places. Accepts "240 g", "0,24", 0.24.
func (it Item) WeightKg() float64 {
	v, ok := it["weight"]
	if !ok || v == nil {
		return 0
	}
	if f, isNum := v.(float64); isNum {
		return round6(f)
	}
	s := strings.ToLower(strings.ReplaceAll(str(v), ",", "."))
	if s == "" {
		return 0
	}
	m := reWeight.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	d, err := decimal.NewFromString(m[1])
	if err != nil {
		return 0
	}
	if strings.HasPrefix(m[2], "g") { // grams; "kg" keeps the value as-is
		d = d.Div(decimal.NewFromInt(1000))
	}
	return round6dec(d)
}

// CategoryPaths returns the category value(s) as a list of path strings.
func (it Item) CategoryPaths() []string {
	for _, k := range []string{"public_category", "public_categories", "ecom_category", "categories_ecommerce", "category"} {
		v, ok := it[k]
		if !ok || v == nil {
			continue
		}
		if list, isList := v.([]any); isList {
			var out []string
			for _, x := range list {
				if s := str(x); s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
			continue
		}
		if s := str(v); s != "" {
			return []string{s}
		}
	}
	return nil
}

// Category is the flat classification value (first category path).
func (it Item) Category() string {
	paths := it.CategoryPaths()
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

func (it Item) ImageURL() string { return it.first("image_url", "image") }

// GalleryURLs gathers extra image candidates: explicit list fields first,
// then numbered field-name variants up to index 20. Values may be lists or
// delimiter-separated strings. The main URL is not excluded here; the
// synchronizer does that together with dedup.
func (it Item) GalleryURLs() []string {
	var urls []string
	for _, k := range []string{"image_urls", "gallery", "images", "extra_images"} {
		urls = append(urls, listVals(it[k])...)
	}
	for i := 2; i <= 20; i++ {
		for _, pat := range []string{"image%d", "image_%d", "img%d", "img_%d", "foto%d", "foto_%d", "imagen%d", "imagen_%d", "image_url_%d"} {
			if v, ok := it[fmt.Sprintf(pat, i)]; ok {
				if s := str(v); s != "" {
					urls = append(urls, s)
				}
			}
		}
	}
	return urls
}

// Description resolves the canonical description payload, preferring the
// explicit web description over generic ones.
func (it Item) Description() string {
	return it.first("description_ecommerce", "website_description", "description", "description_sale")
}

func (it Item) Brand() string {
	return it.first("brand", "product_brand", "manufacturer")
}

func (it Item) VendorCode() string {
	if s := it.first("vendor_code"); s != "" {
		return s
	}
	return it.SKU()
}

func (it Item) VendorName() string { return it.first("vendor_name") }

// VendorStock is informational only and clamped to >= 0.
func (it Item) VendorStock() int {
	s := int(ParseNumber(it.first("vendor_stock", "stock", "stock_total")))
	if s < 0 {
		return 0
	}
	return s
}

// Key returns the natural key used by run statistics for the configured
// identity priority.
func (it Item) Key(mapBy string) string {
	if mapBy == "barcode" {
		return it.first("barcode", "ean", "sku", "vendor_code", "default_code")
	}
	return it.first("sku", "vendor_code", "default_code", "barcode", "ean")
}

// BestID is the best-effort identifier used in failure detail lines.
func (it Item) BestID() string {
	if s := it.first("sku", "default_code", "barcode"); s != "" {
		return s
	}
	return "N/A"
}

// Validate enforces the invariant that makes an item processable at all.
func (it Item) Validate() error {
	if it.Name() == "" {
		return fmt.Errorf("%w: missing name", ErrInvalid)
	}
	if it.SKU() == "" && it.Barcode() == "" {
		return fmt.Errorf("%w: missing sku/default_code and barcode", ErrInvalid)
	}
	return nil
}

// ParseNumber parses a numeric field with locale tolerance: NBSP and plain
// spaces stripped, thousands separators removed, comma accepted as the
// decimal separator. Unparsable values degrade to zero.
func ParseNumber(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	s := str(v)
	if s == "" {
		return 0
	}
	s = strings.NewReplacer(" ", "", " ", "", "€", "").Replace(s)
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		m := reNumber.FindString(s)
		if m == "" {
			return 0
		}
		d, err = decimal.NewFromString(m)
		if err != nil {
			return 0
		}
	}
	return d.InexactFloat64()
}

func listVals(v any) []string {
	switch l := v.(type) {
	case nil:
		return nil
	case []any:
		var out []string
		for _, x := range l {
			if s := str(x); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		var out []string
		for _, x := range l {
			if s := strings.TrimSpace(x); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		var out []string
		for _, p := range reListSplit.Split(str(v), -1) {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
}

func round6(f float64) float64 {
	return round6dec(decimal.NewFromFloat(f))
}

func round6dec(d decimal.Decimal) float64 {
	return d.Round(6).InexactFloat64()
}
