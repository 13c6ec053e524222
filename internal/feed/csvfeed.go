package feed

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html/charset"
)

// csvFeed is the built-in transport for delimited tariff files. Vendors are
// sloppy about delimiters, encodings and header names, so all three are
// auto-detected.
type csvFeed struct {
	log zerolog.Logger
	cfg csvFeedConfig
}

type csvFeedConfig struct {
	URL        string `json:"url"`
	Token      string `json:"token"`
	MinStock   int    `json:"min_stock"`
	Limit      int    `json:"limit"`
	VendorName string `json:"vendor_name"`
}

// Column synonyms, normalized via NormKey. The Spanish variants come from
// the vendor tariffs this importer grew up on.
var (
	colName    = []string{"titulo", "nombre", "name", "title"}
	colCode    = []string{"codigointerno", "codigo", "sku", "ref", "referencia", "productcode", "itemcode", "mpn", "partnumber"}
	colBarcode = []string{"ean/upc", "ean", "ean13", "barcode", "codigo barras", "codigobarras"}
	colImage   = []string{"imagen", "image", "image_url", "urlimagen", "foto"}
	colDesc    = []string{"ficha", "especificaciones", "descripcion", "description", "desc", "caracteristicas"}
	colCat     = []string{"titulosubfamilia", "subfamilia", "titulofamilia", "familia", "categoria", "family", "grupo", "seccion"}
	colPrice   = []string{"precio", "pvd", "precio coste", "coste", "cost", "price"}
	colStock   = []string{"stock", "stocktotal", "stock total", "disponible", "stockcentral", "stockpalma", "stockexterno", "qty", "cantidad"}
	colWeight  = []string{"peso", "weight"}
	colExtra   = []string{"imagenes_adicionales", "imagenes adicionales", "extra_images", "image_urls"}
)

func (f *csvFeed) Fetch(ctx context.Context) ([]Item, error) {
	if f.cfg.URL == "" {
		return nil, fmt.Errorf("csv feed: missing url")
	}

	client := NewClient(f.log)
	client.Token = f.cfg.Token

	resp, err := client.Do(ctx, http.MethodGet, f.cfg.URL, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("csv feed %s: %w", f.cfg.URL, err)
	}
	defer resp.Body.Close()

	// Decode whatever 8-bit encoding the vendor serves into UTF-8.
	rdr, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("csv feed %s: charset: %w", f.cfg.URL, err)
	}
	raw, err := io.ReadAll(rdr)
	if err != nil {
		return nil, fmt.Errorf("csv feed %s: read: %w", f.cfg.URL, err)
	}

	rows, header, err := ParseDelimited(string(raw))
	if err != nil {
		return nil, fmt.Errorf("csv feed %s: %w", f.cfg.URL, err)
	}

	lookup := headerLookup(header)
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		it := f.itemFromRow(lookup, row)
		if it == nil {
			continue
		}
		items = append(items, it)
		if f.cfg.Limit > 0 && len(items) >= f.cfg.Limit {
			break
		}
	}

	f.log.Info().Int("items", len(items)).Int("rows", len(rows)).Msg("csv feed fetched")
	return items, nil
}

func (f *csvFeed) itemFromRow(lookup map[string]int, row []string) Item {
	get := func(cands []string) string {
		for _, c := range cands {
			if idx, ok := lookup[NormKey(c)]; ok && idx < len(row) {
				if v := strings.TrimSpace(row[idx]); v != "" && v != "null" && v != "None" {
					return v
				}
			}
		}
		return ""
	}

	name := get(colName)
	if name == "" {
		return nil
	}
	stock := 0
	for _, c := range colStock {
		if idx, ok := lookup[NormKey(c)]; ok && idx < len(row) {
			stock += int(ParseNumber(row[idx]))
		}
	}
	if stock < f.cfg.MinStock {
		return nil
	}

	it := Item{
		"name":         name,
		"sku":          get(colCode),
		"barcode":      get(colBarcode),
		"image_url":    get(colImage),
		"category":     get(colCat),
		"cost":         get(colPrice),
		"vendor_stock": stock,
	}
	if w := get(colWeight); w != "" {
		it["weight"] = w
	}
	if d := get(colDesc); d != "" {
		it["description_ecommerce"] = d
	}
	if extra := get(colExtra); extra != "" {
		it["image_urls"] = extra
	}
	if f.cfg.VendorName != "" {
		it["vendor_name"] = f.cfg.VendorName
	}
	if it.SKU() == "" && it.Barcode() == "" {
		return nil
	}
	return it
}

// ParseDelimited sniffs the delimiter (semicolon, comma, tab or pipe) on a
// leading sample and parses the whole table. The first row is the header.
func ParseDelimited(text string) (rows [][]string, header []string, err error) {
	delim := SniffDelimiter(text)
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse delimited: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, nil
	}
	return all[1:], all[0], nil
}

// SniffDelimiter picks the candidate occurring most often in the first 4KB.
func SniffDelimiter(text string) rune {
	sample := text
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	best, bestCount := ';', 0
	for _, c := range []rune{';', ',', '\t', '|'} {
		if n := strings.Count(sample, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func headerLookup(header []string) map[string]int {
	lookup := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		if k := NormKey(h); k != "" {
			if _, seen := lookup[k]; !seen {
				lookup[k] = i
			}
		}
	}
	return lookup
}

func init() {
	Register("csv", func(log zerolog.Logger, raw json.RawMessage) (Fetcher, error) {
		var cfg csvFeedConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("csv feed config: %w", err)
		}
		return &csvFeed{log: log, cfg: cfg}, nil
	})
}
