package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ';', SniffDelimiter("a;b;c\n1;2;3"))
	assert.Equal(t, ',', SniffDelimiter("a,b,c\n1,2,3"))
	assert.Equal(t, '\t', SniffDelimiter("a\tb\tc"))
	assert.Equal(t, '|', SniffDelimiter("a|b|c"))
}

func TestParseDelimited(t *testing.T) {
	rows, header, err := ParseDelimited("Nombre;Codigo\nMonitor;M27\nTeclado;K1\n")
	require.NoError(t, err)
	assert.Equal(t, []string{"Nombre", "Codigo"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Monitor", "M27"}, rows[0])
}

func TestCSVFeedFetch(t *testing.T) {
	body := "Nombre;Codigo;EAN;Precio;Stock;Peso;Familia\n" +
		"Monitor 27;M27;8400001;129,90;5;4,2 kg;Monitores\n" +
		"Sin stock;NS1;8400002;10,00;0;;Varios\n" +
		"Sin codigo ni ean;;;5,00;9;;Varios\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f := &csvFeed{
		log: zerolog.Nop(),
		cfg: csvFeedConfig{URL: srv.URL, MinStock: 1, VendorName: "acme"},
	}
	items, err := f.Fetch(context.Background())
	require.NoError(t, err)

	// Zero stock and identity-less rows are filtered out.
	require.Len(t, items, 1)
	it := items[0]
	assert.Equal(t, "Monitor 27", it.Name())
	assert.Equal(t, "M27", it.SKU())
	assert.Equal(t, "8400001", it.Barcode())
	assert.InDelta(t, 129.90, it.Cost(), 1e-9)
	assert.InDelta(t, 4.2, it.WeightKg(), 1e-9)
	assert.Equal(t, 5, it.VendorStock())
	assert.Equal(t, "Monitores", it.Category())
	assert.Equal(t, "acme", it.VendorName())
}

func TestHeaderLookupNormalizesAndStripsBOM(t *testing.T) {
	lookup := headerLookup([]string{"\ufeffNombre", "CÓDIGO", "ean"})
	assert.Equal(t, 0, lookup["nombre"])
	assert.Equal(t, 1, lookup["codigo"])
	assert.Equal(t, 2, lookup["ean"])
}
