package feed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// jsonFeed is the built-in transport for JSON endpoints returning either a
// bare array of objects or an object wrapping the list under a common key.
type jsonFeed struct {
	log zerolog.Logger
	cfg jsonFeedConfig
}

type jsonFeedConfig struct {
	URL        string `json:"url"`
	Token      string `json:"token"`
	MinStock   int    `json:"min_stock"`
	Limit      int    `json:"limit"`
	VendorName string `json:"vendor_name"`
}

func (f *jsonFeed) Fetch(ctx context.Context) ([]Item, error) {
	if f.cfg.URL == "" {
		return nil, fmt.Errorf("json feed: missing url")
	}

	client := NewClient(f.log)
	client.Token = f.cfg.Token

	data, err := client.Get(ctx, f.cfg.URL, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("json feed %s: %w", f.cfg.URL, err)
	}

	rows, err := decodeItemList(data)
	if err != nil {
		return nil, fmt.Errorf("json feed %s: %w", f.cfg.URL, err)
	}

	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		it := Item(row)
		// Data-quality rejects are omitted, never surfaced as errors.
		if it.Name() == "" {
			continue
		}
		if f.cfg.MinStock > 0 && it.VendorStock() < f.cfg.MinStock {
			continue
		}
		if f.cfg.VendorName != "" && it.VendorName() == "" {
			it["vendor_name"] = f.cfg.VendorName
		}
		items = append(items, it)
		if f.cfg.Limit > 0 && len(items) >= f.cfg.Limit {
			break
		}
	}

	f.log.Info().Int("items", len(items)).Int("rows", len(rows)).Msg("json feed fetched")
	return items, nil
}

// decodeItemList accepts a bare array or {items|data|results: [...]}.
func decodeItemList(data []byte) ([]map[string]any, error) {
	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err == nil {
		return rows, nil
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	for _, k := range []string{"items", "data", "results", "Items"} {
		if raw, ok := wrapper[k]; ok {
			if err := json.Unmarshal(raw, &rows); err == nil {
				return rows, nil
			}
		}
	}
	return nil, fmt.Errorf("decode: no item list found")
}

func init() {
	Register("json", func(log zerolog.Logger, raw json.RawMessage) (Fetcher, error) {
		var cfg jsonFeedConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("json feed config: %w", err)
		}
		return &jsonFeed{log: log, cfg: cfg}, nil
	})
}
