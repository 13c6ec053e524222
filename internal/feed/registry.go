package feed

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Fetcher produces the canonical item list for one run. Unrecoverable
// failures (bad credentials, unreachable service) return an error and abort
// the run; per-item data-quality problems are silently omitted from the
// result instead.
type Fetcher interface {
	Fetch(ctx context.Context) ([]Item, error)
}

// Factory builds a Fetcher from its raw JSON parameters.
type Factory func(log zerolog.Logger, raw json.RawMessage) (Fetcher, error)

var (
	regMu    sync.RWMutex
	registry = map[string]Factory{}
)

func Register(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

func Get(name string) (Factory, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

func All() map[string]Factory {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make(map[string]Factory, len(registry))
	for k, v := range registry {
		out[k] = v
	}
	return out
}
