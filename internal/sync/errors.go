// Package sync implements the catalog synchronization engine: identity
// resolution, idempotent field merge, supplier-link dedup, category
// resolution, image/gallery reconciliation and run statistics.
package sync

import "errors"

// ErrImageUndecodable marks downloads whose payload is not a readable image
// (wrong signature or empty body). It is a soft failure: it never counts
// against a run's failed total, only against the "no extra image" counter.
var ErrImageUndecodable = errors.New("payload is not a readable image")

// FetchError is fatal for the whole run: nothing was processed.
type FetchError struct {
	Config string
	Err    error
}

func (e *FetchError) Error() string { return "fetch for " + e.Config + ": " + e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }
