package service

import (
	"errors"
	"fmt"

	"rfp/internal/domain"
)

// ItemFailure records one file or record that could not be ingested.
type ItemFailure struct {
	Item string
	Err  error
}

func (f ItemFailure) Error() string { return fmt.Sprintf("%s: %v", f.Item, f.Err) }

func (f ItemFailure) Unwrap() []error { return []error{domain.ErrIngestionItem, f.Err} }

// BatchResult is the outcome of a batch ingestion.
type BatchResult struct {
	// Chunks is the total number of chunks stored.
	Chunks int
	// Items is the number of files or records attempted.
	Items int
	// Skipped counts items that produced no text.
	Skipped  int
	Failures []ItemFailure
}

// Failed returns the number of failed items.
func (r BatchResult) Failed() int { return len(r.Failures) }

// Err joins all failures, or returns nil.
func (r BatchResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

func (r *BatchResult) fail(item string, err error) {
	r.Failures = append(r.Failures, ItemFailure{Item: item, Err: err})
}
