package models

import (
	"errors"
	"fmt"
)

// ValidationError marks a malformed event or report request. It is never
// retried; the caller sent something we cannot accept.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// ErrStoreUnavailable signals a transient backing-store failure. Ingestion
// queues and retries; aggregation fails the run and waits for the next tick.
var ErrStoreUnavailable = errors.New("backing store unavailable")

// ErrReportUnavailable is returned when no report exists for the requested
// type or window. The dashboard surfaces it explicitly instead of serving
// stale data.
var ErrReportUnavailable = errors.New("report unavailable")

// ErrDeliveryFailed marks a failed notification sink delivery. It is logged
// and counted, never propagated past the notifier.
var ErrDeliveryFailed = errors.New("alert delivery failed")

// PartialDataError records report sections that could not be computed. The
// report is still produced with those sections absent.
type PartialDataError struct {
	Sections []string
}

func (e *PartialDataError) Error() string {
	return fmt.Sprintf("partial report data, missing sections: %v", e.Sections)
}
