package solar

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks a failed or non-200 provider call.
	ErrTransport = errors.New("solcast transport error")
	// ErrCacheMiss is returned by a Cache holding no snapshot.
	ErrCacheMiss = errors.New("no cached snapshot")
	// ErrCacheCorrupt is returned by a Cache whose snapshot cannot be read.
	ErrCacheCorrupt = errors.New("cached snapshot is corrupt")
	// ErrNoData is returned when aggregation leaves no usable day.
	ErrNoData = errors.New("no daily data available")
)

// TransportError describes the fetch that aborted a refresh.
type TransportError struct {
	Site       string
	Category   Category
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s for %s: status %d: %v", e.Category, e.Site, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetching %s for %s: %v", e.Category, e.Site, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
