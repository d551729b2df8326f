// Package gather loads external market data into the tick store.
package gather

import (
	"context"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs the import. It returns when the source is exhausted or
	// ctx is cancelled.
	Run(ctx context.Context) error
}
