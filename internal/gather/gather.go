// Package gather defines the interface shared by market data gathering
// jobs.
package gather

import "context"

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run executes one gathering pass. It returns early when ctx is
	// cancelled.
	Run(ctx context.Context) error
}
