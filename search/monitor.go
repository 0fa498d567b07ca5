package search

import "time"

// Monitor observes the outcome of each retrieval.
// Exactly one method is called per Retrieve call.
type Monitor interface {
	RetrievalHit(contexts int, elapsed time.Duration)
	RetrievalTimeout(elapsed time.Duration)
	RetrievalError(err error, elapsed time.Duration)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) RetrievalHit(_ int, _ time.Duration)     {}
func (n *noopMonitor) RetrievalTimeout(_ time.Duration)        {}
func (n *noopMonitor) RetrievalError(_ error, _ time.Duration) {}
