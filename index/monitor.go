package index

import "github.com/poiesic/lumina/core"

// QueryMonitor provides hooks to observe a hybrid query.
// Implement this interface to track intermediate steps and results.
type QueryMonitor interface {
	Start(q Query)
	AfterScan(scanned, skipped int)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of QueryMonitor
type noopMonitor struct{}

var _ QueryMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ Query)                 {}
func (n *noopMonitor) AfterScan(_, _ int)            {}
func (n *noopMonitor) Finish(_ []*core.SearchResult) {}
