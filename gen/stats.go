package gen

import "sync/atomic"

// counters accumulate over the generation's lifetime; all fields are
// updated lock-free from allocation and resize paths.
type counters struct {
	expansions      atomic.Uint64
	shrinks         atomic.Uint64
	expandFailures  atomic.Uint64
	pretouchTouches atomic.Uint64
}

// Stats is a point-in-time snapshot of the generation's sizes and
// lifetime counters.
type Stats struct {
	Name            string `json:"name"`
	ReservedBytes   uint64 `json:"reserved_bytes"`
	CommittedBytes  uint64 `json:"committed_bytes"`
	UsedBytes       uint64 `json:"used_bytes"`
	FreeBytes       uint64 `json:"free_bytes"`
	MinBytes        uint64 `json:"min_bytes"`
	MaxBytes        uint64 `json:"max_bytes"`
	Expansions      uint64 `json:"expansions"`
	Shrinks         uint64 `json:"shrinks"`
	ExpandFailures  uint64 `json:"expand_failures"`
	PretouchTouches uint64 `json:"pretouch_touches"`
}

// Stats snapshots the generation. The sizes are read without the
// resize lock, so a snapshot taken during concurrent activity is
// advisory rather than exact.
func (g *Generation) Stats() Stats {
	return Stats{
		Name:            g.name,
		ReservedBytes:   g.ReservedBytes(),
		CommittedBytes:  g.CapacityBytes(),
		UsedBytes:       g.UsedBytes(),
		FreeBytes:       g.FreeBytes(),
		MinBytes:        g.minGenSize,
		MaxBytes:        g.maxGenSize,
		Expansions:      g.counters.expansions.Load(),
		Shrinks:         g.counters.shrinks.Load(),
		ExpandFailures:  g.counters.expandFailures.Load(),
		PretouchTouches: g.counters.pretouchTouches.Load(),
	}
}
