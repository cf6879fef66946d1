// Package feed supplies forex prices to the engine: an in-memory quote cache
// fed by a websocket stream, a REST client for batched lookups, and a
// Redis-backed last-known price used by the repair pass.
package feed

import "time"

// Quote is one observed price for a symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"` // "WS", "REST"
	IsStale   bool      `json:"is_stale"`
}

// Quote sources, by freshness priority (higher is better).
const (
	SourceWS   = "WS"
	SourceREST = "REST"
)

func sourcePriority(source string) int {
	switch source {
	case SourceWS:
		return 2
	case SourceREST:
		return 1
	default:
		return 0
	}
}
