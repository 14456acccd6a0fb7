package models

import "time"

// SystemMetrics is a JSON snapshot of in-process counters.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	StatusTransitions        uint64    `json:"status_transitions"`
	ResourceAccesses         uint64    `json:"resource_accesses"`
	FanOutBatchesSent        uint64    `json:"fanout_batches_sent"`
	FanOutBatchesFailed      uint64    `json:"fanout_batches_failed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
