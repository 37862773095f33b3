package models

import "time"

// SystemMetrics is a lightweight snapshot of process counters.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	GatewayRequests          uint64    `json:"gateway_requests"`
	GatewayFailures          uint64    `json:"gateway_failures"`
	Fallbacks                uint64    `json:"fallbacks"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// RosterStatus reports backend reachability alongside the view-model state.
type RosterStatus struct {
	GatewayConfigured bool          `json:"gateway_configured"`
	GatewayReachable  bool          `json:"gateway_reachable"`
	GatewayError      string        `json:"gateway_error,omitempty"`
	LastSource        DataSource    `json:"last_source,omitempty"`
	Sort              SortField     `json:"sort"`
	Indicators        Indicators    `json:"indicators"`
	Metrics           SystemMetrics `json:"metrics"`
	ExportsPending    int           `json:"exports_pending"`
	CheckedAt         time.Time     `json:"checked_at"`
}
