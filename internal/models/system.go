package models

import "time"

// SystemMetrics aggregates in-process counters reported by the health endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	AppointmentsBooked       uint64    `json:"appointments_booked"`
	BookingConflicts         uint64    `json:"booking_conflicts"`
	RemindersSent            uint64    `json:"reminders_sent"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
