package domain

import (
	"time"
)

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// Page is one offset-paginated slice of a listing together with its totals.
type Page[T any] struct {
	Items        []T
	TotalRecords int
	TotalPages   int
	PageSize     int
	CurrentPage  int
}

// ScheduledConfirmation describes a pending auto-confirmation timer for an invoice.
type ScheduledConfirmation struct {
	InvoiceID      string
	NextInvocation time.Time
}

// Address is a shipping destination captured on an invoice.
type Address struct {
	Line     string
	District string
	Province string
	Country  string
}

// HealthStatus is the outcome of a dependency probe.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusError    HealthStatus = "error"
)

// SystemHealthCheck is the result of one dependency probe.
type SystemHealthCheck struct {
	Status    HealthStatus
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency probes.
type SystemHealthReport struct {
	Status      HealthStatus
	Version     string
	Environment string
	Uptime      time.Duration
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
}
