package models

import (
	"time"
)

// ServiceState is the tri-state probe result plus the deliberate-skip state.
type ServiceState string

const (
	StateDisabled    ServiceState = "disabled"
	StateUnavailable ServiceState = "unavailable"
	StateDegraded    ServiceState = "degraded"
	StateAvailable   ServiceState = "available"
)

// OverallStatus is the derived platform status computed on read.
type OverallStatus string

const (
	StatusHealthy   OverallStatus = "healthy"
	StatusDegraded  OverallStatus = "degraded"
	StatusUnhealthy OverallStatus = "unhealthy"
)

// ServiceOutcome records the result of the most recent probe of one service.
// Outcomes are constructed fully before publication and owned by the
// aggregator once recorded.
type ServiceOutcome struct {
	Service   string       `json:"name"`
	State     ServiceState `json:"state"`
	Error     string       `json:"error,omitempty"`
	CheckedAt time.Time    `json:"checked_at"`
	Enabled   bool         `json:"enabled"`
	Required  bool         `json:"required"`
}

// PlatformStatus is the aggregated health document served by the status API.
type PlatformStatus struct {
	OverallStatus OverallStatus    `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Services      []ServiceOutcome `json:"services"`
}

// StatusChange captures a service transitioning between states across two
// probe rounds.
type StatusChange struct {
	Service   string       `json:"service"`
	OldState  ServiceState `json:"old_state"`
	NewState  ServiceState `json:"new_state"`
	Timestamp time.Time    `json:"timestamp"`
}

// DegradedError marks a dependency that answered its handshake but failed a
// secondary capability check. Probes report it as StateDegraded instead of
// StateUnavailable.
type DegradedError struct {
	Reason string
}

func (e *DegradedError) Error() string {
	return "capability check failed: " + e.Reason
}

// Realtime message types used when broadcasting status over the gateway.
const (
	MessageTypePlatformStatus  = "platform_status"
	MessageTypeServiceRecovery = "service_recovery"
	MessageTypeStatusChange    = "service_status_change"
)

// StatusTopic is the realtime topic status changes are published on.
const StatusTopic = "system:status"
