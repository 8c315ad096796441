package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertType categorizes what the detector found
type AlertType string

const (
	AlertTypeCostSpike      AlertType = "cost_spike"
	AlertTypeQualityDrop    AlertType = "quality_drop"
	AlertTypeCostAndQuality AlertType = "cost_and_quality"
	AlertTypeLatencySpike   AlertType = "latency_spike"
)

// AlertSeverity indicates how severe an alert is
type AlertSeverity string

const (
	AlertSeverityLow    AlertSeverity = "LOW"
	AlertSeverityMedium AlertSeverity = "MEDIUM"
	AlertSeverityHigh   AlertSeverity = "HIGH"
)

// AlertStatus represents the lifecycle state of an alert. Transitions are
// monotonic: pending -> sent -> acknowledged -> resolved.
type AlertStatus string

const (
	AlertStatusPending      AlertStatus = "pending"
	AlertStatusSent         AlertStatus = "sent"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// rank orders statuses for the monotonic-transition check
func (s AlertStatus) rank() int {
	switch s {
	case AlertStatusPending:
		return 0
	case AlertStatusSent:
		return 1
	case AlertStatusAcknowledged:
		return 2
	case AlertStatusResolved:
		return 3
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving to the target status is a forward
// move. Equal states are allowed so that re-applying an action is a no-op.
func (s AlertStatus) CanTransitionTo(target AlertStatus) bool {
	return target.rank() >= s.rank()
}

// Alert is a detected anomaly tied to one trace. At most one alert exists
// per (trace, span, alert type).
type Alert struct {
	ID             uuid.UUID     `json:"alertId"`
	TraceID        string        `json:"traceId"`
	SpanID         string        `json:"spanId"`
	ServiceName    string        `json:"serviceName"`
	Endpoint       string        `json:"endpoint"`
	Type           AlertType     `json:"alertType"`
	Severity       AlertSeverity `json:"severity"`
	Message        string        `json:"message"`
	BaselineValue  *float64      `json:"baselineValue,omitempty"`
	CurrentValue   float64       `json:"currentValue"`
	Threshold      float64       `json:"threshold"`
	IncreasePct    *float64      `json:"increasePercent,omitempty"`
	Status         AlertStatus   `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
	SentAt         *time.Time    `json:"sentAt,omitempty"`
	AcknowledgedAt *time.Time    `json:"acknowledgedAt,omitempty"`
	ResolvedAt     *time.Time    `json:"resolvedAt,omitempty"`
}

// AlertFilter represents filter options for querying alerts
type AlertFilter struct {
	Status      *AlertStatus
	Severity    *AlertSeverity
	Type        *AlertType
	ServiceName *string
	TraceID     *string
	FromTime    *time.Time
	ToTime      *time.Time
}

// AlertList represents a paginated list of alerts
type AlertList struct {
	Alerts     []Alert `json:"alerts"`
	TotalCount int64   `json:"totalCount"`
	HasMore    bool    `json:"hasMore"`
}

// NotificationPayload is the body delivered to configured webhook channels
type NotificationPayload struct {
	Alert        Alert  `json:"alert"`
	TraceURL     string `json:"trace_url"`
	DashboardURL string `json:"dashboard_url"`
}
