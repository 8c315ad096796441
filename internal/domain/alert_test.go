package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAlertStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from    AlertStatus
		to      AlertStatus
		allowed bool
	}{
		{AlertStatusPending, AlertStatusSent, true},
		{AlertStatusPending, AlertStatusAcknowledged, true},
		{AlertStatusPending, AlertStatusResolved, true},
		{AlertStatusSent, AlertStatusAcknowledged, true},
		{AlertStatusAcknowledged, AlertStatusResolved, true},
		{AlertStatusSent, AlertStatusPending, false},
		{AlertStatusResolved, AlertStatusAcknowledged, false},
		{AlertStatusResolved, AlertStatusPending, false},
		// Re-applying the same action is a no-op, not an error.
		{AlertStatusAcknowledged, AlertStatusAcknowledged, true},
		{AlertStatusResolved, AlertStatusResolved, true},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestBaselineWindow(t *testing.T) {
	assert.True(t, BaselineWindow1h.Valid())
	assert.True(t, BaselineWindow24h.Valid())
	assert.True(t, BaselineWindow7d.Valid())
	assert.False(t, BaselineWindow("2h").Valid())

	assert.Equal(t, "1h", string(BaselineWindow1h))
	assert.Equal(t, 7*24*time.Hour, BaselineWindow7d.Duration())
}
