package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Baseline percentiles must be computed from successful traces only;
// error traces carry zero or partial cost.
func TestCostSamplesQuerySelectsSuccessfulTracesOnly(t *testing.T) {
	assert.Contains(t, costSamplesQuery, "status = 'success'")
	assert.Contains(t, costSamplesQuery, "ts >= $3")
	assert.Contains(t, costSamplesQuery, "LIMIT $4")
}
