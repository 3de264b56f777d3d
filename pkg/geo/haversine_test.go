package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm(t *testing.T) {
	// Bangalore city centre to Mysore, roughly 140km.
	d := DistanceKm(12.9716, 77.5946, 12.2958, 76.6394)
	assert.InDelta(t, 140, d, 10)

	assert.Zero(t, DistanceKm(12.9716, 77.5946, 12.9716, 77.5946))
}

func TestWithinRadius(t *testing.T) {
	// Two points inside the same city, a few km apart.
	assert.True(t, WithinRadius(12.9716, 77.5946, 12.9352, 77.6245, 10))
	assert.False(t, WithinRadius(12.9716, 77.5946, 12.2958, 76.6394, 10))
}
