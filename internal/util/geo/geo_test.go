package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKmZero(t *testing.T) {
	p := Point{Lat: 37.7749, Lon: -122.4194}
	assert.Equal(t, 0.0, DistanceKm(p, p))
}

func TestDistanceKmKnownPair(t *testing.T) {
	sf := Point{Lat: 37.7749, Lon: -122.4194}
	la := Point{Lat: 34.0522, Lon: -118.2437}
	d := DistanceKm(sf, la)
	assert.InDelta(t, 559, d, 3)
	assert.Equal(t, d, DistanceKm(la, sf))
}

func TestDistanceKmShortRange(t *testing.T) {
	a := Point{Lat: 0, Lon: 0}
	b := Point{Lat: 0.0045, Lon: 0}
	assert.InDelta(t, 0.5, DistanceKm(a, b), 0.01)
}
