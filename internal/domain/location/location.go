// Package location defines the domain entity for world-anchored
// interaction points. This package is PURE and must NOT import any
// infrastructure packages.
package location

import (
	"math"

	"github.com/zwlucas/dsn-needs/internal/domain/needs"
)

// Point is a position in world space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Location represents a spot where a player can restore one need.
type Location struct {
	Need  needs.Need `json:"need"`
	Label string     `json:"label"`
	Pos   Point      `json:"pos"`
}

// DistanceTo returns the euclidean distance between the location and a point.
func (l Location) DistanceTo(p Point) float64 {
	dx := l.Pos.X - p.X
	dy := l.Pos.Y - p.Y
	dz := l.Pos.Z - p.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Index holds the configured location list for proximity lookups.
type Index struct {
	locations []Location
}

// NewIndex creates an index over a fixed location list.
func NewIndex(locations []Location) *Index {
	return &Index{locations: append([]Location(nil), locations...)}
}

// All returns the indexed locations.
func (i *Index) All() []Location {
	return i.locations
}

// Nearest returns the closest location to a point and its distance.
// ok is false when the index is empty.
func (i *Index) Nearest(p Point) (loc Location, dist float64, ok bool) {
	dist = math.MaxFloat64
	for _, l := range i.locations {
		if d := l.DistanceTo(p); d < dist {
			loc, dist, ok = l, d, true
		}
	}
	return loc, dist, ok
}

// WithinRange returns the closest location within radius of a point.
func (i *Index) WithinRange(p Point, radius float64) (Location, bool) {
	loc, dist, ok := i.Nearest(p)
	if !ok || dist > radius {
		return Location{}, false
	}
	return loc, true
}
