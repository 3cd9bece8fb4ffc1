package location

import (
	"testing"

	"github.com/zwlucas/dsn-needs/internal/domain/needs"
)

func testIndex() *Index {
	return NewIndex([]Location{
		{Need: needs.NeedHygiene, Label: "Motel Shower", Pos: Point{X: 0, Y: 0, Z: 0}},
		{Need: needs.NeedSleep, Label: "Motel Bed", Pos: Point{X: 10, Y: 0, Z: 0}},
	})
}

func TestNearestPicksClosest(t *testing.T) {
	idx := testIndex()

	loc, dist, ok := idx.Nearest(Point{X: 8, Y: 0, Z: 0})
	if !ok {
		t.Fatalf("Expected a nearest location")
	}
	if loc.Label != "Motel Bed" {
		t.Errorf("Expected Motel Bed to be nearest, got %s", loc.Label)
	}
	if dist != 2 {
		t.Errorf("Expected distance 2, got %v", dist)
	}
}

func TestWithinRangeRespectsRadius(t *testing.T) {
	idx := testIndex()

	if _, ok := idx.WithinRange(Point{X: 1.5, Y: 0, Z: 0}, 2.0); !ok {
		t.Errorf("Expected the shower to be in range at distance 1.5")
	}
	if _, ok := idx.WithinRange(Point{X: 5, Y: 0, Z: 0}, 2.0); ok {
		t.Errorf("Expected no location in range at distance 5")
	}
}

func TestEmptyIndex(t *testing.T) {
	idx := NewIndex(nil)
	if _, _, ok := idx.Nearest(Point{}); ok {
		t.Errorf("Expected no nearest location in an empty index")
	}
	if _, ok := idx.WithinRange(Point{}, 100); ok {
		t.Errorf("Expected no location in range in an empty index")
	}
}
