package d3

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestBoxInclude(t *testing.T) {
	bb := EmptyBox()
	if !bb.Empty() || bb.Size() != (r3.Vec{}) {
		t.Fatalf("empty box: got %+v size %v", bb, bb.Size())
	}
	pts := []r3.Vec{{X: 1, Y: -2, Z: 3}, {X: -1, Y: 2, Z: 0}, {X: 0, Y: 0, Z: 1}}
	bb = bb.Include(pts[0])
	if bb.Empty() || bb.Size() != (r3.Vec{}) || bb.Center() != pts[0] {
		t.Fatalf("single point box: got %+v", bb)
	}
	for _, p := range pts[1:] {
		bb = bb.Include(p)
	}
	if bb.Size() != (r3.Vec{X: 2, Y: 4, Z: 3}) {
		t.Errorf("got size %v", bb.Size())
	}
	if bb.Center() != (r3.Vec{Z: 1.5}) {
		t.Errorf("got center %v", bb.Center())
	}
	for _, p := range pts {
		if !bb.Contains(p) {
			t.Errorf("box %+v does not contain included point %v", bb, p)
		}
	}
	if bb.Contains(r3.Vec{X: 1.5}) {
		t.Error("box contains outside point")
	}
}

func TestUnitOrZero(t *testing.T) {
	if got := UnitOrZero(r3.Vec{}); got != (r3.Vec{}) {
		t.Errorf("zero vector: got %v", got)
	}
	if got := UnitOrZero(r3.Vec{Y: -3}); got != (r3.Vec{Y: -1}) {
		t.Errorf("got %v, want -Y", got)
	}
}

func TestFloorDiv(t *testing.T) {
	got := FloorDiv(r3.Vec{X: -0.1, Y: 0.99, Z: 2}, 1)
	if got != (r3.Vec{X: -1, Y: 0, Z: 2}) {
		t.Errorf("got %v", got)
	}
}
