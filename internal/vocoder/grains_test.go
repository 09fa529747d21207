package vocoder

import (
	"math"
	"testing"
)

func TestNewGrainsFlushedBeforeAnyRequest(t *testing.T) {
	g := NewGrains(1, 6)
	if !g.Flushed() {
		t.Fatalf("freshly constructed Grains should be flushed (all positions non-finite)")
	}
}

func TestGrainsFlushedBecomesFalseAfterFiniteRequest(t *testing.T) {
	g := NewGrains(1, 6)
	g.At(0).Request.Position = 0
	if g.Flushed() {
		t.Fatalf("Grains with one finite-position slot should not be flushed")
	}
}

func TestGrainsRotateCyclesLogicalOrder(t *testing.T) {
	g := NewGrains(1, 6)
	original := [4]*Grain{g.At(0), g.At(1), g.At(2), g.At(3)}

	g.Rotate()

	// The oldest slot (was At(3)) becomes the new current (At(0)); every
	// other slot shifts one position older.
	if g.At(0) != original[3] {
		t.Fatalf("after Rotate, At(0) should be the previous At(3)")
	}
	if g.At(1) != original[0] {
		t.Fatalf("after Rotate, At(1) should be the previous At(0)")
	}
	if g.At(2) != original[1] {
		t.Fatalf("after Rotate, At(2) should be the previous At(1)")
	}
	if g.At(3) != original[2] {
		t.Fatalf("after Rotate, At(3) should be the previous At(2)")
	}
}

func TestGrainsRotateSwapsSpectralBuffers(t *testing.T) {
	g := NewGrains(1, 6)
	marker := []Phase{42}
	g.At(2).Phase = marker
	previousPhase := g.At(0).Phase

	g.Rotate()

	// Rotate swaps the spectral buffers of the new current and the slot
	// about to be emitted (the old At(2), now At(3)); the old current,
	// now previous, keeps its own buffer.
	if len(g.At(0).Phase) != 1 || g.At(0).Phase[0] != Phase(42) {
		t.Fatalf("expected Phase marker to end up on the new-current slot after the rotation swap")
	}
	if len(g.At(1).Phase) != len(previousPhase) || &g.At(1).Phase[0] != &previousPhase[0] {
		t.Fatalf("expected new-previous slot to keep its own Phase buffer across the swap, got %+v", g.At(1).Phase)
	}
}

func TestGrainRequestPositionFiniteDistinguishesFlush(t *testing.T) {
	finite := Request{Position: 100}
	flush := Request{Position: math.NaN()}
	if !finite.PositionFinite() {
		t.Fatalf("finite position should report PositionFinite=true")
	}
	if flush.PositionFinite() {
		t.Fatalf("NaN position should report PositionFinite=false")
	}
}
