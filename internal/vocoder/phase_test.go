package vocoder

import (
	"math"
	"math/cmplx"
	"testing"
)

const phaseTolerance = 1e-3

func TestPhaseFromRadiansRoundTrip(t *testing.T) {
	tests := []float64{0, math.Pi / 2, -math.Pi / 2, math.Pi - 0.001, -math.Pi + 0.001}
	for _, r := range tests {
		p := PhaseFromRadians(r)
		got := p.Radians()
		if math.Abs(got-r) > phaseTolerance {
			t.Fatalf("PhaseFromRadians(%f).Radians() = %f, want ~%f", r, got, r)
		}
	}
}

func TestPhaseAddWrapsAroundOneTurn(t *testing.T) {
	// 0x4000 + 0x4000 = 0x8000, which wraps to -0x8000 in int16, i.e. -pi.
	a := Phase(0x4000)
	b := Phase(0x4000)
	sum := a.Add(b)
	if sum != Phase(-0x8000) {
		t.Fatalf("Add overflow: got %d, want %d", sum, int16(-0x8000))
	}
}

func TestPhaseSubIsInverseOfAdd(t *testing.T) {
	a := Phase(1234)
	b := Phase(-5678)
	if got := a.Add(b).Sub(b); got != a {
		t.Fatalf("Add then Sub: got %d, want %d", got, a)
	}
}

func TestPhaseRotatorUnitMagnitude(t *testing.T) {
	for _, v := range []Phase{0, 1000, -1000, 0x7fff, -0x8000} {
		mag := cmplx.Abs(v.Rotator())
		if math.Abs(mag-1) > 1e-9 {
			t.Fatalf("Rotator(%d) magnitude = %f, want 1", v, mag)
		}
	}
}

func TestPhaseRotatorMatchesEulerFormula(t *testing.T) {
	p := Phase(0x2000) // quarter turn = pi/2
	got := p.Rotator()
	want := cmplx.Exp(complex(0, p.Radians()))
	if cmplx.Abs(got-want) > 1e-9 {
		t.Fatalf("Rotator(pi/2) = %v, want %v", got, want)
	}
}
