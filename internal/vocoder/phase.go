package vocoder

import "math"

// Phase is a fixed-point phase value stored as signed 16-bit "turns": the
// full int16 range [-0x8000, 0x8000) represents one full turn of 2π
// radians, so wraparound is automatic bit truncation rather than an
// explicit modulo. See SPEC_FULL.md §9 (design notes) — implementations
// must preserve exp(i·π·rotation/0x8000) exactly or lose phase continuity.
type Phase int16

const phaseRadiansPerUnit = math.Pi / 0x8000

// PhaseFromRadians wraps r into a Phase, truncating to int16 the way the
// reference's signed 16-bit overflow does.
func PhaseFromRadians(r float64) Phase {
	v := r / phaseRadiansPerUnit
	return Phase(int64(math.Round(v)))
}

// Radians returns the phase in radians, in [-π, π).
func (p Phase) Radians() float64 {
	return float64(p) * phaseRadiansPerUnit
}

// Rotator returns exp(i·π·p/0x8000), the complex multiplier used to advance
// a bin's spectral value by this phase.
func (p Phase) Rotator() complex128 {
	r := p.Radians()
	s, c := math.Sincos(r)
	return complex(c, s)
}

// Add wraps around int16 the same way the original's fixed-point addition
// does, so repeated accumulation never drifts outside one turn.
func (p Phase) Add(q Phase) Phase {
	return Phase(int16(int32(p) + int32(q)))
}

// Sub is the inverse of Add.
func (p Phase) Sub(q Phase) Phase {
	return Phase(int16(int32(p) - int32(q)))
}
