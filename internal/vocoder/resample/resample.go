// Package resample implements the ramped bilinear/nearest resample kernel
// described in SPEC_FULL.md §4.2, grounded on
// _examples/original_source/src/Resample.h. It is a different algorithm
// from the teacher's dsp/resample (polyphase FIR), which this module does
// not carry: the phase vocoder's invariants depend on the exact
// padded-buffer/ramped-ratio arithmetic the original specifies, not on a
// generic high-quality resampler, so this package implements its own
// kernel rather than adapting the teacher's.
package resample

import (
	"fmt"
	"math"
)

// Interpolation selects the per-sample kernel.
type Interpolation int

const (
	Nearest Interpolation = iota
	Bilinear
)

// Mode selects the direction of the resample: ModeInput sums the caller's
// External samples into the padded Internal buffer (acting as a prefilter
// gain controlled by the instantaneous ratio); ModeOutput samples Internal
// into the caller's External buffer.
type Mode int

const (
	ModeInput Mode = iota
	ModeOutput
)

// Operation is one side (input or output) of a grain's resample setup.
type Operation struct {
	Enabled bool
	Ratio   float64
}

// Operations bundles the input-side and output-side Operation.
type Operations struct {
	Input  Operation
	Output Operation
}

// SampleRates mirrors vocoder.SampleRates without importing it, avoiding an
// import cycle between vocoder and vocoder/resample.
type SampleRates struct {
	Input  int
	Output int
}

// ResampleMode mirrors vocoder.ResampleMode's values by position.
type ResampleMode int

const (
	AutoInOut ResampleMode = iota
	AutoIn
	AutoOut
	ForceIn
	ForceOut
)

// Setup derives resampleRatio = pitch * rates.Input/rates.Output and
// distributes it between the input and output Operation per the routing
// table in SPEC_FULL.md §4.2. It returns the residual speed correction fed
// into the caller's hop arithmetic.
func Setup(rates SampleRates, pitch float64, mode ResampleMode) (Operations, float64) {
	resampleRatio := pitch * float64(rates.Input) / float64(rates.Output)

	var ops Operations
	ops.Input.Ratio = 1
	ops.Output.Ratio = 1

	if resampleRatio != 1 {
		switch mode {
		case ForceIn, AutoIn:
			ops.Input = Operation{Enabled: true, Ratio: resampleRatio}
		case ForceOut, AutoOut:
			ops.Output = Operation{Enabled: true, Ratio: resampleRatio}
		default: // AutoInOut: route by sign of log(ratio)
			if resampleRatio > 1 {
				ops.Input = Operation{Enabled: true, Ratio: resampleRatio}
			} else {
				ops.Output = Operation{Enabled: true, Ratio: resampleRatio}
			}
		}
	}

	residualSpeed := (float64(rates.Input) / float64(rates.Output)) / ops.Output.Ratio
	return ops, residualSpeed
}

// Internal is the padded interior buffer a Run call reads from (ModeOutput)
// or accumulates into (ModeInput). Data carries Padding zero samples at
// each end so taps never address out of range.
type Internal struct {
	Data       []float64
	FrameCount int
	Padding    int
	// Offset is the fractional read/write position, carried across calls
	// so consecutive Run invocations stay phase-aligned.
	Offset float64
}

// NewInternal allocates an Internal buffer with the given frame count and
// padding, zeroed.
func NewInternal(frameCount, padding int) *Internal {
	return &Internal{
		Data:       make([]float64, frameCount+2*padding),
		FrameCount: frameCount,
		Padding:    padding,
	}
}

func (in *Internal) at(i int) float64 {
	j := i + in.Padding
	if j < 0 || j >= len(in.Data) {
		return 0
	}
	return in.Data[j]
}

func (in *Internal) add(i int, v float64) {
	j := i + in.Padding
	if j < 0 || j >= len(in.Data) {
		return
	}
	in.Data[j] += v
}

// Reset zeroes the internal buffer and offset.
func (in *Internal) Reset() {
	for i := range in.Data {
		in.Data[i] = 0
	}
	in.Offset = 0
}

// External is the caller-owned range with an unmuted sub-range
// [UnmutedBegin, UnmutedEnd).
type External struct {
	Data             []float64
	UnmutedBegin     int
	UnmutedEnd       int
	ActiveFrameCount int
}

// IdealFrameCount computes the external active frame count implied by the
// internal buffer's remaining length and the ramped ratio endpoints, per
// SPEC_FULL.md §4.2.
func IdealFrameCount(internal *Internal, ratioBegin, ratioEnd float64) int {
	denom := ratioBegin + ratioEnd
	if denom == 0 {
		return 0
	}
	return int(math.Round(2 * (float64(internal.FrameCount) - internal.Offset) / denom))
}

// AlignRatioEnd back-solves ratioEnd so that Run, given n active external
// frames, consumes exactly the remaining internal buffer.
func AlignRatioEnd(internal *Internal, ratioBegin float64, n int) float64 {
	if n <= 0 {
		return ratioBegin
	}
	return 2*(float64(internal.FrameCount)-internal.Offset)/float64(n) - ratioBegin
}

// driftError is returned when the final offset drifts beyond tolerance,
// which SPEC_FULL.md §7 treats as a fatal programming error at the caller.
type driftError struct {
	drift, tolerance float64
}

func (e *driftError) Error() string {
	return fmt.Sprintf("resample: offset drift %.6f exceeds tolerance %.6f", e.drift, e.tolerance)
}

// Run performs one resample call over external.ActiveFrameCount samples,
// ramping the ratio linearly from ratioBegin to ratioEnd across the call.
func Run(interp Interpolation, mode Mode, internal *Internal, external *External, ratioBegin, ratioEnd float64) error {
	n := external.ActiveFrameCount
	if n <= 0 {
		return nil
	}

	pos := internal.Offset
	for i := 0; i < n; i++ {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		ratio := ratioBegin + (ratioEnd-ratioBegin)*t

		extIdx := external.UnmutedBegin + i
		if extIdx >= external.UnmutedBegin && extIdx < external.UnmutedEnd && extIdx < len(external.Data) && extIdx >= 0 {
			switch mode {
			case ModeInput:
				writeTap(internal, pos, external.Data[extIdx]*ratio)
			case ModeOutput:
				external.Data[extIdx] = readTap(interp, internal, pos)
			}
		}
		pos += ratio
	}

	drift := pos - float64(internal.FrameCount)
	tolerance := math.Max(0.01, 1.1*ratioEnd)
	internal.Offset = pos
	if math.Abs(drift) > tolerance {
		return &driftError{drift: drift, tolerance: tolerance}
	}
	return nil
}

func readTap(interp Interpolation, internal *Internal, pos float64) float64 {
	switch interp {
	case Nearest:
		return internal.at(int(math.Round(pos)))
	default: // Bilinear
		i0 := int(math.Floor(pos))
		frac := pos - float64(i0)
		return internal.at(i0)*(1-frac) + internal.at(i0+1)*frac
	}
}

func writeTap(internal *Internal, pos float64, v float64) {
	i0 := int(math.Floor(pos))
	frac := pos - float64(i0)
	internal.add(i0, v*(1-frac))
	internal.add(i0+1, v*frac)
}
