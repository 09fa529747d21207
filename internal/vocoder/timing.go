package vocoder

import "math"

// Timing derives the hop/transform-length schedule from a sample-rate pair
// and a log2 hop adjustment, per SPEC_FULL.md §4.1.
type Timing struct {
	SampleRates          SampleRates
	Log2SynthesisHop     int
	Log2TransformLength int
}

// NewTiming chooses log2SynthesisHop so the synthesis hop corresponds to
// roughly 10ms at the output rate, then applies log2SynthesisHopAdjust
// (-1 halves the hop for lower latency / higher granular frequency; +1
// doubles it, trading latency for denser-tone quality).
func NewTiming(rates SampleRates, log2SynthesisHopAdjust int) Timing {
	nominalHop := float64(rates.Output) * 0.01
	if nominalHop < 1 {
		nominalHop = 1
	}
	log2Hop := int(math.Round(mathLog2(nominalHop)))
	log2Hop += log2SynthesisHopAdjust
	if log2Hop < 2 {
		log2Hop = 2
	}
	return Timing{
		SampleRates:          rates,
		Log2SynthesisHop:     log2Hop,
		Log2TransformLength: log2Hop + 3,
	}
}

// SynthesisHop is the nominal inter-grain stride in output frames.
func (t Timing) SynthesisHop() int {
	return 1 << t.Log2SynthesisHop
}

// TransformLength is the nominal FFT length: 8x the synthesis hop.
func (t Timing) TransformLength() int {
	return 1 << t.Log2TransformLength
}

// maxInputRatioBound is the implementation's upper bound on input-side
// resample ratio used for conservative InputChunk / buffer sizing; the
// reference derives the equivalent bound from its resampler's supported
// pitch range.
const maxInputRatioBound = 4.0

// MaxInputFrameCount returns an upper bound on any InputChunk's width,
// covering the worst case of input-side resampling stretching the window.
func (t Timing) MaxInputFrameCount() int {
	n := t.TransformLength()
	half := int(math.Ceil(float64(n)/2*(maxInputRatioBound+1))) + 1
	return 2*half + 4
}

// Preroll shifts request.Position back so the pipeline is primed with
// transformLength/(2*synthesisHop) grains of lookahead by the time playback
// reaches the original position, and marks the request discontinuous.
func (t Timing) Preroll(req *Request) {
	hop := float64(t.SynthesisHop())
	n := float64(t.TransformLength())
	grains := math.Ceil(n / (2 * hop))
	req.Position -= grains * req.Speed * hop
	req.Reset = true
}

// Next advances request.Position by one synthesis hop's worth of input
// frames and clears Reset.
func (t Timing) Next(req *Request) {
	req.Position += req.Speed * float64(t.SynthesisHop())
	req.Reset = false
}
