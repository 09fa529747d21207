// Package bungee is a phase-vocoder time-stretching and pitch-shifting
// engine: given a sequence of audio frames and a time-varying speed/pitch
// control, it produces a new sequence whose duration and spectral content
// reflect the control while preserving perceived timbre. See SPEC_FULL.md
// for the full specification this package implements.
package bungee

import "github.com/wang1986one/bungee/internal/vocoder"

// SampleRates pairs the input and output sample rates, in Hz.
type SampleRates = vocoder.SampleRates

// ResampleMode selects how pitch-induced resampling is distributed between
// the input and output side of a grain's transform.
type ResampleMode = vocoder.ResampleMode

const (
	ResampleModeAutoInOut = vocoder.ResampleModeAutoInOut
	ResampleModeAutoIn    = vocoder.ResampleModeAutoIn
	ResampleModeAutoOut   = vocoder.ResampleModeAutoOut
	ResampleModeForceIn   = vocoder.ResampleModeForceIn
	ResampleModeForceOut  = vocoder.ResampleModeForceOut
)

// Request is the per-grain control input: Position locates the grain
// centre in input frames (non-finite marks a flush grain), Speed is the
// ratio of input frames consumed per unit output time, Pitch is a positive
// frequency multiplier (1.0 = no shift), Reset marks a discontinuity with
// the previous grain, and ResampleMode selects the resample routing.
type Request = vocoder.Request

// InputChunk is the half-open frame range [Begin, End) the caller must
// supply to (*Stretcher).AnalyseGrain.
type InputChunk = vocoder.InputChunk

// OutputChunk is the result of (*Stretcher).SynthesiseGrain: a
// frame-major (interleaved) float32 buffer, Data[frame*ChannelStride+
// channel], plus the two Request snapshots bounding the output-frame to
// input-frame timestamp mapping. See SPEC_FULL.md's data layout
// clarification for why this differs from spec.md's planar wording.
type OutputChunk = vocoder.OutputChunk

const (
	OutputChunkBegin = vocoder.OutputChunkBegin
	OutputChunkEnd   = vocoder.OutputChunkEnd
)

// Edition and Version identify this build, mirroring the C API's
// edition()/version() accessors (SPEC_FULL.md §6).
const (
	Edition = "go"
	Version = "0.1.0"
)
