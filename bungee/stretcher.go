package bungee

import "github.com/wang1986one/bungee/internal/vocoder"

// Stretcher is the public façade over the granular phase-vocoder engine.
// Per SPEC_FULL.md §4.7/§5, one Stretcher is single-threaded and
// allocation-free after construction; independent Stretchers share no
// state and may run on independent goroutines.
type Stretcher struct {
	inner *vocoder.Stretcher
}

// New constructs a Stretcher for the given sample-rate pair and channel
// count. channelCount must be >= 1 and both rates must be > 0, or New
// returns an error (SPEC_FULL.md §10.2's non-fatal validation channel).
func New(rates SampleRates, channelCount int, opts ...Option) (*Stretcher, error) {
	if err := validateConstruction(rates, channelCount); err != nil {
		return nil, err
	}
	cfg := applyOptions(opts...)

	s := &Stretcher{
		inner: vocoder.New(rates, channelCount, cfg.log2SynthesisHopAdjust, cfg.logger),
	}
	if cfg.instrumentation {
		s.inner.EnableInstrumentation(true)
	}
	return s, nil
}

// Edition identifies this implementation, mirroring the C API's edition().
func (s *Stretcher) Edition() string { return Edition }

// Version identifies this build, mirroring the C API's version().
func (s *Stretcher) Version() string { return Version }

// MaxInputFrameCount returns an upper bound on any InputChunk's width,
// for buffer sizing.
func (s *Stretcher) MaxInputFrameCount() int {
	return s.inner.MaxInputFrameCount()
}

// IsFlushed reports whether the pipeline has fully drained: every grain
// slot holds a non-finite request position.
func (s *Stretcher) IsFlushed() bool {
	return s.inner.IsFlushed()
}

// EnableInstrumentation toggles diagnostic logging and the input-overlap
// contract check described in SPEC_FULL.md §9. Idempotent.
func (s *Stretcher) EnableInstrumentation(on bool) {
	s.inner.EnableInstrumentation(on)
}

// Preroll shifts req.Position back and sets req.Reset so the pipeline is
// primed by the time playback reaches the original position.
func (s *Stretcher) Preroll(req *Request) {
	s.inner.Preroll(req)
}

// Next advances req.Position by one synthesis hop and clears req.Reset.
func (s *Stretcher) Next(req *Request) {
	s.inner.Next(req)
}

// SpecifyGrain rotates the grain ring and specifies the new current grain
// from req, returning the InputChunk the caller must supply to
// AnalyseGrain. Must follow construction or a prior SynthesiseGrain call;
// violating call order is a fatal programming error (SPEC_FULL.md §7).
func (s *Stretcher) SpecifyGrain(req Request, bufferStartPosition float64) InputChunk {
	return s.inner.SpecifyGrain(req, bufferStartPosition)
}

// AnalyseGrain analyses the current grain. data is a caller-owned
// frame-major (interleaved) buffer of at least chunk.FrameCount()*stride
// samples, covering the
// InputChunk returned by the preceding SpecifyGrain; data is read
// transiently and never retained. muteFrameCountHead/Tail mark leading and
// trailing frames the caller could not supply (e.g. at stream start/end).
// Must follow SpecifyGrain.
func (s *Stretcher) AnalyseGrain(data []float32, stride, muteFrameCountHead, muteFrameCountTail int) {
	s.inner.AnalyseGrain(data, stride, muteFrameCountHead, muteFrameCountTail)
}

// SynthesiseGrain writes the synthesized OutputChunk for the current grain.
// out.Data is reused across calls: it and outputChunk.Request remain valid
// only until the next SynthesiseGrain call. Must follow AnalyseGrain.
func (s *Stretcher) SynthesiseGrain(out *OutputChunk) {
	s.inner.SynthesiseGrain(out)
}
