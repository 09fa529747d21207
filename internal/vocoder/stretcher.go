package vocoder

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/wang1986one/bungee/dsp/buffer"
	"github.com/wang1986one/bungee/dsp/core"
	"github.com/wang1986one/bungee/dsp/window"
	"github.com/wang1986one/bungee/internal/vocoder/resample"
)

// Stretcher orchestrates specify -> analyse -> synthesise across the grain
// ring, owns the FFT plan cache, the overlap-add output accumulator and the
// output-side resampler. It is the engine behind the public bungee.Stretcher
// façade (SPEC_FULL.md §4.7).
type Stretcher struct {
	Timing       Timing
	ChannelCount int

	transforms *Transforms
	grains     *Grains
	ins        *Instrumentation

	synthesisWindow []float64

	accum   [][]float64
	norm    []float64
	ringLen int

	grainIndex  int
	emittedUpTo int // absolute nominal-output-frame position already emitted

	outputResample []*resample.Internal

	// bufPool backs the nominalBuf scratch buffers below with sync.Pool
	// reuse (dsp/buffer.Pool); extBuf is a single Buffer resized in place
	// for the output resampler. SynthesiseGrain's steady-state cost
	// after the first handful of grains is pool hits, not make()
	// (SPEC_FULL.md §4.7, §5).
	bufPool    *buffer.Pool
	nominal    [][]float64
	nominalBuf []*buffer.Buffer
	extBuf     *buffer.Buffer
	ext        *resample.External

	nextCall string
}

// New constructs a Stretcher. channelCount must be >= 1; rates must be
// positive; log2SynthesisHopAdjust should be in {-1,0,+1} (SPEC_FULL.md
// §4.7 construct preconditions).
func New(rates SampleRates, channelCount, log2SynthesisHopAdjust int, logger *logrus.Logger) *Stretcher {
	if channelCount < 1 {
		Fail("vocoder: channelCount must be >= 1, got %d", channelCount)
	}
	if rates.Input <= 0 || rates.Output <= 0 {
		Fail("vocoder: sample rates must be > 0, got %+v", rates)
	}

	timing := NewTiming(rates, log2SynthesisHopAdjust)
	transformLength := timing.TransformLength()

	s := &Stretcher{
		Timing:       timing,
		ChannelCount: channelCount,
		transforms:   NewTransforms(),
		grains:       NewGrains(channelCount, timing.Log2TransformLength),
		ins:          NewInstrumentation(logger),
		nextCall:     "specifyGrain",
	}
	SetAssertLogger(logger)

	s.synthesisWindow = window.Generate(window.TypeHann, transformLength, window.WithPeriodic())

	s.ringLen = transformLength * 2
	s.accum = make([][]float64, channelCount)
	for ch := range s.accum {
		s.accum[ch] = make([]float64, s.ringLen)
	}
	s.norm = make([]float64, s.ringLen)

	s.outputResample = make([]*resample.Internal, channelCount)

	s.bufPool = buffer.NewPool()
	s.nominal = make([][]float64, channelCount)
	s.nominalBuf = make([]*buffer.Buffer, channelCount)
	s.extBuf = buffer.New(0)
	s.ext = &resample.External{}

	return s
}

// EnableInstrumentation toggles diagnostic logging and the overlap
// contract check. Idempotent.
func (s *Stretcher) EnableInstrumentation(on bool) {
	s.ins.Enable(on)
}

// MaxInputFrameCount returns an upper bound on any InputChunk's width.
func (s *Stretcher) MaxInputFrameCount() int {
	return s.Timing.MaxInputFrameCount()
}

// Preroll mutates req per Timing.Preroll.
func (s *Stretcher) Preroll(req *Request) {
	s.Timing.Preroll(req)
}

// Next mutates req per Timing.Next.
func (s *Stretcher) Next(req *Request) {
	s.Timing.Next(req)
}

// IsFlushed reports whether the grain ring has fully drained.
func (s *Stretcher) IsFlushed() bool {
	return s.grains.Flushed()
}

// SpecifyGrain rotates the ring and specifies the new current grain,
// returning the InputChunk the caller must supply to AnalyseGrain.
func (s *Stretcher) SpecifyGrain(req Request, bufferStartPosition float64) InputChunk {
	s.ins.expect("specifyGrain", "analyseGrain")

	s.grains.Rotate()
	current := s.grains.At(0)
	previous := s.grains.At(1)
	chunk := current.Specify(req, previous, s.Timing.SampleRates, s.Timing.Log2SynthesisHop, bufferStartPosition)

	if s.ins.Enabled() {
		s.ins.logf("specifyGrain: position=%.3f hop=%.1f positionError=%.4f continuous=%v passthrough=%d",
			req.Position, current.Analysis.Hop, current.Analysis.PositionError, current.Continuous, current.Passthrough)
	}
	return chunk
}

// AnalyseGrain analyses the current grain from caller-supplied data.
func (s *Stretcher) AnalyseGrain(data []float32, stride int, muteFrameCountHead, muteFrameCountTail int) {
	s.ins.expect("analyseGrain", "synthesiseGrain")

	current := s.grains.At(0)
	previous := s.grains.At(1)

	if s.ins.Enabled() && current.Valid() && previous.Valid() {
		s.ins.checkOverlap(current.InputChunk, previous.InputChunk, data, previous.lastAnalysedData, stride)
	}
	current.lastAnalysedData = data

	current.Analyse(s.transforms, data, stride, muteFrameCountHead, muteFrameCountTail, previous)
}

// SynthesiseGrain implements SPEC_FULL.md §4.5: propagates phase for the
// current grain, runs its inverse transform into the shared overlap-add
// accumulator, then emits whatever nominal-rate output frames have become
// final (no later grain's window can still reach them), running them
// through the output-side resampler if enabled.
func (s *Stretcher) SynthesiseGrain(out *OutputChunk) {
	s.ins.expect("synthesiseGrain", "specifyGrain")

	current := s.grains.At(0)
	previous := s.grains.At(1)

	current.PropagatePhase(previous)
	current.ApplyRotationAndInverse(s.transforms, s.synthesisWindow)

	hop := s.Timing.SynthesisHop()
	transformLength := s.Timing.TransformLength()
	center := s.grainIndex * hop
	start := center - transformLength/2
	s.grainIndex++

	for i := 0; i < transformLength; i++ {
		pos := start + i
		idx := s.ringIndex(pos)
		win := s.synthesisWindow[i]
		for ch := 0; ch < s.ChannelCount; ch++ {
			if i < len(current.Segment[ch]) {
				s.accum[ch][idx] += current.Segment[ch][i]
			}
		}
		s.norm[idx] += win * win
	}

	readyTo := start
	if readyTo < s.emittedUpTo {
		readyTo = s.emittedUpTo
	}
	frameCount := readyTo - s.emittedUpTo
	if frameCount < 0 {
		frameCount = 0
	}

	for ch := 0; ch < s.ChannelCount; ch++ {
		s.nominalBuf[ch] = s.bufPool.Get(frameCount)
		s.nominal[ch] = s.nominalBuf[ch].Samples()
	}
	for i := 0; i < frameCount; i++ {
		idx := s.ringIndex(s.emittedUpTo + i)
		n := s.norm[idx]
		if n < 1e-9 {
			n = 1
		}
		for ch := 0; ch < s.ChannelCount; ch++ {
			s.nominal[ch][i] = core.Clamp(s.accum[ch][idx]/n, -8, 8)
			s.accum[ch][idx] = 0
		}
		s.norm[idx] = 0
	}
	s.emittedUpTo = readyTo

	outputRatio := previous.ResampleOperations.Output.Ratio
	previousGrainForRatio := s.grains.At(2)
	ratioBegin := previousGrainForRatio.ResampleOperations.Output.Ratio
	ratioEnd := outputRatio

	if !previous.ResampleOperations.Output.Enabled {
		s.fillOutputChunkIdentity(out, s.nominal)
	} else {
		s.fillOutputChunkResampled(out, s.nominal, ratioBegin, ratioEnd)
	}
	for ch := 0; ch < s.ChannelCount; ch++ {
		s.bufPool.Put(s.nominalBuf[ch])
		s.nominalBuf[ch] = nil
		s.nominal[ch] = nil
	}

	out.Request[OutputChunkBegin] = &s.grains.At(2).Request
	out.Request[OutputChunkEnd] = &s.grains.At(1).Request
}

func (s *Stretcher) ringIndex(pos int) int {
	idx := pos % s.ringLen
	if idx < 0 {
		idx += s.ringLen
	}
	return idx
}

func (s *Stretcher) fillOutputChunkIdentity(out *OutputChunk, nominal [][]float64) {
	frameCount := 0
	if len(nominal) > 0 {
		frameCount = len(nominal[0])
	}
	out.ChannelStride = s.ChannelCount
	out.FrameCount = frameCount
	if len(out.Data) < frameCount*s.ChannelCount {
		out.Data = make([]float32, frameCount*s.ChannelCount)
	}
	for i := 0; i < frameCount; i++ {
		for ch := 0; ch < s.ChannelCount; ch++ {
			out.Data[i*s.ChannelCount+ch] = float32(nominal[ch][i])
		}
	}
}

func (s *Stretcher) fillOutputChunkResampled(out *OutputChunk, nominal [][]float64, ratioBegin, ratioEnd float64) {
	frameCount := 0
	if len(nominal) > 0 {
		frameCount = len(nominal[0])
	}
	if frameCount == 0 {
		s.fillOutputChunkIdentity(out, nominal)
		return
	}

	outLen := int(math.Round(float64(frameCount) / ((ratioBegin + ratioEnd) / 2)))
	if outLen < 0 {
		outLen = 0
	}

	out.ChannelStride = s.ChannelCount
	out.FrameCount = outLen
	if len(out.Data) < outLen*s.ChannelCount {
		out.Data = make([]float32, outLen*s.ChannelCount)
	}

	for ch := 0; ch < s.ChannelCount; ch++ {
		internal := s.outputResample[ch]
		if internal == nil || internal.FrameCount != frameCount {
			internal = resample.NewInternal(frameCount, 4)
			s.outputResample[ch] = internal
		} else {
			internal.Reset()
		}
		copy(internal.Data[internal.Padding:internal.Padding+frameCount], nominal[ch])

		s.extBuf.Resize(outLen)
		ext := s.ext
		ext.Data = s.extBuf.Samples()
		ext.UnmutedBegin = 0
		ext.UnmutedEnd = outLen
		ext.ActiveFrameCount = outLen
		if err := resample.Run(resample.Bilinear, resample.ModeOutput, internal, ext, ratioBegin, ratioEnd); err != nil {
			Fail("vocoder: output resample drift: %v", err)
		}
		for i := 0; i < outLen; i++ {
			out.Data[i*s.ChannelCount+ch] = float32(core.Clamp(ext.Data[i], -8, 8))
		}
	}
}
