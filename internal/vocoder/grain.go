package vocoder

import (
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-vecmath"

	"github.com/wang1986one/bungee/dsp/spectrum"
	"github.com/wang1986one/bungee/dsp/window"
	"github.com/wang1986one/bungee/internal/vocoder/resample"
)

// Grain is one ring slot's per-grain state: request, input-chunk bounds,
// transform, phase/energy/rotation arrays, partial list and the
// synthesized output segment. See SPEC_FULL.md §3.
type Grain struct {
	ChannelCount int

	Request    Request
	RequestHop float64

	Analysis struct {
		HopIdeal      float64
		Hop           float64
		PositionError float64
		Speed         float64
	}

	Continuous  bool
	Passthrough int

	Log2TransformLength int
	ValidBinCount        int

	MuteFrameCountHead int
	MuteFrameCountTail int

	ResampleOperations resample.Operations

	InputChunk InputChunk

	// Transformed holds, per channel, the forward spectrum's positive-
	// frequency half (index 0..TransformLength/2), and after
	// ApplyRotationAndInverse the full conjugate-mirrored spectrum ready
	// for the inverse transform.
	Transformed [][]complex128
	Phase       []Phase
	Energy      []float64
	Rotation    []Phase
	Partials    []Partial

	// Segment is this grain's windowed time-domain contribution, one slice
	// per channel, length equal to the nominal transform length.
	Segment [][]float64

	windowedInput [][]float64
	inputResample []*resample.Internal
	inputExt      *resample.External
	inputExtData  []float64

	// lastAnalysedData remembers this slot's most recently analysed raw
	// input, purely to support Instrumentation's overlap byte-check
	// against the next grain that reuses this slot's data.
	lastAnalysedData []float32

	// complexScratch, specScratch and timeBufScratch are reused across
	// calls to Analyse/ApplyRotationAndInverse instead of being
	// allocated fresh each time (SPEC_FULL.md §4.7, §5: no allocation
	// once the grain ring is constructed).
	complexScratch []complex128
	specScratch    []complex128
	timeBufScratch []complex128

	// energyRe/energyIm hold the per-bin channel-summed real/imaginary
	// parts, handed to dsp/spectrum.PowerFromParts (algo-vecmath-backed)
	// to compute Energy in one bulk call instead of a scalar re*re+im*im
	// loop.
	energyRe []float64
	energyIm []float64

	// lockedScratch is PropagatePhase's reused "bin already has a locked
	// target phase" marker array.
	lockedScratch []bool

	// windowCache holds one analysis window per distinct effective
	// transform length this slot has analysed at. The dynamic-shrink
	// path (Analyse) can pick a shorter length than Log2TransformLength
	// when most of the chunk is muted, but the set of lengths it can
	// pick from is bounded (halved down from the nominal length), so
	// the cache converges after a handful of grains.
	windowCache map[int][]float64
}

// reset clears a Grain back to its "never specified" state, used when
// (re)initializing the ring.
func (g *Grain) reset(channelCount, log2TransformLength int) {
	g.ChannelCount = channelCount
	g.Log2TransformLength = log2TransformLength
	g.Request = Request{Position: math.NaN(), Speed: math.NaN(), Pitch: 1}
	g.Analysis.PositionError = 0
	n := 1 << log2TransformLength
	g.allocate(n)
}

func (g *Grain) allocate(transformLength int) {
	half := transformLength/2 + 1
	if len(g.Phase) < half {
		g.Phase = make([]Phase, half)
		g.Energy = make([]float64, half)
		g.Rotation = make([]Phase, half)
		g.energyRe = make([]float64, half)
		g.energyIm = make([]float64, half)
	}
	if g.Transformed == nil || len(g.Transformed) != g.ChannelCount {
		g.Transformed = make([][]complex128, g.ChannelCount)
		g.Segment = make([][]float64, g.ChannelCount)
		g.windowedInput = make([][]float64, g.ChannelCount)
	}
	for ch := 0; ch < g.ChannelCount; ch++ {
		if len(g.Transformed[ch]) < transformLength {
			g.Transformed[ch] = make([]complex128, transformLength)
		}
		if len(g.Segment[ch]) < transformLength {
			g.Segment[ch] = make([]float64, transformLength)
		}
		if len(g.windowedInput[ch]) < transformLength {
			g.windowedInput[ch] = make([]float64, transformLength)
		}
	}
	if len(g.complexScratch) < transformLength {
		g.complexScratch = make([]complex128, transformLength)
	}
	if len(g.lockedScratch) < half {
		g.lockedScratch = make([]bool, half)
	}
	if len(g.specScratch) < transformLength {
		g.specScratch = make([]complex128, transformLength)
	}
	if len(g.timeBufScratch) < transformLength {
		g.timeBufScratch = make([]complex128, transformLength)
	}
	if g.windowCache == nil {
		g.windowCache = make(map[int][]float64)
	}
}

// window returns the cached periodic Hann window of length n, generating
// and caching it on first use.
func (g *Grain) window(n int) []float64 {
	if w, ok := g.windowCache[n]; ok {
		return w
	}
	w := window.Generate(window.TypeHann, n, window.WithPeriodic())
	g.windowCache[n] = w
	return w
}

// Valid reports whether this grain names a real frame, i.e. is not a flush
// grain.
func (g *Grain) Valid() bool {
	return g.Request.PositionFinite()
}

func toResampleRates(r SampleRates) resample.SampleRates {
	return resample.SampleRates{Input: r.Input, Output: r.Output}
}

func toResampleMode(m ResampleMode) resample.ResampleMode {
	switch m {
	case ResampleModeAutoIn:
		return resample.AutoIn
	case ResampleModeAutoOut:
		return resample.AutoOut
	case ResampleModeForceIn:
		return resample.ForceIn
	case ResampleModeForceOut:
		return resample.ForceOut
	default:
		return resample.AutoInOut
	}
}

// Specify implements SPEC_FULL.md §4.3 (Grain.cpp's specify()). It mutates
// g in place and returns the InputChunk the caller must supply to Analyse.
func (g *Grain) Specify(req Request, previous *Grain, rates SampleRates, log2SynthesisHop int, bufferStartPosition float64) InputChunk {
	g.Request = req

	ops, residualSpeed := resample.Setup(toResampleRates(rates), req.Pitch, toResampleMode(req.ResampleMode))
	g.ResampleOperations = ops

	synthesisHop := float64(int(1) << uint(log2SynthesisHop))
	unitHop := synthesisHop * residualSpeed

	requestHop := req.Position - previous.Request.Position
	usePositionDelta := !req.Reset && previous.Request.PositionFinite() && !math.IsNaN(requestHop)
	if !usePositionDelta {
		requestHop = req.Speed * unitHop
	} else if !math.IsNaN(req.Speed) && math.Abs(req.Speed*unitHop-requestHop) > 1 {
		// Parameter drift: speed implies a different hop than the position
		// delta. Non-fatal per SPEC_FULL.md §7; the position delta wins.
	}
	g.RequestHop = requestHop

	g.Analysis.HopIdeal = requestHop * ops.Input.Ratio
	g.Continuous = !req.Reset && previous.Request.PositionFinite()
	if g.Continuous {
		g.Analysis.PositionError = previous.Analysis.PositionError - g.Analysis.HopIdeal
		g.Analysis.Hop = math.Round(-g.Analysis.PositionError)
		g.Analysis.PositionError += g.Analysis.Hop
	} else {
		g.Analysis.Hop = math.Round(g.Analysis.HopIdeal)
		g.Analysis.PositionError = math.Round(req.Position) - req.Position
	}
	g.Analysis.Speed = g.Analysis.HopIdeal / synthesisHop

	g.Passthrough = 0
	if math.Abs(g.Analysis.Speed) == 1 {
		if g.Analysis.Speed > 0 {
			g.Passthrough = 1
		} else {
			g.Passthrough = -1
		}
	}
	if g.Continuous && g.Passthrough != previous.Passthrough {
		g.Passthrough = 0
	}

	g.Log2TransformLength = log2SynthesisHop + 3
	transformLength := 1 << g.Log2TransformLength
	g.allocate(transformLength)

	halfInputFrameCount := transformLength / 2
	if ops.Input.Ratio != 1 {
		halfInputFrameCount = int(math.Round(float64(halfInputFrameCount)/ops.Input.Ratio)) + 1
	}

	var chunk InputChunk
	chunk.Begin = -halfInputFrameCount
	chunk.End = halfInputFrameCount

	if !req.PositionFinite() {
		g.InputChunk = InputChunk{}
		return InputChunk{}
	}

	offset := int(math.Round(req.Position - bufferStartPosition))
	chunk.Begin += offset
	chunk.End += offset
	g.InputChunk = chunk
	return chunk
}

// Analyse implements SPEC_FULL.md §4.4 (Grain.cpp's companion analysis
// path plus Stretcher::analyseGrain's window/FFT/partial steps). data is a
// caller-owned frame-major (interleaved) buffer covering g.InputChunk with
// the given channel stride; a nil data with muteHead==frameCount represents
// a fully muted chunk.
func (g *Grain) Analyse(tr *Transforms, data []float32, stride int, muteHead, muteTail int, previous *Grain) {
	frameCount := g.InputChunk.FrameCount()
	g.MuteFrameCountHead = clampInt(muteHead, 0, frameCount)
	g.MuteFrameCountTail = clampInt(muteTail, 0, frameCount)
	g.ValidBinCount = 0

	if !g.Valid() || frameCount == 0 {
		return
	}

	transformLength := 1 << g.Log2TransformLength
	g.allocate(transformLength)

	active := frameCount - g.MuteFrameCountHead - g.MuteFrameCountTail

	if g.ResampleOperations.Input.Enabled {
		g.analyseResampleInput(data, stride, frameCount, active)
	} else {
		g.analyseCopyInput(data, stride, frameCount)
	}

	// Dynamic shrink: when muted regions dominate, analyse at a smaller
	// power-of-two length that still covers the unmuted region
	// (SPEC_FULL.md §12.3).
	effectiveLog2 := g.Log2TransformLength
	for effectiveLog2 > 4 && active > 0 && active*2 < (1<<effectiveLog2) {
		effectiveLog2--
	}
	effLen := 1 << effectiveLog2
	g.Log2TransformLength = effectiveLog2

	win := g.window(effLen)

	plan := tr.Plan(effLen)
	complexScratch := g.complexScratch[:effLen]

	for ch := 0; ch < g.ChannelCount; ch++ {
		src := g.windowedInput[ch][:effLen]
		vecmath.MulBlockInPlace(src, win)
		for i, v := range src {
			complexScratch[i] = complex(v, 0)
		}
		if err := plan.Forward(g.Transformed[ch][:effLen], complexScratch); err != nil {
			Fail("vocoder: forward FFT failed: %v", err)
		}
	}

	half := effLen / 2
	validBinCount := half + 1
	if outRatio := g.ResampleOperations.Output.Ratio; outRatio > 1 {
		limit := int(math.Ceil(float64(half) / outRatio))
		if limit > half {
			limit = half
		}
		validBinCount = limit + 1
	}
	g.ValidBinCount = validBinCount

	for i := validBinCount; i <= half; i++ {
		for ch := 0; ch < g.ChannelCount; ch++ {
			g.Transformed[ch][i] = 0
		}
	}

	for i := 0; i < validBinCount; i++ {
		var sum complex128
		for ch := 0; ch < g.ChannelCount; ch++ {
			sum += g.Transformed[ch][i]
		}
		g.energyRe[i] = real(sum)
		g.energyIm[i] = imag(sum)
		g.Phase[i] = PhaseFromRadians(cmplx.Phase(sum))
	}
	spectrum.PowerFromParts(g.Energy[:validBinCount], g.energyRe[:validBinCount], g.energyIm[:validBinCount])

	g.Partials = EnumeratePartials(g.Energy[:validBinCount], validBinCount)
	if g.Continuous && previous != nil {
		g.Partials = SuppressTransientPartials(g.Partials, g.Energy, previous.Energy)
	}
}

func (g *Grain) analyseCopyInput(data []float32, stride, frameCount int) {
	for ch := 0; ch < g.ChannelCount; ch++ {
		dst := g.windowedInput[ch]
		for i := range dst {
			dst[i] = 0
		}
		offset := (len(dst) - frameCount) / 2
		for i := g.MuteFrameCountHead; i < frameCount-g.MuteFrameCountTail; i++ {
			idx := offset + i
			if idx < 0 || idx >= len(dst) {
				continue
			}
			srcIdx := i*stride + ch
			if data != nil && srcIdx >= 0 && srcIdx < len(data) {
				dst[idx] = float64(data[srcIdx])
			}
		}
	}
}

// analyseResampleInput resamples the input chunk into windowedInput using
// the ramped Bungee resample kernel, per SPEC_FULL.md §4.4 step 4: the
// sub-frame start offset is (inputChunk.begin - position)*ratio +
// transformLength/2 - positionError.
func (g *Grain) analyseResampleInput(data []float32, stride, frameCount, active int) {
	transformLength := len(g.windowedInput[0])
	ratio := g.ResampleOperations.Input.Ratio
	offset := (float64(g.InputChunk.Begin)-g.Request.Position)*ratio + float64(transformLength)/2 - g.Analysis.PositionError

	if len(g.inputResample) != g.ChannelCount {
		g.inputResample = make([]*resample.Internal, g.ChannelCount)
	}
	if len(g.inputExtData) < frameCount {
		g.inputExtData = make([]float64, frameCount)
	}
	if g.inputExt == nil {
		g.inputExt = &resample.External{}
	}

	for ch := 0; ch < g.ChannelCount; ch++ {
		internal := g.inputResample[ch]
		if internal == nil || internal.FrameCount != transformLength {
			internal = resample.NewInternal(transformLength, 4)
			g.inputResample[ch] = internal
		} else {
			internal.Reset()
		}
		internal.Offset = offset

		ext := g.inputExt
		ext.Data = g.inputExtData[:frameCount]
		ext.UnmutedBegin = g.MuteFrameCountHead
		ext.UnmutedEnd = frameCount - g.MuteFrameCountTail
		ext.ActiveFrameCount = active
		for i := range ext.Data {
			ext.Data[i] = 0
		}
		for i := g.MuteFrameCountHead; i < frameCount-g.MuteFrameCountTail; i++ {
			idx := i*stride + ch
			if data != nil && idx >= 0 && idx < len(data) {
				ext.Data[i] = float64(data[idx])
			}
		}

		if err := resample.Run(resample.Bilinear, resample.ModeInput, internal, ext, ratio, ratio); err != nil {
			Fail("vocoder: input resample drift: %v", err)
		}

		dst := g.windowedInput[ch]
		for i := range dst {
			dst[i] = 0
		}
		copy(dst[:transformLength], internal.Data[internal.Padding:internal.Padding+transformLength])
	}
	g.MuteFrameCountHead, g.MuteFrameCountTail = 0, 0
}

func finalPhase(g *Grain, bin int) Phase {
	if g == nil || !g.Valid() || bin >= len(g.Phase) {
		return 0
	}
	return g.Phase[bin].Add(g.Rotation[bin])
}

func nominalAdvance(bin int, hop float64, transformLength int) Phase {
	return PhaseFromRadians(2 * math.Pi * float64(bin) * hop / float64(transformLength))
}

// PropagatePhase implements SPEC_FULL.md §4.5 step 1a-b: for each partial's
// bin and its neighbours, target phase advances from the previous grain's
// synthesized phase plus the nominal bin advance, offset by the analysis
// phase difference to the partial's peak (identity phase locking, Laroche &
// Dolson 1999); non-partial bins simply carry the previous phase plus
// nominal advance. passthrough grains skip propagation entirely (rotation
// stays zero).
func (g *Grain) PropagatePhase(previous *Grain) {
	if !g.Valid() {
		return
	}
	for i := range g.Rotation[:g.ValidBinCount] {
		g.Rotation[i] = 0
	}
	if g.Passthrough != 0 {
		return
	}

	hop := g.Analysis.Hop
	transformLength := 1 << g.Log2TransformLength

	locked := g.lockedScratch[:g.ValidBinCount]
	for i := range locked {
		locked[i] = false
	}
	for _, p := range g.Partials {
		lo, hi := p.Bin-p.Width, p.Bin+p.Width
		if lo < 0 {
			lo = 0
		}
		if hi >= g.ValidBinCount {
			hi = g.ValidBinCount - 1
		}
		if p.Bin < 0 || p.Bin >= g.ValidBinCount {
			continue
		}
		peakTarget := finalPhase(previous, p.Bin).Add(nominalAdvance(p.Bin, hop, transformLength))
		peakAnalysis := g.Phase[p.Bin]
		for b := lo; b <= hi; b++ {
			target := peakTarget.Add(g.Phase[b].Sub(peakAnalysis))
			g.Rotation[b] = target.Sub(g.Phase[b])
			locked[b] = true
		}
	}
	for i := 0; i < g.ValidBinCount; i++ {
		if locked[i] {
			continue
		}
		target := finalPhase(previous, i).Add(nominalAdvance(i, hop, transformLength))
		g.Rotation[i] = target.Sub(g.Phase[i])
	}
}

// ApplyRotationAndInverse implements SPEC_FULL.md §4.5 steps 1c-e: forms
// the complex multiplier exp(i·π·rotation/0x8000) per bin, conjugates the
// spectrum first when the grain plays in reverse (hop < 0), mirrors it into
// a full conjugate-symmetric spectrum, runs the inverse FFT, and windows
// the result into g.Segment.
func (g *Grain) ApplyRotationAndInverse(tr *Transforms, synthesisWindow []float64) {
	transformLength := 1 << g.Log2TransformLength
	for ch := 0; ch < g.ChannelCount; ch++ {
		seg := g.Segment[ch][:transformLength]
		for i := range seg {
			seg[i] = 0
		}
	}
	if !g.Valid() {
		return
	}

	half := transformLength / 2
	reverse := g.Analysis.Hop < 0
	plan := tr.Plan(transformLength)
	spec := g.specScratch[:transformLength]
	timeBuf := g.timeBufScratch[:transformLength]

	for ch := 0; ch < g.ChannelCount; ch++ {
		for i := 0; i <= half && i < g.ValidBinCount; i++ {
			v := g.Transformed[ch][i]
			if reverse {
				v = complex(real(v), -imag(v))
			}
			spec[i] = v * g.Rotation[i].Rotator()
		}
		for i := g.ValidBinCount; i <= half; i++ {
			spec[i] = 0
		}
		spec[0] = complex(real(spec[0]), 0)
		spec[half] = complex(real(spec[half]), 0)
		for k := 1; k < half; k++ {
			spec[transformLength-k] = complex(real(spec[k]), -imag(spec[k]))
		}

		if err := plan.Inverse(timeBuf, spec); err != nil {
			Fail("vocoder: inverse FFT failed: %v", err)
		}

		seg := g.Segment[ch][:transformLength]
		for i := 0; i < transformLength; i++ {
			w := 1.0
			if i < len(synthesisWindow) {
				w = synthesisWindow[i]
			}
			seg[i] = real(timeBuf[i]) * w
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
