package vocoder

// Grains is the four-slot pipeline ring: slot 0 is always "current" after
// Rotate, slot 1 "previous", slots 2 and 3 older. Grounded on
// _examples/original_source/src/Grains.cpp (Flushed/prepare/rotate),
// reimplemented per SPEC_FULL.md §9's design note as an owning fixed-size
// array with a rotating logical index, relocating heavy buffers by
// swapping handles rather than copying.
type Grains struct {
	slots [4]*Grain
	order [4]int // order[0] is the logical index of the current slot
}

// NewGrains allocates four grain slots for the given channel count and
// nominal transform length.
func NewGrains(channelCount, log2TransformLength int) *Grains {
	g := &Grains{}
	for i := range g.slots {
		grain := &Grain{}
		grain.reset(channelCount, log2TransformLength)
		g.slots[i] = grain
		g.order[i] = i
	}
	return g
}

// At returns the grain at logical ring position i (0 = current, 1 =
// previous, 2 and 3 older), matching the reference's grains[i] indexing.
func (g *Grains) At(i int) *Grain {
	return g.slots[g.order[i]]
}

// Rotate advances the ring: the oldest slot becomes the new current, and
// its heavy spectral buffers (phase, energy, rotation, partials) are
// swapped with those of the slot about to be emitted (the new At(3)), so
// the new "previous" keeps the spectral state that phase propagation and
// transient suppression read, mirroring Grains::rotate's move-and-swap
// optimization.
func (g *Grains) Rotate() {
	var next [4]int
	next[0] = g.order[3]
	next[1] = g.order[0]
	next[2] = g.order[1]
	next[3] = g.order[2]
	g.order = next

	newCurrent := g.slots[g.order[0]]
	emitted := g.slots[g.order[3]]
	newCurrent.Phase, emitted.Phase = emitted.Phase, newCurrent.Phase
	newCurrent.Energy, emitted.Energy = emitted.Energy, newCurrent.Energy
	newCurrent.Rotation, emitted.Rotation = emitted.Rotation, newCurrent.Rotation
	newCurrent.Partials, emitted.Partials = emitted.Partials, newCurrent.Partials
}

// Flushed reports whether every slot holds a non-finite request position,
// i.e. the pipeline has fully drained (SPEC_FULL.md §3, invariant 1).
func (g *Grains) Flushed() bool {
	for _, grain := range g.slots {
		if grain.Request.PositionFinite() {
			return false
		}
	}
	return true
}
