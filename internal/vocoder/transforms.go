package vocoder

import (
	"sync"

	algofft "github.com/cwbudde/algo-fft"
)

// Transforms caches one algofft.Plan per transform length actually used.
// Grain.Analyse can shrink log2TransformLength when mute regions dominate
// (SPEC_FULL.md §12.3), so more than one length may be live at once; the
// cache avoids rebuilding a plan every grain.
type Transforms struct {
	mu    sync.Mutex
	plans map[int]*algofft.Plan[complex128]
}

// NewTransforms returns an empty plan cache.
func NewTransforms() *Transforms {
	return &Transforms{plans: make(map[int]*algofft.Plan[complex128])}
}

// Plan returns the cached plan for length n, creating it on first use.
func (t *Transforms) Plan(n int) *algofft.Plan[complex128] {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.plans[n]; ok {
		return p
	}
	p, err := algofft.NewPlan64(n)
	if err != nil {
		Fail("vocoder: failed to create FFT plan for length %d: %v", n, err)
	}
	t.plans[n] = p
	return p
}
