package vocoder

import "github.com/sirupsen/logrus"

// Instrumentation wraps a *logrus.Logger behind the toggleable diagnostic
// contract described in SPEC_FULL.md §10.1 and grounded on
// _examples/original_source/src/Instrumentation.h: when enabled, grain
// transitions are logged and the overlap-check contract (successive
// grains' input chunks must match byte-for-byte where they overlap) is
// enforced, catching caller bugs where the input stream mutates underneath
// the stretcher.
type Instrumentation struct {
	logger  *logrus.Logger
	enabled bool

	// expectedCall names the next operation in the specify/analyse/
	// synthesise triplet; call-order violations are fatal (SPEC_FULL.md
	// §10.2), mirroring Instrumentation::Call's RAII contract check
	// translated to an explicit state machine since Go has no destructors.
	expectedCall string
	firstGrain   bool
}

// NewInstrumentation returns a disabled Instrumentation wrapping logger.
// logger may be nil; Fail falls back to panic in that case.
func NewInstrumentation(logger *logrus.Logger) *Instrumentation {
	return &Instrumentation{logger: logger, expectedCall: "specifyGrain", firstGrain: true}
}

// Enable toggles diagnostic logging and the overlap-check. Idempotent per
// SPEC_FULL.md §8 invariant 8.
func (ins *Instrumentation) Enable(on bool) {
	ins.enabled = on
}

// Enabled reports the current toggle state.
func (ins *Instrumentation) Enabled() bool {
	return ins.enabled
}

func (ins *Instrumentation) logf(format string, args ...any) {
	if ins.enabled && ins.logger != nil {
		ins.logger.Debugf(format, args...)
	}
}

// expect verifies call-order and advances the expected-call state machine,
// aborting via Fail on a violation (SPEC_FULL.md §4.7, §8 invariant set
// implied by scenario S6).
func (ins *Instrumentation) expect(call, next string) {
	if ins.firstGrain && call == "specifyGrain" {
		ins.firstGrain = false
		ins.expectedCall = next
		return
	}
	if ins.expectedCall != call {
		Fail("vocoder: call-order violation: expected %s, got %s", ins.expectedCall, call)
	}
	ins.expectedCall = next
}

// checkOverlap verifies that the overlapping region of two consecutive
// input chunks is byte-identical, per SPEC_FULL.md §9 "Instrumentation as
// contract checker". Only runs when enabled.
func (ins *Instrumentation) checkOverlap(current, previous InputChunk, currentData, previousData []float32, stride int) {
	if !ins.enabled {
		return
	}
	lo := current.Begin
	if previous.Begin > lo {
		lo = previous.Begin
	}
	hi := current.End
	if previous.End < hi {
		hi = previous.End
	}
	if hi <= lo {
		return
	}
	for frame := lo; frame < hi; frame++ {
		curIdx := (frame - current.Begin) * stride
		prevIdx := (frame - previous.Begin) * stride
		if curIdx < 0 || curIdx >= len(currentData) || prevIdx < 0 || prevIdx >= len(previousData) {
			continue
		}
		if currentData[curIdx] != previousData[prevIdx] {
			Fail("vocoder: overlap check failed at frame %d: caller mutated input under the stretcher", frame)
		}
	}
}
