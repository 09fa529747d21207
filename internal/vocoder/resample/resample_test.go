package resample

import (
	"math"
	"testing"
)

const tolerance = 1e-6

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestSetupIdentityWhenRatioIsOne(t *testing.T) {
	ops, residual := Setup(SampleRates{Input: 44100, Output: 44100}, 1, AutoInOut)
	if ops.Input.Enabled || ops.Output.Enabled {
		t.Fatalf("expected no resample operation enabled at ratio 1, got %+v", ops)
	}
	if !almostEqual(residual, 1, tolerance) {
		t.Fatalf("residual speed = %f, want 1", residual)
	}
}

func TestSetupRoutesUpwardRatioToInput(t *testing.T) {
	// pitch > 1 with equal rates => resampleRatio > 1 => AutoInOut routes to input.
	ops, _ := Setup(SampleRates{Input: 44100, Output: 44100}, 1.5, AutoInOut)
	if !ops.Input.Enabled || ops.Output.Enabled {
		t.Fatalf("expected input-side resample for ratio>1, got %+v", ops)
	}
	if !almostEqual(ops.Input.Ratio, 1.5, tolerance) {
		t.Fatalf("Input.Ratio = %f, want 1.5", ops.Input.Ratio)
	}
}

func TestSetupRoutesDownwardRatioToOutput(t *testing.T) {
	ops, _ := Setup(SampleRates{Input: 44100, Output: 44100}, 0.5, AutoInOut)
	if ops.Input.Enabled || !ops.Output.Enabled {
		t.Fatalf("expected output-side resample for ratio<1, got %+v", ops)
	}
}

func TestSetupForceInAlwaysRoutesToInput(t *testing.T) {
	ops, _ := Setup(SampleRates{Input: 44100, Output: 44100}, 0.5, ForceIn)
	if !ops.Input.Enabled || ops.Output.Enabled {
		t.Fatalf("ForceIn should route to input regardless of ratio sign, got %+v", ops)
	}
}

func TestSetupForceOutAlwaysRoutesToOutput(t *testing.T) {
	ops, _ := Setup(SampleRates{Input: 44100, Output: 44100}, 1.5, ForceOut)
	if ops.Input.Enabled || !ops.Output.Enabled {
		t.Fatalf("ForceOut should route to output regardless of ratio sign, got %+v", ops)
	}
}

func TestInternalAtOutsidePaddingReturnsZero(t *testing.T) {
	in := NewInternal(8, 2)
	if v := in.at(-100); v != 0 {
		t.Fatalf("at(-100) = %f, want 0", v)
	}
	if v := in.at(100); v != 0 {
		t.Fatalf("at(100) = %f, want 0", v)
	}
}

func TestInternalAddThenAtRoundTrips(t *testing.T) {
	in := NewInternal(8, 2)
	in.add(3, 5.0)
	if got := in.at(3); !almostEqual(got, 5.0, tolerance) {
		t.Fatalf("at(3) after add(3,5) = %f, want 5", got)
	}
}

func TestInternalResetZeroesDataAndOffset(t *testing.T) {
	in := NewInternal(4, 1)
	in.add(0, 1)
	in.Offset = 3.5
	in.Reset()
	for i, v := range in.Data {
		if v != 0 {
			t.Fatalf("Data[%d] = %f after Reset, want 0", i, v)
		}
	}
	if in.Offset != 0 {
		t.Fatalf("Offset = %f after Reset, want 0", in.Offset)
	}
}

func TestRunIdentityRatioCopiesSamples(t *testing.T) {
	internal := NewInternal(16, 4)
	for i := 0; i < 16; i++ {
		internal.add(i, float64(i+1))
	}
	external := &External{
		Data:             make([]float64, 16),
		UnmutedBegin:     0,
		UnmutedEnd:       16,
		ActiveFrameCount: 16,
	}
	if err := Run(Nearest, ModeOutput, internal, external, 1, 1); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	for i := 0; i < 16; i++ {
		if !almostEqual(external.Data[i], float64(i+1), tolerance) {
			t.Fatalf("Data[%d] = %f, want %f", i, external.Data[i], float64(i+1))
		}
	}
}

func TestRunReturnsDriftErrorWhenRatioStarvesBuffer(t *testing.T) {
	internal := NewInternal(4, 2)
	external := &External{
		Data:             make([]float64, 100),
		UnmutedBegin:     0,
		UnmutedEnd:       100,
		ActiveFrameCount: 100,
	}
	// Consuming 100 external frames at ratio 1 against only 4 internal
	// frames must overrun the buffer and exceed drift tolerance.
	err := Run(Bilinear, ModeOutput, internal, external, 1, 1)
	if err == nil {
		t.Fatalf("expected drift error, got nil")
	}
}

func TestIdealFrameCountMatchesRunConsumption(t *testing.T) {
	internal := NewInternal(64, 4)
	n := IdealFrameCount(internal, 1, 1)
	external := &External{
		Data:             make([]float64, n),
		UnmutedBegin:     0,
		UnmutedEnd:       n,
		ActiveFrameCount: n,
	}
	if err := Run(Bilinear, ModeOutput, internal, external, 1, 1); err != nil {
		t.Fatalf("Run with IdealFrameCount-derived n returned drift error: %v", err)
	}
}

func TestAlignRatioEndMakesRunExactlyConsumeBuffer(t *testing.T) {
	internal := NewInternal(64, 4)
	n := 50
	ratioEnd := AlignRatioEnd(internal, 1, n)
	external := &External{
		Data:             make([]float64, n),
		UnmutedBegin:     0,
		UnmutedEnd:       n,
		ActiveFrameCount: n,
	}
	if err := Run(Bilinear, ModeOutput, internal, external, 1, ratioEnd); err != nil {
		t.Fatalf("Run with AlignRatioEnd-derived ratioEnd returned drift error: %v", err)
	}
}
