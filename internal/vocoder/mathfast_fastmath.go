//go:build fastmath

package vocoder

import "github.com/meko-christian/algo-approx"

const ln2 = 0.693147180559945309417232121458

// mathLog2 computes log2(x) using a fast approximation, mirroring
// dsp/effects/compressor_math_fast.go's identity log2(x) = ln(x)/ln(2).
func mathLog2(x float64) float64 {
	return approx.FastLog(x) / ln2
}

// mathPower2 computes 2^x using a fast approximation.
func mathPower2(x float64) float64 {
	return approx.FastExp(x * ln2)
}

// mathSqrt computes sqrt(x) using a fast approximation. No code in the
// package calls it; the overlap-add normalization divides by the
// accumulated window energy directly.
func mathSqrt(x float64) float64 {
	return approx.FastSqrt(x)
}
