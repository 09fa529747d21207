//go:build !fastmath

package vocoder

import "math"

// mathLog2, mathPower2 and mathSqrt are the exact stdlib counterparts of the
// fastmath build's approximations (mathfast_fastmath.go). Default builds
// favor exactness; pass -tags fastmath to trade it for throughput.
func mathLog2(x float64) float64 {
	return math.Log2(x)
}

func mathPower2(x float64) float64 {
	return math.Exp2(x)
}

func mathSqrt(x float64) float64 {
	return math.Sqrt(x)
}
