package utils

import "math"

// UnitVector scales x in place to unit L2 length and returns it. All-zero vectors are returned as is.
func UnitVector(x []float32) []float32 {
	var sq float64
	for _, v := range x {
		sq += float64(v) * float64(v)
	}
	if sq == 0 {
		return x
	}
	scale := 1 / math.Sqrt(sq)
	for i, v := range x {
		x[i] = float32(float64(v) * scale)
	}
	return x
}

// Float64sToFloat32s converts an API vector (float64 JSON numbers) into the float32 form stored in collections.
func Float64sToFloat32s(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
