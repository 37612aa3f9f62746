package store

import (
	"encoding/binary"
	"math"
)

// encodeEmbedding packs a float32 vector into little-endian bytes,
// tightly packed with no padding: length D·4 bytes.
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeEmbedding reverses encodeEmbedding.
func decodeEmbedding(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// l2Distance computes the Euclidean distance between two equal-length
// vectors. Callers must ensure the dimensions already match; the store
// enforces that at the upsert boundary via ErrDimensionMismatch.
func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
