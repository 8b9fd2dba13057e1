// Package vectormath provides the small amount of numeric code the engine
// needs around embedding vectors: cosine similarity and a portable on-disk
// byte encoding.
package vectormath

import (
	"encoding/binary"
	"math"
)

// Cosine returns the cosine similarity of a and b. It returns 0 if either
// vector is empty, the lengths differ, or either vector has zero magnitude;
// callers treat any of those as "no signal" rather than an error.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		magA += av * av
		magB += bv * bv
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// Serialize encodes a float32 vector as a little-endian byte blob suitable
// for storage in a BLOB column. Unlike a raw unsafe.Pointer cast, this is
// architecture- and endianness-independent, so a database written on one
// machine reads back correctly on another.
func Serialize(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Deserialize decodes a byte blob produced by Serialize. It returns
// (nil, false) when the blob length is not a multiple of 4 bytes, which the
// caller treats as "no embedding present" rather than a hard error.
func Deserialize(b []byte) ([]float32, bool) {
	if len(b) == 0 {
		return nil, false
	}
	if len(b)%4 != 0 {
		return nil, false
	}
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out, true
}
