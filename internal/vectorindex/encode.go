// Package vectorindex stores and searches chunk embeddings in RediSearch.
package vectorindex

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeVector serializes vec as consecutive little-endian IEEE-754 float32
// values with no length prefix, the layout RediSearch expects for FLOAT32
// vector fields. The same encoding is used for stored vectors and query
// vectors.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
