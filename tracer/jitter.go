package tracer

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
)

const (
	// MaxSubdivisions bounds the per-axis pixel subdivision level.
	MaxSubdivisions = 10

	// JitterTableSize is the byte size of the jitter buffer.
	JitterTableSize = MaxSubdivisions * MaxSubdivisions * 2 * 4
)

// JitterTable holds stratified sub-pixel sample offsets.
type JitterTable struct {
	rng     *rand.Rand
	subdivs int
	offsets [MaxSubdivisions * MaxSubdivisions][2]float32
}

// NewJitterTable creates a table whose strata are randomized by a
// generator seeded with seed.
func NewJitterTable(seed uint64) *JitterTable {
	return &JitterTable{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Compute regenerates subdivs*subdivs sample offsets for a pixel of the
// given size. A subdivision level of 1 yields a single sample at the pixel
// center. Every offset lies within half a pixel of the center.
func (jt *JitterTable) Compute(subdivs int, pixelSize float32) error {
	if subdivs < 1 || subdivs > MaxSubdivisions {
		return fmt.Errorf("%w: subdivision level must be in [1, %d]; got %d", ErrInvalidParameter, MaxSubdivisions, subdivs)
	}

	jt.subdivs = subdivs
	jt.offsets = [MaxSubdivisions * MaxSubdivisions][2]float32{}
	if subdivs == 1 {
		return nil
	}

	step := pixelSize / float32(subdivs)
	half := 0.5 * pixelSize
	for i := 0; i < subdivs; i++ {
		for j := 0; j < subdivs; j++ {
			jt.offsets[i*subdivs+j] = [2]float32{
				clampOffset((jt.rng.Float32()+float32(j))*step-half, half),
				clampOffset((jt.rng.Float32()+float32(i))*step-half, half),
			}
		}
	}
	return nil
}

// Float32 rounding may push the last stratum slightly past the pixel edge.
func clampOffset(v, half float32) float32 {
	return float32(math.Max(-float64(half), math.Min(float64(half), float64(v))))
}

// Samples returns the offsets generated by the last Compute call.
func (jt *JitterTable) Samples() [][2]float32 {
	count := jt.subdivs * jt.subdivs
	if count == 0 {
		count = 1
	}
	return append([][2]float32(nil), jt.offsets[:count]...)
}

// Bytes encodes the full table as consecutive (x, y) float32 pairs.
func (jt *JitterTable) Bytes() []byte {
	buf := make([]byte, JitterTableSize)
	for i, offset := range jt.offsets {
		binary.LittleEndian.PutUint32(buf[8*i:], math.Float32bits(offset[0]))
		binary.LittleEndian.PutUint32(buf[8*i+4:], math.Float32bits(offset[1]))
	}
	return buf
}
