package generator

// Mulberry32 is a 32-bit PRNG with a fixed, documented update rule:
//
//	state += 0x6D2B79F5
//	t = (state ^ state>>15) * (state | 1)
//	t ^= t + (t ^ t>>7) * (t | 61)
//	out = t ^ t>>14
//
// All arithmetic wraps at 32 bits, so output is identical on every platform.
type Mulberry32 struct {
	state uint32
}

// NewMulberry32 seeds the generator.
func NewMulberry32(seed uint32) *Mulberry32 {
	return &Mulberry32{state: seed}
}

// Uint32 advances the state and returns the next output.
func (m *Mulberry32) Uint32() uint32 {
	m.state += 0x6D2B79F5
	t := m.state
	t = (t ^ t>>15) * (t | 1)
	t ^= t + (t^t>>7)*(t|61)
	return t ^ t>>14
}

// Float64 returns a value in [0, 1).
func (m *Mulberry32) Float64() float64 {
	return float64(m.Uint32()) / 4294967296.0
}

// Intn returns floor(Float64() * n).
func (m *Mulberry32) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(m.Float64() * float64(n))
}
