// Package hal holds the register abstraction shared by the chip bindings.
package hal

// Register is a 32-bit memory-mapped hardware register.
//
// TinyGo's *volatile.Register32 satisfies it directly, which lets the chip
// bindings run unchanged against the host-side simulator.
type Register interface {
	Get() uint32
	Set(value uint32)
	SetBits(value uint32)
	ClearBits(value uint32)
	HasBits(value uint32) bool

	// ReplaceBits replaces the bits covered by mask<<pos with value<<pos.
	ReplaceBits(value uint32, mask uint32, pos uint8)
}

// Field reads the bits covered by mask<<pos and shifts them down.
func Field(r Register, mask uint32, pos uint8) uint32 {
	return (r.Get() >> pos) & mask
}
