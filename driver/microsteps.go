package driver

// SetMicrostepsPerStep rounds microsteps down to the nearest power of two
// the chip supports (1..256) and writes the resulting MRES field into
// CHOPCONF, preserving the chopper timing fields already configured.
func (d *TMC2209) SetMicrostepsPerStep(microsteps uint16, chop Chopconf) (uint8, error) {
	exponent := microstepExponent(microsteps)
	chop.Mres = uint32(8 - exponent)
	return exponent, d.WriteRegister(CHOPCONF, chop.Pack())
}

// microstepExponent returns n such that 2^n is the largest power of two
// not exceeding microsteps, clamped to the chip's 0..8 MRES range (256..1
// microsteps per step).
func microstepExponent(microsteps uint16) uint8 {
	var exponent uint8
	for microsteps>>1 > 0 {
		microsteps >>= 1
		exponent++
	}
	if exponent > 8 {
		exponent = 8
	}
	return exponent
}
