// Package clamp provides the generic bounds-constraining helper used
// throughout the motion core, lifted from the register-value constrain
// helper the stepper drivers use when packing fields.
package clamp

import "golang.org/x/exp/constraints"

// Clamp constrains value to the closed interval [lo, hi].
func Clamp[T constraints.Ordered](value, lo, hi T) T {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
