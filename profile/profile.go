// Package profile implements the Motion Profiler (C3): trapezoidal or
// triangular velocity-vs-distance synthesis and the pure, memoryless speed
// law that turns live position into a commanded step cadence.
package profile

import (
	"math"

	"github.com/orsinium-labs/tinymath"

	"gantryfw/clamp"
)

// State is the profiler's own state machine, driven purely by position
// progress (§4.2): IDLE -> ACCELERATING -> {CONSTANT ->}? DECELERATING ->
// COMPLETED.
type State int

const (
	Idle State = iota
	Accelerating
	Constant
	Decelerating
	Completed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Accelerating:
		return "ACCELERATING"
	case Constant:
		return "CONSTANT"
	case Decelerating:
		return "DECELERATING"
	case Completed:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// Profile is a per-axis kinematic plan. One instance is owned by one axis
// and is never called concurrently with itself.
type Profile struct {
	startPosition, targetPosition int32
	totalSteps                    uint32
	accelSteps, constantSteps     uint32
	decelSteps                    uint32
	peakSpeed                     uint32
	maxSpeed                      uint32
	accel                         uint32
	vMin                          uint32

	state        State
	currentSpeed uint32
}

// New returns a profile with the given speed floor, used to keep the
// pulse timer's compare value within its hardware-representable range
// (§4.2, ≈50-500 steps/s, platform dependent).
func New(vMin uint32) *Profile {
	if vMin == 0 {
		vMin = 100
	}
	return &Profile{vMin: vMin, state: Idle}
}

// Setup pre-computes the three segment lengths for a move from start to
// target at the given ceiling and acceleration, per §4.2's trapezoid/
// triangle synthesis.
func (p *Profile) Setup(start, target int32, vMax, accel uint32) {
	p.startPosition = start
	p.targetPosition = target
	p.maxSpeed = vMax
	p.accel = accel

	d := distance(start, target)
	p.totalSteps = d

	if d == 0 {
		p.accelSteps, p.constantSteps, p.decelSteps = 0, 0, 0
		p.peakSpeed = 0
		p.state = Completed
		p.currentSpeed = 0
		return
	}

	dAcc := accelDistance(vMax, accel)
	if d >= 2*dAcc {
		p.accelSteps = dAcc
		p.decelSteps = dAcc
		p.constantSteps = d - 2*dAcc
		p.peakSpeed = vMax
	} else {
		p.accelSteps = d / 2
		p.decelSteps = d - p.accelSteps
		p.constantSteps = 0
		reached := sqrtSpeed(2 * accel * p.accelSteps)
		if reached > vMax {
			reached = vMax
		}
		p.peakSpeed = reached
	}
	p.state = Accelerating
	p.currentSpeed = p.vMin
}

// accelDistance computes d_acc = v_max²/(2a), the steps needed to
// accelerate from rest to v_max.
func accelDistance(vMax, accel uint32) uint32 {
	if accel == 0 {
		return 0
	}
	return uint32(uint64(vMax) * uint64(vMax) / (2 * uint64(accel)))
}

func distance(a, b int32) uint32 {
	d := int64(b) - int64(a)
	if d < 0 {
		d = -d
	}
	return uint32(d)
}

func sqrtSpeed(v2 uint32) uint32 {
	r := tinymath.Sqrt(float32(v2))
	if math.IsNaN(float64(r)) || r < 0 {
		return 0
	}
	return uint32(r)
}

// slewLimit bounds the per-tick change in commanded speed, per §4.2's
// "low-pass limited" rule: a/100 during acceleration, a/50 during
// deceleration.
func (p *Profile) slewLimit(target uint32) uint32 {
	var maxDelta uint32
	switch p.state {
	case Accelerating:
		maxDelta = p.accel / 100
	case Decelerating:
		maxDelta = p.accel / 50
	default:
		return target
	}
	if maxDelta == 0 {
		maxDelta = 1
	}
	if target > p.currentSpeed {
		if target-p.currentSpeed > maxDelta {
			return p.currentSpeed + maxDelta
		}
		return target
	}
	if p.currentSpeed-target > maxDelta {
		return p.currentSpeed - maxDelta
	}
	return target
}

// Update is a pure function of the live position: it recomputes the phase
// from stepsDone/stepsRemaining, applies the speed law, slew-limits the
// result, and returns the commanded cadence. It carries no notion of wall
// time.
func (p *Profile) Update(currentPosition int32) uint32 {
	if p.state == Idle || p.state == Completed {
		return p.currentSpeed
	}

	stepsDone := distance(p.startPosition, currentPosition)
	stepsRemaining := distance(currentPosition, p.targetPosition)

	var raw uint32
	switch {
	case stepsRemaining <= p.decelSteps && p.decelSteps > 0:
		p.state = Decelerating
		raw = sqrtSpeed(p.vMin*p.vMin + 2*p.accel*stepsRemaining)
		if raw < p.vMin {
			raw = p.vMin
		}
		if raw > p.peakSpeed && p.peakSpeed >= p.vMin {
			raw = p.peakSpeed
		}
	case stepsDone < p.accelSteps:
		p.state = Accelerating
		raw = sqrtSpeed(p.vMin*p.vMin + 2*p.accel*stepsDone)
		raw = clamp.Clamp(raw, p.vMin, p.peakSpeed)
	default:
		p.state = Constant
		raw = p.peakSpeed
	}

	if stepsDone >= p.totalSteps {
		p.state = Completed
		raw = 0
	}

	p.currentSpeed = p.slewLimit(raw)
	return p.currentSpeed
}

// State reports the profiler's current phase.
func (p *Profile) State() State { return p.state }

// Segments exposes the three pre-computed segment lengths, for the
// accel_steps + constant_steps + decel_steps == total_steps invariant.
func (p *Profile) Segments() (accel, constant, decel, total uint32) {
	return p.accelSteps, p.constantSteps, p.decelSteps, p.totalSteps
}

// PeakSpeed returns the velocity actually reached by this move.
func (p *Profile) PeakSpeed() uint32 { return p.peakSpeed }

// CurrentSpeed returns the last speed returned by Update.
func (p *Profile) CurrentSpeed() uint32 { return p.currentSpeed }

// Reset returns the profile to IDLE, e.g. after a cancellation.
func (p *Profile) Reset() {
	*p = Profile{vMin: p.vMin, state: Idle}
}
