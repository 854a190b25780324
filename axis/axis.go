// Package axis holds the per-axis data model of §3: the position counter
// owned exclusively by the pulse engine, and the configuration fields
// latched by the coordinator before a move is armed.
//
// current_position is the one field multiple goroutines legitimately read
// concurrently with the pulse engine's writes, so it is an atomic.Int32
// rather than mutex-guarded — the Go equivalent of the "short
// interrupts-disabled critical section" the original notes call for.
package axis

import (
	"sync"
	"sync/atomic"
)

// State mirrors the axis state machine of §3.
type State int

const (
	Idle State = iota
	Moving
	Homing
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Moving:
		return "MOVING"
	case Homing:
		return "HOMING"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Axis is one controlled linear degree of freedom (H or V; H itself may be
// two physically paralleled motors, but the motion core treats it as one
// axis per the glossary).
type Axis struct {
	Name string

	currentPosition atomic.Int32
	targetPosition  atomic.Int32
	currentSpeed    atomic.Uint32
	peakSpeed       atomic.Uint32
	state           atomic.Int32

	mu           sync.Mutex
	direction    bool
	maxSpeed     uint32
	acceleration uint32
	enabled      bool
}

// New returns an idle axis with the given speed ceiling and acceleration.
func New(name string, maxSpeed, acceleration uint32) *Axis {
	a := &Axis{Name: name, maxSpeed: maxSpeed, acceleration: acceleration, enabled: true}
	a.state.Store(int32(Idle))
	return a
}

// Position takes the atomic snapshot any non-owning reader is allowed.
func (a *Axis) Position() int32 { return a.currentPosition.Load() }

// SetPosition reseats the position counter. Only valid while the axis is
// not MOVING (homing, or recovering from a limit trip) — §5's "between
// moves the coordinator may reseat it" clause.
func (a *Axis) SetPosition(p int32) { a.currentPosition.Store(p) }

// Target returns the position latched for the in-flight or most recent move.
func (a *Axis) Target() int32 { return a.targetPosition.Load() }

// SetTarget latches a new target; called by the coordinator before arming.
func (a *Axis) SetTarget(p int32) { a.targetPosition.Store(p) }

// Step advances current_position by one in the given direction and
// reports whether the target has been reached within the ±1 tolerance of
// §4.1. Only the pulse engine for this axis may call Step.
func (a *Axis) Step(forward bool) (pos int32, arrived bool) {
	if forward {
		pos = a.currentPosition.Add(1)
	} else {
		pos = a.currentPosition.Add(-1)
	}
	target := a.targetPosition.Load()
	d := pos - target
	if d < 0 {
		d = -d
	}
	return pos, d <= 1
}

// State returns the axis's current lifecycle state.
func (a *Axis) State() State { return State(a.state.Load()) }

// SetState transitions the axis state.
func (a *Axis) SetState(s State) { a.state.Store(int32(s)) }

// Direction reports the latched DIR line polarity (true == positive/forward).
func (a *Axis) Direction() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.direction
}

// Latch sets the direction ahead of arming a move (enable is set separately
// with SetEnabled). It must never be
// called while the axis's pulse timer is running (§4.1).
func (a *Axis) Latch(forward bool) {
	a.mu.Lock()
	a.direction = forward
	a.mu.Unlock()
}

// MaxSpeed returns the axis's speed ceiling in steps/s.
func (a *Axis) MaxSpeed() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxSpeed
}

// SetMaxSpeed overrides the ceiling (command verb V), clamped by caller to
// the hard maximum before calling.
func (a *Axis) SetMaxSpeed(v uint32) {
	a.mu.Lock()
	a.maxSpeed = v
	a.mu.Unlock()
}

// Acceleration returns the axis's acceleration in steps/s².
func (a *Axis) Acceleration() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acceleration
}

// Enabled reports whether the driver-enable line is asserted.
func (a *Axis) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// SetEnabled mirrors the (active-low in hardware) driver-enable line.
func (a *Axis) SetEnabled(e bool) {
	a.mu.Lock()
	a.enabled = e
	a.mu.Unlock()
}

// CurrentSpeed returns the profiler's last reported cadence.
func (a *Axis) CurrentSpeed() uint32 { return a.currentSpeed.Load() }

// SetCurrentSpeed records the live cadence, typically mirrored from the
// profiler on each tick.
func (a *Axis) SetCurrentSpeed(v uint32) { a.currentSpeed.Store(v) }

// PeakSpeed returns the velocity actually reached during the current move.
func (a *Axis) PeakSpeed() uint32 { return a.peakSpeed.Load() }

// SetPeakSpeed records the peak speed computed by the profiler at setup.
func (a *Axis) SetPeakSpeed(v uint32) { a.peakSpeed.Store(v) }
