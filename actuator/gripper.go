package actuator

import (
	"sync"

	"gantryfw/persist"
)

// GripperState is the gripper's reported position state.
type GripperState int

const (
	Closed GripperState = iota
	Open
	MovingState
)

func (g GripperState) String() string {
	switch g {
	case Closed:
		return "CLOSED"
	case Open:
		return "OPEN"
	case MovingState:
		return "MOVING"
	default:
		return "UNKNOWN"
	}
}

// halfStepSequence is the standard 8-phase unipolar half-step table, one
// nibble per phase (bit order A,B,C,D from LSB).
var halfStepSequence = [8]uint8{
	0b1000, 0b1100, 0b0100, 0b0110,
	0b0010, 0b0011, 0b0001, 0b1001,
}

const gripperTravelSteps = 400 // half-steps between fully open and fully closed

// PhaseWriteFunc drives the four gripper coil outputs for one phase index.
type PhaseWriteFunc func(bits uint8)

// Gripper is the unipolar, half-step, step-budgeted gripper of §4.6:
// motion counts down a step budget on each tick, advancing or retreating
// the phase index by one per tick, dropping all coils at the end of
// motion and persisting position across power cycles.
type Gripper struct {
	mu         sync.Mutex
	phase      int
	stepsToGo  int
	dir        int
	position   int32
	write      PhaseWriteFunc
	store      *persist.Store
	cellFrom   func(servo1, servo2 float64, phase int, pos int32) persist.Cell
	servoAngle func() (float64, float64)
}

// NewGripper creates a gripper seeded from a persisted cell, writing
// through write on every phase advance.
func NewGripper(write PhaseWriteFunc, store *persist.Store, initialPhase int, initialPosition int32) *Gripper {
	return &Gripper{
		write:    write,
		store:    store,
		phase:    initialPhase,
		position: initialPosition,
	}
}

// Open commands a full-open traverse (the G:O verb).
func (g *Gripper) Open() { g.startTravel(true) }

// Close commands a full-close traverse (the G:C verb).
func (g *Gripper) Close() { g.startTravel(false) }

// Toggle closes the gripper when it is at or past the midpoint of its
// travel and opens it otherwise (the GT verb). Only the position decides;
// the direction of a traverse in progress is not considered.
func (g *Gripper) Toggle() {
	g.mu.Lock()
	opening := g.position < gripperTravelSteps/2
	g.mu.Unlock()
	g.startTravel(opening)
}

func (g *Gripper) startTravel(opening bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var target int32
	if opening {
		target = gripperTravelSteps
		g.dir = 1
	} else {
		target = 0
		g.dir = -1
	}
	remaining := target - g.position
	if remaining < 0 {
		remaining = -remaining
	}
	g.stepsToGo = int(remaining)
}

// Update advances the gripper by at most one half-step; call at the
// gripper's tick-interval rate.
func (g *Gripper) Update() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stepsToGo <= 0 {
		return
	}
	g.phase = (g.phase + g.dir + len(halfStepSequence)) % len(halfStepSequence)
	g.position += int32(g.dir)
	g.stepsToGo--
	if g.write != nil {
		g.write(halfStepSequence[g.phase])
	}
	if g.stepsToGo == 0 {
		if g.write != nil {
			g.write(0) // drop all coils at end of motion
		}
		g.persist()
	}
}

func (g *Gripper) persist() {
	if g.store == nil {
		return
	}
	var s1, s2 float64
	if g.servoAngle != nil {
		s1, s2 = g.servoAngle()
	}
	cell := persist.Cell{
		Servo1Angle:     s1,
		Servo2Angle:     s2,
		GripperPhase:    g.phase,
		GripperPosition: g.position,
	}
	if g.cellFrom != nil {
		cell = g.cellFrom(s1, s2, g.phase, g.position)
	}
	g.store.Save(cell)
}

// SetCellFrom overrides how a persisted cell is assembled, allowing the
// caller to merge in the servo angles stored alongside gripper state.
func (g *Gripper) SetCellFrom(fn func(servo1, servo2 float64, phase int, pos int32) persist.Cell) {
	g.mu.Lock()
	g.cellFrom = fn
	g.mu.Unlock()
}

// SetServoAngleFunc wires the source of the servo angles bundled into
// every persisted cell, so gripper motion and servo position survive a
// power cycle in the same record (§6 "Persisted state").
func (g *Gripper) SetServoAngleFunc(fn func() (float64, float64)) {
	g.mu.Lock()
	g.servoAngle = fn
	g.mu.Unlock()
}

// State reports the gripper's coarse state and raw step position.
func (g *Gripper) State() (GripperState, int32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case g.stepsToGo > 0:
		return MovingState, g.position
	case g.position <= 0:
		return Closed, g.position
	case g.position >= gripperTravelSteps:
		return Open, g.position
	default:
		return MovingState, g.position
	}
}
