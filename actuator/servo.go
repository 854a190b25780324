// Package actuator implements the Auxiliary Actuators (C7) at their
// contract level: the two-servo arm mover with linear interpolation, and
// the unipolar gripper with its half-step sequence.
package actuator

import (
	"sync"
	"time"

	"gantryfw/clamp"
)

// ServoWriteFunc writes a PWM compare value derived from an angle for one
// servo channel; the real backend would program a hardware PWM register,
// here it is an injectable hook so tests can observe commanded angles.
type ServoWriteFunc func(servoID int, angle float64)

// ServoPair drives the shoulder/elbow pair with linear, time-parameterized
// joint-space interpolation (§4.6). Update must be called at or above the
// servo PWM refresh rate (≥50Hz).
type ServoPair struct {
	mu         sync.Mutex
	start      [2]float64
	target     [2]float64
	current    [2]float64
	startedAt  time.Time
	durationMs int64
	moving     bool
	write      ServoWriteFunc
	min, max   [2]float64 // joint angle clamp, degrees
}

// NewServoPair creates a pair parked at neutral (90,90) with the given
// per-servo angle limits and write hook.
func NewServoPair(write ServoWriteFunc, limits [2][2]float64) *ServoPair {
	s := &ServoPair{write: write}
	for i := 0; i < 2; i++ {
		s.min[i], s.max[i] = limits[i][0], limits[i][1]
		s.current[i] = 90
	}
	return s
}

// MoveTo commands both joints to (angle1, angle2) over durationMs
// milliseconds; durationMs==0 means instantaneous (§4.6).
func (s *ServoPair) MoveTo(angle1, angle2 float64, durationMs int64, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start = s.current
	s.target[0] = clamp.Clamp(angle1, s.min[0], s.max[0])
	s.target[1] = clamp.Clamp(angle2, s.min[1], s.max[1])
	s.startedAt = now
	s.durationMs = durationMs
	if durationMs <= 0 {
		s.current = s.target
		s.moving = false
		s.writeBoth()
		return
	}
	s.moving = true
}

// SetImmediate moves a single servo (0 or 1) directly, with no
// interpolation; used by the P verb.
func (s *ServoPair) SetImmediate(servoID int, angle float64) bool {
	if servoID != 0 && servoID != 1 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moving = false
	s.current[servoID] = clamp.Clamp(angle, s.min[servoID], s.max[servoID])
	s.target[servoID] = s.current[servoID]
	if s.write != nil {
		s.write(servoID, s.current[servoID])
	}
	return true
}

// Reset parks both servos at neutral (90 degrees), the RA verb.
func (s *ServoPair) Reset(now time.Time) {
	s.MoveTo(90, 90, 0, now)
}

// Update advances the interpolation; call at the PWM refresh rate.
func (s *ServoPair) Update(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.moving {
		return
	}
	elapsed := now.Sub(s.startedAt).Milliseconds()
	if elapsed >= s.durationMs {
		s.current = s.target
		s.moving = false
		s.writeBoth()
		return
	}
	t := float64(elapsed) / float64(s.durationMs)
	for i := 0; i < 2; i++ {
		s.current[i] = s.start[i] + (s.target[i]-s.start[i])*t
	}
	s.writeBoth()
}

func (s *ServoPair) writeBoth() {
	if s.write == nil {
		return
	}
	s.write(0, s.current[0])
	s.write(1, s.current[1])
}

// Angles returns the two joints' current commanded angles, for the Q verb.
func (s *ServoPair) Angles() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current[0], s.current[1]
}
