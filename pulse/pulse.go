// Package pulse implements the Pulse Engine (C2): the per-axis goroutine
// that stands in for the original timer ISR, advancing the axis position
// counter at a commanded cadence and detecting arrival.
//
// The reference firmware toggles STEP at twice the nominal rate (rise +
// fall make one step) and writes the half-period to a hardware compare
// register. There is no physical pin to drive here, so one engine event
// models one complete step (a rising edge), and tick.PulseTimer fires once
// per full step period. A new cadence from SetRate takes effect at the
// timer's next fire; the period already running is not rewritten.
package pulse

import (
	"time"

	"gantryfw/axis"
	"gantryfw/tick"
)

// ReferenceClockHz documents the reference 8-bit MCU's timer clock. Nothing
// in this package derives a value from it; the minimum step period is the
// minStep passed to NewEngine.
const ReferenceClockHz = 16_000_000

// Reason explains why a pulse engine stopped.
type Reason int

const (
	Arrived Reason = iota
	Stopped
	LimitTripped
)

func (r Reason) String() string {
	switch r {
	case Arrived:
		return "ARRIVED"
	case Stopped:
		return "STOPPED"
	case LimitTripped:
		return "LIMIT_TRIPPED"
	default:
		return "UNKNOWN"
	}
}

// Completion is posted exactly once per arm, when the engine stops for any
// reason.
type Completion struct {
	Reason   Reason
	Position int32
}

// StepFunc is the simulated GPIO hook invoked on every rising edge; tests
// use it to count pulses, a real backend would toggle an actual pin.
type StepFunc func(forward bool)

// Engine is the per-axis pulse generator. One Engine is created per axis
// and is never shared.
type Engine struct {
	axis       *axis.Axis
	timer      *tick.PulseTimer
	stepFn     StepFunc
	minStep    time.Duration
	done       chan Completion
	running    chan struct{}
	stopOnce   chan struct{}
	stopReason Reason
}

// NewEngine creates a pulse engine bound to ax. stepFn may be nil (no-op
// hook); minStep floors the step period to avoid runaway timers if the
// caller requests an absurd cadence.
func NewEngine(ax *axis.Axis, stepFn StepFunc, minStep time.Duration) *Engine {
	if stepFn == nil {
		stepFn = func(bool) {}
	}
	if minStep <= 0 {
		minStep = 20 * time.Microsecond
	}
	return &Engine{
		axis:    ax,
		timer:   tick.NewPulseTimer(),
		stepFn:  stepFn,
		minStep: minStep,
		done:    make(chan Completion, 1),
	}
}

// Done yields the engine's single completion event.
func (e *Engine) Done() <-chan Completion { return e.done }

// Arm starts the engine at the given initial cadence (steps/s). The axis's
// direction must already be latched; per §4.1 direction is never changed
// while the timer is running. A zero-distance move (current already equal
// to target) never arms the timer, per §4.1's edge case — callers should
// check that before calling Arm.
func (e *Engine) Arm(initialStepsPerSec uint32) {
	e.axis.SetState(axis.Moving)
	e.running = make(chan struct{})
	e.stopOnce = make(chan struct{})
	e.timer.Start(e.period(initialStepsPerSec))
	go e.run()
}

// SetRate reprograms the cadence; called from the main loop each tick with
// the profiler's latest commanded speed.
func (e *Engine) SetRate(stepsPerSec uint32) {
	e.timer.SetPeriod(e.period(stepsPerSec))
}

func (e *Engine) period(stepsPerSec uint32) time.Duration {
	if stepsPerSec == 0 {
		stepsPerSec = 1
	}
	p := time.Second / time.Duration(stepsPerSec)
	if p < e.minStep {
		p = e.minStep
	}
	return p
}

func (e *Engine) run() {
	defer close(e.running)
	forward := e.axis.Direction()
	for {
		select {
		case <-e.stopOnce:
			e.timer.Stop()
			e.finish(e.stopReason)
			return
		case <-e.timer.C():
			pos, arrived := e.axis.Step(forward)
			e.stepFn(forward)
			// Step's ±1 tolerance alone would stop one pulse short of the
			// target; keep stepping until the target itself is reached.
			target := e.axis.Target()
			short := (forward && pos < target) || (!forward && pos > target)
			if arrived && !short {
				e.timer.Stop()
				e.axis.SetPosition(e.axis.Target())
				e.finish(Arrived)
				return
			}
		}
	}
}

func (e *Engine) finish(reason Reason) {
	e.axis.SetState(axis.Idle)
	select {
	case e.done <- Completion{Reason: reason, Position: e.axis.Position()}:
	default:
	}
}

// Stop cancels the running move in place — no deceleration is performed,
// matching §5's cancellation semantics. It is safe to call on an engine
// that is not currently armed.
func (e *Engine) Stop(reason Reason) {
	if e.stopOnce == nil {
		return
	}
	select {
	case <-e.stopOnce:
		// already stopping/stopped
	default:
		e.stopReason = reason
		close(e.stopOnce)
	}
	if e.running != nil {
		<-e.running
	}
}
