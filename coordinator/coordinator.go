// Package coordinator implements the Coordinator (C4): it launches
// coordinated two-axis moves, scales the shorter axis's peak velocity so
// both axes arrive together, and consolidates the per-axis pulse-engine
// completions into a single framed reply.
//
// The Coordinator is an actor: all mutable move bookkeeping is owned by
// the single goroutine started with Run, and every external call is a
// request sent over a channel. This gives the "never called concurrently
// with itself" guarantee §5 asks of the profiler for free, and mirrors
// the original's single main-loop-thread discipline more faithfully than
// a mutex-guarded struct would.
package coordinator

import (
	"gantryfw/axis"
	"gantryfw/limit"
	"gantryfw/profile"
	"gantryfw/pulse"
	"gantryfw/tick"
)

// SpaceMode selects how the coordinator's velocity coupling computes the
// ratio between the two axes' distances, resolving spec.md's step-space
// vs. millimetre-space open question.
type SpaceMode int

const (
	// StepSpace scales peak velocity using raw step distances, the
	// documented default behavior. A diagonal is straight in step
	// space, which is not the same as straight in millimetre space
	// when the two axes have different steps_per_mm.
	StepSpace SpaceMode = iota
	// MillimetreSpace scales using each axis's steps_per_mm so the
	// physical trajectory is a straight line in millimetre space.
	MillimetreSpace
)

// StepsPerMM carries the per-axis conversion factors used only when
// SpaceMode is MillimetreSpace.
type StepsPerMM struct {
	H, V float64
}

// EventKind names the unsolicited events the coordinator emits.
type EventKind string

const (
	MoveStarted     EventKind = "STEPPER_MOVE_STARTED"
	MoveCompleted   EventKind = "STEPPER_MOVE_COMPLETED"
	PositionAtLimit EventKind = "POSITION_AT_LIMIT"
)

// Event is a coordinator-originated, unsolicited notification for the
// command dispatcher to frame and send to the host.
type Event struct {
	Kind EventKind
	H, V int32 // relative steps commanded/traversed (signed) on MoveStarted and MoveCompleted; absolute positions on PositionAtLimit
}

// Coordinator owns both linear axes and arbitrates moves between them.
type Coordinator struct {
	h, v               *axis.Axis
	hEngine, vEngine   *pulse.Engine
	hProfile, vProfile *profile.Profile
	limits             *limit.Supervisor
	tickSrc            *tick.Source

	spaceMode  SpaceMode
	stepsPerMM StepsPerMM

	events chan Event
	cmds   chan request
	quit   chan struct{}
}

type reqKind int

const (
	reqMove reqKind = iota
	reqStop
	reqHome
)

type request struct {
	kind  reqKind
	h, v  int32 // absolute targets, for reqMove
	reply chan struct{}
}

// New assembles a coordinator from its axes, their pulse engines and
// profilers, and the shared limit supervisor. tickSrc paces profile
// updates and limit polling, per §2's data-flow description.
func New(h, v *axis.Axis, hEngine, vEngine *pulse.Engine, hProfile, vProfile *profile.Profile, limits *limit.Supervisor, tickSrc *tick.Source) *Coordinator {
	return &Coordinator{
		h: h, v: v,
		hEngine: hEngine, vEngine: vEngine,
		hProfile: hProfile, vProfile: vProfile,
		limits:  limits,
		tickSrc: tickSrc,
		events:  make(chan Event, 16),
		cmds:    make(chan request, 1),
		quit:    make(chan struct{}),
	}
}

// SetSpaceMode selects step-space (default) or millimetre-space velocity
// coupling.
func (c *Coordinator) SetSpaceMode(mode SpaceMode, perMM StepsPerMM) {
	c.spaceMode = mode
	c.stepsPerMM = perMM
}

// Events yields the coordinator's unsolicited notifications.
func (c *Coordinator) Events() <-chan Event { return c.events }

// Positions returns both axes' current step positions.
func (c *Coordinator) Positions() (h, v int32) { return c.h.Position(), c.v.Position() }

// SetMaxSpeeds overrides both axes' speed ceilings (the V verb), clamped
// by the caller to the hard maximum before calling.
func (c *Coordinator) SetMaxSpeeds(h, v uint32) {
	c.h.SetMaxSpeed(h)
	c.v.SetMaxSpeed(v)
}

// Home drives one axis toward its min switch at the given conservative
// speed until the limit supervisor trips it, then reseats that axis's
// position to 0. It blocks until homing completes.
func (c *Coordinator) Home(isH bool, homeSpeed uint32) {
	reply := make(chan struct{})
	c.cmds <- request{kind: reqHome, h: boolToInt(isH), v: int32(homeSpeed), reply: reply}
	<-reply
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// MoveAbsolute commands both axes to the given absolute step targets. It
// returns once the move has been armed (or immediately resolved, for a
// 0,0 no-op) — not once it completes; completion arrives later on
// Events(). Any in-flight move is cancelled first, with no drain phase
// (§5).
func (c *Coordinator) MoveAbsolute(hTarget, vTarget int32) {
	reply := make(chan struct{})
	c.cmds <- request{kind: reqMove, h: hTarget, v: vTarget, reply: reply}
	<-reply
}

// MoveRelative is MoveAbsolute expressed relative to each axis's current
// position.
func (c *Coordinator) MoveRelative(dh, dv int32) {
	c.MoveAbsolute(c.h.Position()+dh, c.v.Position()+dv)
}

// Stop cancels any in-flight move immediately, in place (no deceleration).
// Issuing Stop while idle is a no-op.
func (c *Coordinator) Stop() {
	reply := make(chan struct{})
	c.cmds <- request{kind: reqStop, reply: reply}
	<-reply
}

// Close stops the coordinator's goroutine.
func (c *Coordinator) Close() { close(c.quit) }

// moveState tracks the bookkeeping for the in-flight (or just-finished)
// move; only the Run goroutine touches it.
type moveState struct {
	active         bool
	hStart, vStart int32
	hDone, vDone   bool
	hFinal, vFinal int32

	// homingAxis is -1 when no homing op is in flight, 0 for H, 1 for V.
	homingAxis int
	homeReply  chan struct{}
}

// Run is the coordinator's main-loop goroutine: it services tick-driven
// profile updates, pulse-engine completions, and move/stop requests.
// Call it once, typically in its own goroutine.
func (c *Coordinator) Run() {
	mv := moveState{homingAxis: -1}
	for {
		select {
		case <-c.quit:
			return
		case <-c.tickSrc.C():
			c.limits.Poll()
			if mv.active {
				c.serviceTick(&mv)
			}
			if mv.homingAxis == 0 {
				c.h.SetCurrentSpeed(c.hProfile.Update(c.h.Position()))
				c.hEngine.SetRate(c.h.CurrentSpeed())
			} else if mv.homingAxis == 1 {
				c.v.SetCurrentSpeed(c.vProfile.Update(c.v.Position()))
				c.vEngine.SetRate(c.v.CurrentSpeed())
			}
		case comp := <-c.hEngine.Done():
			if mv.homingAxis == 0 {
				c.finishHome(&mv, comp)
			} else if mv.active {
				c.finishAxis(&mv, true, comp)
			}
		case comp := <-c.vEngine.Done():
			if mv.homingAxis == 1 {
				c.finishHome(&mv, comp)
			} else if mv.active {
				c.finishAxis(&mv, false, comp)
			}
		case req := <-c.cmds:
			switch req.kind {
			case reqMove:
				c.startMove(&mv, req.h, req.v)
				close(req.reply)
			case reqStop:
				c.stopMove(&mv)
				close(req.reply)
			case reqHome:
				c.startHome(&mv, req.h == 1, uint32(req.v), req.reply)
			}
		}
	}
}

func (c *Coordinator) serviceTick(mv *moveState) {
	if !mv.hDone {
		speed := c.hProfile.Update(c.h.Position())
		c.h.SetCurrentSpeed(speed)
		c.hEngine.SetRate(speed)
	}
	if !mv.vDone {
		speed := c.vProfile.Update(c.v.Position())
		c.v.SetCurrentSpeed(speed)
		c.vEngine.SetRate(speed)
	}
}

func (c *Coordinator) startMove(mv *moveState, hTarget, vTarget int32) {
	// Re-entry: stop whatever is in flight first, silently, no queue.
	if mv.active {
		c.cancelEngines(mv)
	}

	mv.hStart = c.h.Position()
	mv.vStart = c.v.Position()
	dh := hTarget - mv.hStart
	dv := vTarget - mv.vStart

	hForward := dh >= 0
	vForward := dv >= 0

	if dh != 0 && !c.limits.CheckH(hForward) {
		hTarget = mv.hStart
		dh = 0
	}
	if dv != 0 && !c.limits.CheckV(vForward) {
		vTarget = mv.vStart
		dv = 0
	}

	absDh := abs32(dh)
	absDv := abs32(dv)
	hSpeed, vSpeed := c.velocityCoupling(absDh, absDv)

	mv.active = true
	mv.hDone = dh == 0
	mv.vDone = dv == 0
	mv.hFinal = mv.hStart
	mv.vFinal = mv.vStart

	c.h.SetTarget(hTarget)
	c.v.SetTarget(vTarget)

	if dh != 0 {
		c.h.Latch(hForward)
		c.hProfile.Setup(mv.hStart, hTarget, hSpeed, c.h.Acceleration())
		c.hEngine.Arm(c.hProfile.CurrentSpeed())
		c.limits.SetAbortHook(c.limits.HSideFor(hForward), func() { c.tripAxis(mv, true) })
	} else {
		mv.hFinal = c.h.Position()
	}
	if dv != 0 {
		c.v.Latch(vForward)
		c.vProfile.Setup(mv.vStart, vTarget, vSpeed, c.v.Acceleration())
		c.vEngine.Arm(c.vProfile.CurrentSpeed())
		c.limits.SetAbortHook(c.limits.VSideFor(vForward), func() { c.tripAxis(mv, false) })
	} else {
		mv.vFinal = c.v.Position()
	}

	c.emit(Event{Kind: MoveStarted, H: dh, V: dv})
	c.maybeConsolidate(mv)
}

// tripAxis is invoked synchronously from limit.Supervisor.Poll (itself
// called from Run's own goroutine), so it may safely mutate shared
// engine state without an additional handoff.
func (c *Coordinator) tripAxis(mv *moveState, isH bool) {
	if isH {
		if mv.hDone {
			return
		}
		c.hEngine.Stop(pulse.LimitTripped)
	} else {
		if mv.vDone {
			return
		}
		c.vEngine.Stop(pulse.LimitTripped)
	}
	c.emit(Event{Kind: PositionAtLimit, H: c.h.Position(), V: c.v.Position()})
}

func (c *Coordinator) finishAxis(mv *moveState, isH bool, comp pulse.Completion) {
	if isH {
		mv.hDone = true
		mv.hFinal = comp.Position
		c.limits.SetAbortHook(limit.HMax, nil)
		c.limits.SetAbortHook(limit.HMin, nil)
	} else {
		mv.vDone = true
		mv.vFinal = comp.Position
		c.limits.SetAbortHook(limit.VMax, nil)
		c.limits.SetAbortHook(limit.VMin, nil)
	}
	c.maybeConsolidate(mv)
}

func (c *Coordinator) maybeConsolidate(mv *moveState) {
	if !mv.active || !mv.hDone || !mv.vDone {
		return
	}
	mv.active = false
	c.emit(Event{
		Kind: MoveCompleted,
		H:    mv.hFinal - mv.hStart,
		V:    mv.vFinal - mv.vStart,
	})
}

// homingTravel is a large, arbitrary step count used as the homing
// target: the move is expected to be interrupted by the limit switch
// long before this distance is covered.
const homingTravel = 1 << 24

// startHome arms one axis toward its min switch at a conservative,
// constant-ish cadence (profiled like any other move, but the operator
// is expected to have set a low ceiling via the V verb beforehand).
func (c *Coordinator) startHome(mv *moveState, isH bool, speed uint32, reply chan struct{}) {
	if mv.active {
		c.cancelEngines(mv)
	}
	mv.homingAxis = boolToAxisIndex(isH)
	mv.homeReply = reply
	if isH {
		start := c.h.Position()
		c.h.SetTarget(start - homingTravel)
		c.h.Latch(false)
		c.h.SetState(axis.Homing)
		c.hProfile.Setup(start, start-homingTravel, speed, c.h.Acceleration())
		c.hEngine.Arm(c.hProfile.CurrentSpeed())
		c.limits.SetAbortHook(limit.HMin, func() { c.hEngine.Stop(pulse.LimitTripped) })
	} else {
		start := c.v.Position()
		c.v.SetTarget(start - homingTravel)
		c.v.Latch(false)
		c.v.SetState(axis.Homing)
		c.vProfile.Setup(start, start-homingTravel, speed, c.v.Acceleration())
		c.vEngine.Arm(c.vProfile.CurrentSpeed())
		c.limits.SetAbortHook(limit.VMin, func() { c.vEngine.Stop(pulse.LimitTripped) })
	}
}

func (c *Coordinator) finishHome(mv *moveState, comp pulse.Completion) {
	isH := mv.homingAxis == 0
	if isH {
		c.h.SetPosition(0)
		c.limits.SetAbortHook(limit.HMin, nil)
	} else {
		c.v.SetPosition(0)
		c.limits.SetAbortHook(limit.VMin, nil)
	}
	mv.homingAxis = -1
	if mv.homeReply != nil {
		close(mv.homeReply)
		mv.homeReply = nil
	}
	_ = comp
}

func boolToAxisIndex(isH bool) int {
	if isH {
		return 0
	}
	return 1
}

func (c *Coordinator) cancelEngines(mv *moveState) {
	// Discard the cancelled arm's Completion so Run never credits it to the
	// move that follows.
	if !mv.hDone {
		c.hEngine.Stop(pulse.Stopped)
		drainCompletion(c.hEngine)
		mv.hFinal = c.h.Position()
		mv.hDone = true
	}
	if !mv.vDone {
		c.vEngine.Stop(pulse.Stopped)
		drainCompletion(c.vEngine)
		mv.vFinal = c.v.Position()
		mv.vDone = true
	}
	c.limits.SetAbortHook(limit.HMax, nil)
	c.limits.SetAbortHook(limit.HMin, nil)
	c.limits.SetAbortHook(limit.VMax, nil)
	c.limits.SetAbortHook(limit.VMin, nil)
	c.hProfile.Reset()
	c.vProfile.Reset()
	mv.active = false
}

func drainCompletion(e *pulse.Engine) {
	select {
	case <-e.Done():
	default:
	}
}

func (c *Coordinator) stopMove(mv *moveState) {
	if !mv.active {
		return // idempotent no-op per §8
	}
	c.cancelEngines(mv)
	c.emit(Event{
		Kind: MoveCompleted,
		H:    mv.hFinal - mv.hStart,
		V:    mv.vFinal - mv.vStart,
	})
}

func (c *Coordinator) emit(e Event) {
	select {
	case c.events <- e:
	default:
	}
}

// velocityCoupling implements §4.3's ratio-scaled velocity coupling. In
// MillimetreSpace the ratio is computed from physical distances so the
// resulting trajectory is straight in mm-space rather than step-space.
func (c *Coordinator) velocityCoupling(dh, dv uint32) (hSpeed, vSpeed uint32) {
	hCeil := c.h.MaxSpeed()
	vCeil := c.v.MaxSpeed()
	if dh == 0 {
		return 0, vCeil
	}
	if dv == 0 {
		return hCeil, 0
	}

	rh, rv := float64(dh), float64(dv)
	if c.spaceMode == MillimetreSpace {
		if c.stepsPerMM.H > 0 {
			rh = float64(dh) / c.stepsPerMM.H
		}
		if c.stepsPerMM.V > 0 {
			rv = float64(dv) / c.stepsPerMM.V
		}
	}

	var longIsH bool
	var ratio float64
	if rh >= rv {
		longIsH = true
		ratio = rv / rh
	} else {
		longIsH = false
		ratio = rh / rv
	}

	if longIsH {
		hSpeed = hCeil
		vSpeed = scaleFloor(ratio, hCeil)
		if vSpeed > vCeil {
			scale := float64(vCeil) / (ratio * float64(hCeil))
			hSpeed = uint32(float64(hCeil) * scale)
			vSpeed = vCeil
		}
	} else {
		vSpeed = vCeil
		hSpeed = scaleFloor(ratio, vCeil)
		if hSpeed > hCeil {
			scale := float64(hCeil) / (ratio * float64(vCeil))
			vSpeed = uint32(float64(vCeil) * scale)
			hSpeed = hCeil
		}
	}
	return hSpeed, vSpeed
}

func scaleFloor(ratio float64, ceil uint32) uint32 {
	v := ratio * float64(ceil)
	if v < 1 {
		return 1
	}
	return uint32(v)
}

func abs32(v int32) uint32 {
	if v < 0 {
		return uint32(-v)
	}
	return uint32(v)
}

