// Package command implements the Command Dispatcher half of C6: it
// decodes the verb grammar frame.Decoder extracts and drives the
// coordinator, limit supervisor, and auxiliary actuators, replying
// through a frame.Encoder.
package command

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"gantryfw/actuator"
	"gantryfw/config"
	"gantryfw/coordinator"
	"gantryfw/frame"
	"gantryfw/gerr"
	"gantryfw/limit"
	"gantryfw/telemetry"
)

// hardMaxSpeed is the protocol-level ceiling the V verb clamps to,
// independent of whatever per-gantry max_speed config.Mechanical carries.
const hardMaxSpeed = 20000

// NowFunc lets tests substitute a deterministic clock for servo timing.
type NowFunc func() time.Time

// Dispatcher decodes verb frames and fans them out to the motion core.
type Dispatcher struct {
	coord   *coordinator.Coordinator
	limits  *limit.Supervisor
	servos  *actuator.ServoPair
	gripper *actuator.Gripper
	enc     *frame.Encoder
	cfg     config.Mechanical
	now     NowFunc
	log     *log.Logger

	calibrating              bool
	calibStartH, calibStartV int32
}

// New assembles a dispatcher. now may be nil (defaults to time.Now);
// logger may be nil (defaults to log.Default()).
func New(coord *coordinator.Coordinator, limits *limit.Supervisor, servos *actuator.ServoPair, gripper *actuator.Gripper, enc *frame.Encoder, cfg config.Mechanical, now NowFunc, logger *log.Logger) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		coord: coord, limits: limits, servos: servos, gripper: gripper,
		enc: enc, cfg: cfg, now: now, log: logger,
	}
}

// Run drains in, dispatching each frame payload in turn, until in is
// closed. It is meant to run in its own goroutine, reading from a
// frame.Decoder's Frames() channel.
func (d *Dispatcher) Run(in <-chan []byte) {
	for payload := range in {
		d.handle(string(payload))
	}
}

// ForwardEvents relays coordinator and limit-supervisor events to the host
// as framed replies, and hands each one to pub as well, until both source
// channels close. Run it alongside Run, in its own goroutine.
//
// coord.Events() and limits.Events() each return a single underlying
// channel; a value sent on a Go channel is delivered to exactly one
// receiver. This is the only goroutine that reads either channel, so every
// event reaches both the host and telemetry instead of being split between
// two competing consumers. pub may be telemetry.NewNoop(): publishing never
// gates or delays the host reply.
func (d *Dispatcher) ForwardEvents(pub *telemetry.Publisher) {
	coordEvents := d.coord.Events()
	limitEvents := d.limits.Events()
	for coordEvents != nil || limitEvents != nil {
		select {
		case e, ok := <-coordEvents:
			if !ok {
				coordEvents = nil
				continue
			}
			d.reply(formatCoordEvent(e))
			pub.PublishEvent(string(e.Kind))
		case e, ok := <-limitEvents:
			if !ok {
				limitEvents = nil
				continue
			}
			d.reply(formatLimitEvent(e))
			pub.PublishEvent("LIMIT_" + e.Side.String() + "_TRIGGERED")
		}
	}
}

func formatCoordEvent(e coordinator.Event) string {
	switch e.Kind {
	case coordinator.MoveStarted, coordinator.MoveCompleted:
		return fmt.Sprintf("%s:%d,%d", e.Kind, e.H, e.V)
	case coordinator.PositionAtLimit:
		return fmt.Sprintf("POSITION_AT_LIMIT:H=%d,V=%d", e.H, e.V)
	default:
		return string(e.Kind)
	}
}

func formatLimitEvent(e limit.Event) string {
	return fmt.Sprintf("LIMIT_%s_TRIGGERED", e.Side)
}

func (d *Dispatcher) handle(payload string) {
	verb, rest := splitVerb(payload)
	switch verb {
	case "M":
		d.handleMove(rest)
	case "S":
		d.coord.Stop()
		d.reply("OK:STOP")
	case "A":
		d.handleServoMove(rest)
	case "P":
		d.handleServoSet(rest)
	case "RA":
		d.servos.Reset(d.now())
		d.reply("OK:RA")
	case "G":
		d.handleGripperVerb(rest)
	case "GT":
		d.gripper.Toggle()
		d.reply("OK:GT")
	case "G?":
		state, pos := d.gripper.State()
		d.reply(fmt.Sprintf("OK:G?:%s,%d", state, pos))
	case "V":
		d.handleSpeedOverride(rest)
	case "L":
		d.reply(fmt.Sprintf("OK:L:%d", d.limits.Mask()))
	case "Q":
		a1, a2 := d.servos.Angles()
		d.reply(fmt.Sprintf("OK:Q:%.2f,%.2f", a1, a2))
	case "CS":
		h, v := d.coord.Positions()
		d.calibStartH, d.calibStartV = h, v
		d.calibrating = true
		d.reply("OK:CS")
	case "CE":
		d.handleCalibrationEnd()
	case "CFG":
		d.reply(d.formatConfig())
	case "HOME":
		d.handleHome(rest)
	default:
		d.reply("ERR:" + string(gerr.UnknownCmd) + ":" + payload)
	}
}

func (d *Dispatcher) handleMove(argStr string) {
	vals, err := parseFloats(argStr, 2)
	if err != nil {
		d.reply(errReply(gerr.InvalidParams))
		return
	}
	dh := d.cfg.MMToStepsH(vals[0])
	dv := d.cfg.MMToStepsV(vals[1])
	hCur, vCur := d.coord.Positions()
	hTarget, vTarget := hCur+dh, vCur+dv

	var xMM, yMM float64
	if d.cfg.StepsPerMMH > 0 {
		xMM = float64(hTarget) / d.cfg.StepsPerMMH
	}
	if d.cfg.StepsPerMMV > 0 {
		yMM = float64(vTarget) / d.cfg.StepsPerMMV
	}
	if !d.cfg.WithinBoundsMM(xMM, yMM) {
		d.reply(errReply(gerr.Bounds))
		return
	}
	d.coord.MoveRelative(dh, dv)
	d.reply("OK:M")
}

func (d *Dispatcher) handleServoMove(argStr string) {
	vals, err := parseFloats(argStr, 3)
	if err != nil {
		d.reply(errReply(gerr.InvalidParams))
		return
	}
	d.servos.MoveTo(vals[0], vals[1], int64(vals[2]), d.now())
	d.reply("OK:A")
}

func (d *Dispatcher) handleServoSet(argStr string) {
	vals, err := parseFloats(argStr, 2)
	if err != nil {
		d.reply(errReply(gerr.InvalidParams))
		return
	}
	if !d.servos.SetImmediate(int(vals[0]), vals[1]) {
		d.reply(errReply(gerr.InvalidServoNum))
		return
	}
	d.reply("OK:P")
}

func (d *Dispatcher) handleGripperVerb(sub string) {
	switch sub {
	case "O":
		d.gripper.Open()
		d.reply("OK:G:O")
	case "C":
		d.gripper.Close()
		d.reply("OK:G:C")
	default:
		d.reply(errReply(gerr.InvalidParams))
	}
}

func (d *Dispatcher) handleSpeedOverride(argStr string) {
	vals, err := parseInts(argStr, 2)
	if err != nil {
		d.reply(errReply(gerr.InvalidParams))
		return
	}
	d.coord.SetMaxSpeeds(clampSpeed(vals[0]), clampSpeed(vals[1]))
	d.reply("OK:V")
}

func (d *Dispatcher) handleCalibrationEnd() {
	if !d.calibrating {
		d.reply(errReply(gerr.InvalidParams))
		return
	}
	d.calibrating = false
	h, v := d.coord.Positions()
	d.reply(fmt.Sprintf("OK:CE:%d,%d", h-d.calibStartH, v-d.calibStartV))
}

func (d *Dispatcher) formatConfig() string {
	m := d.cfg
	return fmt.Sprintf("OK:CFG:%.4f,%.4f,%d,%d,%d,%d,%.2f,%.2f",
		m.StepsPerMMH, m.StepsPerMMV, m.MaxSpeedH, m.MaxSpeedV, m.AccelH, m.AccelV, m.XMaxMM, m.YMaxMM)
}

// handleHome drives the named axis (0=H, 1=V) toward its min switch at
// the given conservative speed, blocking until it either triggers the
// switch or exhausts the homing travel budget (coordinator.homingTravel).
func (d *Dispatcher) handleHome(argStr string) {
	vals, err := parseInts(argStr, 2)
	if err != nil || (vals[0] != 0 && vals[0] != 1) {
		d.reply(errReply(gerr.InvalidParams))
		return
	}
	isH := vals[0] == 0
	d.coord.Home(isH, clampSpeed(vals[1]))
	h, v := d.coord.Positions()
	if isH {
		d.reply(fmt.Sprintf("OK:HOME:%d", h))
	} else {
		d.reply(fmt.Sprintf("OK:HOME:%d", v))
	}
}

func clampSpeed(v int64) uint32 {
	if v < 0 {
		return 0
	}
	if v > hardMaxSpeed {
		return hardMaxSpeed
	}
	return uint32(v)
}

func errReply(tag gerr.Tag) string { return "ERR:" + string(tag) }

func (d *Dispatcher) reply(line string) {
	if err := d.enc.Send(line); err != nil {
		d.log.Printf("command: reply write failed: %v", err)
	}
}

// splitVerb separates a frame payload's verb from its argument string at
// the first ':'. Payloads with no colon (S, RA, GT, G?, L, Q, CS, CE,
// CFG) yield an empty argument string.
func splitVerb(payload string) (verb, rest string) {
	if idx := strings.IndexByte(payload, ':'); idx >= 0 {
		return payload[:idx], payload[idx+1:]
	}
	return payload, ""
}

func parseInts(argStr string, n int) ([]int64, error) {
	parts := strings.Split(argStr, ",")
	if len(parts) != n {
		return nil, gerr.InvalidParams
	}
	out := make([]int64, n)
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, gerr.InvalidParams
		}
		out[i] = v
	}
	return out, nil
}

func parseFloats(argStr string, n int) ([]float64, error) {
	parts := strings.Split(argStr, ",")
	if len(parts) != n {
		return nil, gerr.InvalidParams
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, gerr.InvalidParams
		}
		out[i] = v
	}
	return out, nil
}
