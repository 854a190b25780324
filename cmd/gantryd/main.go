// Command gantryd is the firmware main-loop binary: it wires the tick
// fabric, pulse engines, profilers, coordinator, limit supervisor, frame
// codec, command dispatcher, auxiliary actuators, persistence, host
// transport, and optional telemetry together, then runs the non-blocking
// poll loop of §5.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"gantryfw/actuator"
	"gantryfw/axis"
	"gantryfw/command"
	"gantryfw/config"
	"gantryfw/coordinator"
	"gantryfw/driver"
	"gantryfw/frame"
	"gantryfw/limit"
	"gantryfw/persist"
	"gantryfw/profile"
	"gantryfw/pulse"
	"gantryfw/telemetry"
	"gantryfw/tick"
	"gantryfw/transport"
)

func main() {
	var rt config.Runtime
	flag.StringVar(&rt.SerialDevice, "serial", "", "serial device path (e.g. /dev/ttyUSB0); empty disables the serial backend")
	flag.UintVar(&rt.SerialBaud, "baud", 115200, "serial baud rate")
	flag.StringVar(&rt.BridgeAddr, "bridge", ":9000", "TCP listen address for the network bridge backend, used only when -serial is empty; an empty value does not disable it")
	flag.IntVar(&rt.TickHz, "tick-hz", 200, "profiler/limit poll rate in Hz")
	flag.IntVar(&rt.DebounceSteps, "debounce", 4, "consecutive samples required to declare a limit switch triggered")
	flag.IntVar(&rt.HeartbeatSec, "heartbeat-sec", 1, "any value > 0 enables the limit-switch heartbeat (re-emitted once per second while a side is held); the value does not set the period")
	flag.Float64Var(&rt.StepsPerMMH, "steps-per-mm-h", 80, "H axis steps per millimetre")
	flag.Float64Var(&rt.StepsPerMMV, "steps-per-mm-v", 80, "V axis steps per millimetre")
	flag.Float64Var(&rt.XMaxMM, "x-max-mm", 300, "H axis workspace bound, millimetres")
	flag.Float64Var(&rt.YMaxMM, "y-max-mm", 300, "V axis workspace bound, millimetres")
	var maxSpeedH, maxSpeedV, accelH, accelV uint
	flag.UintVar(&maxSpeedH, "max-speed-h", 4000, "H axis speed ceiling, steps/s")
	flag.UintVar(&maxSpeedV, "max-speed-v", 4000, "V axis speed ceiling, steps/s")
	flag.UintVar(&accelH, "accel-h", 8000, "H axis acceleration, steps/s^2")
	flag.UintVar(&accelV, "accel-v", 8000, "V axis acceleration, steps/s^2")
	flag.StringVar(&rt.MQTTBroker, "mqtt-broker", "", "telemetry MQTT broker host:port; empty disables telemetry")
	flag.StringVar(&rt.GantryID, "gantry-id", "gantry0", "telemetry topic scope")
	flag.StringVar(&rt.PersistPath, "persist", "gantryfw.cell", "path to the non-volatile state cell")
	mmSpace := flag.Bool("mm-space", false, "couple axis velocities in millimetre space instead of step space")
	driverUART := flag.String("driver-uart", "", "serial device wired to the TMC2209 drivers' UART bus; empty skips driver configuration")
	driverBaud := flag.Uint("driver-baud", 115200, "TMC2209 UART baud rate")
	runCurrentPct := flag.Uint("run-current-pct", 80, "TMC2209 run current, percent of max")
	holdCurrentPct := flag.Uint("hold-current-pct", 40, "TMC2209 hold current, percent of max")
	microsteps := flag.Uint("microsteps", 16, "TMC2209 microsteps per full step")
	invertH := flag.Bool("invert-h-limits", false, "swap which H switch blocks forward vs. backward travel, for rigs wired opposite the convention")
	invertV := flag.Bool("invert-v-limits", false, "swap which V switch blocks forward vs. backward travel, for rigs wired opposite the convention")
	flag.Parse()

	rt.MaxSpeedH, rt.MaxSpeedV = uint32(maxSpeedH), uint32(maxSpeedV)
	rt.AccelH, rt.AccelV = uint32(accelH), uint32(accelV)
	if *mmSpace {
		rt.SpaceMode = coordinator.MillimetreSpace
	} else {
		rt.SpaceMode = coordinator.StepSpace
	}

	motionLog := log.New(os.Stderr, "motion: ", log.LstdFlags)
	frameLog := log.New(os.Stderr, "frame: ", log.LstdFlags)
	telemetryLog := log.New(os.Stderr, "telemetry: ", log.LstdFlags)

	link, err := dialLink(rt)
	if err != nil {
		motionLog.Fatalf("link: %v", err)
	}
	defer link.Close()
	motionLog.Printf("host link ready: %s", link.Name())

	store, cell, firstBoot, err := persist.Open(rt.PersistPath, 250*time.Millisecond)
	if err != nil {
		motionLog.Fatalf("persist: %v", err)
	}
	if firstBoot {
		motionLog.Printf("persist: first boot, cell initialized")
	}

	hAxis := axis.New("H", rt.MaxSpeedH, rt.AccelH)
	vAxis := axis.New("V", rt.MaxSpeedV, rt.AccelV)

	hEngine := pulse.NewEngine(hAxis, nil, 20*time.Microsecond)
	vEngine := pulse.NewEngine(vAxis, nil, 20*time.Microsecond)

	if *driverUART != "" {
		configureDrivers(*driverUART, uint32(*driverBaud), uint8(*runCurrentPct), uint8(*holdCurrentPct), uint16(*microsteps), motionLog)
	}

	hProfile := profile.New(100)
	vProfile := profile.New(100)

	limitThreshold := rt.DebounceSteps
	limitTick := time.Second / time.Duration(clampHz(rt.TickHz))
	polarity := limit.DefaultPolarity()
	if *invertH {
		polarity.HMin, polarity.HMax = polarity.HMax, polarity.HMin
	}
	if *invertV {
		polarity.VMin, polarity.VMax = polarity.VMax, polarity.VMin
	}
	limits := limit.New(readSwitches, limitThreshold, limitTick, polarity)
	limits.EnableHeartbeat(rt.HeartbeatSec > 0)

	tickSrc := tick.NewSource(clampHz(rt.TickHz))
	coord := coordinator.New(hAxis, vAxis, hEngine, vEngine, hProfile, vProfile, limits, tickSrc)
	coord.SetSpaceMode(rt.SpaceMode, coordinator.StepsPerMM{H: rt.StepsPerMMH, V: rt.StepsPerMMV})
	go coord.Run()
	defer coord.Close()

	servos := actuator.NewServoPair(writeServoPWM, [2][2]float64{{0, 180}, {0, 180}})
	servos.SetImmediate(0, cell.Servo1Angle)
	servos.SetImmediate(1, cell.Servo2Angle)
	gripper := actuator.NewGripper(writeGripperPhase, store, cell.GripperPhase, cell.GripperPosition)
	gripper.SetServoAngleFunc(servos.Angles)
	actuatorTick := tick.NewSource(100)
	go func() {
		for range actuatorTick.C() {
			servos.Update(time.Now())
			gripper.Update()
		}
	}()
	defer actuatorTick.Stop()

	mech := rt.Mechanical
	enc := frame.NewEncoder(link)
	dec := frame.NewDecoder(link)
	var telePub *telemetry.Publisher
	if rt.MQTTBroker != "" {
		telePub, err = telemetry.Dial(context.Background(), rt.MQTTBroker, rt.GantryID, telemetryLog)
		if err != nil {
			telemetryLog.Printf("dial %s failed, continuing without telemetry: %v", rt.MQTTBroker, err)
			telePub = telemetry.NewNoop()
		}
	} else {
		telePub = telemetry.NewNoop()
	}
	defer telePub.Close()

	disp := command.New(coord, limits, servos, gripper, enc, mech, time.Now, frameLog)

	go func() {
		if err := dec.Run(); err != nil {
			frameLog.Printf("host link closed: %v", err)
		}
	}()
	go disp.Run(dec.Frames())
	go disp.ForwardEvents(telePub)

	positionHeartbeat := tick.NewSource(1)
	defer positionHeartbeat.Stop()
	for range positionHeartbeat.C() {
		h, v := coord.Positions()
		telePub.PublishPosition(h, v, time.Now())
	}
}

func clampHz(hz int) int {
	if hz <= 0 {
		return 200
	}
	return hz
}

func dialLink(rt config.Runtime) (transport.Link, error) {
	if rt.SerialDevice != "" {
		return transport.NewSerial(rt.SerialDevice, uint32(rt.SerialBaud))
	}
	ln, err := transport.NewBridgeListener(rt.BridgeAddr)
	if err != nil {
		return nil, err
	}
	return ln.Accept()
}

// readSwitches is the default, hardware-absent switch reader: every side
// reads released. A real board wires this to GPIO reads instead.
func readSwitches(limit.Side) bool { return false }

func writeServoPWM(servoID int, angle float64) {}
func writeGripperPhase(bits uint8)             {}

// configureDrivers pushes run/hold current and microstepping onto the H and
// V axis TMC2209s over a shared UART bus (addresses 0 and 1). Failures are
// logged, not fatal: a board without smart drivers still runs step/dir.
func configureDrivers(device string, baud uint32, runPct, holdPct uint8, microsteps uint16, logger *log.Logger) {
	link, err := transport.NewSerial(device, baud)
	if err != nil {
		logger.Printf("driver: uart %s unavailable, skipping driver configuration: %v", device, err)
		return
	}
	comm := driver.NewUARTComm(link)
	chop := driver.Chopconf{Toff: 3, Hstrt: 5, Hend: 2, Tbl: 2, Intpol: 1}
	for axisIdx, name := range []string{"H", "V"} {
		d := driver.NewTMC2209(comm, uint8(axisIdx), logger)
		if err := d.Setup(); err != nil {
			logger.Printf("driver: %s setup failed: %v", name, err)
			continue
		}
		hold := driver.IholdIrun{Iholddelay: 6}
		if err := d.SetHoldCurrent(holdPct, hold); err != nil {
			logger.Printf("driver: %s hold current failed: %v", name, err)
		} else if raw, err := d.ReadRegister(driver.IHOLD_IRUN); err == nil {
			hold = driver.UnpackIholdIrun(raw)
		}
		if err := d.SetRunCurrent(runPct, hold); err != nil {
			logger.Printf("driver: %s run current failed: %v", name, err)
		}
		if exponent, err := d.SetMicrostepsPerStep(microsteps, chop); err != nil {
			logger.Printf("driver: %s microstep config failed: %v", name, err)
		} else {
			logger.Printf("driver: %s configured at %d microsteps/step", name, 1<<exponent)
		}
	}
}
