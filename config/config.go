// Package config holds the host-agreed mechanical constants of §6 and the
// process-level settings each cmd/ binary assembles from flags. The
// teacher never parses a config file format — boards are wired from
// literal Config structs (ch9120.Config, comboat.Config) — so gantryfw
// follows suit rather than reaching for a file-format parser nothing in
// the retrieved pack actually exercises.
package config

import "gantryfw/coordinator"

// Mechanical is the set of constants the host and firmware must agree on
// (§6): per-axis step scaling, speed/accel ceilings, and workspace bounds.
type Mechanical struct {
	StepsPerMMH, StepsPerMMV float64
	MaxSpeedH, MaxSpeedV     uint32
	AccelH, AccelV           uint32
	XMaxMM, YMaxMM           float64
}

// MMToStepsH/V convert a millimetre offset to whole steps using the
// configured per-axis scaling (§4.5's unit-conversion rule: steps are
// canonical, mm is a host-side convenience).
func (m Mechanical) MMToStepsH(mm float64) int32 { return int32(mm * m.StepsPerMMH) }
func (m Mechanical) MMToStepsV(mm float64) int32 { return int32(mm * m.StepsPerMMV) }

// WithinBoundsMM reports whether an absolute position in millimetres
// falls within the workspace rectangle [0,XMaxMM] x [0,YMaxMM], edges
// included.
func (m Mechanical) WithinBoundsMM(xMM, yMM float64) bool {
	return xMM >= 0 && xMM <= m.XMaxMM && yMM >= 0 && yMM <= m.YMaxMM
}

// Runtime is the full set of knobs a cmd/gantryd process needs beyond the
// mechanical constants: link selection, tick rate, and the optional
// millimetre-space coordination mode.
type Runtime struct {
	Mechanical
	SerialDevice  string // e.g. /dev/ttyUSB0; empty disables the serial backend
	SerialBaud    uint
	BridgeAddr    string // TCP listen address for the CH9120/Comboat-style bridge; used only when SerialDevice is empty
	TickHz        int
	DebounceSteps int
	HeartbeatSec  int
	MQTTBroker    string // empty disables telemetry publishing
	GantryID      string
	PersistPath   string
	SpaceMode     coordinator.SpaceMode
}
