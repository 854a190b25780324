package driver

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

type fakeComm struct {
	regs map[uint8]uint32
}

func newFakeComm() *fakeComm {
	return &fakeComm{regs: make(map[uint8]uint32)}
}

func (f *fakeComm) WriteRegister(reg uint8, value uint32, driverIndex uint8) error {
	f.regs[reg] = value
	return nil
}

func (f *fakeComm) ReadRegister(reg uint8, driverIndex uint8) (uint32, error) {
	return f.regs[reg], nil
}

func Test_SetRunCurrentWritesIholdIrunPreservingHold(t *testing.T) {
	c := qt.New(t)
	comm := newFakeComm()
	d := NewTMC2209(comm, 0, nil)

	c.Assert(d.SetRunCurrent(100, IholdIrun{Ihold: 10, Iholddelay: 4}), qt.Equals, nil)

	got := UnpackIholdIrun(comm.regs[IHOLD_IRUN])
	c.Assert(got.Irun, qt.Equals, uint32(31))
	c.Assert(got.Ihold, qt.Equals, uint32(10))
	c.Assert(got.Iholddelay, qt.Equals, uint32(4))
}

func Test_SetHoldCurrentClampsOverrange(t *testing.T) {
	c := qt.New(t)
	comm := newFakeComm()
	d := NewTMC2209(comm, 0, nil)

	c.Assert(d.SetHoldCurrent(255, IholdIrun{Irun: 20}), qt.Equals, nil)

	got := UnpackIholdIrun(comm.regs[IHOLD_IRUN])
	c.Assert(got.Ihold, qt.Equals, uint32(31))
	c.Assert(got.Irun, qt.Equals, uint32(20))
}

func Test_ReadCurrentRoundTrips(t *testing.T) {
	c := qt.New(t)
	comm := newFakeComm()
	d := NewTMC2209(comm, 0, nil)

	c.Assert(d.SetRunCurrent(50, IholdIrun{}), qt.Equals, nil)
	_, runPct, err := d.ReadCurrent()
	c.Assert(err, qt.Equals, nil)
	c.Assert(runPct, qt.Equals, uint8(48)) // 15/31 rounds down
}

func Test_SetMicrostepsPerStepPicksNearestPowerOfTwo(t *testing.T) {
	c := qt.New(t)
	comm := newFakeComm()
	d := NewTMC2209(comm, 0, nil)

	exponent, err := d.SetMicrostepsPerStep(16, Chopconf{Toff: 3, Hstrt: 1})
	c.Assert(err, qt.Equals, nil)
	c.Assert(exponent, qt.Equals, uint8(4))

	got := UnpackChopconf(comm.regs[CHOPCONF])
	c.Assert(got.Mres, qt.Equals, uint32(4)) // 8-4 -> 16 microsteps
	c.Assert(got.Toff, qt.Equals, uint32(3)) // chopper timing preserved
}

func Test_SetMicrostepsPerStepOneMicrostepIsFullStep(t *testing.T) {
	c := qt.New(t)
	comm := newFakeComm()
	d := NewTMC2209(comm, 0, nil)

	exponent, err := d.SetMicrostepsPerStep(1, Chopconf{})
	c.Assert(err, qt.Equals, nil)
	c.Assert(exponent, qt.Equals, uint8(0))
	c.Assert(UnpackChopconf(comm.regs[CHOPCONF]).Mres, qt.Equals, uint32(8))
}

func Test_WriteRegisterWithoutCommErrors(t *testing.T) {
	c := qt.New(t)
	d := NewTMC2209(nil, 0, nil)
	err := d.WriteRegister(GCONF, 0)
	c.Assert(err, qt.Not(qt.Equals), nil)
}
