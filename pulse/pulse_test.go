package pulse

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"gantryfw/axis"
)

func Test_EngineArrivesAtTarget(t *testing.T) {
	c := qt.New(t)
	a := axis.New("H", 1000, 2000)
	a.SetTarget(5)
	a.Latch(true)

	var steps int
	e := NewEngine(a, func(bool) { steps++ }, time.Millisecond)
	e.Arm(2000)

	select {
	case comp := <-e.Done():
		c.Assert(comp.Reason, qt.Equals, Arrived)
		c.Assert(comp.Position, qt.Equals, int32(5))
	case <-time.After(2 * time.Second):
		t.Fatal("engine never completed")
	}
	c.Assert(steps, qt.Equals, 5)
	c.Assert(a.State(), qt.Equals, axis.Idle)
}

func Test_EngineStopsInPlace(t *testing.T) {
	c := qt.New(t)
	a := axis.New("H", 1000, 2000)
	a.SetTarget(1_000_000)
	a.Latch(true)

	e := NewEngine(a, nil, time.Millisecond)
	e.Arm(200)
	time.Sleep(20 * time.Millisecond)
	e.Stop(Stopped)

	select {
	case comp := <-e.Done():
		c.Assert(comp.Reason, qt.Equals, Stopped)
	case <-time.After(time.Second):
		t.Fatal("engine never reported stop")
	}
	c.Assert(a.Position() < 1_000_000, qt.Equals, true)
}

func Test_StopReportsTheGivenReason(t *testing.T) {
	c := qt.New(t)
	a := axis.New("H", 1000, 2000)
	a.SetTarget(1_000_000)
	a.Latch(true)

	e := NewEngine(a, nil, time.Millisecond)
	e.Arm(200)
	time.Sleep(5 * time.Millisecond)
	e.Stop(LimitTripped)

	select {
	case comp := <-e.Done():
		c.Assert(comp.Reason, qt.Equals, LimitTripped)
	case <-time.After(time.Second):
		t.Fatal("engine never reported stop")
	}
}

func Test_ReasonStrings(t *testing.T) {
	c := qt.New(t)
	c.Assert(Arrived.String(), qt.Equals, "ARRIVED")
	c.Assert(Stopped.String(), qt.Equals, "STOPPED")
	c.Assert(LimitTripped.String(), qt.Equals, "LIMIT_TRIPPED")
}
