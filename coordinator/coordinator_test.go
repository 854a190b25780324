package coordinator

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"gantryfw/axis"
	"gantryfw/limit"
	"gantryfw/profile"
	"gantryfw/pulse"
	"gantryfw/tick"
)

func newTestCoordinator() (*Coordinator, func()) {
	h := axis.New("H", 4000, 20000)
	v := axis.New("V", 4000, 20000)
	hEngine := pulse.NewEngine(h, nil, 50*time.Microsecond)
	vEngine := pulse.NewEngine(v, nil, 50*time.Microsecond)
	hProfile := profile.New(200)
	vProfile := profile.New(200)
	limits := limit.New(func(limit.Side) bool { return false }, 3, time.Millisecond, limit.DefaultPolarity())
	tickSrc := tick.NewSource(500)

	c := New(h, v, hEngine, vEngine, hProfile, vProfile, limits, tickSrc)
	go c.Run()
	return c, func() {
		c.Close()
		tickSrc.Stop()
	}
}

func waitForCompletion(t *testing.T, c *Coordinator) Event {
	t.Helper()
	for {
		select {
		case e := <-c.Events():
			if e.Kind == MoveCompleted {
				return e
			}
		case <-time.After(3 * time.Second):
			t.Fatal("move never completed")
		}
	}
}

func Test_MoveAbsoluteArrivesExactly(t *testing.T) {
	c := qt.New(t)
	coord, cleanup := newTestCoordinator()
	defer cleanup()

	coord.MoveAbsolute(100, 50)
	ev := waitForCompletion(t, coord)
	c.Assert(ev.H, qt.Equals, int32(100))
	c.Assert(ev.V, qt.Equals, int32(50))

	h, v := coord.Positions()
	c.Assert(h, qt.Equals, int32(100))
	c.Assert(v, qt.Equals, int32(50))
}

func Test_ZeroDistanceAxisCompletesImmediately(t *testing.T) {
	c := qt.New(t)
	coord, cleanup := newTestCoordinator()
	defer cleanup()

	coord.MoveAbsolute(60, 0)
	ev := waitForCompletion(t, coord)
	c.Assert(ev.H, qt.Equals, int32(60))
	c.Assert(ev.V, qt.Equals, int32(0))
}

func Test_StopCancelsInFlightMoveInPlace(t *testing.T) {
	c := qt.New(t)
	coord, cleanup := newTestCoordinator()
	defer cleanup()

	coord.MoveAbsolute(10000, 10000)
	time.Sleep(5 * time.Millisecond)
	coord.Stop()

	ev := waitForCompletion(t, coord)
	c.Assert(ev.H < 10000, qt.Equals, true)
	c.Assert(ev.V < 10000, qt.Equals, true)
}

func Test_StopWhileIdleIsNoOp(t *testing.T) {
	coord, cleanup := newTestCoordinator()
	defer cleanup()
	coord.Stop() // must not block or panic
}

func Test_ReentrantMoveCancelsThePrevious(t *testing.T) {
	c := qt.New(t)
	coord, cleanup := newTestCoordinator()
	defer cleanup()

	coord.MoveAbsolute(10000, 10000)
	time.Sleep(5 * time.Millisecond)
	coord.MoveAbsolute(20, 20)

	// Re-entry cancels the first move silently, so the only completion is
	// the final move's.
	var completions []Event
	for len(completions) < 1 {
		select {
		case e := <-coord.Events():
			if e.Kind == MoveCompleted {
				completions = append(completions, e)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("expected the final move to complete")
		}
	}
	h, v := coord.Positions()
	c.Assert(h, qt.Equals, int32(20))
	c.Assert(v, qt.Equals, int32(20))
}

func Test_HomeReseatsPositionToZero(t *testing.T) {
	c := qt.New(t)
	h := axis.New("H", 4000, 20000)
	v := axis.New("V", 4000, 20000)
	hEngine := pulse.NewEngine(h, nil, 50*time.Microsecond)
	vEngine := pulse.NewEngine(v, nil, 50*time.Microsecond)
	hProfile := profile.New(200)
	vProfile := profile.New(200)

	const homeStop = int32(70) // home trips once H reaches this position
	limits := limit.New(func(side limit.Side) bool {
		return side == limit.HMin && h.Position() <= homeStop
	}, 1, time.Millisecond, limit.DefaultPolarity())

	tickSrc := tick.NewSource(500)
	coord := New(h, v, hEngine, vEngine, hProfile, vProfile, limits, tickSrc)
	go coord.Run()
	defer func() {
		coord.Close()
		tickSrc.Stop()
	}()

	h.SetPosition(100)
	coord.Home(true, 2000)
	hPos, _ := coord.Positions()
	c.Assert(hPos, qt.Equals, int32(0))
}
