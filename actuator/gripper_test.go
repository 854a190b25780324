package actuator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"gantryfw/persist"
)

func Test_OpenTravelsFullStepBudgetAndDropsCoils(t *testing.T) {
	c := qt.New(t)
	var phases []uint8
	g := NewGripper(func(bits uint8) { phases = append(phases, bits) }, nil, 0, 0)

	g.Open()
	for i := 0; i < gripperTravelSteps; i++ {
		g.Update()
	}
	state, pos := g.State()
	c.Assert(state, qt.Equals, Open)
	c.Assert(pos, qt.Equals, int32(gripperTravelSteps))
	c.Assert(phases[len(phases)-1], qt.Equals, uint8(0)) // coils dropped at end of motion
}

func Test_ToggleReversesDirectionMidTravel(t *testing.T) {
	c := qt.New(t)
	g := NewGripper(nil, nil, 0, 0)
	g.Open()
	for i := 0; i < gripperTravelSteps/2; i++ {
		g.Update()
	}
	g.Toggle()
	for i := 0; i < gripperTravelSteps/2; i++ {
		g.Update()
	}
	state, pos := g.State()
	c.Assert(state, qt.Equals, Closed)
	c.Assert(pos, qt.Equals, int32(0))
}

func Test_StateReportsMovingMidTravel(t *testing.T) {
	c := qt.New(t)
	g := NewGripper(nil, nil, 0, 0)
	g.Open()
	g.Update()
	state, _ := g.State()
	c.Assert(state, qt.Equals, MovingState)
}

func Test_GripperPersistsPositionAcrossInstances(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "cell.json")
	store, _, _, err := persist.Open(path, time.Millisecond)
	c.Assert(err, qt.Equals, nil)

	g := NewGripper(nil, store, 0, 0)
	g.Close() // zero-distance close; no steps, no persisted write expected yet
	g.Open()
	for i := 0; i < gripperTravelSteps; i++ {
		g.Update()
	}
	store.Flush()

	data, err := os.ReadFile(path)
	c.Assert(err, qt.Equals, nil)
	c.Assert(len(data) > 0, qt.Equals, true)

	_, reopened, _, err := persist.Open(path, time.Millisecond)
	c.Assert(err, qt.Equals, nil)
	c.Assert(reopened.GripperPosition, qt.Equals, int32(gripperTravelSteps))
}
