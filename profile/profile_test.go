package profile

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func Test_SegmentsSumToTotal(t *testing.T) {
	c := qt.New(t)
	p := New(100)
	p.Setup(0, 10000, 2000, 4000)

	accel, constant, decel, total := p.Segments()
	c.Assert(accel+constant+decel, qt.Equals, total)
	c.Assert(total, qt.Equals, uint32(10000))
}

func Test_TrapezoidReachesVMax(t *testing.T) {
	c := qt.New(t)
	p := New(100)
	// d_acc = v_max^2/(2a) = 2000^2/8000 = 500; 2*d_acc = 1000 < 10000 => trapezoid.
	p.Setup(0, 10000, 2000, 4000)
	c.Assert(p.PeakSpeed(), qt.Equals, uint32(2000))
	_, constant, _, _ := p.Segments()
	c.Assert(constant > 0, qt.Equals, true)
}

func Test_TriangleCapsBelowVMax(t *testing.T) {
	c := qt.New(t)
	p := New(100)
	// d_acc = 2000^2/8000 = 500; 2*d_acc = 1000 > 300 => triangle.
	p.Setup(0, 300, 2000, 4000)
	c.Assert(p.PeakSpeed() < 2000, qt.Equals, true)
	_, constant, _, _ := p.Segments()
	c.Assert(constant, qt.Equals, uint32(0))
}

func Test_ZeroDistanceCompletesImmediately(t *testing.T) {
	c := qt.New(t)
	p := New(100)
	p.Setup(5, 5, 2000, 4000)
	c.Assert(p.State(), qt.Equals, Completed)
	c.Assert(p.CurrentSpeed(), qt.Equals, uint32(0))
}

func Test_SpeedMonotonicDuringAccelAndDecel(t *testing.T) {
	c := qt.New(t)
	p := New(100)
	p.Setup(0, 10000, 2000, 4000)

	var prev uint32
	pos := int32(0)
	for p.State() != Completed && pos <= 10000 {
		v := p.Update(pos)
		if p.State() == Accelerating {
			c.Assert(v >= prev, qt.Equals, true)
		}
		if p.State() == Decelerating {
			c.Assert(v <= prev, qt.Equals, true)
		}
		prev = v
		pos++
	}
}

func Test_ReturnsToIdleOnReset(t *testing.T) {
	c := qt.New(t)
	p := New(100)
	p.Setup(0, 1000, 2000, 4000)
	p.Update(10)
	p.Reset()
	c.Assert(p.State(), qt.Equals, Idle)
	c.Assert(p.CurrentSpeed(), qt.Equals, uint32(0))
}
