package persist

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func Test_OpenOnMissingFileReportsFirstBoot(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(t.TempDir(), "cell.json")

	_, cell, firstBoot, err := Open(path, time.Millisecond)
	c.Assert(err, qt.Equals, nil)
	c.Assert(firstBoot, qt.Equals, true)
	c.Assert(cell.Magic, qt.Equals, byte(magicCookie))
}

func Test_OpenOnCorruptFileTreatsAsFirstBoot(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(t.TempDir(), "cell.json")
	c.Assert(os.WriteFile(path, []byte("not json"), 0o644), qt.Equals, nil)

	_, _, firstBoot, err := Open(path, time.Millisecond)
	c.Assert(err, qt.Equals, nil)
	c.Assert(firstBoot, qt.Equals, true)
}

func Test_SaveCoalescesBurstsIntoOneWrite(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(t.TempDir(), "cell.json")
	store, _, _, err := Open(path, 30*time.Millisecond)
	c.Assert(err, qt.Equals, nil)

	for i := 0; i < 5; i++ {
		store.Save(Cell{Servo1Angle: float64(i)})
	}
	// Nothing should have landed yet; the coalescing window hasn't elapsed.
	_, statErr := os.Stat(path)
	c.Assert(os.IsNotExist(statErr), qt.Equals, true)

	time.Sleep(60 * time.Millisecond)
	_, cell, _, err := Open(path, time.Millisecond)
	c.Assert(err, qt.Equals, nil)
	c.Assert(cell.Servo1Angle, qt.Equals, 4.0) // only the last of the burst survives
}

func Test_FlushForcesImmediateWrite(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(t.TempDir(), "cell.json")
	store, _, _, err := Open(path, time.Hour) // long enough that only Flush can land it
	c.Assert(err, qt.Equals, nil)

	store.Save(Cell{GripperPosition: 42})
	store.Flush()

	_, cell, _, err := Open(path, time.Millisecond)
	c.Assert(err, qt.Equals, nil)
	c.Assert(cell.GripperPosition, qt.Equals, int32(42))
}
