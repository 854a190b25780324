// Package persist implements the non-volatile storage contract of §6: the
// servo angles and gripper phase/step-count survive a power cycle, guarded
// by a one-byte magic cookie that distinguishes first boot from a stale
// cell, with writes coalesced so a burst of completed motions does not
// turn into a burst of flash writes (spec.md's third Open Question).
//
// No serialization library appears anywhere in the retrieved pack (the
// teacher's drivers write raw register bytes, not structured records), so
// this uses encoding/json against a single file — the narrowest stdlib
// surface that does the job, not a stand-in for a missing ecosystem
// choice.
package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const magicCookie = 0xA5

// Cell is the full persisted record.
type Cell struct {
	Magic           byte    `json:"magic"`
	Servo1Angle     float64 `json:"servo1_angle"`
	Servo2Angle     float64 `json:"servo2_angle"`
	GripperPhase    int     `json:"gripper_phase"`
	GripperPosition int32   `json:"gripper_position"`
}

// Store is a tiny coalescing key-value cell backed by a single file.
type Store struct {
	mu        sync.Mutex
	path      string
	pending   *Cell
	timer     *time.Timer
	coalesce  time.Duration
	flushNow  func(Cell) error
}

// Open loads path, creating it with a first-boot-marked cell if it does
// not exist or fails the magic-cookie check. The returned bool reports
// whether this was treated as a first boot.
func Open(path string, coalesce time.Duration) (*Store, Cell, bool, error) {
	if coalesce <= 0 {
		coalesce = 250 * time.Millisecond
	}
	s := &Store{path: path, coalesce: coalesce}
	s.flushNow = s.writeFile

	cell, firstBoot, err := s.readFile()
	if err != nil {
		return nil, Cell{}, false, err
	}
	return s, cell, firstBoot, nil
}

func (s *Store) readFile() (Cell, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			fresh := Cell{Magic: magicCookie}
			return fresh, true, nil
		}
		return Cell{}, false, err
	}
	var c Cell
	if err := json.Unmarshal(data, &c); err != nil || c.Magic != magicCookie {
		return Cell{Magic: magicCookie}, true, nil
	}
	return c, false, nil
}

func (s *Store) writeFile(c Cell) error {
	c.Magic = magicCookie
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Save schedules a coalesced write: writes arriving within `coalesce` of
// each other collapse into the last one, bounding flash wear from the
// "every completed motion" write trigger of §6.
func (s *Store) Save(c Cell) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cell := c
	s.pending = &cell
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.coalesce, s.flush)
}

func (s *Store) flush() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	if pending == nil {
		return
	}
	_ = s.flushNow(*pending)
}

// Flush forces any pending coalesced write out immediately, e.g. on
// graceful shutdown.
func (s *Store) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.flush()
}
