package timetable

import (
	"errors"
	"fmt"
)

var (
	// ErrNoClassDay is returned for "record today" on Saturday or Sunday.
	ErrNoClassDay = errors.New("no classes on this day")
	// ErrNotScheduled is returned when adjusting a course that is not in the ledger.
	ErrNotScheduled = errors.New("course is not in the timetable")
)

type UnknownCourseError struct {
	Name string
}

func (e *UnknownCourseError) Error() string {
	return fmt.Sprintf("unknown course %q", e.Name)
}

type InvalidSlotError struct {
	Slot  Slot
	Input string
}

func (e *InvalidSlotError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("invalid slot %q: must be %d..%d", e.Input, KeyOffset, KeyOffset+SlotCount-1)
	}
	return fmt.Sprintf("invalid slot index %d: must be 0..%d", int(e.Slot), SlotCount-1)
}

// InvalidPlacementError reports a 4-credit course requested outside its
// canonical slots.
type InvalidPlacementError struct {
	Course string
	Slot   Slot
}

func (e *InvalidPlacementError) Error() string {
	return fmt.Sprintf("course %q cannot be placed at %s", e.Course, e.Slot)
}

// PersistenceError wraps a store failure surfaced while saving a computed state.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
