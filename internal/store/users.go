package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/eliseohh/jikanwaribot/internal/timetable"
)

// ErrNotRegistered is returned when a user has no timetable document.
var ErrNotRegistered = errors.New("user not registered")

const (
	docTimetable = "timetable"
	docAbsence   = "absence"
)

// LedgerDoc names the document holding a ledger partition.
func LedgerDoc(s timetable.Semester) string {
	switch s {
	case timetable.SemesterFirst:
		return docAbsence + "_first"
	case timetable.SemesterSecond:
		return docAbsence + "_second"
	default:
		return docAbsence
	}
}

// Users stores each user's grid and ledgers under a collection named after
// the user id.
type Users struct {
	db    *DB
	split bool
}

// NewUsers returns the user repository. split selects first/second
// semester ledgers instead of a single one.
func NewUsers(db *DB, split bool) *Users {
	return &Users{db: db, split: split}
}

// Register creates an all-empty grid. Existing users are left untouched.
func (u *Users) Register(ctx context.Context, userID string) (bool, error) {
	_, err := u.db.Get(ctx, userID, docTimetable)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}

	fields := make(map[string]any, timetable.SlotCount)
	for k, v := range timetable.NewGrid().Fields() {
		fields[k] = v
	}
	if err := u.db.Set(ctx, userID, docTimetable, fields, false); err != nil {
		return false, fmt.Errorf("register %s: %w", userID, err)
	}
	return true, nil
}

func (u *Users) Grid(ctx context.Context, userID string) (timetable.Grid, error) {
	doc, err := u.db.Get(ctx, userID, docTimetable)
	if errors.Is(err, ErrNotFound) {
		return timetable.Grid{}, ErrNotRegistered
	}
	if err != nil {
		return timetable.Grid{}, err
	}
	fields, err := Decode[string](doc)
	if err != nil {
		return timetable.Grid{}, fmt.Errorf("decode timetable of %s: %w", userID, err)
	}
	return timetable.GridFromFields(fields), nil
}

func (u *Users) Ledgers(ctx context.Context, userID string) (timetable.Ledgers, error) {
	ls := timetable.Ledgers{Split: u.split}
	for _, sem := range ls.Partitions() {
		l, err := u.ledger(ctx, userID, sem)
		if err != nil {
			return timetable.Ledgers{}, err
		}
		switch sem {
		case timetable.SemesterFirst:
			ls.First = l
		case timetable.SemesterSecond:
			ls.Second = l
		default:
			ls.Single = l
		}
	}
	return ls, nil
}

func (u *Users) ledger(ctx context.Context, userID string, sem timetable.Semester) (timetable.Ledger, error) {
	doc, err := u.db.Get(ctx, userID, LedgerDoc(sem))
	if errors.Is(err, ErrNotFound) {
		return timetable.Ledger{}, nil
	}
	if err != nil {
		return nil, err
	}
	counts, err := Decode[int](doc)
	if err != nil {
		return nil, fmt.Errorf("decode %s of %s: %w", LedgerDoc(sem), userID, err)
	}
	return timetable.Ledger(counts), nil
}

// SaveEdit writes the grid and every ledger partition's delta in one
// transaction.
func (u *Users) SaveEdit(ctx context.Context, userID string, grid timetable.Grid, deltas map[timetable.Semester]timetable.Delta) error {
	return u.db.Batch(ctx, func(tx *Tx) error {
		fields := make(map[string]any, timetable.SlotCount)
		for k, v := range grid.Fields() {
			fields[k] = v
		}
		if err := tx.Merge(ctx, userID, docTimetable, fields); err != nil {
			return err
		}
		for sem, d := range deltas {
			if err := applyDelta(ctx, tx, userID, sem, d); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplyDelta writes one ledger partition's delta.
func (u *Users) ApplyDelta(ctx context.Context, userID string, sem timetable.Semester, d timetable.Delta) error {
	return u.db.Batch(ctx, func(tx *Tx) error {
		return applyDelta(ctx, tx, userID, sem, d)
	})
}

func applyDelta(ctx context.Context, tx *Tx, userID string, sem timetable.Semester, d timetable.Delta) error {
	doc := LedgerDoc(sem)
	if err := tx.DeleteFields(ctx, userID, doc, d.Delete...); err != nil {
		return err
	}
	set := make(map[string]any, len(d.Set))
	for k, v := range d.Set {
		set[k] = v
	}
	return tx.Merge(ctx, userID, doc, set)
}

// IDs lists registered users.
func (u *Users) IDs(ctx context.Context) ([]string, error) {
	return u.db.CollectionsWithDoc(ctx, docTimetable)
}
