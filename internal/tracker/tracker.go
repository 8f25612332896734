// Package tracker runs timetable operations for one user at a time:
// load state, apply the pure transform, persist the result.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliseohh/jikanwaribot/internal/timetable"
)

// ErrNoCatalog is returned before any catalog has been loaded.
var ErrNoCatalog = errors.New("course catalog not loaded")

// Store persists per-user grids and ledgers.
type Store interface {
	Register(ctx context.Context, userID string) (bool, error)
	Grid(ctx context.Context, userID string) (timetable.Grid, error)
	Ledgers(ctx context.Context, userID string) (timetable.Ledgers, error)
	SaveEdit(ctx context.Context, userID string, grid timetable.Grid, deltas map[timetable.Semester]timetable.Delta) error
	ApplyDelta(ctx context.Context, userID string, sem timetable.Semester, d timetable.Delta) error
}

type Options struct {
	Cutover  timetable.Cutover
	Location *time.Location
	Edit     timetable.EditOptions
	// Now defaults to time.Now.
	Now func() time.Time
}

type Tracker struct {
	store   Store
	catalog atomic.Pointer[timetable.Catalog]
	opts    Options
	locks   *userLocks
	log     *zap.Logger
}

func New(store Store, cat *timetable.Catalog, opts Options, log *zap.Logger) *Tracker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	t := &Tracker{store: store, opts: opts, locks: newUserLocks(), log: log}
	if cat != nil {
		t.catalog.Store(cat)
	}
	return t
}

// SetCatalog swaps the catalog used by subsequent operations.
func (t *Tracker) SetCatalog(cat *timetable.Catalog) {
	t.catalog.Store(cat)
	t.log.Info("catalog loaded", zap.Int("courses", cat.Len()))
}

func (t *Tracker) Catalog() (*timetable.Catalog, error) {
	cat := t.catalog.Load()
	if cat == nil {
		return nil, ErrNoCatalog
	}
	return cat, nil
}

func (t *Tracker) now() time.Time { return t.opts.Now().In(t.opts.Location) }

// Semester returns the semester "now" falls in.
func (t *Tracker) Semester() timetable.Semester {
	return t.opts.Cutover.Current(t.now())
}

func (t *Tracker) Register(ctx context.Context, userID string) (bool, error) {
	unlock := t.locks.lock(userID)
	defer unlock()

	created, err := t.store.Register(ctx, userID)
	if err != nil {
		return false, &timetable.PersistenceError{Op: "register", Err: err}
	}
	if created {
		t.log.Info("user registered", zap.String("user", userID))
	}
	return created, nil
}

// Timetable renders the user's grid with today highlighted.
func (t *Tracker) Timetable(ctx context.Context, userID string) (string, error) {
	g, err := t.store.Grid(ctx, userID)
	if err != nil {
		return "", err
	}
	return timetable.RenderTimetable(g, timetable.HighlightDay(t.now())), nil
}

// Options returns what currently occupies slot and the courses offered there.
func (t *Tracker) Options(ctx context.Context, userID string, slot timetable.Slot) (string, []string, error) {
	cat, err := t.Catalog()
	if err != nil {
		return "", nil, err
	}
	opts, err := cat.Options(slot)
	if err != nil {
		return "", nil, err
	}
	g, err := t.store.Grid(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	return g[slot], opts, nil
}

// Edit places name at slot and persists the grid with the ledger changes
// of every partition in one write.
func (t *Tracker) Edit(ctx context.Context, userID string, slot timetable.Slot, name string) (timetable.Edit, error) {
	cat, err := t.Catalog()
	if err != nil {
		return timetable.Edit{}, err
	}

	unlock := t.locks.lock(userID)
	defer unlock()
	log := t.opLog("edit", userID)

	g, err := t.store.Grid(ctx, userID)
	if err != nil {
		return timetable.Edit{}, err
	}
	ls, err := t.store.Ledgers(ctx, userID)
	if err != nil {
		return timetable.Edit{}, err
	}

	var result timetable.Edit
	deltas := make(map[timetable.Semester]timetable.Delta)
	for _, sem := range ls.Partitions() {
		ed, err := timetable.ApplyEdit(g, ls.Of(sem), slot, name, cat, t.opts.Edit)
		if err != nil {
			return timetable.Edit{}, err
		}
		result = ed
		deltas[sem] = ed.Delta
	}
	if !result.Changed {
		log.Debug("edit is a no-op", zap.String("slot", slot.Key()), zap.String("course", name))
		return result, nil
	}

	if err := t.store.SaveEdit(ctx, userID, result.Grid, deltas); err != nil {
		log.Error("edit not saved", zap.Error(err))
		return timetable.Edit{}, &timetable.PersistenceError{Op: "edit", Err: err}
	}
	log.Info("timetable edited",
		zap.String("slot", slot.Key()),
		zap.String("from", g[slot]),
		zap.String("to", name),
		zap.Strings("removed", result.Delta.Delete))
	return result, nil
}

// RecordToday adds today's absences to the active ledger partition. A failed
// write restores the previous counts.
func (t *Tracker) RecordToday(ctx context.Context, userID string) (timetable.Delta, error) {
	cat, err := t.Catalog()
	if err != nil {
		return timetable.Delta{}, err
	}
	now := t.now()

	unlock := t.locks.lock(userID)
	defer unlock()
	log := t.opLog("record_today", userID)

	g, err := t.store.Grid(ctx, userID)
	if err != nil {
		return timetable.Delta{}, err
	}
	ls, err := t.store.Ledgers(ctx, userID)
	if err != nil {
		return timetable.Delta{}, err
	}

	sem := ls.Active(t.opts.Cutover.Current(now))
	ledger := ls.Of(sem)
	d, err := timetable.RecordToday(g, ledger, cat, now.Weekday())
	if err != nil {
		return timetable.Delta{}, err
	}
	if d.IsEmpty() {
		return d, nil
	}

	if err := t.commit(ctx, userID, sem, ledger, d); err != nil {
		log.Error("absence not recorded", zap.Error(err))
		return timetable.Delta{}, err
	}
	log.Info("absence recorded", zap.Stringer("semester", sem), zap.Strings("courses", d.SetNames()))
	return d, nil
}

// Adjust changes one course's count in the active partition by sign*scale
// and returns the new count.
func (t *Tracker) Adjust(ctx context.Context, userID, course string, sign, scale int) (int, error) {
	unlock := t.locks.lock(userID)
	defer unlock()
	log := t.opLog("adjust", userID)

	ls, err := t.store.Ledgers(ctx, userID)
	if err != nil {
		return 0, err
	}
	sem := ls.Active(t.Semester())
	ledger := ls.Of(sem)

	d, err := timetable.Adjust(ledger, course, sign, scale)
	if err != nil {
		return 0, err
	}
	if d.IsEmpty() {
		return ledger[course], nil
	}
	if err := t.commit(ctx, userID, sem, ledger, d); err != nil {
		log.Error("absence not adjusted", zap.Error(err))
		return ledger[course], err
	}
	log.Info("absence adjusted", zap.String("course", course), zap.Int("count", d.Set[course]))
	return d.Set[course], nil
}

// commit writes d and restores the prior values if the write fails.
func (t *Tracker) commit(ctx context.Context, userID string, sem timetable.Semester, prev timetable.Ledger, d timetable.Delta) error {
	write := func(ctx context.Context, d timetable.Delta) error {
		return t.store.ApplyDelta(ctx, userID, sem, d)
	}
	_, err := timetable.CommitOrRevert(ctx, prev.Snapshot(d), d, write, write)
	if err != nil {
		return &timetable.PersistenceError{Op: "ledger", Err: err}
	}
	return nil
}

func (t *Tracker) Report(ctx context.Context, userID string, mode timetable.Mode) (string, error) {
	g, err := t.store.Grid(ctx, userID)
	if err != nil {
		return "", err
	}
	ls, err := t.store.Ledgers(ctx, userID)
	if err != nil {
		return "", err
	}
	return timetable.RenderReport(g, ls, mode, t.now(), t.opts.Cutover), nil
}

// Audit checks a user's stored state against the catalog, per ledger partition.
func (t *Tracker) Audit(ctx context.Context, userID string) (map[timetable.Semester][]timetable.Problem, error) {
	cat, err := t.Catalog()
	if err != nil {
		return nil, err
	}
	g, err := t.store.Grid(ctx, userID)
	if err != nil {
		return nil, err
	}
	ls, err := t.store.Ledgers(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[timetable.Semester][]timetable.Problem)
	for _, sem := range ls.Partitions() {
		if problems := timetable.Validate(g, ls.Of(sem), cat); len(problems) > 0 {
			out[sem] = problems
		}
	}
	return out, nil
}

func (t *Tracker) opLog(op, userID string) *zap.Logger {
	return t.log.With(zap.String("op", op), zap.String("op_id", uuid.NewString()), zap.String("user", userID))
}

func (t *Tracker) String() string {
	cat := t.catalog.Load()
	if cat == nil {
		return "tracker(no catalog)"
	}
	return fmt.Sprintf("tracker(%d courses)", cat.Len())
}
