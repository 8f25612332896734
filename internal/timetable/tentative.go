package timetable

import (
	"context"
	"errors"
)

// CommitOrRevert persists next through commit. When commit fails, revert is
// called with prev to undo whatever part of the write reached the store, and
// prev is returned alongside the commit error. A failed revert is joined to
// that error.
func CommitOrRevert[S any](ctx context.Context, prev, next S, commit, revert func(context.Context, S) error) (S, error) {
	err := commit(ctx, next)
	if err == nil {
		return next, nil
	}
	if rerr := revert(ctx, prev); rerr != nil {
		return prev, errors.Join(err, &PersistenceError{Op: "revert", Err: rerr})
	}
	return prev, err
}
