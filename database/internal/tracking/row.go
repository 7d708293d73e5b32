package tracking

import (
	"sync"

	"github.com/gaborage/go-bricks-orm/database/types"
)

// trackRow defers tracking of a QueryRow statement until its row is
// consumed, since database/sql reports the query error from Scan.
func trackRow(row types.Row, finish func(error)) types.Row {
	if row == nil {
		return nil
	}
	return &trackedRow{row: row, finish: finish}
}

type trackedRow struct {
	row    types.Row
	finish func(error)
	once   sync.Once
}

func (r *trackedRow) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	r.once.Do(func() { r.finish(err) })
	return err
}

// Err only settles tracking on failure; a nil error leaves it to Scan.
func (r *trackedRow) Err() error {
	err := r.row.Err()
	if err != nil {
		r.once.Do(func() { r.finish(err) })
	}
	return err
}
