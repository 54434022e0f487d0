package grid

import (
	"errors"
	"fmt"
)

// Usage errors are returned to the caller as-is; the grid never retries or
// repairs state on its own.
var (
	// ErrSetup marks configuration defects detected by New.
	ErrSetup = errors.New("grid setup error")

	// ErrOutOfRange is matched by *OutOfRangeError.
	ErrOutOfRange = errors.New("page out of range")

	// ErrStaleHandle is returned when a handle's record is no longer present.
	ErrStaleHandle = errors.New("stale row handle")

	// ErrInvalidPosition is returned for positions outside the rendered page
	// and for overlay conflicts.
	ErrInvalidPosition = errors.New("invalid row position")

	// ErrCheckboxesNotEnabled is returned by checkbox operations while
	// checkbox mode is off.
	ErrCheckboxesNotEnabled = errors.New("checkboxes not enabled")

	// ErrInvalidColumn is returned for column indexes outside the grid.
	ErrInvalidColumn = errors.New("invalid column")

	// ErrNilRecord is returned when a nil record replaces a row.
	ErrNilRecord = errors.New("nil record")
)

// OutOfRangeError reports a page request outside [0, PageCount).
type OutOfRangeError struct {
	Page      int
	PageCount int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("page out of range: %d (page count %d)", e.Page, e.PageCount)
}

func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

// SetupError describes a column configuration defect.
type SetupError struct {
	Column int    // Column index, -1 for grid-level problems
	Title  string // Column title, if any
	Reason string
}

func (e *SetupError) Error() string {
	if e.Column < 0 {
		return fmt.Sprintf("grid setup error: %s", e.Reason)
	}
	return fmt.Sprintf("grid setup error: column %d (%q): %s", e.Column, e.Title, e.Reason)
}

func (e *SetupError) Is(target error) bool {
	return target == ErrSetup
}

// PositionError reports an invalid position in the rendered page.
type PositionError struct {
	Position int
	Reason   string
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("invalid row position %d: %s", e.Position, e.Reason)
}

func (e *PositionError) Is(target error) bool {
	return target == ErrInvalidPosition
}
