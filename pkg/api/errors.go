package api

import (
	"errors"
	"fmt"
)

// Structural errors, raised before any instance executes
var (
	ErrGraph             = errors.New("graph error")
	ErrCycle             = fmt.Errorf("%w: cycle", ErrGraph)
	ErrDuplicateName     = fmt.Errorf("%w: duplicate name", ErrGraph)
	ErrUnknownParent     = fmt.Errorf("%w: unknown parent", ErrGraph)
	ErrInvalidDefinition = fmt.Errorf("%w: invalid definition", ErrGraph)

	ErrDuplication    = errors.New("duplication error")
	ErrZeroFactor     = fmt.Errorf("%w: zero factor", ErrDuplication)
	ErrFactorMismatch = fmt.Errorf("%w: factor mismatch", ErrDuplication)
	ErrMissingFactor  = fmt.Errorf("%w: missing factor", ErrDuplication)
	ErrInvalidFactor  = fmt.Errorf("%w: invalid factor", ErrDuplication)
)

// Runtime errors, recorded on the failing instance
var (
	ErrQueryResolution = errors.New("query resolution error")
	ErrUnreachableTag  = fmt.Errorf("%w: unreachable tag", ErrQueryResolution)
	ErrTagNotFound     = fmt.Errorf("%w: tag not found", ErrQueryResolution)
	ErrBadPath         = fmt.Errorf("%w: bad path", ErrQueryResolution)
	ErrQuerySyntax     = fmt.Errorf("%w: syntax", ErrQueryResolution)
	ErrOutputConflict  = fmt.Errorf("%w: output already set", ErrQueryResolution)

	ErrStorage            = errors.New("storage error")
	ErrNoFilesMatched     = fmt.Errorf("%w: no files matched", ErrStorage)
	ErrStorageTagNotFound = fmt.Errorf("%w: tag not found", ErrStorage)
	ErrNameConflict       = fmt.Errorf("%w: file name conflict", ErrStorage)
	ErrTagConflict        = fmt.Errorf("%w: tag already stored", ErrStorage)

	ErrActionExecution = errors.New("action execution error")
	ErrActionNotFound  = fmt.Errorf("%w: action not found", ErrActionExecution)
)

// IsStructural reports whether err aborts a run before execution
func IsStructural(err error) bool {
	return errors.Is(err, ErrGraph) || errors.Is(err, ErrDuplication)
}
