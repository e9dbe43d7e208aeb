package exemplar

import (
	"errors"
	"fmt"
)

var (
	// ErrImproperlyConfigured is returned when options are missing, contradictory or out
	// of range. It is raised before any engine state is touched.
	ErrImproperlyConfigured = errors.New("improperly configured")

	// ErrDataInvalid is returned when inputs are inconsistent with each other: segment
	// lengths that do not cover the data, out-of-range center indices, or a metric that
	// returns the wrong number of distances.
	ErrDataInvalid = errors.New("data invalid")
)

// ErrLengthMismatch indicates that a sequence had the wrong length.
//
// It matches ErrDataInvalid under errors.Is.
type ErrLengthMismatch struct {
	What     string
	Expected int
	Actual   int
}

func (e *ErrLengthMismatch) Error() string {
	return fmt.Sprintf("%s: length mismatch: expected %d, got %d", e.What, e.Expected, e.Actual)
}

// Is reports whether target is ErrDataInvalid.
func (e *ErrLengthMismatch) Is(target error) bool { return target == ErrDataInvalid }

// ErrIndexOutOfRange indicates a center index outside the data.
//
// It matches ErrDataInvalid under errors.Is.
type ErrIndexOutOfRange struct {
	Index int
	Len   int
}

func (e *ErrIndexOutOfRange) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Len)
}

// Is reports whether target is ErrDataInvalid.
func (e *ErrIndexOutOfRange) Is(target error) bool { return target == ErrDataInvalid }

// ErrNoStoppingCriterion is returned when neither a cluster count nor a cluster radius
// was configured.
//
// It matches ErrImproperlyConfigured under errors.Is.
type ErrNoStoppingCriterion struct{}

func (e *ErrNoStoppingCriterion) Error() string {
	return "at least one of n_clusters or cluster_radius is required"
}

// Is reports whether target is ErrImproperlyConfigured.
func (e *ErrNoStoppingCriterion) Is(target error) bool { return target == ErrImproperlyConfigured }

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrImproperlyConfigured, fmt.Sprintf(format, args...))
}

func dataError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDataInvalid, fmt.Sprintf(format, args...))
}
