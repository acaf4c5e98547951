package hnsw

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is matched by *DimensionMismatchError.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrDuplicateID is returned when inserting an id that is already indexed.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrEmptyVector is returned when inserting a zero-length vector.
	ErrEmptyVector = errors.New("empty vector")
	// ErrDecode is matched by *DecodeError.
	ErrDecode = errors.New("malformed index stream")
	// ErrUnresolvedNeighbor is matched by *UnresolvedNeighborError.
	ErrUnresolvedNeighbor = errors.New("unresolved neighbor reference")
	// ErrInvalidConfig is returned for out-of-range index parameters.
	ErrInvalidConfig = errors.New("invalid index configuration")
	// ErrEmptyIndex is returned by operations that need at least one node.
	ErrEmptyIndex = errors.New("index is empty")
)

// DimensionMismatchError reports a vector whose length differs from the
// dimension established by the index.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

// DecodeError reports a truncated or structurally invalid persisted index.
// The underlying cause, if any, is available through errors.Unwrap.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to decode %s", e.Field)
	}
	return fmt.Sprintf("failed to decode %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// UnresolvedNeighborError reports a stored edge pointing at an id that is not
// part of the persisted node set. Only returned by strict loads.
type UnresolvedNeighborError struct {
	NodeID     int32
	NeighborID int32
	Layer      int
}

func (e *UnresolvedNeighborError) Error() string {
	return fmt.Sprintf("node %d references unknown neighbor %d at layer %d", e.NodeID, e.NeighborID, e.Layer)
}

func (e *UnresolvedNeighborError) Is(target error) bool { return target == ErrUnresolvedNeighbor }
