package graph

import "errors"

var (
	ErrNotFound     = errors.New("instrument not found")
	ErrDuplicate    = errors.New("instrument already registered")
	ErrInvalidLegs  = errors.New("direct spread needs both lhs and rhs")
	ErrBadSwitch    = errors.New("invalid switch relationship")
	ErrEmptyID      = errors.New("instrument id is required")
	ErrSelfReferent = errors.New("instrument references itself")
)
