package domain

import "errors"

// Contract violations. Callers match them with errors.Is; operations wrap
// them with the offending handle or value.
var (
	ErrInvalidHandle       = errors.New("invalid table handle")
	ErrInvalidNumberFormat = errors.New("invalid number format")
	ErrBufferTooSmall      = errors.New("output buffer too small")
)
