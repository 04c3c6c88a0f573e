package domain

import "strconv"

// Handle identifies one redirection table within a registry.
// Handles are issued from 0 upward and never reused.
type Handle uint64

// String returns the decimal form of the handle.
func (h Handle) String() string {
	return strconv.FormatUint(uint64(h), 10)
}

// ParseHandle parses the decimal form produced by String.
func ParseHandle(s string) (Handle, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return Handle(v), nil
}
