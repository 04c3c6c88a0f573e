package application

import "github.com/zjrosen/maptel/internal/registry/domain"

// Op names the registry operation behind a TableEvent.
type Op string

const (
	OpCreate  Op = "create"
	OpDestroy Op = "destroy"
	OpInsert  Op = "insert"
	OpErase   Op = "erase"
)

// TableEvent describes one change to a registry. Source and Destination
// are set only for the operations that carry them.
type TableEvent struct {
	Op          Op
	Handle      domain.Handle
	Source      domain.Number
	Destination domain.Number
}
