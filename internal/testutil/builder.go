// Package testutil builds populated registries for tests.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/maptel/internal/registry/application"
	"github.com/zjrosen/maptel/internal/registry/domain"
)

// TableOption adds content to a table being built.
type TableOption func(*tableData)

type tableData struct {
	name      string
	redirects [][2]string
	destroyed bool
}

// Redirect maps source to destination.
func Redirect(source, destination string) TableOption {
	return func(td *tableData) {
		td.redirects = append(td.redirects, [2]string{source, destination})
	}
}

// Chain maps each number to the next: Chain("1", "2", "3") gives 1→2, 2→3.
func Chain(numbers ...string) TableOption {
	return func(td *tableData) {
		for i := 0; i+1 < len(numbers); i++ {
			td.redirects = append(td.redirects, [2]string{numbers[i], numbers[i+1]})
		}
	}
}

// Cycle maps each number to the next and the last back to the first.
func Cycle(numbers ...string) TableOption {
	return func(td *tableData) {
		if len(numbers) == 0 {
			return
		}
		Chain(numbers...)(td)
		td.redirects = append(td.redirects, [2]string{numbers[len(numbers)-1], numbers[0]})
	}
}

// Destroyed destroys the table after it is filled, leaving its handle dead.
func Destroyed() TableOption {
	return func(td *tableData) {
		td.destroyed = true
	}
}

// Builder accumulates tables and creates them in declaration order.
type Builder struct {
	t      *testing.T
	reg    *application.Registry
	tables []tableData
}

// NewBuilder creates a builder for reg.
func NewBuilder(t *testing.T, reg *application.Registry) *Builder {
	t.Helper()
	return &Builder{t: t, reg: reg}
}

// WithTable declares a table under a test-local name.
func (b *Builder) WithTable(name string, opts ...TableOption) *Builder {
	td := tableData{name: name}
	for _, opt := range opts {
		opt(&td)
	}
	b.tables = append(b.tables, td)
	return b
}

// Build creates every declared table and returns the handles by name.
func (b *Builder) Build() map[string]domain.Handle {
	b.t.Helper()
	ctx := context.Background()

	handles := make(map[string]domain.Handle, len(b.tables))
	for _, td := range b.tables {
		h := b.reg.CreateTable(ctx)
		for _, r := range td.redirects {
			require.NoError(b.t, b.reg.Insert(ctx, h, r[0], r[1]), "table %s: insert %s→%s", td.name, r[0], r[1])
		}
		if td.destroyed {
			require.NoError(b.t, b.reg.DestroyTable(ctx, h), "table %s: destroy", td.name)
		}
		handles[td.name] = h
	}
	return handles
}
