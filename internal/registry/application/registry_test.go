package application

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/maptel/internal/registry/domain"
)

func mustInsert(t *testing.T, r *Registry, h domain.Handle, src, dst string) {
	t.Helper()
	require.NoError(t, r.Insert(context.Background(), h, src, dst))
}

func mustTransform(t *testing.T, r *Registry, h domain.Handle, src string) string {
	t.Helper()
	got, err := r.Transform(context.Background(), h, src)
	require.NoError(t, err)
	return got
}

// === CreateTable / DestroyTable ===

func TestRegistry_CreateTable_HandlesStartAtZero(t *testing.T) {
	r := New()
	ctx := context.Background()

	require.Equal(t, domain.Handle(0), r.CreateTable(ctx))
	require.Equal(t, domain.Handle(1), r.CreateTable(ctx))
	require.Equal(t, domain.Handle(2), r.CreateTable(ctx))
	require.Equal(t, 3, r.Len())
}

func TestRegistry_DestroyTable_HandleNeverReused(t *testing.T) {
	r := New()
	ctx := context.Background()

	issued := map[domain.Handle]bool{}
	for range 3 {
		issued[r.CreateTable(ctx)] = true
	}
	require.NoError(t, r.DestroyTable(ctx, 2))
	require.NoError(t, r.DestroyTable(ctx, 0))

	h := r.CreateTable(ctx)
	require.False(t, issued[h], "handle %d was issued before", h)
	require.Equal(t, domain.Handle(3), h)
	require.Equal(t, []domain.Handle{1, 3}, r.Handles())
}

func TestRegistry_DestroyTable_InvalidHandle(t *testing.T) {
	r := New()
	ctx := context.Background()

	require.ErrorIs(t, r.DestroyTable(ctx, 0), domain.ErrInvalidHandle)

	h := r.CreateTable(ctx)
	require.NoError(t, r.DestroyTable(ctx, h))
	require.ErrorIs(t, r.DestroyTable(ctx, h), domain.ErrInvalidHandle, "double destroy")
	require.False(t, r.Has(h))
}

func TestRegistry_UseAfterDestroy(t *testing.T) {
	r := New()
	ctx := context.Background()
	h := r.CreateTable(ctx)
	mustInsert(t, r, h, "1", "2")
	require.NoError(t, r.DestroyTable(ctx, h))

	require.ErrorIs(t, r.Insert(ctx, h, "1", "2"), domain.ErrInvalidHandle)
	require.ErrorIs(t, r.Erase(ctx, h, "1"), domain.ErrInvalidHandle)
	_, err := r.Transform(ctx, h, "1")
	require.ErrorIs(t, err, domain.ErrInvalidHandle)
	_, err = r.Entries(h)
	require.ErrorIs(t, err, domain.ErrInvalidHandle)
}

// === Insert / Erase ===

func TestRegistry_Insert_Overwrite(t *testing.T) {
	r := New()
	h := r.CreateTable(context.Background())

	mustInsert(t, r, h, "1", "2")
	mustInsert(t, r, h, "1", "3")

	require.Equal(t, "3", mustTransform(t, r, h, "1"))
}

func TestRegistry_Insert_InvalidNumbers(t *testing.T) {
	r := New()
	ctx := context.Background()
	h := r.CreateTable(ctx)

	tests := []struct {
		name     string
		src, dst string
	}{
		{"empty source", "", "1"},
		{"empty destination", "1", ""},
		{"letters", "12ab", "1"},
		{"too long destination", "1", strings.Repeat("5", domain.MaxNumberLen+1)},
		{"control char", "1\t2", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Insert(ctx, h, tt.src, tt.dst)
			require.ErrorIs(t, err, domain.ErrInvalidNumberFormat)
		})
	}

	entries, err := r.Entries(h)
	require.NoError(t, err)
	require.Empty(t, entries, "rejected inserts must not leave mappings")
}

func TestRegistry_Insert_InvalidNumberReportedBeforeHandle(t *testing.T) {
	r := New()
	err := r.Insert(context.Background(), 99, "x", "1")
	require.ErrorIs(t, err, domain.ErrInvalidNumberFormat)
}

func TestRegistry_Insert_MaxLength(t *testing.T) {
	r := New()
	h := r.CreateTable(context.Background())
	long := strings.Repeat("7", domain.MaxNumberLen)

	mustInsert(t, r, h, long, "1")
	require.Equal(t, "1", mustTransform(t, r, h, long))
}

func TestRegistry_Erase_Idempotent(t *testing.T) {
	r := New()
	ctx := context.Background()
	h := r.CreateTable(ctx)
	mustInsert(t, r, h, "1", "2")

	require.NoError(t, r.Erase(ctx, h, "1"))
	require.NoError(t, r.Erase(ctx, h, "1"))
	require.Equal(t, "1", mustTransform(t, r, h, "1"))
}

func TestRegistry_Erase_NeverInserted(t *testing.T) {
	r := New()
	ctx := context.Background()
	h := r.CreateTable(ctx)

	require.NoError(t, r.Erase(ctx, h, "555"))
}

func TestRegistry_Erase_InvalidNumber(t *testing.T) {
	r := New()
	ctx := context.Background()
	h := r.CreateTable(ctx)

	require.ErrorIs(t, r.Erase(ctx, h, "5-5"), domain.ErrInvalidNumberFormat)
}

// === Transform ===

func TestRegistry_Transform_Identity(t *testing.T) {
	r := New()
	h := r.CreateTable(context.Background())

	require.Equal(t, "123", mustTransform(t, r, h, "123"))
}

func TestRegistry_Transform_ChainScenario(t *testing.T) {
	r := New()
	ctx := context.Background()
	h := r.CreateTable(ctx)

	mustInsert(t, r, h, "100", "200")
	mustInsert(t, r, h, "200", "300")

	require.Equal(t, "300", mustTransform(t, r, h, "100"))
	require.Equal(t, "300", mustTransform(t, r, h, "300"))
	require.NoError(t, r.DestroyTable(ctx, h))
}

func TestRegistry_Transform_CycleFallback(t *testing.T) {
	r := New()
	ctx := context.Background()
	h := r.CreateTable(ctx)

	mustInsert(t, r, h, "1", "2")
	mustInsert(t, r, h, "2", "1")

	require.Equal(t, "1", mustTransform(t, r, h, "1"))
	require.Equal(t, "2", mustTransform(t, r, h, "2"))

	res, err := r.Resolve(ctx, h, "1")
	require.NoError(t, err)
	require.True(t, res.Cycle)
}

func TestRegistry_Transform_InvalidSource(t *testing.T) {
	r := New()
	h := r.CreateTable(context.Background())

	_, err := r.Transform(context.Background(), h, "")
	require.ErrorIs(t, err, domain.ErrInvalidNumberFormat)
}

func TestRegistry_HandleIsolation(t *testing.T) {
	r := New()
	ctx := context.Background()
	h1 := r.CreateTable(ctx)
	h2 := r.CreateTable(ctx)

	mustInsert(t, r, h1, "1", "2")
	mustInsert(t, r, h2, "1", "3")
	mustInsert(t, r, h2, "2", "9")

	require.Equal(t, "2", mustTransform(t, r, h1, "1"))
	require.Equal(t, "3", mustTransform(t, r, h2, "1"))

	require.NoError(t, r.Erase(ctx, h1, "1"))
	require.Equal(t, "3", mustTransform(t, r, h2, "1"), "erase in h1 must not touch h2")

	require.NoError(t, r.DestroyTable(ctx, h1))
	require.Equal(t, "9", mustTransform(t, r, h2, "2"))
}

func TestRegistry_RegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	ctx := context.Background()

	require.Equal(t, domain.Handle(0), a.CreateTable(ctx))
	require.Equal(t, domain.Handle(0), b.CreateTable(ctx), "each registry has its own counter")
	require.NotEqual(t, a.ID(), b.ID())
}

// === TransformInto ===

func TestRegistry_TransformInto_WritesTerminator(t *testing.T) {
	r := New()
	ctx := context.Background()
	h := r.CreateTable(ctx)
	mustInsert(t, r, h, "100", "2000")

	buf := []byte("xxxxxxxx")
	n, err := r.TransformInto(ctx, h, "100", buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "2000\x00xxx", string(buf))
}

func TestRegistry_TransformInto_ExactCapacity(t *testing.T) {
	r := New()
	ctx := context.Background()
	h := r.CreateTable(ctx)
	mustInsert(t, r, h, "1", "234")

	buf := make([]byte, 4)
	n, err := r.TransformInto(ctx, h, "1", buf)
	require.NoError(t, err)
	require.Equal(t, "234", string(buf[:n]))
	require.Equal(t, byte(0), buf[n])
}

func TestRegistry_TransformInto_TooSmall(t *testing.T) {
	r := New()
	ctx := context.Background()
	h := r.CreateTable(ctx)
	mustInsert(t, r, h, "1", "234")

	buf := []byte("abc")
	n, err := r.TransformInto(ctx, h, "1", buf)
	require.ErrorIs(t, err, domain.ErrBufferTooSmall)
	require.Contains(t, err.Error(), "need 4 bytes, have 3")
	require.Zero(t, n)
	require.Equal(t, "abc", string(buf), "nothing written on failure")
}

func TestRegistry_TransformInto_CycleSizedBySource(t *testing.T) {
	r := New()
	ctx := context.Background()
	h := r.CreateTable(ctx)
	mustInsert(t, r, h, "12", "3456789")
	mustInsert(t, r, h, "3456789", "12")

	buf := make([]byte, 3)
	n, err := r.TransformInto(ctx, h, "12", buf)
	require.NoError(t, err, "cycle result is the source, which fits")
	require.Equal(t, "12", string(buf[:n]))
}

func TestRegistry_TransformInto_NilBuffer(t *testing.T) {
	r := New()
	h := r.CreateTable(context.Background())

	_, err := r.TransformInto(context.Background(), h, "1", nil)
	require.ErrorIs(t, err, domain.ErrBufferTooSmall)
}

// === Concurrency ===

func TestRegistry_ConcurrentUse(t *testing.T) {
	r := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	handles := make(chan domain.Handle, 50)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := r.CreateTable(ctx)
			_ = r.Insert(ctx, h, "1", "2")
			_ = r.Insert(ctx, h, "2", "3")
			_, _ = r.Transform(ctx, h, "1")
			_ = r.Erase(ctx, h, "2")
			handles <- h
		}()
	}
	wg.Wait()
	close(handles)

	seen := map[domain.Handle]bool{}
	for h := range handles {
		require.False(t, seen[h], "handle %d issued twice", h)
		seen[h] = true
		require.Equal(t, "2", mustTransform(t, r, h, "1"))
	}
	require.Len(t, seen, 50)
}

// === Default ===

func TestDefault_IsSingleton(t *testing.T) {
	require.Same(t, Default(), Default())
}
