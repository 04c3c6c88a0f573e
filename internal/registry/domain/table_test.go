package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func n(s string) Number { return MustParseNumber(s) }

func TestTable_Resolve_Unmapped(t *testing.T) {
	tbl := NewTable()
	res := tbl.Resolve(n("123"))
	require.Equal(t, Resolution{Destination: n("123")}, res)
}

func TestTable_Resolve_OneHop(t *testing.T) {
	tbl := NewTable()
	tbl.Set(n("100"), n("200"))

	res := tbl.Resolve(n("100"))
	require.Equal(t, n("200"), res.Destination)
	require.Equal(t, 1, res.Hops)
	require.False(t, res.Cycle)
}

func TestTable_Resolve_Chain(t *testing.T) {
	tbl := NewTable()
	tbl.Set(n("100"), n("200"))
	tbl.Set(n("200"), n("300"))

	require.Equal(t, n("300"), tbl.Resolve(n("100")).Destination)
	require.Equal(t, n("300"), tbl.Resolve(n("200")).Destination)
	require.Equal(t, n("300"), tbl.Resolve(n("300")).Destination)
	require.Equal(t, 2, tbl.Resolve(n("100")).Hops)
}

func TestTable_Resolve_TwoCycleReturnsOwnInput(t *testing.T) {
	tbl := NewTable()
	tbl.Set(n("1"), n("2"))
	tbl.Set(n("2"), n("1"))

	a := tbl.Resolve(n("1"))
	require.True(t, a.Cycle)
	require.Equal(t, n("1"), a.Destination)

	b := tbl.Resolve(n("2"))
	require.True(t, b.Cycle)
	require.Equal(t, n("2"), b.Destination)
}

func TestTable_Resolve_SelfLoop(t *testing.T) {
	tbl := NewTable()
	tbl.Set(n("7"), n("7"))

	res := tbl.Resolve(n("7"))
	require.True(t, res.Cycle)
	require.Equal(t, n("7"), res.Destination)
}

func TestTable_Resolve_TailIntoCycleFallsBackToSource(t *testing.T) {
	tbl := NewTable()
	tbl.Set(n("9"), n("1"))
	tbl.Set(n("1"), n("2"))
	tbl.Set(n("2"), n("1"))

	res := tbl.Resolve(n("9"))
	require.True(t, res.Cycle)
	require.Equal(t, n("9"), res.Destination)
}

func TestTable_SetOverwrites(t *testing.T) {
	tbl := NewTable()
	tbl.Set(n("1"), n("2"))
	tbl.Set(n("1"), n("3"))

	dst, ok := tbl.Lookup(n("1"))
	require.True(t, ok)
	require.Equal(t, n("3"), dst)
	require.Equal(t, 1, tbl.Len())
}

func TestTable_Delete(t *testing.T) {
	tbl := NewTable()
	tbl.Set(n("1"), n("2"))

	require.True(t, tbl.Delete(n("1")))
	require.False(t, tbl.Delete(n("1")), "second delete is a no-op")
	require.Equal(t, 0, tbl.Len())
}

func TestTable_GenerationChangesOnlyOnMutation(t *testing.T) {
	tbl := NewTable()
	g0 := tbl.Generation()

	tbl.Set(n("1"), n("2"))
	g1 := tbl.Generation()
	require.NotEqual(t, g0, g1)

	tbl.Resolve(n("1"))
	require.Equal(t, g1, tbl.Generation(), "resolve must not mutate")

	require.False(t, tbl.Delete(n("5")))
	require.Equal(t, g1, tbl.Generation(), "no-op delete must not bump generation")

	require.True(t, tbl.Delete(n("1")))
	require.NotEqual(t, g1, tbl.Generation())
}

func TestTable_EntriesIsCopy(t *testing.T) {
	tbl := NewTable()
	tbl.Set(n("1"), n("2"))

	snap := tbl.Entries()
	snap[n("3")] = n("4")
	require.Equal(t, 1, tbl.Len())
	require.Equal(t, []Number{n("1")}, tbl.Sources())
}

// referenceResolve walks the chain with an explicit step bound instead of a
// visited set. A chain longer than the table size must have repeated a key.
func referenceResolve(m map[Number]Number, source Number) Number {
	key := source
	for range len(m) + 1 {
		next, ok := m[key]
		if !ok {
			return key
		}
		key = next
	}
	return source
}

func TestTable_Resolve_MatchesReference(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// A tiny alphabet forces chains and cycles to appear often.
		num := rapid.SampledFrom([]Number{"1", "2", "3", "4", "5", "6"})
		pairs := rapid.MapOf(num, num).Draw(t, "pairs")

		tbl := NewTable()
		for src, dst := range pairs {
			tbl.Set(src, dst)
		}

		src := num.Draw(t, "source")
		res := tbl.Resolve(src)
		require.Equal(t, referenceResolve(pairs, src), res.Destination)
		require.LessOrEqual(t, res.Hops, len(pairs)+1)
		if res.Cycle {
			require.Equal(t, src, res.Destination)
		} else {
			_, mapped := pairs[res.Destination]
			require.False(t, mapped, "resolved number must be unmapped")
		}
	})
}
