package candidate

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mchmarny/peptopt/pkg/peptide"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTable(t *testing.T) {
	tbl := NewTable([]Row{
		{Position: 12, Substitution: "Y"},
		{Position: 2, Substitution: "G"},
		{Position: 12, Substitution: "A"},
		{Position: 12, Substitution: "Y"},
		{Position: 2, Substitution: ""},
	})

	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []int{2, 12}, tbl.Positions())
	assert.Equal(t, []string{"A", "Y"}, tbl.Allowed(12))
	assert.Equal(t, []string{"G"}, tbl.Allowed(2))
	assert.Empty(t, tbl.Allowed(5))
}

func TestConstrained_SinglePosition(t *testing.T) {
	tbl := NewTable([]Row{{Position: 1, Substitution: "A"}})

	list := Constrained(peptide.BaselineGLP1, tbl)
	require.Len(t, list, 1)
	assert.Equal(t, "AAEGTFTSDVSSYLEGQAAKEFIAWLVKGR", list[0].Sequence)
	assert.Equal(t, 1, list[0].Position)
	assert.Equal(t, "A", list[0].Substitution)
}

func TestConstrained_SkipsNoOpAndAnnotations(t *testing.T) {
	tbl := NewTable([]Row{
		{Position: 1, Substitution: "H"},     // same as baseline
		{Position: 2, Substitution: "Y+HLE"}, // compound modification
		{Position: 2, Substitution: "G"},
		{Position: 31, Substitution: "A"}, // out of bounds
		{Position: 0, Substitution: "A"},  // out of bounds
	})

	list := Constrained(peptide.BaselineGLP1, tbl)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Position)
	assert.Equal(t, "G", list[0].Substitution)
}

func TestNewTable_NormalizesCodes(t *testing.T) {
	tbl := NewTable([]Row{
		{Position: 1, Substitution: "a"},
		{Position: 1, Substitution: " A "},
		{Position: 1, Substitution: "h"},
	})
	assert.Equal(t, []string{"A", "H"}, tbl.Allowed(1))

	list := Constrained(peptide.BaselineGLP1, tbl)
	require.Len(t, list, 1)
	assert.Equal(t, "A", list[0].Substitution)
}

func TestConstrained_SkipsNonCanonicalCodes(t *testing.T) {
	tbl := NewTable([]Row{
		{Position: 2, Substitution: "X"},
		{Position: 2, Substitution: "B"},
		{Position: 2, Substitution: "G"},
	})

	list := Constrained(peptide.BaselineGLP1, tbl)
	require.Len(t, list, 1)
	assert.Equal(t, "G", list[0].Substitution)
}

func TestConstrained_Order(t *testing.T) {
	tbl := NewTable([]Row{
		{Position: 10, Substitution: "K"},
		{Position: 3, Substitution: "Y"},
		{Position: 10, Substitution: "A"},
		{Position: 3, Substitution: "D"},
	})

	list := Constrained(peptide.BaselineGLP1, tbl)
	got := make([]string, 0, len(list))
	for _, c := range list {
		got = append(got, peptide.Mutation{Position: c.Position, Substitution: c.Substitution}.String())
	}
	assert.Equal(t, []string{"3D", "3Y", "10A", "10K"}, got)
}

func TestConstrained_NilTable(t *testing.T) {
	assert.Nil(t, Constrained(peptide.BaselineGLP1, nil))
}

func TestConstrained_ShortSequence(t *testing.T) {
	tbl := NewTable([]Row{{Position: 3, Substitution: "A"}, {Position: 5, Substitution: "A"}})
	list := Constrained("HAEG", tbl)
	require.Len(t, list, 1)
	assert.Equal(t, "HAAG", list[0].Sequence)
}

func TestUnconstrained(t *testing.T) {
	list := Unconstrained("AEK")
	require.Len(t, list, 57)

	seen := make(map[string]bool, len(list))
	for _, c := range list {
		assert.NotEqual(t, "AEK", c.Sequence)
		assert.NotEqual(t, "AEK"[c.Position-1:c.Position], c.Substitution)
		assert.False(t, seen[c.Sequence], "duplicate %s", c.Sequence)
		seen[c.Sequence] = true
	}

	assert.Equal(t, "CEK", list[0].Sequence)
	assert.Equal(t, 1, list[0].Position)
	assert.Equal(t, "AEY", list[len(list)-1].Sequence)
}

func TestUnconstrained_Empty(t *testing.T) {
	assert.Empty(t, Unconstrained(""))
}

func TestTableProvider_LoadsOnce(t *testing.T) {
	var calls atomic.Int32
	p := NewTableProvider(SourceFunc(func() ([]Row, error) {
		calls.Add(1)
		return []Row{{Position: 1, Substitution: "A"}}, nil
	}))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tbl, err := p.Table()
			assert.NoError(t, err)
			assert.Equal(t, 1, tbl.Len())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestTableProvider_Error(t *testing.T) {
	p := NewTableProvider(SourceFunc(func() ([]Row, error) {
		return nil, errors.New("boom")
	}))
	_, err := p.Table()
	assert.Error(t, err)

	_, err = NewTableProvider(nil).Table()
	assert.Error(t, err)
}
