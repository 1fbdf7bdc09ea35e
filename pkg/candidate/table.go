package candidate

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/mchmarny/peptopt/pkg/peptide"
)

// Row is one observed substitution from the substitution-effects dataset.
type Row struct {
	Position     int
	Substitution string
}

// Table maps a 1-based position to the sorted set of substitution codes
// observed there. It is read-only once built.
type Table struct {
	positions []int
	allowed   map[int][]string
}

// NewTable groups rows by position, de-duplicating and sorting codes. Codes
// are trimmed and upper-cased.
func NewTable(rows []Row) *Table {
	sets := make(map[int]map[string]struct{})
	for _, r := range rows {
		sub := peptide.Normalize(r.Substitution)
		if sub == "" {
			continue
		}
		if _, ok := sets[r.Position]; !ok {
			sets[r.Position] = make(map[string]struct{})
		}
		sets[r.Position][sub] = struct{}{}
	}

	t := &Table{
		positions: make([]int, 0, len(sets)),
		allowed:   make(map[int][]string, len(sets)),
	}
	for pos, set := range sets {
		subs := make([]string, 0, len(set))
		for s := range set {
			subs = append(subs, s)
		}
		slices.Sort(subs)
		t.allowed[pos] = subs
		t.positions = append(t.positions, pos)
	}
	slices.Sort(t.positions)

	return t
}

// Positions returns the table positions in ascending order.
func (t *Table) Positions() []int {
	return slices.Clone(t.positions)
}

// Allowed returns the sorted substitution codes observed at pos.
func (t *Table) Allowed(pos int) []string {
	return slices.Clone(t.allowed[pos])
}

// Len is the number of positions in the table.
func (t *Table) Len() int {
	return len(t.positions)
}

// Source supplies the rows a Table is built from.
type Source interface {
	Substitutions() ([]Row, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() ([]Row, error)

func (f SourceFunc) Substitutions() ([]Row, error) {
	return f()
}

// TableProvider builds the Table from its Source on first use and caches the
// outcome for the life of the process. Concurrent callers share one load.
type TableProvider struct {
	src   Source
	once  sync.Once
	table *Table
	err   error
}

// NewTableProvider returns a provider backed by src.
func NewTableProvider(src Source) *TableProvider {
	return &TableProvider{src: src}
}

// Table returns the cached table, loading it on the first call.
func (p *TableProvider) Table() (*Table, error) {
	p.once.Do(func() {
		if p.src == nil {
			p.err = fmt.Errorf("substitution source not configured")
			return
		}
		rows, err := p.src.Substitutions()
		if err != nil {
			p.err = fmt.Errorf("loading substitutions: %w", err)
			return
		}
		p.table = NewTable(rows)
		slog.Debug("substitution table loaded", "rows", len(rows), "positions", p.table.Len())
	})
	return p.table, p.err
}
