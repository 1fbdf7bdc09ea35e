package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Column names of the labeled and pivoted substitution tables.
const (
	ColPosition     = "Position"
	ColSubstitution = "Substitution"
	ColBenefit      = "GLP1R_benefit"
	ColPenalty      = "SCTR_penalty"

	ColGLP1REC50  = "hGLP1R_EC50"
	ColGLP1RPEC50 = "hGLP1R_pEC50"
	ColSCTREC50   = "hSCTR_EC50"
	ColSCTRPEC50  = "hSCTR_pEC50"
)

// csvTable is a parsed CSV with columns addressable by header name.
type csvTable struct {
	index   map[string]int
	records [][]string
}

func readCSV(r io.Reader, required ...string) (*csvTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv is empty")
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	t := &csvTable{index: make(map[string]int, len(header))}
	for i, h := range header {
		t.index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, c := range required {
		if _, ok := t.index[c]; !ok {
			return nil, fmt.Errorf("csv missing required column: %s", c)
		}
	}

	t.records, err = cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv records: %w", err)
	}

	return t, nil
}

func (t *csvTable) cell(rec []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// float returns nil for a missing column, an empty cell or NaN.
func (t *csvTable) float(rec []string, col string) (*float64, error) {
	s := t.cell(rec, col)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", col, s, err)
	}
	if math.IsNaN(v) {
		return nil, nil
	}
	return &v, nil
}

func (t *csvTable) key(line int, rec []string) (int, string, error) {
	ps := t.cell(rec, ColPosition)
	pos, err := strconv.Atoi(ps)
	if err != nil {
		// pivot exports may write positions as floats
		f, ferr := strconv.ParseFloat(ps, 64)
		if ferr != nil || f != math.Trunc(f) {
			return 0, "", fmt.Errorf("line %d: invalid position %q", line, ps)
		}
		pos = int(f)
	}

	sub := t.cell(rec, ColSubstitution)
	if sub == "" {
		return 0, "", fmt.Errorf("line %d: empty substitution", line)
	}

	return pos, sub, nil
}

// ReadSubstitutionsCSV parses a labeled substitution table. Columns other
// than Position, Substitution, GLP1R_benefit and SCTR_penalty are ignored.
func ReadSubstitutionsCSV(r io.Reader) ([]*Substitution, error) {
	t, err := readCSV(r, ColPosition, ColSubstitution)
	if err != nil {
		return nil, err
	}

	list := make([]*Substitution, 0, len(t.records))
	for i, rec := range t.records {
		line := i + 2
		pos, sub, err := t.key(line, rec)
		if err != nil {
			return nil, err
		}
		s := &Substitution{Position: pos, Substitution: sub}
		if s.GLP1RBenefit, err = t.float(rec, ColBenefit); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if s.SCTRPenalty, err = t.float(rec, ColPenalty); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		list = append(list, s)
	}

	return list, nil
}

// PrepareSubstitutions derives the labeled table from a pivoted effects
// table. The GLP-1R benefit is the EC50 endpoint, falling back to pEC50. The
// SCTR penalty is the negated SCTR effect chosen the same way. Rows with no
// GLP-1R effect are dropped.
func PrepareSubstitutions(r io.Reader) ([]*Substitution, error) {
	t, err := readCSV(r, ColPosition, ColSubstitution)
	if err != nil {
		return nil, err
	}

	list := make([]*Substitution, 0, len(t.records))
	for i, rec := range t.records {
		line := i + 2
		pos, sub, err := t.key(line, rec)
		if err != nil {
			return nil, err
		}

		benefit, err := t.coalesce(rec, ColGLP1REC50, ColGLP1RPEC50)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if benefit == nil {
			continue
		}

		penalty, err := t.coalesce(rec, ColSCTREC50, ColSCTRPEC50)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if penalty != nil {
			*penalty = -*penalty
		}

		list = append(list, &Substitution{
			Position:     pos,
			Substitution: sub,
			GLP1RBenefit: benefit,
			SCTRPenalty:  penalty,
		})
	}

	return list, nil
}

func (t *csvTable) coalesce(rec []string, cols ...string) (*float64, error) {
	for _, c := range cols {
		v, err := t.float(rec, c)
		if err != nil {
			return nil, err
		}
		if v != nil {
			return v, nil
		}
	}
	return nil, nil
}

// WriteSubstitutionsCSV writes subs as a labeled table.
func WriteSubstitutionsCSV(w io.Writer, subs []*Substitution) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColPosition, ColSubstitution, ColBenefit, ColPenalty}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, s := range subs {
		if s == nil {
			continue
		}
		rec := []string{strconv.Itoa(s.Position), s.Substitution, formatFloat(s.GLP1RBenefit), formatFloat(s.SCTRPenalty)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
