package data

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mchmarny/peptopt/pkg/candidate"
	"github.com/mchmarny/peptopt/pkg/peptide"
)

// ErrNoSubstitutions is returned when neither the database nor the CSV file
// holds a substitution table.
var ErrNoSubstitutions = errors.New("no substitution table available")

// SubstitutionSource reads the GLP-1 substitution table from the database
// when it is populated, otherwise from the labeled CSV at CSVPath.
type SubstitutionSource struct {
	DB      *sql.DB
	CSVPath string
}

// Substitutions implements candidate.Source.
func (s *SubstitutionSource) Substitutions() ([]candidate.Row, error) {
	if s.DB != nil {
		list, err := GetSubstitutions(s.DB)
		if err != nil {
			return nil, err
		}
		if len(list) > 0 {
			slog.Debug("substitution table loaded", "source", "db", "rows", len(list))
			return toRows(list), nil
		}
	}

	if s.CSVPath == "" {
		return nil, ErrNoSubstitutions
	}

	file, err := os.Open(s.CSVPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrNoSubstitutions, s.CSVPath)
		}
		return nil, fmt.Errorf("failed to open substitution table %s: %w", s.CSVPath, err)
	}
	defer file.Close()

	list, err := ReadSubstitutionsCSV(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read substitution table %s: %w", s.CSVPath, err)
	}

	slog.Debug("substitution table loaded", "source", s.CSVPath, "rows", len(list))
	return toRows(list), nil
}

func toRows(list []*Substitution) []candidate.Row {
	rows := make([]candidate.Row, 0, len(list))
	for _, s := range list {
		rows = append(rows, candidate.Row{Position: s.Position, Substitution: peptide.Normalize(s.Substitution)})
	}
	return rows
}
