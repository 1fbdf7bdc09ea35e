package data

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mchmarny/peptopt/pkg/peptide"
)

const (
	insertSubstitutionSQL = `INSERT INTO substitution (position, substitution, glp1r_benefit, sctr_penalty)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(position, substitution) DO UPDATE SET glp1r_benefit = ?, sctr_penalty = ?
	`

	selectSubstitutionSQL = `SELECT position, substitution, glp1r_benefit, sctr_penalty
		FROM substitution
		ORDER BY position, substitution
	`

	deleteSubstitutionSQL = `DELETE FROM substitution`
)

// Substitution is one labeled entry of the GLP-1 substitution table.
type Substitution struct {
	Position     int      `json:"position" yaml:"position"`
	Substitution string   `json:"substitution" yaml:"substitution"`
	GLP1RBenefit *float64 `json:"glp1r_benefit,omitempty" yaml:"glp1r_benefit,omitempty"`
	SCTRPenalty  *float64 `json:"sctr_penalty,omitempty" yaml:"sctr_penalty,omitempty"`
}

func (s *Substitution) validate() error {
	if s.Position < 1 {
		return fmt.Errorf("invalid position %d for %q", s.Position, s.Substitution)
	}
	if s.Substitution == "" {
		return fmt.Errorf("empty substitution at position %d", s.Position)
	}
	return nil
}

// SaveSubstitutions upserts subs in a single transaction and returns the
// number of rows written.
func SaveSubstitutions(db *sql.DB, subs []*Substitution) (int, error) {
	if db == nil {
		return 0, errDBNotInitialized
	}

	stmt, err := db.Prepare(insertSubstitutionSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare substitution insert statement: %w", err)
	}
	defer stmt.Close()

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	var n int
	for _, s := range subs {
		if s == nil {
			continue
		}
		row := *s
		row.Substitution = peptide.Normalize(row.Substitution)
		if err := row.validate(); err != nil {
			return 0, errors.Join(err, tx.Rollback())
		}

		b, p := nullFloat(row.GLP1RBenefit), nullFloat(row.SCTRPenalty)
		if _, err := tx.Stmt(stmt).Exec(row.Position, row.Substitution, b, p, b, p); err != nil {
			return 0, errors.Join(fmt.Errorf("failed to insert substitution %d%s: %w", row.Position, row.Substitution, err), tx.Rollback())
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return n, nil
}

// GetSubstitutions returns the stored table ordered by position, then code.
func GetSubstitutions(db *sql.DB) ([]*Substitution, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectSubstitutionSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query substitutions: %w", err)
	}
	defer rows.Close()

	list := make([]*Substitution, 0)
	for rows.Next() {
		s := &Substitution{}
		var b, p sql.NullFloat64
		if err := rows.Scan(&s.Position, &s.Substitution, &b, &p); err != nil {
			return nil, fmt.Errorf("failed to scan substitution row: %w", err)
		}
		s.GLP1RBenefit = floatPtr(b)
		s.SCTRPenalty = floatPtr(p)
		list = append(list, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate substitution rows: %w", err)
	}

	return list, nil
}

// DeleteSubstitutions clears the table and returns the number of rows removed.
func DeleteSubstitutions(db *sql.DB) (int64, error) {
	if db == nil {
		return 0, errDBNotInitialized
	}

	res, err := db.Exec(deleteSubstitutionSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to delete substitutions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted substitutions: %w", err)
	}
	return n, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
