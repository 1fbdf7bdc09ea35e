package candidate

import (
	"github.com/mchmarny/peptopt/pkg/peptide"
)

// Constrained emits single-point mutants of seq using only the substitutions
// the table has observed at each position. Positions outside seq, multi-token
// annotations (e.g. "Y+HLE"), non-canonical codes and no-op substitutions are
// skipped. Output is
// ordered by ascending position, then substitution code.
func Constrained(seq string, t *Table) []peptide.Candidate {
	if t == nil {
		return nil
	}

	var list []peptide.Candidate
	for _, pos := range t.positions {
		if pos < 1 || pos > len(seq) {
			continue
		}
		current := seq[pos-1 : pos]
		for _, sub := range t.allowed[pos] {
			if !peptide.IsResidue(sub) || sub == current {
				continue
			}
			list = append(list, peptide.Candidate{
				Sequence:     peptide.Substitute(seq, pos, sub),
				Position:     pos,
				Substitution: sub,
			})
		}
	}

	return list
}

// Unconstrained emits every single-point mutant of seq over the 20 canonical
// amino acids, skipping no-ops. For a canonical sequence this is len(seq)*19
// candidates, ordered by position then peptide.AminoAcids order.
func Unconstrained(seq string) []peptide.Candidate {
	list := make([]peptide.Candidate, 0, len(seq)*(len(peptide.AminoAcids)-1))
	for i := 0; i < len(seq); i++ {
		for j := 0; j < len(peptide.AminoAcids); j++ {
			aa := peptide.AminoAcids[j]
			if seq[i] == aa {
				continue
			}
			sub := string(aa)
			list = append(list, peptide.Candidate{
				Sequence:     peptide.Substitute(seq, i+1, sub),
				Position:     i + 1,
				Substitution: sub,
			})
		}
	}
	return list
}
