package peptide

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// BaselineGLP1 is human GLP-1 (7-36), the fixed reference for the GLP-1 pathway.
	BaselineGLP1 = "HAEGTFTSDVSSYLEGQAAKEFIAWLVKGR"

	// DefaultMSSequence is a glatiramer-like starting point used when none is supplied.
	DefaultMSSequence = "AEKAEKAEKAEKAAAKAEK"

	// AminoAcids lists the 20 canonical residues in enumeration order.
	AminoAcids = "ACDEFGHIKLMNPQRSTVWY"
)

var errEmptySequence = errors.New("sequence is empty")

// Indication selects the generator, encoder and model used for an optimization.
type Indication string

const (
	Diabetes Indication = "diabetes"
	Obesity  Indication = "obesity"
	MS       Indication = "ms"
)

// Indications lists every supported indication.
var Indications = []Indication{Diabetes, Obesity, MS}

// ParseIndication maps user input onto an Indication.
// "multiple sclerosis" and "multiple-sclerosis" are accepted as MS aliases.
func ParseIndication(val string) (Indication, error) {
	v := strings.ToLower(strings.TrimSpace(val))
	switch v {
	case string(Diabetes):
		return Diabetes, nil
	case string(Obesity):
		return Obesity, nil
	case string(MS), "multiple sclerosis", "multiple-sclerosis":
		return MS, nil
	default:
		return "", fmt.Errorf("unknown disease type: %s", val)
	}
}

// IsGLP1 reports whether the indication runs on the GLP-1 pathway.
func (i Indication) IsGLP1() bool {
	return i == Diabetes || i == Obesity
}

// DefaultSequence returns the starting sequence used when the caller supplies none.
func (i Indication) DefaultSequence() string {
	if i == MS {
		return DefaultMSSequence
	}
	return BaselineGLP1
}

// Mutation is a single residue substitution at a 1-based position.
type Mutation struct {
	Position     int    `json:"position" yaml:"position"`
	Substitution string `json:"substitution" yaml:"substitution"`
}

func (m Mutation) String() string {
	return fmt.Sprintf("%d%s", m.Position, m.Substitution)
}

// Candidate is one proposed variant of the starting sequence.
type Candidate struct {
	Sequence     string  `json:"sequence" yaml:"sequence"`
	Position     int     `json:"position,omitempty" yaml:"position,omitempty"`
	Substitution string  `json:"substitution,omitempty" yaml:"substitution,omitempty"`
	Score        float64 `json:"score" yaml:"score"`
}

// Normalize trims whitespace and upper-cases a sequence.
func Normalize(seq string) string {
	return strings.ToUpper(strings.TrimSpace(seq))
}

// IsResidue reports whether code is one of the 20 canonical amino acids.
func IsResidue(code string) bool {
	return len(code) == 1 && strings.IndexByte(AminoAcids, code[0]) >= 0
}

// Validate checks that seq is a non-empty run of canonical amino-acid codes.
func Validate(seq string) error {
	if seq == "" {
		return errEmptySequence
	}
	for i, r := range seq {
		if r > 0x7f || strings.IndexByte(AminoAcids, byte(r)) < 0 {
			return fmt.Errorf("invalid residue %q at position %d", r, i+1)
		}
	}
	return nil
}

// Substitute returns seq with the residue at the 1-based position replaced.
func Substitute(seq string, position int, sub string) string {
	idx := position - 1
	return seq[:idx] + sub + seq[idx+1:]
}

// Diff lists every position where seq differs from base, compared over the
// shorter of the two. Positions are 1-based.
func Diff(seq, base string) []Mutation {
	n := min(len(seq), len(base))
	var list []Mutation
	for i := 0; i < n; i++ {
		if seq[i] != base[i] {
			list = append(list, Mutation{Position: i + 1, Substitution: seq[i : i+1]})
		}
	}
	return list
}
