package feature

import (
	"errors"
	"fmt"

	"github.com/mchmarny/peptopt/pkg/peptide"
	"gonum.org/v1/gonum/mat"
)

// MaxPosition is the fixed position normalization constant the GLP-1 models
// were trained with. It does not track the baseline length.
const MaxPosition = 30.0

// MutationEncoder turns GLP-1 mutations into model rows:
// [position/MaxPosition] followed by a one-hot over the fitted vocabulary.
// Substitutions outside the vocabulary encode as an all-zero one-hot.
type MutationEncoder struct {
	maxPosition float64
	vocabulary  []string
	index       map[string]int
}

// NewMutationEncoder builds an encoder over a fitted vocabulary. A
// non-positive maxPosition falls back to MaxPosition.
func NewMutationEncoder(vocabulary []string, maxPosition float64) (*MutationEncoder, error) {
	if len(vocabulary) == 0 {
		return nil, errors.New("vocabulary is empty")
	}
	if maxPosition <= 0 {
		maxPosition = MaxPosition
	}

	index := make(map[string]int, len(vocabulary))
	for i, v := range vocabulary {
		if v == "" {
			return nil, fmt.Errorf("empty vocabulary entry at %d", i)
		}
		if _, ok := index[v]; ok {
			return nil, fmt.Errorf("duplicate vocabulary entry: %s", v)
		}
		index[v] = i
	}

	vocab := make([]string, len(vocabulary))
	copy(vocab, vocabulary)

	return &MutationEncoder{
		maxPosition: maxPosition,
		vocabulary:  vocab,
		index:       index,
	}, nil
}

// Width is the number of columns in each encoded row.
func (e *MutationEncoder) Width() int {
	return 1 + len(e.vocabulary)
}

// MaxPosition returns the normalization constant in use.
func (e *MutationEncoder) MaxPosition() float64 {
	return e.maxPosition
}

// Vocabulary returns a copy of the fitted substitution codes in column order.
func (e *MutationEncoder) Vocabulary() []string {
	v := make([]string, len(e.vocabulary))
	copy(v, e.vocabulary)
	return v
}

// Row encodes a single mutation.
func (e *MutationEncoder) Row(m peptide.Mutation) []float64 {
	row := make([]float64, e.Width())
	row[0] = float64(m.Position) / e.maxPosition
	if i, ok := e.index[m.Substitution]; ok {
		row[1+i] = 1
	}
	return row
}

// Transform encodes a batch of mutations into a matrix with one row per
// mutation. It returns nil for an empty batch.
func (e *MutationEncoder) Transform(muts []peptide.Mutation) *mat.Dense {
	if len(muts) == 0 {
		return nil
	}

	w := e.Width()
	data := make([]float64, 0, len(muts)*w)
	for _, m := range muts {
		data = append(data, e.Row(m)...)
	}

	return mat.NewDense(len(muts), w, data)
}
