package score

import (
	"context"
	"fmt"

	"github.com/mchmarny/peptopt/pkg/feature"
	"github.com/mchmarny/peptopt/pkg/model"
	"github.com/mchmarny/peptopt/pkg/peptide"
	"gonum.org/v1/gonum/floats"
)

// Mode tells callers how a score was produced. Model and heuristic scores
// have different scales and are never mixed in one result.
type Mode string

const (
	ModeModel     Mode = "model"
	ModeHeuristic Mode = "heuristic"
)

// FamilyOf maps an indication onto its model family. Obesity shares the
// diabetes model until an obesity-specific one exists.
func FamilyOf(ind peptide.Indication) Family {
	if ind == peptide.MS {
		return FamilyMS
	}
	return FamilyGLP1
}

// Engine scores sequences for an indication.
type Engine struct {
	models   Provider
	baseline string
}

// NewEngine returns an engine resolving models through p. GLP-1 scores are
// computed against peptide.BaselineGLP1.
func NewEngine(p Provider) *Engine {
	return &Engine{models: p, baseline: peptide.BaselineGLP1}
}

// Scorer scores sequences in a single, fixed mode.
type Scorer struct {
	mode Mode
	fn   func(seq string) (float64, error)
}

// Mode reports how this scorer produces values.
func (s *Scorer) Mode() Mode {
	return s.mode
}

// Score scores one sequence.
func (s *Scorer) Score(seq string) (float64, error) {
	return s.fn(seq)
}

// Scorer resolves the model state for ind once and returns a scorer bound
// to it, so every candidate of one request is scored the same way.
func (e *Engine) Scorer(ctx context.Context, ind peptide.Indication) (*Scorer, error) {
	fam := FamilyOf(ind)
	st, err := e.models.State(ctx, fam)
	if err != nil {
		return nil, fmt.Errorf("resolving %s model: %w", fam, err)
	}

	if st.Kind != StateLoaded {
		if fam == FamilyMS {
			return &Scorer{mode: ModeHeuristic, fn: func(seq string) (float64, error) {
				return MSHeuristic(seq), nil
			}}, nil
		}
		return &Scorer{mode: ModeHeuristic, fn: func(seq string) (float64, error) {
			return GLP1Heuristic(seq, e.baseline), nil
		}}, nil
	}

	if fam == FamilyMS {
		return &Scorer{mode: ModeModel, fn: func(seq string) (float64, error) {
			return st.Model.Predict(feature.SequenceFeatures(seq))
		}}, nil
	}

	if st.Encoder == nil {
		return nil, fmt.Errorf("%w: %s model loaded without encoder", ErrCorruptArtifact, fam)
	}
	return &Scorer{mode: ModeModel, fn: func(seq string) (float64, error) {
		return e.glp1Model(st, seq)
	}}, nil
}

// Score is a convenience for scoring a single sequence.
func (e *Engine) Score(ctx context.Context, ind peptide.Indication, seq string) (float64, Mode, error) {
	s, err := e.Scorer(ctx, ind)
	if err != nil {
		return 0, "", err
	}
	v, err := s.Score(seq)
	return v, s.Mode(), err
}

// glp1Model sums the model's predicted benefit over every difference from
// the baseline. A baseline-identical sequence is neutral.
func (e *Engine) glp1Model(st State, seq string) (float64, error) {
	muts := peptide.Diff(seq, e.baseline)
	if len(muts) == 0 {
		return 0, nil
	}

	preds, err := model.PredictRows(st.Model, st.Encoder.Transform(muts))
	if err != nil {
		return 0, fmt.Errorf("scoring %s: %w", seq, err)
	}
	return floats.Sum(preds), nil
}
