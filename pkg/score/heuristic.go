package score

import (
	"strings"

	"github.com/mchmarny/peptopt/pkg/feature"
	"github.com/mchmarny/peptopt/pkg/model"
	"github.com/mchmarny/peptopt/pkg/peptide"
)

const (
	favorableResidues = "AEKYFW"
	favorableBonus    = 1.0
	neutralBonus      = 0.2
	glp1Scale         = 0.1
)

// msWeights are the fixed coefficients of the MS fallback, in
// feature.SequenceFeatures column order.
var msWeights = [feature.MSFeatureCount]float64{
	feature.MSLength:         -0.01,
	feature.MSFracA:          1.2,
	feature.MSFracE:          1.5,
	feature.MSFracK:          1.3,
	feature.MSFracY:          0.8,
	feature.MSFracPositive:   0.5,
	feature.MSFracNegative:   -0.3,
	feature.MSHydrophobicity: 0.2,
}

// GLP1Heuristic scores the differences between seq and baseline. Earlier
// positions weigh more and residues in AEKYFW earn the full bonus.
func GLP1Heuristic(seq, baseline string) float64 {
	var total float64
	for _, m := range peptide.Diff(seq, baseline) {
		total += mutationContribution(m, len(baseline))
	}
	return total
}

func mutationContribution(m peptide.Mutation, baseLen int) float64 {
	weight := 1.0
	if baseLen > 1 {
		weight = 1 - float64(m.Position-1)/float64(baseLen-1)
	}
	bonus := neutralBonus
	if len(m.Substitution) == 1 && strings.Contains(favorableResidues, m.Substitution) {
		bonus = favorableBonus
	}
	return weight * bonus * glp1Scale
}

// MSHeuristic maps the MS feature vector through a fixed linear combination
// and a logistic, yielding a pseudo-probability in [0,1].
func MSHeuristic(seq string) float64 {
	x := feature.SequenceFeatures(seq)
	var z float64
	for i, w := range msWeights {
		z += w * x[i]
	}
	return model.Sigmoid(z)
}
