package feature

import (
	"strings"

	"github.com/mchmarny/peptopt/pkg/peptide"
	"gonum.org/v1/gonum/stat"
)

// MSFeatureCount is the width of the MS sequence feature vector.
const MSFeatureCount = 8

// Column positions in the MS feature vector.
const (
	MSLength = iota
	MSFracA
	MSFracE
	MSFracK
	MSFracY
	MSFracPositive
	MSFracNegative
	MSHydrophobicity
)

// Hydrophobicity is the Kyte-Doolittle scale.
var Hydrophobicity = map[byte]float64{
	'A': 1.8, 'R': -4.5, 'N': -3.5, 'D': -3.5, 'C': 2.5,
	'Q': -3.5, 'E': -3.5, 'G': -0.4, 'H': -3.2, 'I': 4.5,
	'L': 3.8, 'K': -3.9, 'M': 1.9, 'F': 2.8, 'P': -1.6,
	'S': -0.8, 'T': -0.7, 'W': -0.9, 'Y': -1.3, 'V': 4.2,
}

const (
	positiveResidues = "KRH"
	negativeResidues = "DE"
)

// SequenceFeatures encodes one sequence as
// [length, frac_A, frac_E, frac_K, frac_Y, frac_pos, frac_neg, mean_hydro].
// An empty sequence yields all zeros.
func SequenceFeatures(seq string) []float64 {
	seq = peptide.Normalize(seq)
	v := make([]float64, MSFeatureCount)
	if seq == "" {
		return v
	}

	n := float64(len(seq))
	hydro := make([]float64, len(seq))
	var pos, neg int
	for i := 0; i < len(seq); i++ {
		c := seq[i]
		hydro[i] = Hydrophobicity[c]
		switch {
		case strings.IndexByte(positiveResidues, c) >= 0:
			pos++
		case strings.IndexByte(negativeResidues, c) >= 0:
			neg++
		}
	}

	v[MSLength] = n
	v[MSFracA] = float64(strings.Count(seq, "A")) / n
	v[MSFracE] = float64(strings.Count(seq, "E")) / n
	v[MSFracK] = float64(strings.Count(seq, "K")) / n
	v[MSFracY] = float64(strings.Count(seq, "Y")) / n
	v[MSFracPositive] = float64(pos) / n
	v[MSFracNegative] = float64(neg) / n
	v[MSHydrophobicity] = stat.Mean(hydro, nil)

	return v
}
