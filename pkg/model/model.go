package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"
)

// Kind identifies the evaluator a serialized model requires.
type Kind string

const (
	KindForestRegressor    Kind = "forest_regressor"
	KindForestClassifier   Kind = "forest_classifier"
	KindLinearRegressor    Kind = "linear_regressor"
	KindLogisticClassifier Kind = "logistic_classifier"
)

var (
	// ErrUnsupportedKind is returned when no evaluator is registered for a kind.
	ErrUnsupportedKind = errors.New("unsupported model kind")

	// ErrInvalid is returned for documents that do not describe a usable model.
	ErrInvalid = errors.New("invalid model")
)

// Model is a trained predictor with a fixed input width. Regressors return a
// benefit value, classifiers the probability of the positive class.
type Model interface {
	Kind() Kind
	NFeatures() int
	Predict(x []float64) (float64, error)
}

type header struct {
	Kind Kind `json:"kind"`
}

type decoder func(b []byte) (Model, error)

var decoders = map[Kind]decoder{
	KindForestRegressor:    decodeForest(false),
	KindForestClassifier:   decodeForest(true),
	KindLinearRegressor:    decodeLinear(false),
	KindLogisticClassifier: decodeLinear(true),
}

// Supported reports whether this build can evaluate models of kind k.
func Supported(k Kind) bool {
	_, ok := decoders[k]
	return ok
}

// Decode reads a serialized model.
func Decode(r io.Reader) (Model, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading model: %w", err)
	}

	var h header
	if err := json.Unmarshal(b, &h); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if h.Kind == "" {
		return nil, fmt.Errorf("%w: kind not set", ErrInvalid)
	}

	dec, ok := decoders[h.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, h.Kind)
	}

	return dec(b)
}

// PredictRows evaluates m on every row of x.
func PredictRows(m Model, x mat.Matrix) ([]float64, error) {
	if x == nil {
		return nil, nil
	}
	r, c := x.Dims()
	if c != m.NFeatures() {
		return nil, fmt.Errorf("%w: input has %d columns, model expects %d", ErrInvalid, c, m.NFeatures())
	}

	out := make([]float64, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, x)
		v, err := m.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("predicting row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func checkWidth(m Model, x []float64) error {
	if len(x) != m.NFeatures() {
		return fmt.Errorf("%w: input has %d features, model expects %d", ErrInvalid, len(x), m.NFeatures())
	}
	return nil
}
