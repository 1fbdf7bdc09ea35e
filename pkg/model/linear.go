package model

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Linear is dot(coef, x) + intercept, optionally passed through a logistic.
type Linear struct {
	Features  int       `json:"n_features"`
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
	logistic  bool
}

// NewLinear returns an in-memory linear model. When logistic is set the
// output is a probability.
func NewLinear(coef []float64, intercept float64, logistic bool) *Linear {
	return &Linear{
		Features:  len(coef),
		Coef:      coef,
		Intercept: intercept,
		logistic:  logistic,
	}
}

func decodeLinear(logistic bool) decoder {
	return func(b []byte) (Model, error) {
		var l Linear
		if err := json.Unmarshal(b, &l); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		if l.Features <= 0 {
			return nil, fmt.Errorf("%w: n_features must be positive", ErrInvalid)
		}
		if len(l.Coef) != l.Features {
			return nil, fmt.Errorf("%w: %d coefficients for %d features", ErrInvalid, len(l.Coef), l.Features)
		}
		l.logistic = logistic
		return &l, nil
	}
}

func (l *Linear) Kind() Kind {
	if l.logistic {
		return KindLogisticClassifier
	}
	return KindLinearRegressor
}

func (l *Linear) NFeatures() int {
	return l.Features
}

func (l *Linear) Predict(x []float64) (float64, error) {
	if err := checkWidth(l, x); err != nil {
		return 0, err
	}
	z := floats.Dot(l.Coef, x) + l.Intercept
	if l.logistic {
		return Sigmoid(z), nil
	}
	return z, nil
}

// Sigmoid is the standard logistic function.
func Sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
