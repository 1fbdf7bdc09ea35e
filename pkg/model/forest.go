package model

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

const leaf = -1

// Node is one element of a flattened decision tree. Children always follow
// their parent; a node with Left == -1 is a leaf.
type Node struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

// Tree is a flattened decision tree rooted at Nodes[0].
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest averages the output of its trees. For classifiers each leaf holds
// per-class weights and the output is the positive (index 1) class share.
type Forest struct {
	Features   int    `json:"n_features"`
	Trees      []Tree `json:"trees"`
	classifier bool
}

func decodeForest(classifier bool) decoder {
	return func(b []byte) (Model, error) {
		var f Forest
		if err := json.Unmarshal(b, &f); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		f.classifier = classifier
		if err := f.validate(); err != nil {
			return nil, err
		}
		return &f, nil
	}
}

func (f *Forest) Kind() Kind {
	if f.classifier {
		return KindForestClassifier
	}
	return KindForestRegressor
}

func (f *Forest) NFeatures() int {
	return f.Features
}

func (f *Forest) Predict(x []float64) (float64, error) {
	if err := checkWidth(f, x); err != nil {
		return 0, err
	}

	out := make([]float64, len(f.Trees))
	for i := range f.Trees {
		out[i] = f.leafValue(f.Trees[i].walk(x))
	}
	return floats.Sum(out) / float64(len(out)), nil
}

func (f *Forest) leafValue(n *Node) float64 {
	if !f.classifier {
		return n.Value[0]
	}
	return n.Value[1] / floats.Sum(n.Value)
}

func (t *Tree) walk(x []float64) *Node {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Left == leaf {
			return n
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (f *Forest) validate() error {
	if f.Features <= 0 {
		return fmt.Errorf("%w: n_features must be positive", ErrInvalid)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("%w: forest has no trees", ErrInvalid)
	}

	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d has no nodes", ErrInvalid, ti)
		}
		for ni, n := range t.Nodes {
			if err := f.validateNode(len(t.Nodes), ni, n); err != nil {
				return fmt.Errorf("%w: tree %d node %d: %w", ErrInvalid, ti, ni, err)
			}
		}
	}
	return nil
}

func (f *Forest) validateNode(size, i int, n Node) error {
	if n.Left == leaf {
		if n.Right != leaf {
			return fmt.Errorf("leaf has right child %d", n.Right)
		}
		if !f.classifier {
			if len(n.Value) == 0 {
				return fmt.Errorf("leaf has no value")
			}
			return nil
		}
		if len(n.Value) < 2 {
			return fmt.Errorf("classifier leaf needs at least two class weights")
		}
		for c, w := range n.Value {
			if w < 0 {
				return fmt.Errorf("classifier leaf has negative weight %g for class %d", w, c)
			}
		}
		if floats.Sum(n.Value) <= 0 {
			return fmt.Errorf("classifier leaf weights sum to zero")
		}
		return nil
	}

	if n.Feature < 0 || n.Feature >= f.Features {
		return fmt.Errorf("feature %d out of range", n.Feature)
	}
	// children must come after the parent, which also rules out cycles
	if n.Left <= i || n.Left >= size || n.Right <= i || n.Right >= size {
		return fmt.Errorf("children (%d, %d) out of range", n.Left, n.Right)
	}
	return nil
}
