package optimize

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mchmarny/peptopt/pkg/artifact"
	"github.com/mchmarny/peptopt/pkg/candidate"
	"github.com/mchmarny/peptopt/pkg/metrics"
	"github.com/mchmarny/peptopt/pkg/peptide"
	"github.com/mchmarny/peptopt/pkg/score"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRows = []candidate.Row{
	{Position: 1, Substitution: "A"},
	{Position: 1, Substitution: "H"},
	{Position: 2, Substitution: "G"},
	{Position: 2, Substitution: "Y+HLE"},
	{Position: 12, Substitution: "K"},
	{Position: 12, Substitution: "Y"},
	{Position: 20, Substitution: "E"},
	{Position: 29, Substitution: "A"},
}

func tableProvider(rows []candidate.Row) *candidate.TableProvider {
	return candidate.NewTableProvider(candidate.SourceFunc(func() ([]candidate.Row, error) {
		return rows, nil
	}))
}

func heuristicOptimizer() *Optimizer {
	return New(score.NewEngine(score.NewRegistry(artifact.NewMemory())), tableProvider(testRows))
}

func modelOptimizer(t *testing.T) *Optimizer {
	t.Helper()
	store := artifact.NewMemory()
	store.Put(artifact.KeyGLP1Encoder, []byte(`{"kind": "glp1_mutation_encoder", "vocabulary": ["A", "E", "G", "K", "Y"]}`))
	store.Put(artifact.KeyGLP1Model, []byte(`{
		"kind": "forest_regressor", "n_features": 6,
		"trees": [{"nodes": [
			{"feature": 0, "threshold": 0.5, "left": 1, "right": 2},
			{"left": -1, "right": -1, "value": [2.0]},
			{"left": -1, "right": -1, "value": [-1.0]}
		]}]
	}`))
	store.Put(artifact.KeyMSModel, []byte(`{"kind": "logistic_classifier", "n_features": 8, "coef": [-0.01, 1.2, 1.5, 1.3, 0.8, 0.5, -0.3, 0.2], "intercept": 0}`))
	return New(score.NewEngine(score.NewRegistry(store)), tableProvider(testRows))
}

func TestOptimize_InvalidInput(t *testing.T) {
	o := heuristicOptimizer()
	tests := []struct {
		name string
		req  Request
	}{
		{"unknown indication", Request{Indication: "cancer", StartingSequence: "AEK", TopK: 1}},
		{"empty sequence", Request{Indication: "ms", StartingSequence: "  ", TopK: 1}},
		{"bad residue", Request{Indication: "ms", StartingSequence: "AE1", TopK: 1}},
		{"non-canonical residue", Request{Indication: "ms", StartingSequence: "AXK", TopK: 100}},
		{"non-canonical glp1 residue", Request{Indication: "diabetes", StartingSequence: "BAEGTFTSDVSSYLEGQAAKEFIAWLVKGR", TopK: 1}},
		{"negative top k", Request{Indication: "ms", StartingSequence: "AEK", TopK: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Optimize(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestOptimize_GLP1Heuristic(t *testing.T) {
	o := heuristicOptimizer()
	res, err := o.Optimize(context.Background(), Request{
		Indication:       "diabetes",
		StartingSequence: peptide.BaselineGLP1,
		TopK:             10,
	})
	require.NoError(t, err)

	// 1A, 2G, 12K, 12Y, 20E, 29A
	assert.Equal(t, 6, res.Generated)
	require.Len(t, res.Candidates, 6)
	assert.Equal(t, score.ModeHeuristic, res.Mode)
	assert.NotEmpty(t, res.Notice)

	first := res.Candidates[0]
	assert.Equal(t, "AAEGTFTSDVSSYLEGQAAKEFIAWLVKGR", first.Sequence)
	assert.Equal(t, 1, first.Position)
	assert.Equal(t, "A", first.Substitution)
	assert.InDelta(t, 0.1, first.Score, 1e-12)

	// 12K and 12Y score identically; generation order decides
	assert.Equal(t, "K", res.Candidates[1].Substitution)
	assert.Equal(t, "Y", res.Candidates[2].Substitution)

	for i := 1; i < len(res.Candidates); i++ {
		assert.GreaterOrEqual(t, res.Candidates[i-1].Score, res.Candidates[i].Score)
	}
}

func TestOptimize_ObesityMatchesDiabetes(t *testing.T) {
	o := heuristicOptimizer()
	d, err := o.Optimize(context.Background(), Request{Indication: "diabetes", StartingSequence: peptide.BaselineGLP1, TopK: 5})
	require.NoError(t, err)
	ob, err := o.Optimize(context.Background(), Request{Indication: "obesity", StartingSequence: peptide.BaselineGLP1, TopK: 5})
	require.NoError(t, err)
	assert.Equal(t, d.Candidates, ob.Candidates)
}

func TestOptimize_MS(t *testing.T) {
	o := heuristicOptimizer()
	res, err := o.Optimize(context.Background(), Request{Indication: "ms", StartingSequence: "aek", TopK: 100})
	require.NoError(t, err)
	assert.Equal(t, "AEK", res.StartingSequence)
	assert.Equal(t, 57, res.Generated)
	assert.Len(t, res.Candidates, 57)
	for _, c := range res.Candidates {
		assert.NotEqual(t, "AEK", c.Sequence)
		assert.GreaterOrEqual(t, c.Score, 0.0)
		assert.LessOrEqual(t, c.Score, 1.0)
	}
}

func TestOptimize_CountIsMinOfTopKAndGenerated(t *testing.T) {
	o := heuristicOptimizer()
	for _, k := range []int{0, 1, 5, 57, 58, 1000} {
		res, err := o.Optimize(context.Background(), Request{Indication: "ms", StartingSequence: "AEK", TopK: k})
		require.NoError(t, err)
		assert.Len(t, res.Candidates, min(k, 57))
	}
}

func TestOptimize_TopKZero(t *testing.T) {
	o := heuristicOptimizer()
	for _, ind := range peptide.Indications {
		res, err := o.Optimize(context.Background(), Request{Indication: string(ind), StartingSequence: ind.DefaultSequence(), TopK: 0})
		require.NoError(t, err)
		assert.NotNil(t, res.Candidates)
		assert.Empty(t, res.Candidates)

		b, err := json.Marshal(res)
		require.NoError(t, err)
		assert.Contains(t, string(b), `"candidates":[]`)
	}
}

func TestOptimize_ModelBacked(t *testing.T) {
	o := modelOptimizer(t)
	req := Request{Indication: "diabetes", StartingSequence: peptide.BaselineGLP1, TopK: 3}

	res, err := o.Optimize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, score.ModeModel, res.Mode)
	assert.Empty(t, res.Notice)

	// positions <= 15 predict 2.0, later ones -1.0
	require.Len(t, res.Candidates, 3)
	for _, c := range res.Candidates {
		assert.Equal(t, 2.0, c.Score)
	}
	assert.Equal(t, []int{1, 2, 12}, []int{res.Candidates[0].Position, res.Candidates[1].Position, res.Candidates[2].Position})

	again, err := o.Optimize(context.Background(), req)
	require.NoError(t, err)
	b1, err := json.Marshal(res)
	require.NoError(t, err)
	b2, err := json.Marshal(again)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestOptimize_ModelScoresAllDifferencesFromBaseline(t *testing.T) {
	o := modelOptimizer(t)

	// starting sequence already carries a late mutation (-1.0)
	start := peptide.Substitute(peptide.BaselineGLP1, 29, "A")
	res, err := o.Optimize(context.Background(), Request{Indication: "diabetes", StartingSequence: start, TopK: 1})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, 1.0, res.Candidates[0].Score)
}

func TestOptimize_MSModelMatchesHeuristicWeights(t *testing.T) {
	m := modelOptimizer(t)
	h := heuristicOptimizer()
	req := Request{Indication: "ms", StartingSequence: peptide.DefaultMSSequence, TopK: 5}

	mr, err := m.Optimize(context.Background(), req)
	require.NoError(t, err)
	hr, err := h.Optimize(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, score.ModeModel, mr.Mode)
	assert.Equal(t, score.ModeHeuristic, hr.Mode)
	for i := range mr.Candidates {
		assert.Equal(t, hr.Candidates[i].Sequence, mr.Candidates[i].Sequence)
		assert.InDelta(t, hr.Candidates[i].Score, mr.Candidates[i].Score, 1e-9)
	}
}

func TestOptimize_CorruptArtifactIsFatal(t *testing.T) {
	store := artifact.NewMemory()
	store.Put(artifact.KeyMSModel, []byte("garbage"))
	o := New(score.NewEngine(score.NewRegistry(store)), nil)

	_, err := o.Optimize(context.Background(), Request{Indication: "ms", StartingSequence: "AEK", TopK: 1})
	assert.ErrorIs(t, err, score.ErrCorruptArtifact)
	assert.NotErrorIs(t, err, ErrInvalidInput)
}

func TestOptimize_GLP1WithoutTable(t *testing.T) {
	o := New(score.NewEngine(score.NewRegistry(nil)), nil)
	_, err := o.Optimize(context.Background(), Request{Indication: "obesity", StartingSequence: peptide.BaselineGLP1, TopK: 1})
	assert.Error(t, err)
}

func TestOptimize_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := New(score.NewEngine(score.NewRegistry(nil)), nil, WithMetrics(metrics.New(reg)))

	_, err := o.Optimize(context.Background(), Request{Indication: "ms", StartingSequence: "AEK", TopK: 1})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "peptopt_optimize_requests_total")
}
