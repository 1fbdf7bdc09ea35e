package score

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/mchmarny/peptopt/pkg/artifact"
	"github.com/mchmarny/peptopt/pkg/feature"
	"github.com/mchmarny/peptopt/pkg/model"
	"github.com/mchmarny/peptopt/pkg/peptide"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEncoder    = `{"kind": "glp1_mutation_encoder", "max_position": 30, "vocabulary": ["A", "G", "Y"]}`
	testGLP1Model  = `{"kind": "linear_regressor", "n_features": 4, "coef": [0, 1, 2, 3], "intercept": 0}`
	testMSModel    = `{"kind": "logistic_classifier", "n_features": 8, "coef": [0, 0, 0, 0, 0, 0, 0, 0], "intercept": 0}`
	testWideModel  = `{"kind": "linear_regressor", "n_features": 9, "coef": [0, 0, 0, 0, 0, 0, 0, 0, 0]}`
	testUnknownFit = `{"kind": "gradient_boosting", "n_features": 4}`
)

func memoryStore(blobs map[string]string) *artifact.Memory {
	s := artifact.NewMemory()
	for k, v := range blobs {
		s.Put(k, []byte(v))
	}
	return s
}

func fullStore() *artifact.Memory {
	return memoryStore(map[string]string{
		artifact.KeyGLP1Encoder: testEncoder,
		artifact.KeyGLP1Model:   testGLP1Model,
		artifact.KeyMSModel:     testMSModel,
	})
}

func TestRegistry_Driver(t *testing.T) {
	assert.Equal(t, artifact.DriverMemory, NewRegistry(artifact.NewMemory()).Driver())
	assert.Equal(t, artifact.Driver("none"), NewRegistry(nil).Driver())
}

func TestRegistry_MissingArtifactsFallBack(t *testing.T) {
	r := NewRegistry(artifact.NewMemory())

	for _, f := range Families {
		st, err := r.State(context.Background(), f)
		require.NoError(t, err)
		assert.Equal(t, StateUnavailable, st.Kind)
	}
}

func TestRegistry_MissingModelOnlyFallsBack(t *testing.T) {
	r := NewRegistry(memoryStore(map[string]string{artifact.KeyGLP1Encoder: testEncoder}))
	st, err := r.State(context.Background(), FamilyGLP1)
	require.NoError(t, err)
	assert.Equal(t, StateUnavailable, st.Kind)
}

func TestRegistry_Loaded(t *testing.T) {
	r := NewRegistry(fullStore())

	st, err := r.State(context.Background(), FamilyGLP1)
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, st.Kind)
	require.NotNil(t, st.Encoder)
	assert.Equal(t, 4, st.Encoder.Width())

	st, err = r.State(context.Background(), FamilyMS)
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, st.Kind)
	assert.Nil(t, st.Encoder)
}

func TestRegistry_Errors(t *testing.T) {
	tests := []struct {
		name   string
		blobs  map[string]string
		family Family
		want   error
	}{
		{"corrupt encoder", map[string]string{artifact.KeyGLP1Encoder: "{", artifact.KeyGLP1Model: testGLP1Model}, FamilyGLP1, ErrCorruptArtifact},
		{"corrupt model", map[string]string{artifact.KeyGLP1Encoder: testEncoder, artifact.KeyGLP1Model: "[]"}, FamilyGLP1, ErrCorruptArtifact},
		{"width mismatch", map[string]string{artifact.KeyGLP1Encoder: testEncoder, artifact.KeyGLP1Model: testWideModel}, FamilyGLP1, ErrCorruptArtifact},
		{"unsupported kind", map[string]string{artifact.KeyGLP1Encoder: testEncoder, artifact.KeyGLP1Model: testUnknownFit}, FamilyGLP1, ErrMissingDependency},
		{"classifier as regressor", map[string]string{artifact.KeyGLP1Encoder: testEncoder, artifact.KeyGLP1Model: `{"kind": "logistic_classifier", "n_features": 4, "coef": [0, 0, 0, 0]}`}, FamilyGLP1, ErrCorruptArtifact},
		{"ms width mismatch", map[string]string{artifact.KeyMSModel: `{"kind": "logistic_classifier", "n_features": 2, "coef": [0, 0]}`}, FamilyMS, ErrCorruptArtifact},
		{"ms regressor", map[string]string{artifact.KeyMSModel: `{"kind": "linear_regressor", "n_features": 8, "coef": [0, 0, 0, 0, 0, 0, 0, 0]}`}, FamilyMS, ErrCorruptArtifact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(memoryStore(tt.blobs))
			_, err := r.State(context.Background(), tt.family)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.NotErrorIs(t, err, ErrMissingArtifact)

			// the failure is sticky
			_, again := r.State(context.Background(), tt.family)
			assert.Equal(t, err, again)
		})
	}
}

func TestRegistry_DependencyDistinctFromCorrupt(t *testing.T) {
	r := NewRegistry(memoryStore(map[string]string{artifact.KeyMSModel: `{"kind": "svm", "n_features": 8}`}))
	_, err := r.State(context.Background(), FamilyMS)
	assert.ErrorIs(t, err, ErrMissingDependency)
	assert.NotErrorIs(t, err, ErrCorruptArtifact)
}

func TestRegistry_LoadsAtMostOnce(t *testing.T) {
	store := fullStore()
	r := NewRegistry(store)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.State(context.Background(), FamilyGLP1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.Opens(artifact.KeyGLP1Encoder))
	assert.Equal(t, 1, store.Opens(artifact.KeyGLP1Model))
}

func TestRegistry_MissingIsPermanent(t *testing.T) {
	store := artifact.NewMemory()
	r := NewRegistry(store)

	st, err := r.State(context.Background(), FamilyMS)
	require.NoError(t, err)
	assert.Equal(t, StateUnavailable, st.Kind)

	// artifacts appearing later are not picked up
	store.Put(artifact.KeyMSModel, []byte(testMSModel))
	st, err = r.State(context.Background(), FamilyMS)
	require.NoError(t, err)
	assert.Equal(t, StateUnavailable, st.Kind)
	assert.Equal(t, 1, store.Opens(artifact.KeyMSModel))
}

type failingStore struct {
	err error
}

func (s failingStore) Open(context.Context, string) (io.ReadCloser, error) { return nil, s.err }
func (s failingStore) Driver() artifact.Driver                            { return "failing" }

func TestRegistry_StoreErrorIsFatal(t *testing.T) {
	r := NewRegistry(failingStore{err: errors.New("access denied")})
	_, err := r.State(context.Background(), FamilyMS)
	assert.Error(t, err)
}

func TestRegistry_CanceledLoadIsRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRegistry(failingStore{err: context.Canceled})
	_, err := r.State(ctx, FamilyMS)
	require.Error(t, err)
	assert.False(t, r.slots[FamilyMS].done)
}

func TestRegistry_UnknownFamily(t *testing.T) {
	_, err := NewRegistry(nil).State(context.Background(), "cancer")
	assert.Error(t, err)
}

func TestRegistry_NilStore(t *testing.T) {
	st, err := NewRegistry(nil).State(context.Background(), FamilyGLP1)
	require.NoError(t, err)
	assert.Equal(t, StateUnavailable, st.Kind)
}

func TestRegistry_Preload(t *testing.T) {
	store := fullStore()
	r := NewRegistry(store)
	require.NoError(t, r.Preload(context.Background()))
	assert.Equal(t, 1, store.Opens(artifact.KeyMSModel))

	bad := NewRegistry(memoryStore(map[string]string{artifact.KeyMSModel: "nope"}))
	assert.ErrorIs(t, bad.Preload(context.Background()), ErrCorruptArtifact)
}

func TestStateKind_String(t *testing.T) {
	assert.Equal(t, "loaded", StateLoaded.String())
	assert.Equal(t, "unavailable", StateUnavailable.String())
}

type fakeProvider struct {
	states map[Family]State
	err    error
}

func (p fakeProvider) State(_ context.Context, f Family) (State, error) {
	return p.states[f], p.err
}

func TestEngine_GLP1Model(t *testing.T) {
	enc, err := feature.NewMutationEncoder([]string{"A", "G", "Y"}, 0)
	require.NoError(t, err)
	m := model.NewLinear([]float64{0, 1, 2, 3}, 0, false)
	e := NewEngine(fakeProvider{states: map[Family]State{FamilyGLP1: Loaded(m, enc)}})

	for _, ind := range []peptide.Indication{peptide.Diabetes, peptide.Obesity} {
		v, mode, err := e.Score(context.Background(), ind, peptide.BaselineGLP1)
		require.NoError(t, err)
		assert.Equal(t, ModeModel, mode)
		assert.Equal(t, 0.0, v)

		// A at 1 -> 1, Y at 2 -> 3
		seq := peptide.Substitute(peptide.Substitute(peptide.BaselineGLP1, 1, "A"), 2, "Y")
		v, _, err = e.Score(context.Background(), ind, seq)
		require.NoError(t, err)
		assert.InDelta(t, 4.0, v, 1e-12)

		// unknown substitution contributes only through the zero one-hot
		v, _, err = e.Score(context.Background(), ind, peptide.Substitute(peptide.BaselineGLP1, 1, "W"))
		require.NoError(t, err)
		assert.Equal(t, 0.0, v)
	}
}

func TestEngine_MSModel(t *testing.T) {
	m := model.NewLinear([]float64{0, 1, 0, 0, 0, 0, 0, 0}, 0, true)
	e := NewEngine(fakeProvider{states: map[Family]State{FamilyMS: Loaded(m, nil)}})

	v, mode, err := e.Score(context.Background(), peptide.MS, "AAAA")
	require.NoError(t, err)
	assert.Equal(t, ModeModel, mode)
	assert.InDelta(t, model.Sigmoid(1), v, 1e-12)
}

func TestEngine_Fallback(t *testing.T) {
	e := NewEngine(fakeProvider{states: map[Family]State{}})

	v, mode, err := e.Score(context.Background(), peptide.MS, "AAAA")
	require.NoError(t, err)
	assert.Equal(t, ModeHeuristic, mode)
	assert.InDelta(t, 0.820538, v, 1e-6)

	v, mode, err = e.Score(context.Background(), peptide.Diabetes, peptide.BaselineGLP1)
	require.NoError(t, err)
	assert.Equal(t, ModeHeuristic, mode)
	assert.Equal(t, 0.0, v)
}

func TestEngine_ProviderError(t *testing.T) {
	e := NewEngine(fakeProvider{err: ErrCorruptArtifact})
	_, err := e.Scorer(context.Background(), peptide.Obesity)
	assert.ErrorIs(t, err, ErrCorruptArtifact)
}

func TestEngine_LoadedWithoutEncoder(t *testing.T) {
	m := model.NewLinear([]float64{0, 0}, 0, false)
	e := NewEngine(fakeProvider{states: map[Family]State{FamilyGLP1: Loaded(m, nil)}})
	_, err := e.Scorer(context.Background(), peptide.Diabetes)
	assert.ErrorIs(t, err, ErrCorruptArtifact)
}

func TestGLP1Heuristic(t *testing.T) {
	tests := []struct {
		name string
		seq  string
		want float64
	}{
		{"baseline", peptide.BaselineGLP1, 0},
		{"first position favorable", peptide.Substitute(peptide.BaselineGLP1, 1, "A"), 0.1},
		{"first position neutral", peptide.Substitute(peptide.BaselineGLP1, 1, "G"), 0.02},
		{"last position", peptide.Substitute(peptide.BaselineGLP1, 30, "A"), 0},
		{"middle favorable", peptide.Substitute(peptide.BaselineGLP1, 12, "Y"), 0.1 * (1 - 11.0/29.0)},
		{"two mutations", peptide.Substitute(peptide.Substitute(peptide.BaselineGLP1, 1, "A"), 12, "Y"), 0.1 + 0.1*(1-11.0/29.0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, GLP1Heuristic(tt.seq, peptide.BaselineGLP1), 1e-12)
		})
	}
}

func TestMSHeuristic(t *testing.T) {
	// z = 1.2*1 - 0.01*4 + 0.2*1.8 = 1.52
	assert.InDelta(t, 0.820538, MSHeuristic("AAAA"), 1e-6)
	assert.Equal(t, MSHeuristic("AAAA"), MSHeuristic("AAAA"))

	// empty sequence: every feature zero
	assert.InDelta(t, 0.5, MSHeuristic(""), 1e-12)

	v := MSHeuristic(peptide.DefaultMSSequence)
	assert.Greater(t, v, 0.0)
	assert.Less(t, v, 1.0)
}

func TestFamilyOf(t *testing.T) {
	assert.Equal(t, FamilyGLP1, FamilyOf(peptide.Diabetes))
	assert.Equal(t, FamilyGLP1, FamilyOf(peptide.Obesity))
	assert.Equal(t, FamilyMS, FamilyOf(peptide.MS))
}
