package score

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/mchmarny/peptopt/pkg/artifact"
	"github.com/mchmarny/peptopt/pkg/feature"
	"github.com/mchmarny/peptopt/pkg/model"
	"golang.org/x/sync/errgroup"
)

// Family groups the indications that share one encoder/model pair.
type Family string

const (
	FamilyGLP1 Family = "glp1"
	FamilyMS   Family = "ms"
)

// Families lists every model family.
var Families = []Family{FamilyGLP1, FamilyMS}

var (
	// ErrMissingArtifact marks a family whose artifacts could not be located.
	// It never reaches callers of Engine; the family scores heuristically.
	ErrMissingArtifact = errors.New("missing artifact")

	// ErrCorruptArtifact is returned when an artifact exists but cannot be
	// decoded or does not match its companion's schema.
	ErrCorruptArtifact = errors.New("corrupt artifact")

	// ErrMissingDependency is returned when an artifact requires a model
	// evaluator this build does not provide.
	ErrMissingDependency = errors.New("missing model dependency")
)

// StateKind tags a State.
type StateKind int

const (
	StateUnavailable StateKind = iota
	StateLoaded
)

func (k StateKind) String() string {
	if k == StateLoaded {
		return "loaded"
	}
	return "unavailable"
}

// State is the outcome of loading a family: either Loaded with a model (and,
// for GLP-1, its encoder) or Unavailable.
type State struct {
	Kind    StateKind
	Model   model.Model
	Encoder *feature.MutationEncoder
}

// Loaded returns a usable state.
func Loaded(m model.Model, enc *feature.MutationEncoder) State {
	return State{Kind: StateLoaded, Model: m, Encoder: enc}
}

// Unavailable returns the fallback state.
func Unavailable() State {
	return State{Kind: StateUnavailable}
}

// Provider resolves the state of a model family.
type Provider interface {
	State(ctx context.Context, f Family) (State, error)
}

// Registry loads each family's artifacts from a Store at most once and
// caches the outcome. Missing artifacts resolve to Unavailable; any other
// failure is cached and returned on every call. A load interrupted by its
// context is not cached.
type Registry struct {
	store artifact.Store
	slots map[Family]*slot
}

type slot struct {
	mu    sync.Mutex
	done  bool
	state State
	err   error
}

// NewRegistry returns a registry reading from store.
func NewRegistry(store artifact.Store) *Registry {
	r := &Registry{
		store: store,
		slots: make(map[Family]*slot, len(Families)),
	}
	for _, f := range Families {
		r.slots[f] = &slot{}
	}
	return r
}

// Driver reports the backend of the artifact store, or "none" when the
// registry has no store.
func (r *Registry) Driver() artifact.Driver {
	if r.store == nil {
		return "none"
	}
	return r.store.Driver()
}

// State returns the family state, loading it on first use.
func (r *Registry) State(ctx context.Context, f Family) (State, error) {
	s, ok := r.slots[f]
	if !ok {
		return State{}, fmt.Errorf("unknown model family: %s", f)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return s.state, s.err
	}

	st, err := r.load(ctx, f)
	if err != nil && ctx.Err() != nil {
		return State{}, err
	}
	s.state, s.err, s.done = st, err, true

	switch {
	case err != nil:
		slog.Error("model load failed", "family", f, "error", err)
	case st.Kind == StateLoaded:
		slog.Info("model loaded", "family", f, "kind", st.Model.Kind(), "features", st.Model.NFeatures())
	default:
		slog.Warn("model artifacts not found, using heuristic scoring", "family", f, "driver", r.store.Driver())
	}

	return st, err
}

// Preload resolves every family concurrently.
func (r *Registry) Preload(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, f := range Families {
		g.Go(func() error {
			_, err := r.State(ctx, f)
			return err
		})
	}
	return g.Wait()
}

func (r *Registry) load(ctx context.Context, f Family) (State, error) {
	if r.store == nil {
		return Unavailable(), nil
	}

	var st State
	var err error
	switch f {
	case FamilyGLP1:
		st, err = r.loadGLP1(ctx)
	case FamilyMS:
		st, err = r.loadMS(ctx)
	}

	if errors.Is(err, ErrMissingArtifact) {
		slog.Debug("artifact missing", "family", f, "error", err)
		return Unavailable(), nil
	}
	return st, err
}

func (r *Registry) loadGLP1(ctx context.Context) (State, error) {
	rc, err := r.open(ctx, artifact.KeyGLP1Encoder)
	if err != nil {
		return State{}, err
	}
	enc, err := feature.DecodeMutationEncoder(rc)
	rc.Close()
	if err != nil {
		return State{}, fmt.Errorf("%w: %s: %w", ErrCorruptArtifact, artifact.KeyGLP1Encoder, err)
	}

	m, err := r.loadModel(ctx, artifact.KeyGLP1Model, false)
	if err != nil {
		return State{}, err
	}

	if m.NFeatures() != enc.Width() {
		return State{}, fmt.Errorf("%w: %s expects %d features, encoder produces %d",
			ErrCorruptArtifact, artifact.KeyGLP1Model, m.NFeatures(), enc.Width())
	}

	return Loaded(m, enc), nil
}

func (r *Registry) loadMS(ctx context.Context) (State, error) {
	m, err := r.loadModel(ctx, artifact.KeyMSModel, true)
	if err != nil {
		return State{}, err
	}

	if m.NFeatures() != feature.MSFeatureCount {
		return State{}, fmt.Errorf("%w: %s expects %d features, encoder produces %d",
			ErrCorruptArtifact, artifact.KeyMSModel, m.NFeatures(), feature.MSFeatureCount)
	}

	return Loaded(m, nil), nil
}

func (r *Registry) loadModel(ctx context.Context, key string, classifier bool) (model.Model, error) {
	rc, err := r.open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	m, err := model.Decode(rc)
	if err != nil {
		if errors.Is(err, model.ErrUnsupportedKind) {
			return nil, fmt.Errorf("%w: %s: %w", ErrMissingDependency, key, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptArtifact, key, err)
	}

	if isClassifier(m.Kind()) != classifier {
		return nil, fmt.Errorf("%w: %s has incompatible model kind %s", ErrCorruptArtifact, key, m.Kind())
	}

	return m, nil
}

func (r *Registry) open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := r.store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrMissingArtifact, key, err)
		}
		return nil, fmt.Errorf("opening artifact %s: %w", key, err)
	}
	return rc, nil
}

func isClassifier(k model.Kind) bool {
	return k == model.KindForestClassifier || k == model.KindLogisticClassifier
}
