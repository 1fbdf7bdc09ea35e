package optimize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mchmarny/peptopt/pkg/candidate"
	"github.com/mchmarny/peptopt/pkg/metrics"
	"github.com/mchmarny/peptopt/pkg/peptide"
	"github.com/mchmarny/peptopt/pkg/rank"
	"github.com/mchmarny/peptopt/pkg/score"
)

const (
	// TopKDefault is the number of candidates returned when none is requested.
	TopKDefault = 5

	heuristicNotice = "trained model artifacts not found; scores come from the fallback heuristic and are not comparable to model scores"
)

// ErrInvalidInput is returned for requests rejected before the pipeline runs.
var ErrInvalidInput = errors.New("invalid input")

// Request is one optimization call.
type Request struct {
	Indication       string `json:"disease" yaml:"disease"`
	StartingSequence string `json:"starting_sequence" yaml:"starting_sequence"`
	TopK             int    `json:"top_k" yaml:"top_k"`
}

// Result is the ranked outcome of an optimization.
type Result struct {
	Indication       peptide.Indication  `json:"disease" yaml:"disease"`
	StartingSequence string              `json:"starting_sequence" yaml:"starting_sequence"`
	TopK             int                 `json:"top_k" yaml:"top_k"`
	Mode             score.Mode          `json:"mode" yaml:"mode"`
	Notice           string              `json:"notice,omitempty" yaml:"notice,omitempty"`
	Generated        int                 `json:"generated" yaml:"generated"`
	Candidates       []peptide.Candidate `json:"candidates" yaml:"candidates"`
}

// Optimizer runs generation, scoring and ranking.
type Optimizer struct {
	engine  *score.Engine
	table   *candidate.TableProvider
	metrics *metrics.Recorder
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithMetrics records every call on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *Optimizer) {
		o.metrics = r
	}
}

// New returns an optimizer. table supplies the GLP-1 substitution table and
// may be nil when only MS is served.
func New(engine *score.Engine, table *candidate.TableProvider, opts ...Option) *Optimizer {
	o := &Optimizer{engine: engine, table: table}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Optimize validates req, then returns the top-k single-point mutants of the
// starting sequence ranked by score.
func (o *Optimizer) Optimize(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	ind, seq, err := validate(req)
	if err != nil {
		return nil, err
	}

	res, err := o.run(ctx, ind, seq, req.TopK)

	var mode string
	var generated int
	if res != nil {
		mode, generated = string(res.Mode), res.Generated
	}
	o.metrics.Observe(string(ind), mode, generated, time.Since(start), err)

	if err != nil {
		return nil, err
	}

	slog.Debug("optimization complete",
		"indication", ind,
		"mode", res.Mode,
		"generated", res.Generated,
		"returned", len(res.Candidates),
		"duration", time.Since(start),
	)
	return res, nil
}

func validate(req Request) (peptide.Indication, string, error) {
	ind, err := peptide.ParseIndication(req.Indication)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	seq := peptide.Normalize(req.StartingSequence)
	if err := peptide.Validate(seq); err != nil {
		return "", "", fmt.Errorf("%w: starting sequence: %w", ErrInvalidInput, err)
	}

	if req.TopK < 0 {
		return "", "", fmt.Errorf("%w: top_k must be non-negative, got %d", ErrInvalidInput, req.TopK)
	}

	return ind, seq, nil
}

func (o *Optimizer) run(ctx context.Context, ind peptide.Indication, seq string, topK int) (*Result, error) {
	scorer, err := o.engine.Scorer(ctx, ind)
	if err != nil {
		return nil, err
	}

	list, err := o.generate(ind, seq)
	if err != nil {
		return nil, err
	}

	for i := range list {
		v, err := scorer.Score(list[i].Sequence)
		if err != nil {
			return nil, fmt.Errorf("scoring candidate %d: %w", i, err)
		}
		list[i].Score = v
	}

	res := &Result{
		Indication:       ind,
		StartingSequence: seq,
		TopK:             topK,
		Mode:             scorer.Mode(),
		Generated:        len(list),
		Candidates:       rank.Top(list, topK),
	}
	if res.Candidates == nil {
		res.Candidates = []peptide.Candidate{}
	}
	if res.Mode == score.ModeHeuristic {
		res.Notice = heuristicNotice
	}

	return res, nil
}

func (o *Optimizer) generate(ind peptide.Indication, seq string) ([]peptide.Candidate, error) {
	if !ind.IsGLP1() {
		return candidate.Unconstrained(seq), nil
	}

	if o.table == nil {
		return nil, errors.New("substitution table not configured")
	}
	t, err := o.table.Table()
	if err != nil {
		return nil, err
	}
	return candidate.Constrained(seq, t), nil
}
