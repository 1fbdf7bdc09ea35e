package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mchmarny/peptopt/pkg/optimize"
	"github.com/mchmarny/peptopt/pkg/peptide"
	"github.com/urfave/cli/v3"
)

const (
	diseaseFlag  = "disease"
	sequenceFlag = "sequence"
	topFlag      = "top"
	noSaveFlag   = "no-save"
)

func optimizeCommand() *cli.Command {
	return &cli.Command{
		Name:   "optimize",
		Usage:  "Generate, score and rank single-point mutants of a peptide",
		Action: cmdOptimize,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     diseaseFlag,
				Aliases:  []string{"d"},
				Usage:    "Indication [diabetes, obesity, ms]",
				Required: true,
			},
			&cli.StringFlag{
				Name:    sequenceFlag,
				Aliases: []string{"s"},
				Usage:   "Starting peptide sequence (default: GLP-1 baseline or the MS reference)",
			},
			&cli.IntFlag{
				Name:    topFlag,
				Aliases: []string{"k"},
				Usage:   "Number of candidates to return (default: top_k from config)",
			},
			&cli.BoolFlag{
				Name:  noSaveFlag,
				Usage: "Do not record the run in history",
			},
		},
	}
}

func cmdOptimize(ctx context.Context, c *cli.Command) error {
	cfg := getConfig(c)

	ind, err := peptide.ParseIndication(c.String(diseaseFlag))
	if err != nil {
		return err
	}

	seq := c.String(sequenceFlag)
	if seq == "" {
		seq = ind.DefaultSequence()
	}

	topK := cfg.Conf.TopK
	if c.IsSet(topFlag) {
		topK = c.Int(topFlag)
	}

	opt, _, err := newOptimizer(ctx, cfg)
	if err != nil {
		return err
	}

	res, err := opt.Optimize(ctx, optimize.Request{
		Indication:       string(ind),
		StartingSequence: seq,
		TopK:             topK,
	})
	if err != nil {
		return fmt.Errorf("optimizing %s: %w", ind, err)
	}

	if res.Notice != "" {
		slog.Warn(res.Notice)
	}

	if !c.Bool(noSaveFlag) {
		id, err := saveRun(cfg.DB, res)
		if err != nil {
			return err
		}
		slog.Debug("run saved", "id", id)
	}

	return encode(cfg.Format, res)
}
