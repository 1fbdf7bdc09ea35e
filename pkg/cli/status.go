package cli

import (
	"context"
	"fmt"

	"github.com/mchmarny/peptopt/pkg/data"
	"github.com/mchmarny/peptopt/pkg/score"
	"github.com/urfave/cli/v3"
)

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show database counts and which scoring models are available",
		Action: cmdStatus,
	}
}

type statusResult struct {
	DB        string            `json:"db" yaml:"db"`
	Artifacts string            `json:"artifacts" yaml:"artifacts"`
	Data      map[string]int64  `json:"data" yaml:"data"`
	Models    map[string]string `json:"models" yaml:"models"`
}

func cmdStatus(ctx context.Context, c *cli.Command) error {
	cfg := getConfig(c)

	counts, err := data.GetDataState(cfg.DB)
	if err != nil {
		return fmt.Errorf("reading data state: %w", err)
	}

	_, reg, err := newOptimizer(ctx, cfg)
	if err != nil {
		return err
	}

	res := &statusResult{
		DB:        cfg.DBPath,
		Artifacts: string(reg.Driver()),
		Data:      counts,
		Models:    make(map[string]string),
	}

	for _, f := range score.Families {
		st, err := reg.State(ctx, f)
		if err != nil {
			res.Models[string(f)] = "error: " + err.Error()
			continue
		}
		res.Models[string(f)] = st.Kind.String()
	}

	return encode(cfg.Format, res)
}
