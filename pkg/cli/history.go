package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mchmarny/peptopt/pkg/data"
	"github.com/mchmarny/peptopt/pkg/optimize"
	"github.com/mchmarny/peptopt/pkg/peptide"
	"github.com/urfave/cli/v3"
)

const historyLimitDefault = 20

const (
	historyDiseaseFlag = "disease"
	limitFlag          = "limit"
	runIDFlag          = "id"
)

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect saved optimization runs",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List recent runs, newest first",
				Action: cmdHistoryList,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  historyDiseaseFlag,
						Usage: "Only list runs for this indication",
					},
					&cli.IntFlag{
						Name:  limitFlag,
						Usage: "Maximum number of runs to list",
						Value: historyLimitDefault,
					},
				},
			},
			{
				Name:   "show",
				Usage:  "Show the ranked candidates of a run",
				Action: cmdHistoryShow,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     runIDFlag,
						Usage:    "Run id",
						Required: true,
					},
				},
			},
		},
	}
}

func cmdHistoryList(_ context.Context, c *cli.Command) error {
	cfg := getConfig(c)

	var ind string
	if v := c.String(historyDiseaseFlag); v != "" {
		parsed, err := peptide.ParseIndication(v)
		if err != nil {
			return err
		}
		ind = string(parsed)
	}

	list, err := data.ListRuns(cfg.DB, ind, c.Int(limitFlag))
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	return encode(cfg.Format, list)
}

func cmdHistoryShow(_ context.Context, c *cli.Command) error {
	cfg := getConfig(c)

	res, err := loadRun(cfg.DB, int64(c.Int(runIDFlag)))
	if err != nil {
		return err
	}

	return encode(cfg.Format, res)
}

// saveRun records res in the run history.
func saveRun(db *sql.DB, res *optimize.Result) (int64, error) {
	b, err := json.Marshal(res)
	if err != nil {
		return 0, fmt.Errorf("marshaling result: %w", err)
	}

	id, err := data.SaveRun(db, &data.Run{
		Indication:       string(res.Indication),
		StartingSequence: res.StartingSequence,
		TopK:             res.TopK,
		Mode:             string(res.Mode),
		Generated:        res.Generated,
		Result:           string(b),
	})
	if err != nil {
		return 0, fmt.Errorf("saving run: %w", err)
	}
	return id, nil
}

// loadRun returns the result stored with run id.
func loadRun(db *sql.DB, id int64) (*optimize.Result, error) {
	run, err := data.GetRun(db, id)
	if err != nil {
		return nil, err
	}

	var res optimize.Result
	if err := json.Unmarshal([]byte(run.Result), &res); err != nil {
		return nil, fmt.Errorf("decoding run %d: %w", id, err)
	}
	return &res, nil
}
