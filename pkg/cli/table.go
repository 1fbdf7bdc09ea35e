package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mchmarny/peptopt/pkg/data"
	"github.com/urfave/cli/v3"
)

const (
	dirMode  = 0700
	fileMode = 0600
)

const (
	inputFlag   = "input"
	outputFlag  = "output"
	fileFlag    = "file"
	replaceFlag = "replace"
)

func tableCommand() *cli.Command {
	return &cli.Command{
		Name:  "table",
		Usage: "Manage the GLP-1 substitution table",
		Commands: []*cli.Command{
			{
				Name:   "prepare",
				Usage:  "Derive the labeled table from pivoted substitution effects",
				Action: cmdTablePrepare,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     inputFlag,
						Aliases:  []string{"i"},
						Usage:    "Pivoted substitution effects CSV (Position, Substitution, hGLP1R_EC50, ...)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    outputFlag,
						Aliases: []string{"o"},
						Usage:   "Labeled CSV to write (default: substitutions_path from config)",
					},
				},
			},
			{
				Name:   "import",
				Usage:  "Load a labeled table into the database",
				Action: cmdTableImport,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    fileFlag,
						Aliases: []string{"f"},
						Usage:   "Labeled CSV to import (default: substitutions_path from config)",
					},
					&cli.BoolFlag{
						Name:  replaceFlag,
						Usage: "Delete the existing table before importing",
					},
				},
			},
			{
				Name:   "list",
				Usage:  "Print the substitution table stored in the database",
				Action: cmdTableList,
			},
		},
	}
}

type tableResult struct {
	Source  string `json:"source" yaml:"source"`
	Target  string `json:"target" yaml:"target"`
	Rows    int    `json:"rows" yaml:"rows"`
	Deleted int64  `json:"deleted,omitempty" yaml:"deleted,omitempty"`
}

func cmdTablePrepare(_ context.Context, c *cli.Command) error {
	cfg := getConfig(c)
	in := c.String(inputFlag)
	out := c.String(outputFlag)
	if out == "" {
		out = cfg.Conf.SubstitutionsPath
	}

	src, err := os.Open(in)
	if err != nil {
		return fmt.Errorf("opening %s: %w", in, err)
	}
	defer src.Close()

	list, err := data.PrepareSubstitutions(src)
	if err != nil {
		return fmt.Errorf("preparing %s: %w", in, err)
	}

	if err := os.MkdirAll(filepath.Dir(out), dirMode); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	dst, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fileMode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	defer dst.Close()

	if err := data.WriteSubstitutionsCSV(dst, list); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}

	slog.Info("labeled substitution table saved", "path", out, "rows", len(list))
	return encode(cfg.Format, &tableResult{Source: in, Target: out, Rows: len(list)})
}

func cmdTableImport(_ context.Context, c *cli.Command) error {
	cfg := getConfig(c)
	path := c.String(fileFlag)
	if path == "" {
		path = cfg.Conf.SubstitutionsPath
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	list, err := data.ReadSubstitutionsCSV(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	res := &tableResult{Source: path, Target: cfg.DBPath}
	if c.Bool(replaceFlag) {
		if res.Deleted, err = data.DeleteSubstitutions(cfg.DB); err != nil {
			return err
		}
	}

	if res.Rows, err = data.SaveSubstitutions(cfg.DB, list); err != nil {
		return fmt.Errorf("importing %s: %w", path, err)
	}

	slog.Info("substitution table imported", "path", path, "rows", res.Rows)
	return encode(cfg.Format, res)
}

func cmdTableList(_ context.Context, c *cli.Command) error {
	cfg := getConfig(c)

	list, err := data.GetSubstitutions(cfg.DB)
	if err != nil {
		return fmt.Errorf("listing substitutions: %w", err)
	}

	return encode(cfg.Format, list)
}
