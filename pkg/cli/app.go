package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mchmarny/peptopt/pkg/artifact"
	"github.com/mchmarny/peptopt/pkg/candidate"
	"github.com/mchmarny/peptopt/pkg/config"
	"github.com/mchmarny/peptopt/pkg/data"
	"github.com/mchmarny/peptopt/pkg/logging"
	"github.com/mchmarny/peptopt/pkg/optimize"
	"github.com/mchmarny/peptopt/pkg/score"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const (
	appName      = "peptopt"
	appConfigKey = "app-config"

	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	// stdout is swapped in tests.
	stdout io.Writer = os.Stdout
)

const (
	debugFlag      = "debug"
	configDirFlag  = "config-dir"
	dbFilePathFlag = "db"
	formatFlag     = "format"
)

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger(config.DefaultLogLevel)

	app := newApp()
	if err := app.Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	Conf   *config.Config
	DBPath string
	Debug  bool
	Format string
	DB     *sql.DB
}

func getConfig(c *cli.Command) *appConfig {
	return c.Root().Metadata[appConfigKey].(*appConfig)
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Rank single-point peptide mutants for diabetes, obesity and multiple sclerosis",
		Metadata:              map[string]any{},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    debugFlag,
				Usage:   "Prints verbose logs (optional, default: false)",
				Sources: cli.EnvVars("PEPTOPT_DEBUG"),
			},
			&cli.StringFlag{
				Name:  configDirFlag,
				Usage: "Directory holding config.yaml (default: ~/.peptopt)",
			},
			&cli.StringFlag{
				Name:  dbFilePathFlag,
				Usage: "Path to the Sqlite database file (overrides config)",
			},
			&cli.StringFlag{
				Name:  formatFlag,
				Usage: "Output format [json, yaml]",
				Value: formatJSON,
			},
		},
		Commands: []*cli.Command{
			optimizeCommand(),
			serverCommand(),
			tableCommand(),
			historyCommand(),
			statusCommand(),
			resetCommand(),
		},
		Before: before,
		After: func(_ context.Context, c *cli.Command) error {
			if cfg, ok := c.Metadata[appConfigKey].(*appConfig); ok && cfg.DB != nil {
				return cfg.DB.Close()
			}
			return nil
		},
	}
}

func before(ctx context.Context, c *cli.Command) (context.Context, error) {
	dir := c.String(configDirFlag)
	if dir == "" {
		home, _, err := config.GetOrCreateHomeDir(appName)
		if err != nil {
			return ctx, fmt.Errorf("resolving config dir: %w", err)
		}
		dir = home
	}

	conf, err := config.ReadOrCreate(dir)
	if err != nil {
		return ctx, fmt.Errorf("reading config: %w", err)
	}
	if err := conf.ApplyEnv(); err != nil {
		return ctx, fmt.Errorf("applying environment: %w", err)
	}

	debug := c.Bool(debugFlag)
	level := conf.LogLevel
	if debug {
		level = "debug"
	}
	logging.SetDefaultCLILogger(level)

	format := formatJSON
	if f := c.String(formatFlag); f == formatYAML || f == "yml" {
		format = formatYAML
	}

	dbPath := c.String(dbFilePathFlag)
	if dbPath == "" {
		dbPath = conf.DBPath
	}

	if err := data.Init(dbPath); err != nil {
		return ctx, fmt.Errorf("initializing database: %w", err)
	}

	db, err := data.GetDB(dbPath)
	if err != nil {
		return ctx, fmt.Errorf("opening database: %w", err)
	}

	slog.Debug("config loaded", "dir", dir, "db", dbPath, "artifacts", conf.Artifacts.Driver)

	c.Metadata[appConfigKey] = &appConfig{
		Conf:   conf,
		DBPath: dbPath,
		Debug:  debug,
		Format: format,
		DB:     db,
	}
	return ctx, nil
}

func artifactOptions(a config.Artifacts) artifact.Options {
	return artifact.OptionsFromEnv(artifact.Options{
		Driver:    artifact.Driver(a.Driver),
		Root:      a.Root,
		Bucket:    a.Bucket,
		Region:    a.Region,
		Endpoint:  a.Endpoint,
		PathStyle: a.PathStyle,
	})
}

// newOptimizer wires the artifact store, model registry and substitution
// table configured in cfg.
func newOptimizer(ctx context.Context, cfg *appConfig, opts ...optimize.Option) (*optimize.Optimizer, *score.Registry, error) {
	store, err := artifact.Open(ctx, artifactOptions(cfg.Conf.Artifacts))
	if err != nil {
		return nil, nil, fmt.Errorf("opening artifact store: %w", err)
	}

	reg := score.NewRegistry(store)
	tables := candidate.NewTableProvider(&data.SubstitutionSource{
		DB:      cfg.DB,
		CSVPath: cfg.Conf.SubstitutionsPath,
	})

	return optimize.New(score.NewEngine(reg), tables, opts...), reg, nil
}

func encode(format string, v any) error {
	if format == formatYAML {
		e := yaml.NewEncoder(stdout)
		defer e.Close()
		return e.Encode(v)
	}
	e := json.NewEncoder(stdout)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
