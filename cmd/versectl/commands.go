package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/corpus/source"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/resilience"
)

type globalFlags struct {
	configPath string
	csvPath    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "versectl",
		Short:         "Fuzzy verse search from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logger.New(os.Stderr, g.logLevel, "text"))
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "path to config file (defaults when empty)")
	root.PersistentFlags().StringVar(&g.csvPath, "csv", "", "load the corpus from this CSV file, overriding the config")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newSearchCmd(g), newReplCmd(g), newImportCmd(g), newStatsCmd(g))
	return root
}

func (g *globalFlags) load() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.csvPath != "" {
		cfg.Corpus.Source = "csv"
		cfg.Corpus.Path = g.csvPath
	}
	return cfg, nil
}

// engine is a loaded corpus plus the executor that searches it.
type engine struct {
	cfg    *config.Config
	arena  *corpus.Arena
	report corpus.LoadReport
	exec   *executor.ShardedExecutor
}

func (g *globalFlags) engine(ctx context.Context) (*engine, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, err
	}
	arena, report, err := source.LoadFromConfig(ctx, cfg.Corpus, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	exec, err := executor.NewSharded(arena, cfg.Search.Shards, cfg.Search.Workers)
	if err != nil {
		return nil, err
	}
	return &engine{cfg: cfg, arena: arena, report: report, exec: exec}, nil
}

// search trims the query, runs it under the configured timeout and returns
// presentation hits.
func (e *engine) search(ctx context.Context, query string, limit int) ([]executor.Hit, error) {
	if limit <= 0 {
		limit = e.cfg.Search.DefaultLimit
	}
	plan := parser.Parse(strings.TrimSpace(query))
	return resilience.CallWithTimeout(ctx, e.cfg.Search.Timeout, "search", func(ctx context.Context) ([]executor.Hit, error) {
		result, err := e.exec.Execute(ctx, plan, limit)
		if err != nil {
			return nil, err
		}
		return executor.Hits(result.Matches), nil
	})
}

func newSearchCmd(g *globalFlags) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Print the best matching verses for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.engine(cmd.Context())
			if err != nil {
				return err
			}
			hits, err := e.search(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			return printHits(cmd.OutOrStdout(), hits, asJSON)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of results (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as a JSON array")
	return cmd
}

func newStatsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Load the corpus and report its size",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.engine(cmd.Context())
			if err != nil {
				return err
			}
			st := e.arena.Stats()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "source\t%s\n", e.report.Source)
			fmt.Fprintf(tw, "records\t%d\n", st.Records)
			fmt.Fprintf(tw, "skipped\t%d\n", e.report.Skipped)
			fmt.Fprintf(tw, "display bytes\t%d\n", st.DisplayBytes)
			fmt.Fprintf(tw, "search runes\t%d\n", st.SearchRunes)
			fmt.Fprintf(tw, "shards\t%d\n", len(e.exec.Shards()))
			fmt.Fprintf(tw, "workers\t%d\n", e.exec.Workers())
			fmt.Fprintf(tw, "load time\t%s\n", e.report.Duration)
			return tw.Flush()
		},
	}
}

func newImportCmd(g *globalFlags) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy a CSV corpus into the Postgres verses table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if cfg.Corpus.Source != "csv" {
				return fmt.Errorf("import reads a CSV file; pass --csv")
			}
			if table == "" {
				table = cfg.Corpus.Table
			}
			db, err := postgres.New(cmd.Context(), cfg.Postgres)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := source.Import(cmd.Context(), db, table, source.NewCSV(cfg.Corpus.Path))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d verses into %s\n", n, table)
			return nil
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "destination table (default from config)")
	return cmd
}

func printHits(w io.Writer, hits []executor.Hit, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}
	if len(hits) == 0 {
		_, err := fmt.Fprintln(w, "no matches")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, h := range hits {
		fmt.Fprintf(tw, "%d\t%d:%d:%d\t%s\n", h.Score, h.Book, h.Chapter, h.Verse, h.Text)
	}
	return tw.Flush()
}
