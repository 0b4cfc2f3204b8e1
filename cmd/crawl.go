package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/Glyph8/navermapCrawling/common/browser/rodbrowser"
	"github.com/Glyph8/navermapCrawling/crawlers"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type crawlOptions struct {
	runID      string
	site       string
	schema     string
	regions    []string
	categories []string
	workers    int
}

func crawlCommand() *cobra.Command {
	var opts crawlOptions

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl every region x category search once and exit",
		Long: `Runs one crawl in the foreground. Regions and categories default to
CRAWL_REGIONS and CRAWL_CATEGORIES; every region is searched for every
category. Records are written as CSV under OUTPUT_DIR, one file per search,
plus a run summary.`,
		Example: `  navermap-crawler crawl --region "서울시 광진구 능동" --category 카페 --category 공원`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return crawl(ctx, cmd.OutOrStdout(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.runID, "run-id", "", "run id, generated when empty")
	flags.StringVar(&opts.site, "site", "", "site to crawl, overrides CRAWL_SITE")
	flags.StringVar(&opts.schema, "schema", "", "extraction schema, overrides CRAWL_SCHEMA")
	flags.StringArrayVar(&opts.regions, "region", nil, "region to search, repeatable")
	flags.StringArrayVar(&opts.categories, "category", nil, "category to search, repeatable")
	flags.IntVar(&opts.workers, "workers", 0, "searches run in parallel, overrides CRAWL_WORKERS")
	return cmd
}

func crawl(ctx context.Context, out io.Writer, opts crawlOptions) error {
	runCfg := cfg
	if opts.workers > 0 {
		runCfg.Crawl.Workers = opts.workers
	}

	in, err := setupInfra(ctx, runCfg)
	if err != nil {
		return err
	}
	defer in.Close()

	b, err := rodbrowser.Connect(ctx, browserConfig(runCfg))
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close browser")
		}
	}()

	runner, err := crawlers.NewRunner(runCfg, in.deps(runCfg, crawlers.RodOpener(b)))
	if err != nil {
		return err
	}

	req := crawlers.Request{
		RunID:  opts.runID,
		Site:   lo.CoalesceOrEmpty(opts.site, runCfg.Crawl.Site),
		Schema: lo.CoalesceOrEmpty(opts.schema, runCfg.Crawl.Schema),
		Searches: crawlers.Searches(
			lo.Ternary(len(opts.regions) > 0, opts.regions, runCfg.Crawl.Regions),
			lo.Ternary(len(opts.categories) > 0, opts.categories, runCfg.Crawl.Categories),
		),
	}

	result, err := runner.Run(ctx, req)
	printResult(out, result)
	return err
}

func printResult(out io.Writer, result crawlers.Result) {
	if result.RunID == "" {
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REGION\tCATEGORY\tSTATE\tVISITED\tCOLLECTED\tSKIPPED\tFILTERED\tERRORED\tPAGES\tERROR")
	for _, s := range result.Summaries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			s.Search.Region, s.Search.Category, s.State,
			s.Counters.Visited, s.Counters.Collected, s.Counters.Skipped, s.Counters.Filtered, s.Counters.Errored,
			s.Pages, s.Error)
	}
	_ = w.Flush()

	fmt.Fprintf(out, "\nrun %s %s: %d collected\n", result.RunID, result.Status, result.Collected)
	for _, file := range result.Files {
		fmt.Fprintf(out, "  %s\n", file)
	}
	if result.Report != "" {
		fmt.Fprintf(out, "  %s\n", result.Report)
	}
	for _, uri := range result.Uploaded {
		fmt.Fprintf(out, "  %s\n", uri)
	}
}
