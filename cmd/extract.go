package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/Glyph8/navermapCrawling/crawlers"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type extractOptions struct {
	site   string
	schema string
	region string
	json   bool
}

func extractCommand() *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract FILE",
		Short: "Apply an extraction schema to a saved detail page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return extractFile(cmd.Context(), cmd.OutOrStdout(), string(page), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.site, "site", "", "site whose schema is applied, overrides CRAWL_SITE")
	flags.StringVar(&opts.schema, "schema", "", "extraction schema, overrides CRAWL_SCHEMA")
	flags.StringVar(&opts.region, "region", "", "also check the address against this region")
	flags.BoolVar(&opts.json, "json", false, "print the record as json")
	return cmd
}

func extractFile(ctx context.Context, out io.Writer, page string, opts extractOptions) error {
	preview, err := crawlers.ExtractHTML(ctx,
		lo.CoalesceOrEmpty(opts.site, cfg.Crawl.Site),
		lo.CoalesceOrEmpty(opts.schema, cfg.Crawl.Schema),
		page, opts.region, cfg.Crawl.RegionTokens)
	if err != nil {
		return err
	}
	rec := preview.Record

	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"schema":       rec.Schema(),
			"key":          rec.Key(),
			"fields":       rec.Map(),
			"missing":      rec.Missing(),
			"region_match": preview.RegionMatch,
		})
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, field := range rec.Fields() {
		value, _ := rec.Get(field)
		marker := lo.Ternary(rec.IsMissing(field), "*", "")
		fmt.Fprintf(w, "%s%s\t%s\n", field, marker, value)
	}
	if preview.RegionMatch != nil {
		fmt.Fprintf(w, "region match\t%t\n", *preview.RegionMatch)
	}
	return w.Flush()
}
