package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FranksOps/nichescout/internal/pipeline"
	"github.com/FranksOps/nichescout/internal/report"
)

const dateLayout = "2006-01-02"

type searchOpts struct {
	start  string
	end    string
	geo    string
	format string
}

func newSearchCmd(v *viper.Viper) *cobra.Command {
	var opts searchOpts
	cmd := &cobra.Command{
		Use:   "search KEYWORD",
		Short: "Research one keyword and print the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := opts.request(args[0], time.Now())
			if err != nil {
				return err
			}
			if opts.format != "text" && opts.format != "json" {
				return fmt.Errorf("unknown format %q", opts.format)
			}
			return runSearch(cmd.Context(), v, req, opts.format, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.start, "start", "", "start of the trend window, YYYY-MM-DD (default one year ago)")
	cmd.Flags().StringVar(&opts.end, "end", "", "end of the trend window, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&opts.geo, "geo", "US", "region code")
	cmd.Flags().StringVar(&opts.format, "format", "text", "output format: text, json")
	return cmd
}

func (o searchOpts) request(keyword string, now time.Time) (pipeline.Request, error) {
	req := pipeline.Request{
		Keyword: keyword,
		Start:   now.AddDate(-1, 0, 0),
		End:     now,
		Geo:     o.geo,
	}
	var err error
	if o.start != "" {
		if req.Start, err = time.Parse(dateLayout, o.start); err != nil {
			return req, fmt.Errorf("--start: %w", err)
		}
	}
	if o.end != "" {
		if req.End, err = time.Parse(dateLayout, o.end); err != nil {
			return req, fmt.Errorf("--end: %w", err)
		}
	}
	if req.End.Before(req.Start) {
		return req, fmt.Errorf("--end %s is before --start %s", req.End.Format(dateLayout), req.Start.Format(dateLayout))
	}
	return req, nil
}

func runSearch(ctx context.Context, v *viper.Viper, req pipeline.Request, format string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := loadConfig(v)
	if err != nil {
		return err
	}

	p, closeRenderer, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRenderer()

	res, err := p.Search(ctx, req)
	if err != nil {
		return err
	}
	if format == "json" {
		return report.WriteJSON(out, res)
	}
	return report.WriteText(out, res)
}
