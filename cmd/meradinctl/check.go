package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/meradin/internal/sitecheck"
	"github.com/spf13/cobra"
)

type checkOptions struct {
	url     string
	workers int
	forms   bool
	timeout time.Duration
}

func newCheckCmd() *cobra.Command {
	opts := checkOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Crawl a running site and verify every page and link",
		Long: `Reads /sitemap.xml, fetches each listed page, then every internal link
and asset those pages reference. With --forms it also submits each reading
form with sample details, which calls the scoring API. Exits non-zero when
any request fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "http://localhost:9080", "base URL of the running site")
	cmd.Flags().IntVar(&opts.workers, "workers", 4, "concurrent requests")
	cmd.Flags().BoolVar(&opts.forms, "forms", false, "also submit the reading forms")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "per-request timeout")
	return cmd
}

func runCheck(ctx context.Context, cmd *cobra.Command, opts checkOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	checker, err := sitecheck.New(opts.url,
		sitecheck.WithWorkers(opts.workers),
		sitecheck.WithForms(opts.forms),
		sitecheck.WithHTTPClient(&http.Client{Timeout: opts.timeout}),
	)
	if err != nil {
		return err
	}
	report, err := checker.Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, res := range report.Results {
		status := "ok"
		if !res.OK() {
			status = "FAIL " + res.Err.Error()
		}
		fmt.Fprintf(out, "%-4s %-28s %3d %s\n", res.Method, res.Path, res.Status, status)
	}
	if err := report.Err(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d requests passed\n", len(report.Results))
	return nil
}
