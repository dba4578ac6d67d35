package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/cerebro/internal/paper"
	"github.com/JakeFAU/cerebro/internal/venue"
)

type fetchOptions struct {
	venues []string
	from   int
	to     int
}

func newFetchCmd() *cobra.Command {
	var opts fetchOptions
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Ingest venues and years once, then exit",
		Long: `Fetches every (venue, year) pair in the given range synchronously and
stores the papers. Each pair is recorded as a run; failed pairs are
reported and the command exits non-zero.`,
		Example: "  cerebro fetch --venue ACL --venue ICML --from 2022 --to 2023",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.venues, "venue", nil, "venue to fetch (repeatable)")
	cmd.Flags().IntVar(&opts.from, "from", 0, "first year to fetch")
	cmd.Flags().IntVar(&opts.to, "to", 0, "last year to fetch (defaults to --from)")
	_ = cmd.MarkFlagRequired("venue")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func runFetch(cmd *cobra.Command, opts fetchOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	if opts.to == 0 {
		opts.to = opts.from
	}
	if opts.from <= 0 || opts.to < opts.from {
		return fmt.Errorf("invalid year range %d-%d", opts.from, opts.to)
	}
	names := make([]string, 0, len(opts.venues))
	for _, v := range opts.venues {
		name, ok := venue.Canonical(v)
		if !ok {
			return fmt.Errorf("%w: %s", venue.ErrUnknownVenue, v)
		}
		names = append(names, name)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed := 0
	for _, p := range venue.Pairs(names, opts.from, opts.to) {
		if ctx.Err() != nil {
			return fmt.Errorf("fetch interrupted: %w", ctx.Err())
		}
		run := appInstance.Ingest(ctx, paper.QueueItem{Venue: p.Venue, Year: p.Year})
		fmt.Fprintf(cmd.OutOrStdout(), "%s-%d\t%s\t%d papers\n", run.Venue, run.Year, run.Status, run.Papers)
		if run.Status == paper.RunStatusFailed {
			failed++
		}
	}
	appInstance.Logger().Info("fetch command finished", zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d ingest run(s) failed", failed)
	}
	return nil
}
