package main

import (
	"time"

	"github.com/spf13/cobra"
)

func newReviewCmd(g *globalFlags) *cobra.Command {
	var (
		kind   string
		period string
	)

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Rank staff for an award kind over a period",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := g.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			start := time.Now()
			review, err := svc.ReviewPeriod(cmd.Context(), kind, period)
			if err != nil {
				return err
			}
			return report(cmd, "review", false, start, review)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Award kind, e.g. weekly_shifts (required)")
	cmd.Flags().StringVar(&period, "period", "", "Period key, e.g. 2025-W07 or 2025-03 (required)")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}
