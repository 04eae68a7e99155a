package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/star-engine/incentive"
	"github.com/warp/star-engine/service"
)

func newResetCmd(g *globalFlags) *cobra.Command {
	var (
		period      string
		staff       string
		fingerprint string
		confirm     bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Preview or commit deleting a window's events with ledger reversal",
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := parseWindow(period)
			if err != nil {
				return err
			}
			req := service.ResetRequest{Window: window, StaffID: incentive.StaffID(staff)}

			svc, closeFn, err := g.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			start := time.Now()
			preview, err := svc.PreviewReset(cmd.Context(), req)
			if err != nil {
				return err
			}
			if !confirm {
				return report(cmd, "reset", false, start, preview)
			}
			if fingerprint == "" {
				return missingFingerprint(cmd, "reset", start, preview)
			}
			commit, err := svc.CommitReset(cmd.Context(), req, fingerprint)
			if err != nil {
				return err
			}
			return report(cmd, "reset", true, start, commit)
		},
	}

	cmd.Flags().StringVar(&period, "period", "", "Period key or YYYY-MM-DD..YYYY-MM-DD range (required)")
	cmd.Flags().StringVar(&staff, "staff", "", "Limit the reset to one staff member")
	cmd.Flags().StringVar(&fingerprint, "fingerprint", "", "Fingerprint of the preview to commit (required with --confirm)")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Commit the previewed result (default preview only)")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}
