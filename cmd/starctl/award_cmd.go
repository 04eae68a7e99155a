package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/star-engine/incentive"
	"github.com/warp/star-engine/service"
)

func newAwardCmd(g *globalFlags) *cobra.Command {
	var (
		kind        string
		period      string
		policy      string
		amount      int
		staff       string
		seed        int64
		fingerprint string
		override    bool
		confirm     bool
	)

	cmd := &cobra.Command{
		Use:   "award",
		Short: "Preview or commit a period award",
		Long: "Prints the award distribution and its fingerprint. To commit, run again\n" +
			"with --confirm and the --fingerprint of that preview (and its --seed for RANDOM).",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := g.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			req := service.AwardRequest{
				Policy:          incentive.TiePolicy(policy),
				CustomAmount:    amount,
				SelectedStaffID: incentive.StaffID(staff),
			}
			if cmd.Flags().Changed("seed") {
				req.Seed = &seed
			}

			start := time.Now()
			preview, err := svc.PreviewAward(cmd.Context(), kind, period, req)
			if err != nil {
				return err
			}
			if !confirm {
				return report(cmd, "award", false, start, preview)
			}

			if fingerprint == "" {
				return missingFingerprint(cmd, "award", start, preview)
			}
			req.Seed = preview.Seed
			commit, err := svc.CommitAward(cmd.Context(), kind, period, req, fingerprint, override)
			if err != nil {
				return err
			}
			return report(cmd, "award", true, start, commit)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Award kind (required)")
	cmd.Flags().StringVar(&period, "period", "", "Period key (required)")
	cmd.Flags().StringVar(&policy, "policy", string(incentive.TieAll), "Tie policy: ALL, CUSTOM, RANDOM or SPECIFIC")
	cmd.Flags().IntVar(&amount, "amount", 0, "Stars per winner for CUSTOM")
	cmd.Flags().StringVar(&staff, "staff", "", "Selected staff for SPECIFIC")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Seed for RANDOM (generated when omitted)")
	cmd.Flags().StringVar(&fingerprint, "fingerprint", "", "Fingerprint of the preview to commit (required with --confirm)")
	cmd.Flags().BoolVar(&override, "override", false, "Replace an award already committed for the period")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Commit the previewed result (default preview only)")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}
