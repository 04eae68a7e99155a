package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/warp/star-engine/incentive"
	"github.com/warp/star-engine/service"
)

type bonusFlags struct {
	category    string
	period      string
	fingerprint string
	confirm     bool
}

func (f *bonusFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.category, "category", "All", "Category to rewrite, or All")
	cmd.Flags().StringVar(&f.period, "period", "", "Period key or YYYY-MM-DD..YYYY-MM-DD range (required)")
	cmd.Flags().StringVar(&f.fingerprint, "fingerprint", "", "Fingerprint of the preview to commit (required with --confirm)")
	cmd.Flags().BoolVar(&f.confirm, "confirm", false, "Commit the previewed result (default preview only)")
	_ = cmd.MarkFlagRequired("period")
}

func (f *bonusFlags) request() (service.BonusRequest, error) {
	window, err := parseWindow(f.period)
	if err != nil {
		return service.BonusRequest{}, err
	}
	return service.BonusRequest{Category: f.category, Window: window}, nil
}

func newBonusCmd(g *globalFlags) *cobra.Command {
	var (
		f          bonusFlags
		multiplier string
	)

	cmd := &cobra.Command{
		Use:   "bonus",
		Short: "Preview or commit a retroactive bonus multiplier",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			if req.Multiplier, err = decimal.NewFromString(multiplier); err != nil {
				return fmt.Errorf("%w: --multiplier %q", incentive.ErrInvalidMultiplier, multiplier)
			}

			svc, closeFn, err := g.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			start := time.Now()
			preview, err := svc.PreviewBonus(cmd.Context(), req)
			if err != nil {
				return err
			}
			if !f.confirm {
				return report(cmd, "bonus", false, start, preview)
			}
			if f.fingerprint == "" {
				return missingFingerprint(cmd, "bonus", start, preview)
			}
			commit, err := svc.CommitBonus(cmd.Context(), req, f.fingerprint)
			if err != nil {
				return err
			}
			return report(cmd, "bonus", true, start, commit)
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&multiplier, "multiplier", "", "Multiplier, e.g. 2 or 1.5 (required)")
	_ = cmd.MarkFlagRequired("multiplier")
	return cmd
}

func newRevertCmd(g *globalFlags) *cobra.Command {
	var f bonusFlags

	cmd := &cobra.Command{
		Use:   "revert-bonus",
		Short: "Preview or commit the reversal of applied bonuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}

			svc, closeFn, err := g.openService()
			if err != nil {
				return err
			}
			defer closeFn()

			start := time.Now()
			preview, err := svc.PreviewRevertBonus(cmd.Context(), req)
			if err != nil {
				return err
			}
			if !f.confirm {
				return report(cmd, "revert-bonus", false, start, preview)
			}
			if f.fingerprint == "" {
				return missingFingerprint(cmd, "revert-bonus", start, preview)
			}
			commit, err := svc.CommitRevertBonus(cmd.Context(), req, f.fingerprint)
			if err != nil {
				return err
			}
			return report(cmd, "revert-bonus", true, start, commit)
		},
	}

	f.register(cmd)
	return cmd
}
