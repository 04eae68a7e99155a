package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/star-engine/incentive"
)

type jobOutput struct {
	Command    string `json:"command"`
	Committed  bool   `json:"committed"`
	DurationMS int64  `json:"duration_ms"`
	Result     any    `json:"result"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func report(cmd *cobra.Command, command string, committed bool, start time.Time, result any) error {
	return writeJSON(cmd.OutOrStdout(), jobOutput{
		Command:    command,
		Committed:  committed,
		DurationMS: time.Since(start).Milliseconds(),
		Result:     result,
	})
}

// missingFingerprint prints the preview and refuses to commit: --confirm
// only commits a result whose fingerprint the operator has seen.
func missingFingerprint(cmd *cobra.Command, command string, start time.Time, preview any) error {
	if err := report(cmd, command, false, start, preview); err != nil {
		return err
	}
	return fmt.Errorf("%w: --confirm needs the --fingerprint of the preview above", incentive.ErrInvalidInput)
}

// parseWindow accepts a period key or a "YYYY-MM-DD..YYYY-MM-DD" range.
func parseWindow(s string) (incentive.PeriodWindow, error) {
	if from, to, ok := strings.Cut(s, ".."); ok {
		start, err := time.Parse("2006-01-02", from)
		if err != nil {
			return incentive.PeriodWindow{}, err
		}
		end, err := time.Parse("2006-01-02", to)
		if err != nil {
			return incentive.PeriodWindow{}, err
		}
		return incentive.NewWindow(start, end.AddDate(0, 0, 1).Add(-time.Nanosecond))
	}
	return incentive.ParseWindow(s)
}
