package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/star-engine/factory"
	"github.com/warp/star-engine/incentive"
	"github.com/warp/star-engine/service"
	"github.com/warp/star-engine/store/sqlite"
)

func TestParseWindow(t *testing.T) {
	w, err := parseWindow("2025-03")
	require.NoError(t, err)
	assert.Equal(t, incentive.CadenceMonthly, w.Cadence)

	w, err = parseWindow("2025-03-01..2025-03-15")
	require.NoError(t, err)
	assert.True(t, w.Start.Equal(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(time.Date(2025, time.March, 15, 23, 59, 59, 0, time.UTC)), "end day is inclusive")
	assert.False(t, w.Contains(time.Date(2025, time.March, 16, 0, 0, 0, 0, time.UTC)))

	for _, bad := range []string{"", "March", "2025-03-15..2025-03-01", "2025-03-01..soon"} {
		_, err := parseWindow(bad)
		assert.Error(t, err, bad)
	}
}

// seedDB writes two March sales for anna into a fresh database file.
func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stars.db")
	st, err := sqlite.New(path)
	require.NoError(t, err)
	defer st.Close()

	svc := service.New(st, factory.DefaultCatalog(), service.DefaultOptions())
	for _, day := range []int{3, 4} {
		_, err := svc.SubmitSale(context.Background(), incentive.RawSale{
			StaffID: "anna", Category: "Finance", ServiceKey: "credit-account",
			At: time.Date(2025, time.March, day, 10, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}
	return path
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	_, err := runOutput(t, args...)
	return err
}

func runOutput(t *testing.T, args ...string) (jobOutput, error) {
	t.Helper()
	t.Setenv("STARS_CONFIG", "")
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()

	var out jobOutput
	if buf.Len() > 0 {
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	}
	return out, err
}

// previewFingerprint runs a command without --confirm and returns the
// fingerprint it printed.
func previewFingerprint(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runOutput(t, args...)
	require.NoError(t, err)
	require.False(t, out.Committed)
	result, ok := out.Result.(map[string]any)
	require.True(t, ok, "result is an object")
	fp, _ := result["Fingerprint"].(string)
	require.Len(t, fp, 64)
	return fp
}

func starsFor(t *testing.T, path string, staff incentive.StaffID) int {
	t.Helper()
	st, err := sqlite.New(path)
	require.NoError(t, err)
	defer st.Close()
	led, err := st.Ledger(context.Background(), staff)
	require.NoError(t, err)
	return led.StarsTotal
}

func TestResetCommand(t *testing.T) {
	path := seedDB(t)

	// WHEN: Reset runs without --confirm
	require.NoError(t, run(t, "--db", path, "reset", "--period", "2025-03"))

	// THEN: Nothing changed
	assert.Equal(t, 6, starsFor(t, path, "anna"))

	// WHEN: Reset runs with --confirm and the preview's fingerprint
	fp := previewFingerprint(t, "--db", path, "reset", "--period", "2025-03")
	out, err := runOutput(t, "--db", path, "reset", "--period", "2025-03", "--fingerprint", fp, "--confirm")
	require.NoError(t, err)

	// THEN: Both sales are gone
	assert.True(t, out.Committed)
	assert.Equal(t, 0, starsFor(t, path, "anna"))
}

func TestConfirmRequiresFingerprint(t *testing.T) {
	path := seedDB(t)

	cases := [][]string{
		{"reset", "--period", "2025-03"},
		{"bonus", "--period", "2025-03", "--multiplier", "2"},
		{"revert-bonus", "--period", "2025-03"},
		{"award", "--kind", "monthly_sales", "--period", "2025-03"},
	}
	for _, args := range cases {
		t.Run(args[0], func(t *testing.T) {
			// WHEN: --confirm is given without --fingerprint
			out, err := runOutput(t, append([]string{"--db", path}, append(args, "--confirm")...)...)

			// THEN: The preview is printed, nothing is committed
			assert.ErrorIs(t, err, incentive.ErrInvalidInput)
			assert.False(t, out.Committed)
			assert.Equal(t, args[0], out.Command)
			assert.Equal(t, 6, starsFor(t, path, "anna"))
		})
	}
}

func TestBonusCommand(t *testing.T) {
	path := seedDB(t)

	bonus := []string{"--db", path, "bonus", "--period", "2025-03", "--multiplier", "2"}
	fp := previewFingerprint(t, bonus...)
	require.NoError(t, run(t, append(bonus, "--fingerprint", fp, "--confirm")...))
	assert.Equal(t, 12, starsFor(t, path, "anna"))

	revert := []string{"--db", path, "revert-bonus", "--period", "2025-03"}
	fp = previewFingerprint(t, revert...)
	require.NoError(t, run(t, append(revert, "--fingerprint", fp, "--confirm")...))
	assert.Equal(t, 6, starsFor(t, path, "anna"))

	err := run(t, "--db", path, "bonus", "--period", "2025-03", "--multiplier", "abc")
	assert.ErrorIs(t, err, incentive.ErrInvalidMultiplier)
}

func TestCommandErrors(t *testing.T) {
	path := seedDB(t)

	assert.Error(t, run(t, "--db", path, "review", "--kind", "weekly_shifts"), "missing --period")
	assert.ErrorIs(t, run(t, "--db", path, "review", "--kind", "daily_hugs", "--period", "2025-W10"), incentive.ErrUnknownAwardKind)

	stale := "0000000000000000000000000000000000000000000000000000000000000000"
	err := run(t, "--db", path, "reset", "--period", "2025-03", "--fingerprint", stale, "--confirm")
	assert.ErrorIs(t, err, incentive.ErrFingerprintMismatch)
	assert.Equal(t, 6, starsFor(t, path, "anna"))
}
