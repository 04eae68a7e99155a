package incentive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// CHUNKING - Bounded, all-or-nothing batch units
// =============================================================================

// DefaultBatchSize bounds one chunk of a batch job.
const DefaultBatchSize = 200

// ChunkByStaff groups events into chunks of at most size events, keeping
// each staff's events together unless a single staff exceeds size. Keeping
// staff together is what makes "completed staff" meaningful after a
// partial failure.
func ChunkByStaff(events []SaleEvent, size int) [][]SaleEvent {
	if size <= 0 {
		size = DefaultBatchSize
	}
	sorted := make([]SaleEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StaffID < sorted[j].StaffID })

	var chunks [][]SaleEvent
	var cur []SaleEvent
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j].StaffID == sorted[i].StaffID {
			j++
		}
		group := sorted[i:j]
		if len(cur) > 0 && len(cur)+len(group) > size {
			chunks = append(chunks, cur)
			cur = nil
		}
		for len(group) > size {
			chunks = append(chunks, group[:size])
			group = group[size:]
		}
		cur = append(cur, group...)
		i = j
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

// CompletedStaff returns staff whose events all lie in chunks[:done].
func CompletedStaff(chunks [][]SaleEvent, done int) []StaffID {
	finished := make(map[StaffID]bool)
	for i, chunk := range chunks {
		for _, e := range chunk {
			if i < done {
				if _, seen := finished[e.StaffID]; !seen {
					finished[e.StaffID] = true
				}
			} else {
				finished[e.StaffID] = false
			}
		}
	}
	out := make(map[StaffID]bool)
	for id, ok := range finished {
		if ok {
			out[id] = true
		}
	}
	return sortedStaff(out)
}

// =============================================================================
// FINGERPRINTS - Confirm-before-commit
// =============================================================================

// DistributionFingerprint hashes a computed award so a commit can prove it
// matches the preview the operator confirmed.
func DistributionFingerprint(kind, periodKey string, policy TiePolicy, dist []AwardDistribution) string {
	sorted := append([]AwardDistribution(nil), dist...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StaffID < sorted[j].StaffID })

	var sb strings.Builder
	fmt.Fprintf(&sb, "award|%s|%s|%s|", kind, periodKey, policy)
	for _, d := range sorted {
		fmt.Fprintf(&sb, "%s:%d;", d.StaffID, d.Stars)
	}
	return hashString(sb.String())
}

// RewriteFingerprint hashes a bonus (or bonus reversal) rewrite.
func RewriteFingerprint(op string, r BonusResult) string {
	rows := make([]string, len(r.Rewritten))
	for i, e := range r.Rewritten {
		rows[i] = fmt.Sprintf("%s:%s:%d", e.ID, e.StaffID, e.StarsAwarded)
	}
	sort.Strings(rows)

	var sb strings.Builder
	sb.WriteString(op + "|")
	for _, row := range rows {
		sb.WriteString(row + ";")
	}
	return hashString(sb.String())
}

// ResetFingerprint hashes the set of events a reset would delete.
func ResetFingerprint(events []SaleEvent) string {
	rows := make([]string, len(events))
	for i, e := range events {
		rows[i] = fmt.Sprintf("%s:%d", e.ID, e.StarsAwarded)
	}
	sort.Strings(rows)
	return hashString("reset|" + strings.Join(rows, ";"))
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
