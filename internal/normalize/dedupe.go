package normalize

import "github.com/caiqy/threatdigest/internal/models"

// DedupePulses collapses repeated pulse IDs within a batch, keeping the
// last occurrence of each. Matches the replace-on-conflict semantics of the
// writer: within one fetch, later records win.
func DedupePulses(rows []models.Pulse) []models.Pulse {
	return dedupeLast(rows, func(p models.Pulse) string { return p.ID })
}

// DedupeIndicators collapses repeated indicator IDs within a batch, keeping
// the last occurrence of each.
func DedupeIndicators(rows []models.Indicator) []models.Indicator {
	return dedupeLast(rows, func(i models.Indicator) int64 { return i.ID })
}

// dedupeLast keeps the last row per key. Surviving rows stay in the order
// of their last occurrence.
func dedupeLast[T any, K comparable](rows []T, key func(T) K) []T {
	if len(rows) == 0 {
		return rows
	}
	seen := make(map[K]struct{}, len(rows))
	out := make([]T, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		k := key(rows[i])
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, rows[i])
	}
	// Reverse back into batch order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
