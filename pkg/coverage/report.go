// Copyright 2025 falsify project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package coverage

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const barWidth = 30

type reportRow struct {
	label string
	count int64
	pct   float64
}

// Report renders the accumulated distribution as a fixed-width table:
// left-aligned label, right-aligned percentage (one decimal), right-aligned
// (Nx) count and a bar proportional to the percentage, columns separated by
// exactly two spaces. Single-label rows are sorted by descending count,
// followed by a Combinations sub-table for multi-label matches. A
// zero-count single row already implied by a reported combination row is
// suppressed.
func (t *Tracker[T]) Report() string {
	var singles, combos []reportRow
	for _, l := range t.labels {
		if t.alone(l.Name) == 0 && t.inCombination(l.Name) {
			continue
		}
		singles = append(singles, t.row(l.Name, t.Count(l.Name)))
	}
	for _, b := range t.buckets {
		if len(b.names) < 2 || b.count == 0 {
			continue
		}
		combos = append(combos, t.row(strings.Join(b.names, ", "), b.count))
	}
	sortRows(singles)
	sortRows(combos)

	all := append(append([]reportRow{}, singles...), combos...)
	labelW, pctW, countW := 0, 0, 0
	for _, r := range all {
		labelW = max(labelW, len(r.label))
		pctW = max(pctW, len(pctText(r.pct)))
		countW = max(countW, len(countText(r.count)))
	}

	var sb strings.Builder
	for _, r := range singles {
		writeRow(&sb, r, labelW, pctW, countW)
	}
	if len(combos) > 0 {
		sb.WriteString("Combinations:\n")
		for _, r := range combos {
			writeRow(&sb, r, labelW, pctW, countW)
		}
	}
	return sb.String()
}

func (t *Tracker[T]) row(label string, count int64) reportRow {
	pct := 0.0
	if t.total > 0 {
		pct = 100 * float64(count) / float64(t.total)
	}
	return reportRow{label: label, count: count, pct: pct}
}

func sortRows(rows []reportRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].label < rows[j].label
	})
}

func pctText(pct float64) string {
	return fmt.Sprintf("%.1f%%", pct)
}

func countText(count int64) string {
	return fmt.Sprintf("(%vx)", count)
}

func bar(pct float64) string {
	filled := int(math.Round(pct * barWidth / 100))
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

func writeRow(sb *strings.Builder, r reportRow, labelW, pctW, countW int) {
	fmt.Fprintf(sb, "%-*s  %*s  %*s  %s\n",
		labelW, r.label, pctW, pctText(r.pct), countW, countText(r.count), bar(r.pct))
}
