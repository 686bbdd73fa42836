package store

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/raysh454/stockscan/internal/model"
)

// RankChanges describes how the ranked code list moved between two scans.
type RankChanges struct {
	Entered []string `json:"entered"`
	Left    []string `json:"left"`
	Moved   []string `json:"moved"`
}

// Empty reports whether nothing changed.
func (c RankChanges) Empty() bool {
	return len(c.Entered) == 0 && len(c.Left) == 0 && len(c.Moved) == 0
}

// CompareRanks diffs the ordered stock codes of prev and next line by line.
// Codes only inserted are Entered, codes only deleted are Left, and codes that
// were deleted at one rank and inserted at another are Moved. Rows without a
// code are ignored.
func CompareRanks(prev, next []model.StockData) RankChanges {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(joinCodes(prev), joinCodes(next))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	inserted := make(map[string]bool)
	deleted := make(map[string]bool)
	var insertOrder, deleteOrder []string
	for _, d := range diffs {
		for _, code := range strings.Split(strings.TrimRight(d.Text, "\n"), "\n") {
			if code == "" {
				continue
			}
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				if !inserted[code] {
					inserted[code] = true
					insertOrder = append(insertOrder, code)
				}
			case diffmatchpatch.DiffDelete:
				if !deleted[code] {
					deleted[code] = true
					deleteOrder = append(deleteOrder, code)
				}
			}
		}
	}

	var out RankChanges
	for _, code := range insertOrder {
		if deleted[code] {
			out.Moved = append(out.Moved, code)
		} else {
			out.Entered = append(out.Entered, code)
		}
	}
	for _, code := range deleteOrder {
		if !inserted[code] {
			out.Left = append(out.Left, code)
		}
	}
	return out
}

func joinCodes(rows []model.StockData) string {
	var b strings.Builder
	for _, r := range rows {
		if code := r.Code(); code != "" {
			b.WriteString(code)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
