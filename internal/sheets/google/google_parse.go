package google

import (
	"fmt"
	"strconv"
	"strings"

	"callbingo/internal/core"
)

// Header is written to an empty sheet before the first entry.
var Header = []any{"id", "date", "type", "amount", "description", "lines"}

// rowFor lays out one entry as [id, date, type, amount, description, lines].
func rowFor(tx core.Transaction) []any {
	lines := any("")
	if tx.Lines != nil {
		lines = *tx.Lines
	}
	return []any{
		strconv.FormatInt(tx.ID, 10),
		tx.Date,
		string(tx.Type),
		tx.Amount,
		tx.Description,
		lines,
	}
}

// parseIDColumn reads column A values. The returned slice is indexed by
// sheet row (0-based); rows without a numeric id hold 0.
func parseIDColumn(values [][]any) []int64 {
	ids := make([]int64, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(row[0]))
		if id, err := strconv.ParseInt(s, 10, 64); err == nil && id > 0 {
			ids[i] = id
		}
	}
	return ids
}

// rowIndexOf returns the 0-based sheet row holding id, or -1.
func rowIndexOf(ids []int64, id int64) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
