package google

import (
	"testing"

	"callbingo/internal/core"
)

func TestRowFor(t *testing.T) {
	lines := 3
	row := rowFor(core.Transaction{ID: 1735689600000, Date: "2025-01-01", Type: core.Income, Amount: 300, Description: "BINGO達成 (3ライン)", Lines: &lines})
	if len(row) != 6 || row[0] != "1735689600000" || row[2] != "income" || row[3] != int64(300) || row[5] != 3 {
		t.Fatalf("unexpected row %#v", row)
	}

	row = rowFor(core.Transaction{ID: 2, Type: core.Expense, Amount: -400})
	if row[5] != "" {
		t.Fatalf("missing lines should be blank, got %#v", row[5])
	}
}

func TestParseIDColumn(t *testing.T) {
	values := [][]any{{"id"}, {"100"}, {}, {" 200 "}, {"n/a"}, {float64(300)}}
	ids := parseIDColumn(values)
	want := []int64{0, 100, 0, 200, 0, 300}
	if len(ids) != len(want) {
		t.Fatalf("len = %d, want %d", len(ids), len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
	if rowIndexOf(ids, 200) != 3 || rowIndexOf(ids, 999) != -1 {
		t.Errorf("rowIndexOf mismatch")
	}
}
