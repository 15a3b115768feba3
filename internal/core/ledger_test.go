package core

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"
)

func income(id, amount int64) Transaction {
	return Transaction{ID: id, Date: "2025-01-01", Type: Income, Amount: amount, Description: "BINGO"}
}

func expense(id, amount int64) Transaction {
	return Transaction{ID: id, Date: "2025-01-01", Type: Expense, Amount: amount, Description: "penalty"}
}

func TestStandingsScenarios(t *testing.T) {
	initial := DefaultInitialFunds()
	cases := []struct {
		name string
		log  Ledger
		want Standings
	}{
		{
			name: "empty",
			log:  nil,
			want: Standings{MainFunds: 4900, Payee1Funds: 4900, Payee2Funds: 5000},
		},
		{
			name: "one income",
			log:  Ledger{income(1, 300)},
			want: Standings{MainNet: 300, Payee1Net: -150, Payee2Net: -150, MainFunds: 5200, Payee1Funds: 4750, Payee2Funds: 4850},
		},
		{
			name: "one penalty",
			log:  Ledger{expense(1, -400)},
			want: Standings{MainNet: -400, Payee1Net: 200, Payee2Net: 200, MainFunds: 4500, Payee1Funds: 5100, Payee2Funds: 5200},
		},
		{
			name: "mixed",
			log:  Ledger{income(3, 800), expense(2, -400), income(1, 100)},
			want: Standings{MainNet: 500, Payee1Net: -250, Payee2Net: -250, MainFunds: 5400, Payee1Funds: 4650, Payee2Funds: 4750},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeStandings(tc.log, initial)
			if got != tc.want {
				t.Errorf("ComputeStandings = %+v, want %+v", got, tc.want)
			}
			if again := ComputeStandings(tc.log, initial); again != got {
				t.Errorf("standings not idempotent: %+v != %+v", again, got)
			}
		})
	}
}

func TestStandingsMainNetIsSum(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for run := 0; run < 50; run++ {
		var log Ledger
		var sum int64
		n := rng.IntN(20)
		for i := 0; i < n; i++ {
			var tx Transaction
			if rng.IntN(2) == 0 {
				tx = income(int64(i+1), int64(rng.IntN(9))*100)
			} else {
				tx = expense(int64(i+1), -400)
			}
			sum += tx.Amount
			log = append(Ledger{tx}, log...)
		}
		s := ComputeStandings(log, InitialFunds{})
		if s.MainNet != sum {
			t.Fatalf("MainNet=%d, want %d", s.MainNet, sum)
		}
		if s.Payee1Net != s.Payee2Net || s.Payee1Net != -sum/2 {
			t.Fatalf("payee nets %d/%d, want %d", s.Payee1Net, s.Payee2Net, -sum/2)
		}
	}
}

func TestAddTransaction(t *testing.T) {
	var log Ledger
	log, err := AddTransaction(log, income(10, 100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log2, err := AddTransaction(log, expense(20, -400))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(log) != 1 || len(log2) != 2 || log2[0].ID != 20 || log2[1].ID != 10 {
		t.Fatalf("expected newest first, got %+v", log2)
	}

	if _, err := AddTransaction(log2, income(20, 100)); !errors.Is(err, ErrNonMonotonicID) {
		t.Fatalf("expected ErrNonMonotonicID, got %v", err)
	}
	if _, err := AddTransaction(log2, income(30, 101)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestRemoveTransaction(t *testing.T) {
	log := Ledger{income(3, 100), expense(2, -400), income(1, 200)}
	out, ok := RemoveTransaction(log, 2)
	if !ok || len(out) != 2 || out[0].ID != 3 || out[1].ID != 1 {
		t.Fatalf("unexpected removal: ok=%v out=%+v", ok, out)
	}
	if len(log) != 3 {
		t.Fatalf("original log changed")
	}
	if _, ok := RemoveTransaction(log, 99); ok {
		t.Fatalf("expected not found")
	}
}

func TestRunningBalance(t *testing.T) {
	// Stored newest first, but one entry is out of place to prove the
	// balance replays in id order rather than storage order.
	log := Ledger{income(4, 300), income(2, 100), expense(3, -400), income(1, 200)}
	want := map[int64]int64{1: 200, 2: 300, 3: -100, 4: 200}
	for i, tx := range log {
		if got := RunningBalance(log, i); got != want[tx.ID] {
			t.Errorf("balance at id %d = %d, want %d", tx.ID, got, want[tx.ID])
		}
	}
	if RunningBalance(log, -1) != 0 || RunningBalance(log, 4) != 0 {
		t.Errorf("out of range index should yield 0")
	}

	hist := History(log)
	for i, h := range hist {
		if h.ID != log[i].ID {
			t.Fatalf("history reordered: %d at %d", h.ID, i)
		}
		if h.Balance != RunningBalance(log, i) {
			t.Errorf("history balance for id %d = %d, want %d", h.ID, h.Balance, RunningBalance(log, i))
		}
	}
}

func TestNextID(t *testing.T) {
	now := time.UnixMilli(1_000)
	if id := (Ledger{}).NextID(now); id != 1_000 {
		t.Fatalf("expected timestamp id, got %d", id)
	}
	log := Ledger{income(5_000, 100)}
	if id := log.NextID(now); id != 5_001 {
		t.Fatalf("expected id after max, got %d", id)
	}
}

func TestNewEntries(t *testing.T) {
	tx, err := NewBingoIncome("2025-03-01", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Amount != 300 || tx.Type != Income || tx.Lines == nil || *tx.Lines != 3 {
		t.Fatalf("unexpected bingo income: %+v", tx)
	}
	if tx.Description != "BINGO達成 (3ライン)" {
		t.Fatalf("unexpected description %q", tx.Description)
	}
	if _, err := NewBingoIncome("2025-03-01", 9); !errors.Is(err, ErrInvalidLines) {
		t.Fatalf("expected ErrInvalidLines, got %v", err)
	}
	if _, err := NewBingoIncome("bad", 1); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}

	p, err := NewPenalty("2025-03-01", DefaultPlayers())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Amount != -400 || p.Type != Expense || p.Lines != nil {
		t.Fatalf("unexpected penalty: %+v", p)
	}
	if p.Description != "マス0個 / ペナルティ (立石, 下田へ)" {
		t.Fatalf("unexpected description %q", p.Description)
	}
}
