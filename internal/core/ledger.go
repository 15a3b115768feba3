package core

import (
	"fmt"
	"sort"
	"time"
)

const (
	// LineReward is paid to the main party for every completed line.
	LineReward int64 = 100
	// PenaltyAmount is charged when a board ends without a single mark.
	PenaltyAmount int64 = -400
)

// HistoryEntry is a ledger row with the chronological running balance as
// of that row.
type HistoryEntry struct {
	Transaction
	Balance int64 `json:"balance"`
}

// NewBingoIncome builds the income entry for completing lines bingo lines.
// The two opponents split the payout.
func NewBingoIncome(date string, lines int) (Transaction, error) {
	if lines < 0 || lines > MaxLines {
		return Transaction{}, ErrInvalidLines
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return Transaction{}, ErrInvalidDate
	}
	n := lines
	return Transaction{
		Date:        date,
		Type:        Income,
		Amount:      int64(lines) * LineReward,
		Description: fmt.Sprintf("BINGO達成 (%dライン)", lines),
		Lines:       &n,
	}, nil
}

// NewPenalty builds the expense entry paid to both opponents.
func NewPenalty(date string, players Players) (Transaction, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return Transaction{}, ErrInvalidDate
	}
	return Transaction{
		Date:        date,
		Type:        Expense,
		Amount:      PenaltyAmount,
		Description: fmt.Sprintf("マス0個 / ペナルティ (%s, %sへ)", players.Opponent1, players.Opponent2),
	}, nil
}

// MaxID returns the largest id in the log, or 0 for an empty log.
func (l Ledger) MaxID() int64 {
	var m int64
	for _, tx := range l {
		if tx.ID > m {
			m = tx.ID
		}
	}
	return m
}

// NextID returns a creation-timestamp id that is still strictly greater
// than every id already in the log.
func (l Ledger) NextID(now time.Time) int64 {
	return max(now.UnixMilli(), l.MaxID()+1)
}

// AddTransaction returns a new log with tx prepended.
func AddTransaction(log Ledger, tx Transaction) (Ledger, error) {
	if err := tx.Validate(); err != nil {
		return log, err
	}
	if len(log) > 0 && tx.ID <= log.MaxID() {
		return log, ErrNonMonotonicID
	}
	out := make(Ledger, 0, len(log)+1)
	out = append(out, tx)
	out = append(out, log...)
	return out, nil
}

// RemoveTransaction returns a new log without the entry id.
func RemoveTransaction(log Ledger, id int64) (Ledger, bool) {
	out := make(Ledger, 0, len(log))
	found := false
	for _, tx := range log {
		if tx.ID == id {
			found = true
			continue
		}
		out = append(out, tx)
	}
	return out, found
}

// chronological returns a copy of the log sorted ascending by id.
func (l Ledger) chronological() Ledger {
	out := append(Ledger(nil), l...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RunningBalance returns the sum of amounts, in id order, up to and
// including the entry shown at display index idx. Out of range indices
// yield 0.
func RunningBalance(log Ledger, idx int) int64 {
	if idx < 0 || idx >= len(log) {
		return 0
	}
	target := log[idx].ID
	var balance int64
	for _, tx := range log.chronological() {
		balance += tx.Amount
		if tx.ID == target {
			break
		}
	}
	return balance
}

// History pairs every entry, in display order, with its running balance.
// It gives the same balances as calling RunningBalance for each index.
func History(log Ledger) []HistoryEntry {
	balances := make(map[int64]int64, len(log))
	var running int64
	for _, tx := range log.chronological() {
		running += tx.Amount
		if _, ok := balances[tx.ID]; !ok {
			balances[tx.ID] = running
		}
	}
	out := make([]HistoryEntry, len(log))
	for i, tx := range log {
		out[i] = HistoryEntry{Transaction: tx, Balance: balances[tx.ID]}
	}
	return out
}

// ComputeStandings folds the log under the fixed three-way split: the main
// party takes every amount, and each payee takes the opposite of half of
// it. Halves of odd amounts truncate toward zero.
func ComputeStandings(log Ledger, initial InitialFunds) Standings {
	var s Standings
	for _, tx := range log {
		s.MainNet += tx.Amount
		switch tx.Type {
		case Income:
			half := tx.Amount / 2
			s.Payee1Net -= half
			s.Payee2Net -= half
		case Expense:
			half := abs(tx.Amount) / 2
			s.Payee1Net += half
			s.Payee2Net += half
		}
	}
	s.MainFunds = initial.Me + s.MainNet
	s.Payee1Funds = initial.Opponent1 + s.Payee1Net
	s.Payee2Funds = initial.Opponent2 + s.Payee2Net
	return s
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
