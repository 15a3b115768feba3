package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// GridSize is the number of cells on a 3x3 board.
	GridSize = 9
	// CenterIndex is the fixed position of the center cell.
	CenterIndex = 4
)

const (
	Income  TxType = "income"
	Expense TxType = "expense"
)

const dateLayout = "2006-01-02"

const (
	MaxDescriptionLength = 200
	// MaxNameLength keeps the penalty description, which names both
	// opponents, within MaxDescriptionLength.
	MaxNameLength = 40
)

type (
	TxType string

	Cell struct {
		ID           int    `json:"id"`
		Text         string `json:"text"`
		IsCenter     bool   `json:"isCenter"`
		CurrentCount int    `json:"currentCount"`
		TargetCount  int    `json:"targetCount"`
	}

	// Grid is a row-major 3x3 board. It is a value type, so every
	// operation returns a fresh copy instead of mutating the caller's grid.
	Grid [GridSize]Cell

	// Marked holds the derived satisfied state of every cell.
	Marked [GridSize]bool

	// Line is an index triple over a Grid.
	Line [3]int

	Transaction struct {
		ID          int64  `json:"id"`
		Date        string `json:"date"`
		Type        TxType `json:"type"`
		Amount      int64  `json:"amount"`
		Description string `json:"description"`
		Lines       *int   `json:"lines,omitempty"`
	}

	// Ledger is the transaction log, stored newest first.
	Ledger []Transaction

	Players struct {
		Me        string `json:"me"`
		Opponent1 string `json:"opponent1"`
		Opponent2 string `json:"opponent2"`
	}

	InitialFunds struct {
		Me        int64 `json:"me" yaml:"me"`
		Opponent1 int64 `json:"opponent1" yaml:"opponent1"`
		Opponent2 int64 `json:"opponent2" yaml:"opponent2"`
	}

	Standings struct {
		MainNet     int64 `json:"mainNet"`
		Payee1Net   int64 `json:"payee1Net"`
		Payee2Net   int64 `json:"payee2Net"`
		MainFunds   int64 `json:"mainFunds"`
		Payee1Funds int64 `json:"payee1Funds"`
		Payee2Funds int64 `json:"payee2Funds"`
	}

	Goal struct {
		Year         int
		Month        int // 1-12
		TargetCount  int
		CurrentCount int
	}
)

var (
	ErrUnknownCell         = errors.New("unknown cell")
	ErrInvalidLines        = errors.New("invalid line count")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidDate         = errors.New("invalid date")
	ErrEmptyDescription    = errors.New("empty description")
	ErrUnknownType         = errors.New("unknown transaction type")
	ErrNonMonotonicID      = errors.New("transaction id must be greater than every existing id")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUnknownPlayer       = errors.New("unknown player")
	ErrDescriptionTooLong  = errors.New("description too long (max 200 characters)")
	ErrNameTooLong         = errors.New("player name too long (max 40 characters)")
)

// DefaultInitialFunds are the starting wallets of the three parties.
func DefaultInitialFunds() InitialFunds {
	return InitialFunds{Me: 4900, Opponent1: 4900, Opponent2: 5000}
}

func DefaultPlayers() Players {
	return Players{Me: "萩尾", Opponent1: "立石", Opponent2: "下田"}
}

// WithName returns a copy of p with the named slot replaced.
// Valid keys are "me", "opponent1" and "opponent2".
func (p Players) WithName(key, name string) (Players, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxNameLength {
		return p, ErrNameTooLong
	}
	switch key {
	case "me":
		p.Me = name
	case "opponent1":
		p.Opponent1 = name
	case "opponent2":
		p.Opponent2 = name
	default:
		return p, ErrUnknownPlayer
	}
	return p, nil
}

// Satisfied reports whether the cell reached its target.
func (c Cell) Satisfied() bool {
	return c.CurrentCount >= c.TargetCount
}

func (t TxType) Valid() bool {
	return t == Income || t == Expense
}

// Validate checks a single ledger entry. Amounts must be even so that
// the two payees always receive an exact half.
func (tx Transaction) Validate() error {
	if !tx.Type.Valid() {
		return ErrUnknownType
	}
	if _, err := time.Parse(dateLayout, tx.Date); err != nil {
		return ErrInvalidDate
	}
	switch {
	case tx.Type == Income && tx.Amount < 0:
		return ErrInvalidAmount
	case tx.Type == Expense && tx.Amount >= 0:
		return ErrInvalidAmount
	case tx.Amount%2 != 0:
		return ErrInvalidAmount
	}
	if len(strings.TrimSpace(tx.Description)) == 0 {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(tx.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if tx.Lines != nil && (*tx.Lines < 0 || *tx.Lines > MaxLines) {
		return ErrInvalidLines
	}
	return nil
}

// FormatDate renders t the way ledger dates are stored.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
