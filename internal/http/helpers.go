package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

var errBadID = errors.New("invalid id")

// formatYen formats an amount as "¥1,200" or "-¥400".
func formatYen(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	if neg {
		return "-¥" + b.String()
	}
	return "¥" + b.String()
}

// signedYen always shows the sign, as ledger amounts do.
func signedYen(amount int64) string {
	if amount > 0 {
		return "+" + formatYen(amount)
	}
	return formatYen(amount)
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

// sanitizeInput trims whitespace and removes control characters except
// tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}

// pathInt parses the named path wildcard as a base-10 integer.
func pathInt(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q", errBadID, r.PathValue(name))
	}
	return v, nil
}
