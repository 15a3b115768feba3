// Package core provides the board, ledger and goal domain.
//
// This file contains helpers for turning user supplied text into counts.
package core

import (
	"strconv"
	"strings"
)

// ParseCount parses a whole number typed by the user.
//
// Surrounding whitespace is ignored and a leading '+' is accepted.
// Anything that is not a base-10 integer reports ok=false so that callers
// can ignore the input or clamp it.
//
// Examples:
//
//	ParseCount("12")   -> 12, true
//	ParseCount(" 7 ")  -> 7, true
//	ParseCount("-3")   -> -3, true
//	ParseCount("abc")  -> 0, false
func ParseCount(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseLines parses the number of completed lines for a bingo payout.
func ParseLines(s string) (int, error) {
	n, ok := ParseCount(s)
	if !ok || n < 0 || n > MaxLines {
		return 0, ErrInvalidLines
	}
	return n, nil
}
