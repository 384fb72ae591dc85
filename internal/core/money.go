// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from user input
// and converting between cents and decimal string representations.
package core

import (
	"math"
	"strconv"
	"strings"
)

// maxSafeWhole is the largest whole-unit value that can be multiplied by 100
// without overflowing int64.
const maxSafeWhole = (1<<63 - 1) / 100

// MaxAmountCents is the largest magnitude a transaction amount or a balance
// may have. It matches the NUMERIC(14, 2) columns of the postgres schema.
const MaxAmountCents int64 = 99_999_999_999_999

// ParseToCents converts user-entered currency text to signed cents.
//
// Every character other than digits, '.' and '-' is discarded first, so
// "$1,234.50" and " 1234.5 " both parse. A leading '-' makes the value
// negative. A missing fractional part counts as ".00" and extra fractional
// digits are truncated, never rounded.
//
// Examples:
//
//	ParseToCents("12.3")   -> 1230, nil
//	ParseToCents("12.345") -> 1234, nil
//	ParseToCents("-$4")    -> -400, nil
//	ParseToCents("abc")    -> 0, ErrInvalidAmount
func ParseToCents(s string) (int64, error) {
	normalized := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	if normalized == "" {
		return 0, ErrInvalidAmount
	}

	negative := strings.HasPrefix(normalized, "-")
	if negative {
		normalized = normalized[1:]
	}

	wholePart, fracPart, _ := strings.Cut(normalized, ".")
	if wholePart == "" && fracPart == "" {
		return 0, ErrInvalidAmount
	}
	if wholePart == "" {
		wholePart = "0"
	}
	if !allDigits(wholePart) || !allDigits(fracPart) {
		return 0, ErrInvalidAmount
	}

	whole, err := strconv.ParseInt(wholePart, 10, 64)
	if err != nil || whole > maxSafeWhole {
		return 0, ErrInvalidAmount
	}

	// Pad then truncate: "3" -> "30", "345" -> "34".
	frac := (fracPart + "00")[:2]
	fracCents, _ := strconv.ParseInt(frac, 10, 64)

	cents := whole*100 + fracCents
	if negative {
		cents = -cents
	}
	return cents, nil
}

// FormatCents renders cents as a plain decimal string with two fractional
// digits, e.g. -1230 -> "-12.30". This is the storage and wire form.
func FormatCents(cents int64) string {
	neg := cents < 0
	abs := uint64(cents)
	if neg {
		abs = uint64(-cents)
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(strconv.FormatUint(abs/100, 10))
	b.WriteByte('.')
	rem := abs % 100
	if rem < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatUint(rem, 10))
	return b.String()
}

// FormatDollars formats cents for display, e.g. 1230 -> "$12.30" and
// -1230 -> "-$12.30".
func FormatDollars(cents int64) string {
	if cents < 0 {
		return "-$" + FormatCents(cents)[1:]
	}
	return "$" + FormatCents(cents)
}

// Validate reports whether the amount is usable as a transaction magnitude.
func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > MaxAmountCents {
		return ErrInvalidAmount
	}
	return nil
}

// AddCents returns balance+delta, or ErrBalanceOutOfRange when the result
// overflows int64 or its magnitude exceeds MaxAmountCents.
func AddCents(balance, delta int64) (int64, error) {
	if (delta > 0 && balance > math.MaxInt64-delta) || (delta < 0 && balance < math.MinInt64-delta) {
		return 0, ErrBalanceOutOfRange
	}
	sum := balance + delta
	if sum > MaxAmountCents || sum < -MaxAmountCents {
		return 0, ErrBalanceOutOfRange
	}
	return sum, nil
}

// String implements fmt.Stringer using the display form.
func (m Money) String() string {
	return FormatDollars(m.Cents)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
