package roster

import (
	"strings"

	"github.com/shopspring/decimal"

	"paylog/internal/core"
)

// Entry is a validated roster row.
type Entry struct {
	ID        int64
	FirstName string
	LastName  string
}

// Normalize validates raw rows. Rows whose id is not a positive integer or
// whose names are blank are dropped. Spreadsheet ids such as "7.0" are
// accepted.
func Normalize(rows []RawRow) ([]Entry, error) {
	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		id, ok := parseID(r.ID)
		if !ok {
			continue
		}
		first, last := strings.TrimSpace(r.FirstName), strings.TrimSpace(r.LastName)
		if first == "" || last == "" {
			continue
		}
		entries = append(entries, Entry{ID: id, FirstName: first, LastName: last})
	}
	if len(entries) == 0 {
		return nil, core.ErrNoValidMembers
	}
	return entries, nil
}

func parseID(s string) (int64, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsInteger() || !d.IsPositive() {
		return 0, false
	}
	if d.GreaterThan(decimal.NewFromInt(1<<53 - 1)) {
		return 0, false
	}
	return d.IntPart(), true
}

// IDs returns the entry ids in order.
func IDs(entries []Entry) []int64 {
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
