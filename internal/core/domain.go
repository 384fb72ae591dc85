package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Charge Kind = "charge"
	Credit Kind = "credit"

	// DateLayout is the only accepted calendar date form.
	DateLayout = "2006-01-02"

	// MaxDescriptionLength bounds free-text transaction descriptions.
	MaxDescriptionLength = 200
)

type (
	// Kind is the direction of a transaction.
	Kind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Member struct {
		ID        int64
		FirstName string
		LastName  string
		Balance   Money
	}

	Transaction struct {
		ID          int64
		MemberID    int64
		Date        Date
		Description string
		Amount      Money // signed: credits positive, charges negative
	}
)

// ParseKind maps user input to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Charge:
		return Charge, nil
	case Credit:
		return Credit, nil
	default:
		return "", ErrInvalidKind
	}
}

// Sign applies the kind's direction to a positive magnitude.
func (k Kind) Sign(cents int64) int64 {
	if k == Credit {
		return cents
	}
	return -cents
}

// ParseDate parses a YYYY-MM-DD calendar date. Out of range values such as
// 2025-02-30 are rejected rather than normalized.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String returns the date in DateLayout form.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// ValidateMemberID rejects ids that cannot name a stored member.
func ValidateMemberID(id int64) error {
	if id <= 0 {
		return ErrInvalidMemberID
	}
	return nil
}

// ParseMemberID parses a path or form value into a member id.
func ParseMemberID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, ErrInvalidMemberID
	}
	if err := ValidateMemberID(id); err != nil {
		return 0, err
	}
	return id, nil
}

// ValidateDescription enforces the description length limit.
func ValidateDescription(desc string) error {
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

// DisplayName renders "007 – First Last" with the id zero padded to padLength.
func (m Member) DisplayName(padLength int) string {
	return fmt.Sprintf("%0*d – %s %s", padLength, m.ID, m.FirstName, m.LastName)
}

// PadLength returns the digit count of the largest member id, minimum 1.
func PadLength(maxID int64) int {
	if maxID <= 0 {
		return 1
	}
	return len(strconv.FormatInt(maxID, 10))
}
