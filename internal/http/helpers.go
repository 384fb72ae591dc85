package http

import (
	"paylog/internal/core"
)

type memberView struct {
	ID             int64  `json:"id"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	DisplayName    string `json:"displayName"`
	Balance        string `json:"balance"`
	BalanceDisplay string `json:"balanceDisplay"`
}

type transactionView struct {
	ID            int64  `json:"id"`
	MemberID      int64  `json:"memberId"`
	Date          string `json:"date"`
	Description   string `json:"description"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	AmountDisplay string `json:"amountDisplay"`
}

func newMemberView(m core.Member, padLength int) memberView {
	return memberView{
		ID:             m.ID,
		FirstName:      m.FirstName,
		LastName:       m.LastName,
		DisplayName:    m.DisplayName(padLength),
		Balance:        core.FormatCents(m.Balance.Cents),
		BalanceDisplay: core.FormatDollars(m.Balance.Cents),
	}
}

func newTransactionView(t core.Transaction) transactionView {
	kind := core.Credit
	if t.Amount.Cents < 0 {
		kind = core.Charge
	}
	return transactionView{
		ID:            t.ID,
		MemberID:      t.MemberID,
		Date:          t.Date.String(),
		Description:   t.Description,
		Type:          string(kind),
		Amount:        core.FormatCents(t.Amount.Cents),
		AmountDisplay: core.FormatDollars(t.Amount.Cents),
	}
}
