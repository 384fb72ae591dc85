// Package ledger owns every balance mutation. Each operation runs inside a
// single store transaction so a member's balance always equals the sum of
// its transactions once the operation commits.
package ledger

import (
	"context"
	"errors"
	"math"
	"strings"
	"unicode"

	"paylog/internal/core"
	"paylog/internal/log"
)

// ApplyRequest is the raw user input for one charge or credit.
type ApplyRequest struct {
	MemberID    int64
	Date        string
	Description string
	Amount      string
	Kind        string
}

// Result reports the state of a member after a committed mutation.
type Result struct {
	MemberID      int64
	TransactionID int64
	Balance       core.Money
}

// MemberList is the roster with the width used to pad display ids.
type MemberList struct {
	Members   []core.Member
	PadLength int
}

// MemberDetail is one member with its transactions, newest first.
type MemberDetail struct {
	Member       core.Member
	Transactions []core.Transaction
	PadLength    int
}

type Engine struct {
	store    core.Store
	notifier core.Notifier
	logger   *log.StructuredLogger
}

// NewEngine wires the engine. A nil notifier disables broadcasts.
func NewEngine(store core.Store, notifier core.Notifier, logger *log.Logger) *Engine {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Engine{
		store:    store,
		notifier: notifier,
		logger:   log.NewStructuredLogger(logger.WithComponent(log.ComponentLedger)),
	}
}

type validApply struct {
	memberID    int64
	date        core.Date
	description string
	signed      int64
}

func validateApply(req ApplyRequest) (validApply, error) {
	if err := core.ValidateMemberID(req.MemberID); err != nil {
		return validApply{}, err
	}
	cents, err := core.ParseToCents(req.Amount)
	if err != nil {
		return validApply{}, err
	}
	if err := (core.Money{Cents: cents}).Validate(); err != nil {
		return validApply{}, err
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return validApply{}, err
	}
	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		return validApply{}, err
	}
	desc := SanitizeDescription(req.Description)
	if err := core.ValidateDescription(desc); err != nil {
		return validApply{}, err
	}
	return validApply{
		memberID:    req.MemberID,
		date:        date,
		description: desc,
		signed:      kind.Sign(cents),
	}, nil
}

// Apply records a charge or credit and moves the balance by the same amount.
func (e *Engine) Apply(ctx context.Context, req ApplyRequest) (Result, error) {
	v, err := validateApply(req)
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = e.store.WithinTx(ctx, func(tx core.StoreTx) error {
		m, err := tx.LockMember(ctx, v.memberID)
		if err != nil {
			return err
		}
		cents, err := core.AddCents(m.Balance.Cents, v.signed)
		if err != nil {
			return err
		}
		id, err := tx.InsertTransaction(ctx, core.Transaction{
			MemberID:    v.memberID,
			Date:        v.date,
			Description: v.description,
			Amount:      core.Money{Cents: v.signed},
		})
		if err != nil {
			return err
		}
		balance := core.Money{Cents: cents}
		if err := tx.UpdateBalance(ctx, v.memberID, balance); err != nil {
			return err
		}
		res = Result{MemberID: v.memberID, TransactionID: id, Balance: balance}
		return nil
	})
	if err != nil {
		return Result{}, e.fail(ctx, log.OpApply, v.memberID, err)
	}

	e.logger.LogBalanceChanged(ctx, log.OpApply, res.MemberID, res.TransactionID, v.signed, res.Balance.Cents)
	e.notifier.Publish(ctx, core.MemberUpdated(res.MemberID))
	return res, nil
}

// UndoLast removes the member's most recent transaction and reverses its
// effect on the balance. TransactionID in the result is the removed one.
func (e *Engine) UndoLast(ctx context.Context, memberID int64) (Result, error) {
	if err := core.ValidateMemberID(memberID); err != nil {
		return Result{}, err
	}

	var (
		res    Result
		amount int64
	)
	err := e.store.WithinTx(ctx, func(tx core.StoreTx) error {
		m, err := tx.LockMember(ctx, memberID)
		if err != nil {
			return err
		}
		last, err := tx.LastTransaction(ctx, memberID)
		if err != nil {
			return err
		}
		if last.Amount.Cents == math.MinInt64 {
			return core.ErrBalanceOutOfRange
		}
		cents, err := core.AddCents(m.Balance.Cents, -last.Amount.Cents)
		if err != nil {
			return err
		}
		if err := tx.DeleteTransaction(ctx, last.ID); err != nil {
			return err
		}
		balance := core.Money{Cents: cents}
		if err := tx.UpdateBalance(ctx, memberID, balance); err != nil {
			return err
		}
		amount = last.Amount.Cents
		res = Result{MemberID: memberID, TransactionID: last.ID, Balance: balance}
		return nil
	})
	if err != nil {
		return Result{}, e.fail(ctx, log.OpUndo, memberID, err)
	}

	e.logger.LogBalanceChanged(ctx, log.OpUndo, res.MemberID, res.TransactionID, -amount, res.Balance.Cents)
	e.notifier.Publish(ctx, core.MemberUpdated(memberID))
	return res, nil
}

// Members returns every member ordered by id.
func (e *Engine) Members(ctx context.Context) (MemberList, error) {
	members, err := e.store.ListMembers(ctx)
	if err != nil {
		return MemberList{}, core.StorageFailure("list members", err)
	}
	var maxID int64
	for _, m := range members {
		maxID = max(maxID, m.ID)
	}
	return MemberList{Members: members, PadLength: core.PadLength(maxID)}, nil
}

// Member returns one member and its history.
func (e *Engine) Member(ctx context.Context, id int64) (MemberDetail, error) {
	if err := core.ValidateMemberID(id); err != nil {
		return MemberDetail{}, err
	}
	m, err := e.store.GetMember(ctx, id)
	if err != nil {
		return MemberDetail{}, classify("get member", err)
	}
	txs, err := e.store.ListTransactions(ctx, id)
	if err != nil {
		return MemberDetail{}, core.StorageFailure("list transactions", err)
	}
	maxID, err := e.store.MaxMemberID(ctx)
	if err != nil {
		return MemberDetail{}, core.StorageFailure("max member id", err)
	}
	return MemberDetail{Member: m, Transactions: txs, PadLength: core.PadLength(maxID)}, nil
}

func (e *Engine) fail(ctx context.Context, op string, memberID int64, err error) error {
	err = classify(op, err)
	if errors.Is(err, core.ErrStorage) {
		e.logger.LogError(ctx, "Ledger transaction rolled back", err, op,
			log.NewFields().WithMember(memberID))
	}
	return err
}

// classify passes domain errors through and marks everything else as a
// storage failure.
func classify(op string, err error) error {
	if errors.Is(err, core.ErrValidation) || errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrStorage) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return core.StorageFailure(op, err)
}

// SanitizeDescription drops control characters and surrounding whitespace.
func SanitizeDescription(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, core.ChangeEvent) {}
