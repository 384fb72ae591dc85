package core

import "context"

// Ports for outbound adapters.
type (
	// Store is the persistent ledger. Reads outside WithinTx see committed
	// state only.
	Store interface {
		// WithinTx runs fn in a single atomic unit. A non-nil error from fn,
		// or a failed commit, rolls everything back.
		WithinTx(ctx context.Context, fn func(tx StoreTx) error) error

		ListMembers(ctx context.Context) ([]Member, error)
		// GetMember returns ErrMemberNotFound when the id is absent.
		GetMember(ctx context.Context, id int64) (Member, error)
		// ListTransactions returns a member's transactions, newest id first.
		ListTransactions(ctx context.Context, memberID int64) ([]Transaction, error)
		MaxMemberID(ctx context.Context) (int64, error)
		// CountMembersNotIn counts stored members whose id is not in ids.
		CountMembersNotIn(ctx context.Context, ids []int64) (int, error)

		// AdminPassword returns the stored credential or "" when none is set.
		AdminPassword(ctx context.Context) (string, error)
		SetAdminPassword(ctx context.Context, hash string) error

		Ping(ctx context.Context) error
		Close() error
	}

	// StoreTx is the set of mutations available inside WithinTx.
	StoreTx interface {
		// LockMember reads a member and holds it against concurrent
		// mutation until the transaction ends. ErrMemberNotFound if absent.
		LockMember(ctx context.Context, id int64) (Member, error)
		InsertTransaction(ctx context.Context, t Transaction) (int64, error)
		UpdateBalance(ctx context.Context, memberID int64, balance Money) error
		// LastTransaction returns the member's transaction with the highest
		// id, or ErrNothingToUndo.
		LastTransaction(ctx context.Context, memberID int64) (Transaction, error)
		DeleteTransaction(ctx context.Context, id int64) error

		// InsertMemberIfAbsent inserts m with a zero balance and reports
		// whether a row was created.
		InsertMemberIfAbsent(ctx context.Context, m Member) (bool, error)
		// DeleteMembersNotIn removes members absent from ids together with
		// their transactions and returns how many members were removed.
		DeleteMembersNotIn(ctx context.Context, ids []int64) (int, error)
	}

	// Notifier receives change events after a successful commit.
	Notifier interface {
		Publish(ctx context.Context, e ChangeEvent)
	}
)

// ChangeEvent types.
const (
	EventMemberUpdated  = "memberUpdated"
	EventMembersUpdated = "membersUpdated"
)

// ChangeEvent is the small tagged payload broadcast to observers.
type ChangeEvent struct {
	Type     string `json:"type"`
	MemberID int64  `json:"memberId,omitempty"`
}

// MemberUpdated announces a change to one member's balance or history.
func MemberUpdated(id int64) ChangeEvent {
	return ChangeEvent{Type: EventMemberUpdated, MemberID: id}
}

// MembersUpdated announces that the roster itself changed.
func MembersUpdated() ChangeEvent {
	return ChangeEvent{Type: EventMembersUpdated}
}
