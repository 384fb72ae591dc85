package memory

import (
	"context"
	"errors"
	"testing"

	"paylog/internal/core"
)

func TestMemoryStoreTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New(core.Member{ID: 2, FirstName: "B"}, core.Member{ID: 1, FirstName: "A"})

	err := s.WithinTx(ctx, func(tx core.StoreTx) error {
		id, err := tx.InsertTransaction(ctx, core.Transaction{MemberID: 1, Amount: core.Money{Cents: 50}})
		if err != nil || id != 1 {
			t.Fatalf("unexpected insert: id=%d err=%v", id, err)
		}
		return tx.UpdateBalance(ctx, 1, core.Money{Cents: 50})
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	members, _ := s.ListMembers(ctx)
	if len(members) != 2 || members[0].ID != 1 || members[0].Balance.Cents != 50 {
		t.Fatalf("unexpected members: %+v", members)
	}
	txs, _ := s.ListTransactions(ctx, 1)
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
}

func TestMemoryStoreTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New(core.Member{ID: 1})
	boom := errors.New("boom")
	s.FailNext("UpdateBalance", boom)

	err := s.WithinTx(ctx, func(tx core.StoreTx) error {
		if _, err := tx.InsertTransaction(ctx, core.Transaction{MemberID: 1, Amount: core.Money{Cents: 50}}); err != nil {
			return err
		}
		return tx.UpdateBalance(ctx, 1, core.Money{Cents: 50})
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if txs, _ := s.ListTransactions(ctx, 1); len(txs) != 0 {
		t.Fatalf("rolled back insert is visible: %+v", txs)
	}

	// the failure is one-shot
	err = s.WithinTx(ctx, func(tx core.StoreTx) error {
		return tx.UpdateBalance(ctx, 1, core.Money{Cents: 1})
	})
	if err != nil {
		t.Fatalf("second tx: %v", err)
	}
}

func TestMemoryStoreDeleteMembersNotIn(t *testing.T) {
	ctx := context.Background()
	s := New(core.Member{ID: 1}, core.Member{ID: 3})
	_ = s.WithinTx(ctx, func(tx core.StoreTx) error {
		_, err := tx.InsertTransaction(ctx, core.Transaction{MemberID: 3, Amount: core.Money{Cents: 1}})
		return err
	})

	if n, _ := s.CountMembersNotIn(ctx, []int64{1, 2}); n != 1 {
		t.Fatalf("expected 1 absent member, got %d", n)
	}

	var removed int
	err := s.WithinTx(ctx, func(tx core.StoreTx) error {
		var err error
		removed, err = tx.DeleteMembersNotIn(ctx, []int64{1, 2})
		return err
	})
	if err != nil || removed != 1 {
		t.Fatalf("unexpected delete: removed=%d err=%v", removed, err)
	}
	if _, err := s.GetMember(ctx, 3); !errors.Is(err, core.ErrMemberNotFound) {
		t.Fatalf("member 3 should be gone, got %v", err)
	}
	if txs, _ := s.ListTransactions(ctx, 3); len(txs) != 0 {
		t.Fatalf("transactions of removed member remain: %+v", txs)
	}
}

func TestMemoryStoreLastTransaction(t *testing.T) {
	ctx := context.Background()
	s := New(core.Member{ID: 1})
	err := s.WithinTx(ctx, func(tx core.StoreTx) error {
		_, err := tx.LastTransaction(ctx, 1)
		return err
	})
	if !errors.Is(err, core.ErrNothingToUndo) {
		t.Fatalf("expected ErrNothingToUndo, got %v", err)
	}
}
