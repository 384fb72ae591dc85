package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paylog/internal/core"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := SQLiteDSN(filepath.Join(t.TempDir(), "paylog.db"))
	s, err := Open(context.Background(), DialectSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedMembers(t *testing.T, s *SQLStore, ids ...int64) {
	t.Helper()
	err := s.WithinTx(context.Background(), func(tx core.StoreTx) error {
		for _, id := range ids {
			if _, err := tx.InsertMemberIfAbsent(context.Background(), core.Member{ID: id, FirstName: "F", LastName: "L"}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE x = ? AND y IN (?, ?)"
	assert.Equal(t, q, rebind(DialectSQLite, q))
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y IN ($2, $3)", rebind(DialectPostgres, q))
}

func TestNotIn(t *testing.T) {
	where, args := notIn(DialectSQLite, "id", []int64{1, 2})
	assert.Equal(t, "id NOT IN (SELECT value FROM json_each(?))", where)
	assert.Equal(t, []any{"[1,2]"}, args)

	where, args = notIn(DialectSQLite, "id", nil)
	assert.Equal(t, "id NOT IN (SELECT value FROM json_each(?))", where)
	assert.Equal(t, []any{"[]"}, args)

	where, args = notIn(DialectPostgres, "member_id", []int64{7})
	assert.Equal(t, "member_id <> ALL(?)", where)
	assert.Equal(t, []any{[]int64{7}}, args)

	_, args = notIn(DialectPostgres, "id", nil)
	assert.Equal(t, []any{[]int64{}}, args)
}

func TestDecimalToCents(t *testing.T) {
	for in, want := range map[string]int64{"12.30": 1230, "-0.05": -5, "0": 0, "7": 700, "12.3": 1230} {
		got, err := decimalToCents(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := decimalToCents("x")
	assert.Error(t, err)
}

func TestSQLStore_MembersAndTransactions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedMembers(t, s, 3, 1)

	members, err := s.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, int64(1), members[0].ID)
	assert.Equal(t, int64(0), members[0].Balance.Cents)

	maxID, err := s.MaxMemberID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), maxID)

	var firstID, secondID int64
	err = s.WithinTx(ctx, func(tx core.StoreTx) error {
		m, err := tx.LockMember(ctx, 1)
		if err != nil {
			return err
		}
		firstID, err = tx.InsertTransaction(ctx, core.Transaction{MemberID: 1, Date: core.NewDate(2025, 1, 2), Description: "dues", Amount: core.Money{Cents: -1230}})
		if err != nil {
			return err
		}
		secondID, err = tx.InsertTransaction(ctx, core.Transaction{MemberID: 1, Date: core.NewDate(2025, 1, 3), Amount: core.Money{Cents: 500}})
		if err != nil {
			return err
		}
		return tx.UpdateBalance(ctx, 1, core.Money{Cents: m.Balance.Cents - 730})
	})
	require.NoError(t, err)
	assert.Greater(t, secondID, firstID)

	m, err := s.GetMember(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(-730), m.Balance.Cents)

	txs, err := s.ListTransactions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, secondID, txs[0].ID)
	assert.Equal(t, "2025-01-02", txs[1].Date.String())
	assert.Equal(t, "dues", txs[1].Description)
	assert.Equal(t, int64(-1230), txs[1].Amount.Cents)

	_, err = s.GetMember(ctx, 99)
	assert.ErrorIs(t, err, core.ErrMemberNotFound)
}

func TestSQLStore_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedMembers(t, s, 1)

	err := s.WithinTx(ctx, func(tx core.StoreTx) error {
		if _, err := tx.InsertTransaction(ctx, core.Transaction{MemberID: 1, Date: core.NewDate(2025, 1, 2), Amount: core.Money{Cents: 100}}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	txs, err := s.ListTransactions(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestSQLStore_LastTransaction(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedMembers(t, s, 1)

	err := s.WithinTx(ctx, func(tx core.StoreTx) error {
		_, err := tx.LastTransaction(ctx, 1)
		return err
	})
	assert.ErrorIs(t, err, core.ErrNothingToUndo)
}

func TestSQLStore_ImportPrimitives(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedMembers(t, s, 1, 3)

	err := s.WithinTx(ctx, func(tx core.StoreTx) error {
		_, err := tx.InsertTransaction(ctx, core.Transaction{MemberID: 3, Date: core.NewDate(2025, 1, 2), Amount: core.Money{Cents: 100}})
		return err
	})
	require.NoError(t, err)

	n, err := s.CountMembersNotIn(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var created1, created2 bool
	var removed int
	err = s.WithinTx(ctx, func(tx core.StoreTx) error {
		var err error
		if created1, err = tx.InsertMemberIfAbsent(ctx, core.Member{ID: 1, FirstName: "A", LastName: "X"}); err != nil {
			return err
		}
		if created2, err = tx.InsertMemberIfAbsent(ctx, core.Member{ID: 2, FirstName: "B", LastName: "Y"}); err != nil {
			return err
		}
		removed, err = tx.DeleteMembersNotIn(ctx, []int64{1, 2})
		return err
	})
	require.NoError(t, err)
	assert.False(t, created1)
	assert.True(t, created2)
	assert.Equal(t, 1, removed)

	m, err := s.GetMember(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "F", m.FirstName, "existing member untouched")

	txs, err := s.ListTransactions(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestSQLStore_AdminPassword(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	pw, err := s.AdminPassword(ctx)
	require.NoError(t, err)
	assert.Empty(t, pw)

	require.NoError(t, s.SetAdminPassword(ctx, "hash-1"))
	require.NoError(t, s.SetAdminPassword(ctx, "hash-2"))
	pw, err = s.AdminPassword(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hash-2", pw)

	require.NoError(t, s.SetAdminPassword(ctx, ""))
	pw, err = s.AdminPassword(ctx)
	require.NoError(t, err)
	assert.Empty(t, pw)

	assert.NoError(t, s.Ping(ctx))
}

func TestSQLStore_LargeRoster(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedMembers(t, s, 1, 2, 50_001)

	ids := make([]int64, 0, 40_000)
	for id := int64(1); id <= 40_000; id++ {
		ids = append(ids, id)
	}

	n, err := s.CountMembersNotIn(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var removed int
	err = s.WithinTx(ctx, func(tx core.StoreTx) error {
		var err error
		removed, err = tx.DeleteMembersNotIn(ctx, ids)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	members, err := s.ListMembers(ctx)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, int64(2), members[1].ID)

	n, err = s.CountMembersNotIn(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "an empty id set excludes nothing")
}
