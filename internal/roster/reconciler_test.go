package roster

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paylog/internal/core"
	"paylog/internal/log"
	"paylog/internal/storage/memory"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []core.ChangeEvent
}

func (n *recordingNotifier) Publish(_ context.Context, e core.ChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func newReconciler(store core.Store) (*Reconciler, *recordingNotifier) {
	cfg := log.DefaultConfig()
	cfg.Output = io.Discard
	n := &recordingNotifier{}
	return NewReconciler(store, n, log.New(cfg)), n
}

// seededStore holds members 1 and 3, each with one transaction.
func seededStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.New(
		core.Member{ID: 1, FirstName: "Old", LastName: "One"},
		core.Member{ID: 3, FirstName: "Old", LastName: "Three"},
	)
	require.NoError(t, s.WithinTx(ctx, func(tx core.StoreTx) error {
		for _, id := range []int64{1, 3} {
			if _, err := tx.InsertTransaction(ctx, core.Transaction{MemberID: id, Date: core.NewDate(2025, 1, 1), Amount: core.Money{Cents: 100}}); err != nil {
				return err
			}
			if err := tx.UpdateBalance(ctx, id, core.Money{Cents: 100}); err != nil {
				return err
			}
		}
		return nil
	}))
	return s
}

func TestImportScenario(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	rc, n := newReconciler(store)

	entries, err := LoadFile("members.csv", strings.NewReader("id,first_name,last_name\n1,A,X\n2,B,Y\n"))
	require.NoError(t, err)

	toDelete, err := rc.Preview(ctx, entries)
	require.NoError(t, err)
	assert.Equal(t, 1, toDelete)

	members, _ := store.ListMembers(ctx)
	assert.Len(t, members, 2, "preview must not mutate")

	res, err := rc.Commit(ctx, entries)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Imported: 1, Skipped: 1, Removed: 1}, res)

	members, _ = store.ListMembers(ctx)
	require.Len(t, members, 2)
	assert.Equal(t, int64(1), members[0].ID)
	assert.Equal(t, "Old", members[0].FirstName, "existing members are untouched")
	assert.Equal(t, int64(100), members[0].Balance.Cents)
	assert.Equal(t, int64(2), members[1].ID)
	assert.Zero(t, members[1].Balance.Cents)

	txs, _ := store.ListTransactions(ctx, 3)
	assert.Empty(t, txs, "transactions of removed members are gone")

	assert.Equal(t, []core.ChangeEvent{core.MembersUpdated()}, n.events)
}

func TestCommitRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	store := seededStore(t)
	rc, n := newReconciler(store)
	store.FailNext("DeleteMembersNotIn", errors.New("locked"))

	_, err := rc.Commit(ctx, []Entry{{ID: 2, FirstName: "B", LastName: "Y"}})
	require.ErrorIs(t, err, core.ErrStorage)

	members, _ := store.ListMembers(ctx)
	assert.Len(t, members, 2)
	_, err = store.GetMember(ctx, 2)
	assert.ErrorIs(t, err, core.ErrMemberNotFound, "insert rolled back")
	assert.Empty(t, n.events)
}

func TestEmptyEntries(t *testing.T) {
	rc, _ := newReconciler(memory.New())
	_, err := rc.Preview(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrNoValidMembers)
	_, err = rc.Commit(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrNoValidMembers)
}

func TestLoadFileUnsupported(t *testing.T) {
	_, err := LoadFile("members.txt", strings.NewReader("id"))
	assert.ErrorIs(t, err, core.ErrUnsupportedFile)
}
