package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"paylog/internal/core"
)

// Store is an in-process core.Store. A transaction holds the mutex for its
// whole duration and works on a copy that replaces the live state on
// success, so a failed transaction leaves nothing behind.
type Store struct {
	mu    sync.Mutex
	state state

	// failures lets tests inject an error into the next call of a tx method.
	failures map[string]error
}

type state struct {
	members  map[int64]core.Member
	txs      []core.Transaction // ascending id
	nextTxID int64
	admin    string
}

var _ core.Store = (*Store)(nil)

// New returns a store seeded with members.
func New(members ...core.Member) *Store {
	s := &Store{state: state{members: make(map[int64]core.Member), nextTxID: 1}}
	for _, m := range members {
		s.state.members[m.ID] = m
	}
	return s
}

// FailNext makes the next call to the named StoreTx method return err.
func (s *Store) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures == nil {
		s.failures = make(map[string]error)
	}
	s.failures[method] = err
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx core.StoreTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.state.clone()
	if err := fn(&memTx{st: &work, store: s}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) ListMembers(_ context.Context) ([]core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Member, 0, len(s.state.members))
	for _, m := range s.state.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetMember(_ context.Context, id int64) (core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.state.members[id]
	if !ok {
		return core.Member{}, core.ErrMemberNotFound
	}
	return m, nil
}

func (s *Store) ListTransactions(_ context.Context, memberID int64) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for i := len(s.state.txs) - 1; i >= 0; i-- {
		if s.state.txs[i].MemberID == memberID {
			out = append(out, s.state.txs[i])
		}
	}
	return out, nil
}

func (s *Store) MaxMemberID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var maxID int64
	for id := range s.state.members {
		maxID = max(maxID, id)
	}
	return maxID, nil
}

func (s *Store) CountMembersNotIn(_ context.Context, ids []int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id := range s.state.members {
		if !slices.Contains(ids, id) {
			n++
		}
	}
	return n, nil
}

func (s *Store) AdminPassword(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.admin, nil
}

func (s *Store) SetAdminPassword(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.admin = hash
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (st state) clone() state {
	members := make(map[int64]core.Member, len(st.members))
	for id, m := range st.members {
		members[id] = m
	}
	return state{
		members:  members,
		txs:      slices.Clone(st.txs),
		nextTxID: st.nextTxID,
		admin:    st.admin,
	}
}

type memTx struct {
	st    *state
	store *Store
}

// fail consumes an injected failure. Called with store.mu held.
func (t *memTx) fail(method string) error {
	err := t.store.failures[method]
	delete(t.store.failures, method)
	return err
}

func (t *memTx) LockMember(_ context.Context, id int64) (core.Member, error) {
	if err := t.fail("LockMember"); err != nil {
		return core.Member{}, err
	}
	m, ok := t.st.members[id]
	if !ok {
		return core.Member{}, core.ErrMemberNotFound
	}
	return m, nil
}

func (t *memTx) InsertTransaction(_ context.Context, tr core.Transaction) (int64, error) {
	if err := t.fail("InsertTransaction"); err != nil {
		return 0, err
	}
	if _, ok := t.st.members[tr.MemberID]; !ok {
		return 0, core.ErrMemberNotFound
	}
	tr.ID = t.st.nextTxID
	t.st.nextTxID++
	t.st.txs = append(t.st.txs, tr)
	return tr.ID, nil
}

func (t *memTx) UpdateBalance(_ context.Context, memberID int64, balance core.Money) error {
	if err := t.fail("UpdateBalance"); err != nil {
		return err
	}
	m, ok := t.st.members[memberID]
	if !ok {
		return core.ErrMemberNotFound
	}
	m.Balance = balance
	t.st.members[memberID] = m
	return nil
}

func (t *memTx) LastTransaction(_ context.Context, memberID int64) (core.Transaction, error) {
	if err := t.fail("LastTransaction"); err != nil {
		return core.Transaction{}, err
	}
	for i := len(t.st.txs) - 1; i >= 0; i-- {
		if t.st.txs[i].MemberID == memberID {
			return t.st.txs[i], nil
		}
	}
	return core.Transaction{}, core.ErrNothingToUndo
}

func (t *memTx) DeleteTransaction(_ context.Context, id int64) error {
	if err := t.fail("DeleteTransaction"); err != nil {
		return err
	}
	t.st.txs = slices.DeleteFunc(t.st.txs, func(tr core.Transaction) bool { return tr.ID == id })
	return nil
}

func (t *memTx) InsertMemberIfAbsent(_ context.Context, m core.Member) (bool, error) {
	if err := t.fail("InsertMemberIfAbsent"); err != nil {
		return false, err
	}
	if _, ok := t.st.members[m.ID]; ok {
		return false, nil
	}
	m.Balance = core.Money{}
	t.st.members[m.ID] = m
	return true, nil
}

func (t *memTx) DeleteMembersNotIn(_ context.Context, ids []int64) (int, error) {
	if err := t.fail("DeleteMembersNotIn"); err != nil {
		return 0, err
	}
	removed := 0
	for id := range t.st.members {
		if !slices.Contains(ids, id) {
			delete(t.st.members, id)
			removed++
		}
	}
	t.st.txs = slices.DeleteFunc(t.st.txs, func(tr core.Transaction) bool {
		_, ok := t.st.members[tr.MemberID]
		return !ok
	})
	return removed, nil
}
