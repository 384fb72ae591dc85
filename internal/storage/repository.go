package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"paylog/internal/core"
)

// SQLStore implements core.Store over database/sql for sqlite and postgres.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

var _ core.Store = (*SQLStore)(nil)

// NewSQLStore wraps an already migrated database.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

const (
	memberColumns      = "id, first_name, last_name, CAST(balance AS TEXT)"
	transactionColumns = "id, member_id, CAST(date AS TEXT), description, CAST(amount AS TEXT)"
)

func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx core.StoreTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLStore) ListMembers(ctx context.Context) ([]core.Member, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+memberColumns+" FROM members ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("list members: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

func (s *SQLStore) GetMember(ctx context.Context, id int64) (core.Member, error) {
	row := s.db.QueryRowContext(ctx, s.q("SELECT "+memberColumns+" FROM members WHERE id = ?"), id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Member{}, core.ErrMemberNotFound
	}
	if err != nil {
		return core.Member{}, fmt.Errorf("get member %d: %w", id, err)
	}
	return m, nil
}

func (s *SQLStore) ListTransactions(ctx context.Context, memberID int64) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT "+transactionColumns+" FROM transactions WHERE member_id = ? ORDER BY id DESC"), memberID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *SQLStore) MaxMemberID(ctx context.Context) (int64, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) FROM members").Scan(&id); err != nil {
		return 0, fmt.Errorf("max member id: %w", err)
	}
	return id, nil
}

func (s *SQLStore) CountMembersNotIn(ctx context.Context, ids []int64) (int, error) {
	where, args := notIn(s.dialect, "id", ids)
	var n int
	if err := s.db.QueryRowContext(ctx, s.q("SELECT COUNT(*) FROM members WHERE "+where), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return n, nil
}

func (s *SQLStore) AdminPassword(ctx context.Context) (string, error) {
	var password string
	err := s.db.QueryRowContext(ctx, "SELECT password FROM admin ORDER BY id LIMIT 1").Scan(&password)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read admin password: %w", err)
	}
	return password, nil
}

// SetAdminPassword replaces the credential. An empty hash clears it.
func (s *SQLStore) SetAdminPassword(ctx context.Context, hash string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM admin"); err != nil {
		return fmt.Errorf("clear admin password: %w", err)
	}
	if hash != "" {
		if _, err := tx.ExecContext(ctx, s.q("INSERT INTO admin (password) VALUES (?)"), hash); err != nil {
			return fmt.Errorf("store admin password: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) q(query string) string {
	return rebind(s.dialect, query)
}

type sqlTx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *sqlTx) q(query string) string {
	return rebind(t.dialect, query)
}

func (t *sqlTx) LockMember(ctx context.Context, id int64) (core.Member, error) {
	query := "SELECT " + memberColumns + " FROM members WHERE id = ?"
	if t.dialect == DialectPostgres {
		query += " FOR UPDATE"
	}
	m, err := scanMember(t.tx.QueryRowContext(ctx, t.q(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Member{}, core.ErrMemberNotFound
	}
	if err != nil {
		return core.Member{}, fmt.Errorf("lock member %d: %w", id, err)
	}
	return m, nil
}

func (t *sqlTx) InsertTransaction(ctx context.Context, tr core.Transaction) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx,
		t.q("INSERT INTO transactions (member_id, date, description, amount) VALUES (?, ?, ?, ?) RETURNING id"),
		tr.MemberID, tr.Date.String(), tr.Description, core.FormatCents(tr.Amount.Cents),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	return id, nil
}

func (t *sqlTx) UpdateBalance(ctx context.Context, memberID int64, balance core.Money) error {
	res, err := t.tx.ExecContext(ctx, t.q("UPDATE members SET balance = ? WHERE id = ?"),
		core.FormatCents(balance.Cents), memberID)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrMemberNotFound
	}
	return nil
}

func (t *sqlTx) LastTransaction(ctx context.Context, memberID int64) (core.Transaction, error) {
	row := t.tx.QueryRowContext(ctx,
		t.q("SELECT "+transactionColumns+" FROM transactions WHERE member_id = ? ORDER BY id DESC LIMIT 1"), memberID)
	tr, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNothingToUndo
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("last transaction: %w", err)
	}
	return tr, nil
}

func (t *sqlTx) DeleteTransaction(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, t.q("DELETE FROM transactions WHERE id = ?"), id); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return nil
}

func (t *sqlTx) InsertMemberIfAbsent(ctx context.Context, m core.Member) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		t.q("INSERT INTO members (id, first_name, last_name, balance) VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING"),
		m.ID, m.FirstName, m.LastName, core.FormatCents(0))
	if err != nil {
		return false, fmt.Errorf("insert member %d: %w", m.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert member %d: %w", m.ID, err)
	}
	return n > 0, nil
}

func (t *sqlTx) DeleteMembersNotIn(ctx context.Context, ids []int64) (int, error) {
	// Transactions go first so removal does not depend on the cascade
	// being enabled on the connection.
	where, args := notIn(t.dialect, "member_id", ids)
	if _, err := t.tx.ExecContext(ctx, t.q("DELETE FROM transactions WHERE "+where), args...); err != nil {
		return 0, fmt.Errorf("delete transactions of removed members: %w", err)
	}

	where, args = notIn(t.dialect, "id", ids)
	res, err := t.tx.ExecContext(ctx, t.q("DELETE FROM members WHERE "+where), args...)
	if err != nil {
		return 0, fmt.Errorf("delete members: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete members: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (core.Member, error) {
	var (
		m       core.Member
		balance string
	)
	if err := row.Scan(&m.ID, &m.FirstName, &m.LastName, &balance); err != nil {
		return core.Member{}, err
	}
	cents, err := decimalToCents(balance)
	if err != nil {
		return core.Member{}, fmt.Errorf("member %d balance: %w", m.ID, err)
	}
	m.Balance = core.Money{Cents: cents}
	return m, nil
}

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		t            core.Transaction
		date, amount string
	)
	if err := row.Scan(&t.ID, &t.MemberID, &date, &t.Description, &amount); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d date %q: %w", t.ID, date, err)
	}
	cents, err := decimalToCents(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d amount: %w", t.ID, err)
	}
	t.Date = d
	t.Amount = core.Money{Cents: cents}
	return t, nil
}

// decimalToCents converts a stored decimal column into integer cents.
func decimalToCents(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d.Shift(2).IntPart(), nil
}
