package roster

import (
	"context"
	"errors"
	"io"

	"paylog/internal/core"
	"paylog/internal/log"
)

// ImportResult summarizes a committed import.
type ImportResult struct {
	Imported int
	Skipped  int
	Removed  int
}

// Reconciler diffs uploaded rosters against the store.
type Reconciler struct {
	store    core.Store
	notifier core.Notifier
	logger   *log.StructuredLogger
}

func NewReconciler(store core.Store, notifier core.Notifier, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Reconciler{
		store:    store,
		notifier: notifier,
		logger:   log.NewStructuredLogger(logger.WithComponent(log.ComponentRoster)),
	}
}

// Load parses and normalizes a roster file of the given kind.
func Load(kind Kind, r io.Reader) ([]Entry, error) {
	p, err := ParserFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := p.Parse(r)
	if err != nil {
		return nil, err
	}
	return Normalize(rows)
}

// LoadFile picks the parser from the file name.
func LoadFile(name string, r io.Reader) ([]Entry, error) {
	kind, err := KindFromFilename(name)
	if err != nil {
		return nil, err
	}
	return Load(kind, r)
}

// Preview reports how many stored members the import would remove.
func (rc *Reconciler) Preview(ctx context.Context, entries []Entry) (int, error) {
	if len(entries) == 0 {
		return 0, core.ErrNoValidMembers
	}
	n, err := rc.store.CountMembersNotIn(ctx, IDs(entries))
	if err != nil {
		return 0, core.StorageFailure("preview import", err)
	}
	return n, nil
}

// Commit inserts new members and removes absent ones in one transaction.
// Existing members keep their names and balances.
func (rc *Reconciler) Commit(ctx context.Context, entries []Entry) (ImportResult, error) {
	if len(entries) == 0 {
		return ImportResult{}, core.ErrNoValidMembers
	}

	var res ImportResult
	err := rc.store.WithinTx(ctx, func(tx core.StoreTx) error {
		imported := 0
		for _, e := range entries {
			created, err := tx.InsertMemberIfAbsent(ctx, core.Member{ID: e.ID, FirstName: e.FirstName, LastName: e.LastName})
			if err != nil {
				return err
			}
			if created {
				imported++
			}
		}
		removed, err := tx.DeleteMembersNotIn(ctx, IDs(entries))
		if err != nil {
			return err
		}
		res = ImportResult{Imported: imported, Skipped: len(entries) - imported, Removed: removed}
		return nil
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			err = core.StorageFailure("import members", err)
		}
		rc.logger.LogError(ctx, "Roster import rolled back", err, log.OpImport, nil)
		return ImportResult{}, err
	}

	rc.logger.LogRosterImported(ctx, res.Imported, res.Skipped, res.Removed)
	if rc.notifier != nil {
		rc.notifier.Publish(ctx, core.MembersUpdated())
	}
	return res, nil
}
