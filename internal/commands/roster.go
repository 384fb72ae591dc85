package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"paylog/internal/roster"
)

func newPreviewCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <file>",
		Short: "Show how many members an import would remove",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadRosterFile(args[0])
			if err != nil {
				return err
			}
			n, err := a.reconciler().Preview(cmd.Context(), entries)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%d member(s) in file, %d stored member(s) would be removed\n", len(entries), n)
			return nil
		},
	}
}

func newImportCommand(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a CSV, XLSX or JSON roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := loadRosterFile(args[0])
			if err != nil {
				return err
			}
			return a.commit(cmd, entries, yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "remove absent members without asking")
	return cmd
}

func newImportSheetCommand(a *app) *cobra.Command {
	var (
		spreadsheetID string
		rng           string
		yes           bool
	)
	cmd := &cobra.Command{
		Use:   "import-sheet",
		Short: "Import the roster from a Google Sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if spreadsheetID == "" {
				spreadsheetID = a.cfg.GoogleSpreadsheetID
			}
			if rng == "" {
				rng = a.cfg.GoogleRosterRange
			}
			if spreadsheetID == "" {
				return fmt.Errorf("--spreadsheet or GOOGLE_SPREADSHEET_ID is required")
			}
			src, err := a.sheets(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := src.FetchEntries(cmd.Context(), spreadsheetID, rng)
			if err != nil {
				return err
			}
			return a.commit(cmd, entries, yes)
		},
	}
	cmd.Flags().StringVar(&spreadsheetID, "spreadsheet", "", "spreadsheet id (default GOOGLE_SPREADSHEET_ID)")
	cmd.Flags().StringVar(&rng, "range", "", "A1 range holding the roster (default GOOGLE_ROSTER_RANGE)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "remove absent members without asking")
	return cmd
}

// commit refuses to remove members unless yes is set.
func (a *app) commit(cmd *cobra.Command, entries []roster.Entry, yes bool) error {
	ctx := cmd.Context()
	rc := roster.NewReconciler(a.store, a.publisher(ctx), a.logger)
	if !yes {
		n, err := rc.Preview(ctx, entries)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("import would remove %d member(s) and their transactions; rerun with --yes", n)
		}
	}
	res, err := rc.Commit(ctx, entries)
	if err != nil {
		return err
	}
	printf(cmd.OutOrStdout(), "imported %d, skipped %d, removed %d\n", res.Imported, res.Skipped, res.Removed)
	return nil
}

func loadRosterFile(path string) ([]roster.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	return roster.LoadFile(filepath.Base(path), f)
}
