// Package commands implements the paylogctl admin CLI.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"paylog/internal/amqp"
	"paylog/internal/cli"
	"paylog/internal/config"
	"paylog/internal/core"
	"paylog/internal/ledger"
	"paylog/internal/log"
	"paylog/internal/roster"
)

type sheetFetcher interface {
	FetchEntries(ctx context.Context, spreadsheetID, rng string) ([]roster.Entry, error)
}

// app holds what the subcommands share. Fields left nil are built from the
// environment on first use.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	store  core.Store
	sheets func(ctx context.Context) (sheetFetcher, error)

	// notifier receives change events from roster imports. It is the AMQP
	// relay when one is configured and stays nil otherwise.
	notifier core.Notifier
	relay    *amqp.Relay

	ownsStore bool
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "paylogctl",
		Short: "Administer a PayLog ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.relay != nil {
				_ = a.relay.Close()
			}
			if a.ownsStore && a.store != nil {
				return a.store.Close()
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		newMembersCommand(a),
		newPreviewCommand(a),
		newImportCommand(a),
		newImportSheetCommand(a),
		newResetPasswordCommand(a),
	)
	return rootCmd
}

func (a *app) init(ctx context.Context) error {
	if a.cfg == nil {
		cfg, err := cli.LoadConfig()
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.logger == nil {
		a.logger = cli.SetupLogger(a.cfg, "paylogctl")
	}
	if a.store == nil {
		store, err := cli.OpenStore(ctx, a.cfg, a.logger)
		if err != nil {
			return err
		}
		a.store = store
		a.ownsStore = true
	}
	if a.sheets == nil {
		a.sheets = func(ctx context.Context) (sheetFetcher, error) {
			return cli.SheetsSource(ctx, a.cfg)
		}
	}
	return nil
}

func (a *app) engine() *ledger.Engine {
	return ledger.NewEngine(a.store, nil, a.logger)
}

func (a *app) reconciler() *roster.Reconciler {
	return roster.NewReconciler(a.store, nil, a.logger)
}

// publisher connects to the AMQP exchange on first use so running servers
// hear about imports. Without a broker imports still succeed.
func (a *app) publisher(ctx context.Context) core.Notifier {
	if a.notifier != nil || a.cfg.AMQPURL == "" {
		return a.notifier
	}
	relay := amqp.NewRelay(a.cfg.AMQPURL, a.cfg.AMQPExchange, nil, a.logger)
	if err := relay.Connect(ctx); err != nil {
		a.logger.WarnContext(ctx, "AMQP unavailable, running servers will not be notified", log.FieldError, err)
		return nil
	}
	a.relay = relay
	a.notifier = relay
	return relay
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
