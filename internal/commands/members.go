package commands

import (
	"text/tabwriter"

	"github.com/spf13/cobra"

	"paylog/internal/core"
)

func newMembersCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "members",
		Short: "List members and balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.engine().Members(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
			printf(tw, "MEMBER\tBALANCE\t\n")
			for _, m := range list.Members {
				printf(tw, "%s\t%s\t\n", m.DisplayName(list.PadLength), core.FormatDollars(m.Balance.Cents))
			}
			return tw.Flush()
		},
	}
}
