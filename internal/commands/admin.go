package commands

import (
	"github.com/spf13/cobra"

	"paylog/internal/auth"
)

func newResetPasswordCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password",
		Short: "Clear the admin password so the next login sets a new one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := auth.NewAdmin(a.store, 0).Reset(cmd.Context()); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "admin password cleared; the next login sets a new one\n")
			return nil
		},
	}
}
