package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "sitewright",
		Short:         "sitewright provisions a LEMP + WordPress stack with full rollback on failure",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(newPlanCmd(flags))
	cmd.AddCommand(newProvisionCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
