package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root "anubis" command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "anubis",
		Short:         "Anubis build system",
		Long:          `Anubis drives C/C++ builds described in Papyrus ANUBIS configuration files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(NewBuildCmd())
	root.AddCommand(NewInstallToolchainsCmd())

	return root
}
