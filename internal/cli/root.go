// Package cli implements the roundtable command line interface.
package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the roundtable root command writing to out and errOut.
func NewRootCmd(out, errOut io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "roundtable",
		Short: "Run turn-based group chats between AI participants",
		Long: `roundtable runs a group chat defined in a YAML file: participants take turns
replying to a shared transcript until the approver approves or the round cap is reached.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newSchemaCmd(),
	)
	return root
}
