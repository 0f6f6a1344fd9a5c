package entry

import (
	"os"

	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	entryCommand := &cobra.Command{
		Use:   "entry",
		Short: "Commands for working with archived entries",
		Example: "  # Finds entries with comments mentioning packing\n" +
			"  " + os.Args[0] + " entry grep packing",
	}

	entryCommand.AddCommand(initContentCommand())
	entryCommand.AddCommand(initGrepCommand())
	entryCommand.AddCommand(initListCommand())
	entryCommand.AddCommand(initOpenCommand())
	entryCommand.AddCommand(initWordcloudCommand())

	return entryCommand
}
