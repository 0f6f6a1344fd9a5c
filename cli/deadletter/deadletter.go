package deadletter

import (
	"github.com/spf13/cobra"
)

func NewCommand() *cobra.Command {
	deadletterCommand := &cobra.Command{
		Use:   "deadletter",
		Short: "Commands for working with failed scrape tasks",
	}

	deadletterCommand.AddCommand(initListCommand())
	deadletterCommand.AddCommand(initRetryCommand())

	return deadletterCommand
}
