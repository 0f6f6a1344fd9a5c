package deadletter

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/zvonler/ljcorpus/configuration"
)

func initListCommand() *cobra.Command {
	listCommand := &cobra.Command{
		Use:   "list",
		Short: "Lists failed tasks awaiting reprocessing",
		Run:   runListCommand,
	}
	return listCommand
}

func runListCommand(cmd *cobra.Command, args []string) {
	adb, err := configuration.OpenExistingDatabase()
	if err != nil {
		log.Fatal(err)
	}
	defer adb.Close()

	letters, err := adb.DeadLetters()
	if err != nil {
		log.Fatal(err)
	}
	for _, dl := range letters {
		fmt.Printf("%d: %s %s (%s)\n", dl.Id, dl.FailedAt.Format("2006-01-02 15:04"), dl.URL, dl.Reason)
	}
}
