package entry

import (
	"fmt"
	"log"
	"math"

	"github.com/spf13/cobra"
	"github.com/zvonler/ljcorpus/configuration"
)

func initListCommand() *cobra.Command {
	listCommand := &cobra.Command{
		Use:   "list",
		Short: "Lists entries in the database",
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

	if entries, err := adb.GetEntries(); err == nil {
		colWidth := uint(math.Round(math.Ceil(math.Log10(float64(len(entries) + 1)))))
		fmtString := fmt.Sprintf("%%0%dd: %%s/%%s %%q by %%s\n", colWidth)
		for _, e := range entries {
			fmt.Printf(fmtString, e.Id, e.Site, e.SourceID, e.Subject, e.Author)
		}
	} else {
		log.Fatal(err)
	}
}
