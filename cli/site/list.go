package site

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
		Short: "Lists sites in the database",
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

	if sitesById, err := adb.GetSites(); err == nil {
		colWidth := uint(math.Round(math.Ceil(math.Log10(float64(len(sitesById) + 1)))))
		fmtString := fmt.Sprintf("%%0%dd: %%s\n", colWidth)
		for id, netloc := range sitesById {
			fmt.Printf(fmtString, id, netloc)
		}
	} else {
		log.Fatal(err)
	}
}
