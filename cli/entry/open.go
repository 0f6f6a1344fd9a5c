package entry

import (
	"log"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/zvonler/ljcorpus/configuration"
	"github.com/zvonler/ljcorpus/quirks"
)

func initOpenCommand() *cobra.Command {
	openCommand := &cobra.Command{
		Use:   "open <entry_id | URL>",
		Short: "Opens an archived entry's source page in a browser.",
		Args:  cobra.ExactArgs(1),
		Run:   runOpenCommand,
	}
	return openCommand
}

func runOpenCommand(cmd *cobra.Command, args []string) {
	adb, err := configuration.OpenExistingDatabase()
	if err != nil {
		log.Fatal(err)
	}
	defer adb.Close()

	entry, err := adb.FindEntry(args[0])
	if err != nil {
		log.Fatal(err)
	}
	community, err := quirks.FromNetloc(entry.Site)
	if err != nil {
		log.Fatal(err)
	}
	browser.OpenURL(community.EntryURL(entry.SourceID))
}
