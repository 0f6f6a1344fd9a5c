package scrape

import (
	"log"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"github.com/zvonler/ljcorpus/archiver"
	"github.com/zvonler/ljcorpus/database"
	"github.com/zvonler/ljcorpus/fetch"
	"github.com/zvonler/ljcorpus/scheduler"
)

var (
	dbPath string
	epoch  string
)

func NewCommand() *cobra.Command {
	scrapeCommand := &cobra.Command{
		Use:   "scrape [-d DB] <URL>",
		Short: "Scrape a community archive page or a single entry",
		Args:  cobra.ExactArgs(1),
		Example: "" +
			"  " + os.Args[0] + " scrape https://ftm.livejournal.com/2013/03/26/\n" +
			"  " + os.Args[0] + " scrape https://ftm.livejournal.com/7232256.html",
		Run: runScrapeCommand,
	}

	scrapeCommand.Flags().StringVar(&dbPath, "database", "ljcorpus.db", "Database filename")
	scrapeCommand.Flags().StringVar(&epoch, "epoch", "1", "Task dedupe epoch; bump to re-run URLs already fetched")

	return scrapeCommand
}

func runScrapeCommand(cmd *cobra.Command, args []string) {
	seed, err := url.Parse(args[0])
	if err != nil {
		log.Fatalf("Bad URL: %v", err)
	}

	db, err := database.OpenArchiveDB(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	sched := scheduler.New(db, epoch)
	archiver.New(fetch.NewClient(), db, sched)

	if archiver.EntryURL(seed.String()) {
		sched.EnqueueEntry(seed.String())
	} else {
		sched.EnqueueEntryList(seed.String())
	}
	sched.Run()
}
