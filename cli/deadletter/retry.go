package deadletter

import (
	"fmt"
	"log"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/zvonler/ljcorpus/archiver"
	"github.com/zvonler/ljcorpus/configuration"
	"github.com/zvonler/ljcorpus/database"
	"github.com/zvonler/ljcorpus/fetch"
	"github.com/zvonler/ljcorpus/scheduler"
)

var epoch string

func initRetryCommand() *cobra.Command {
	retryCommand := &cobra.Command{
		Use:   "retry [<id>...]",
		Short: "Re-runs failed tasks, all of them or just the given ids",
		Run:   runRetryCommand,
	}

	retryCommand.Flags().StringVar(&epoch, "epoch", "2", "Task dedupe epoch; must differ from the failed run's epoch")

	return retryCommand
}

func runRetryCommand(cmd *cobra.Command, args []string) {
	adb, err := configuration.OpenExistingDatabase()
	if err != nil {
		log.Fatal(err)
	}
	defer adb.Close()

	letters, err := adb.DeadLetters()
	if err != nil {
		log.Fatal(err)
	}

	if len(args) > 0 {
		wanted := make(map[uint]bool)
		for _, arg := range args {
			id, err := strconv.ParseUint(arg, 10, 32)
			if err != nil {
				log.Fatalf("Bad id %q: %v", arg, err)
			}
			wanted[uint(id)] = true
		}
		var selected []database.DeadLetter
		for _, dl := range letters {
			if wanted[dl.Id] {
				selected = append(selected, dl)
			}
		}
		letters = selected
	}

	if len(letters) == 0 {
		fmt.Println("Nothing to retry")
		return
	}

	sched := scheduler.New(adb, epoch)
	archiver.New(fetch.NewClient(), adb, sched)

	for _, dl := range letters {
		if archiver.EntryURL(dl.URL) {
			sched.EnqueueEntry(dl.URL)
		} else {
			sched.EnqueueEntryList(dl.URL)
		}
		adb.DeleteDeadLetter(dl.Id)
	}
	sched.Run()
}
