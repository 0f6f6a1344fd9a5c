package entry

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/zvonler/ljcorpus/configuration"
	"github.com/zvonler/ljcorpus/database"
)

func initGrepCommand() *cobra.Command {
	grepCommand := &cobra.Command{
		Use:   "grep <regex>...",
		Short: "Locates entries with comments matching one or more regular expression(s)",
		Args:  cobra.MinimumNArgs(1),
		Run:   runGrepCommand,
	}
	return grepCommand
}

func runGrepCommand(cmd *cobra.Command, args []string) {
	var err error
	var adb *database.ArchiveDB

	if adb, err = configuration.OpenExistingDatabase(); err != nil {
		log.Fatal(err)
	}

	defer adb.Close()

	stmt := `
		SELECT DISTINCT
			e.id, s.netloc, e.source_id, e.subject
		FROM entry e, comment c, site s
		WHERE
			    e.id = c.entry_id
			AND e.site_id = s.id`

	for range args {
		stmt += " AND c.content REGEXP ?"
	}

	anyArgs := make([]any, len(args))
	for i := range args {
		anyArgs[i] = args[i]
	}

	adb.ForEachRowOrPanic(
		func(rows *sql.Rows) bool {
			var id uint
			var netloc, sourceId, subject string
			rows.Scan(&id, &netloc, &sourceId, &subject)
			fmt.Printf("Entry %d: %s/%s %q\n", id, netloc, sourceId, subject)
			return true
		},
		stmt, anyArgs...)
}
