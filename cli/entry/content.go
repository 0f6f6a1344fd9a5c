package entry

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zvonler/ljcorpus/configuration"
	"github.com/zvonler/ljcorpus/model"
)

func initContentCommand() *cobra.Command {
	contentCommand := &cobra.Command{
		Use:   "content <entry_id | URL>",
		Short: "Prints an entry and its comment tree",
		Args:  cobra.ExactArgs(1),
		Run:   runContentCommand,
	}
	return contentCommand
}

func runContentCommand(cmd *cobra.Command, args []string) {
	adb, err := configuration.OpenExistingDatabase()
	if err != nil {
		log.Fatal(err)
	}
	defer adb.Close()

	entry, err := adb.FindEntry(args[0])
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s/%s: %q by %s, published %s\n",
		entry.Site, entry.SourceID, entry.Subject, entry.Author, entry.Published)
	if len(entry.Tags) > 0 {
		fmt.Printf("Tags: %v\n", entry.Tags)
	}
	fmt.Println(entry.Content)

	roots, err := adb.EntryCommentTree(entry.Id)
	if err != nil {
		log.Fatal(err)
	}
	for _, root := range roots {
		printComment(root, 0)
	}
}

func printComment(comment *model.Comment, depth int) {
	indent := strings.Repeat("  ", depth)
	if comment.State == model.Deleted {
		fmt.Printf("%s(deleted)\n", indent)
	} else {
		fmt.Printf("%s%s on %s:\n", indent, comment.Author, comment.Published)
		for _, line := range strings.Split(strings.TrimSpace(comment.Content), "\n") {
			fmt.Printf("%s  %s\n", indent, line)
		}
	}
	for _, child := range comment.Children {
		printComment(child, depth+1)
	}
}
