package parse

import (
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"os/exec"
	"sort"

	"github.com/bit101/go-ansi"
	"github.com/spf13/cobra"
	"github.com/zvonler/ljcorpus/archiver"
	"github.com/zvonler/ljcorpus/fetch"
	"github.com/zvonler/ljcorpus/ljparse"
	"github.com/zvonler/ljcorpus/model"
	"golang.org/x/term"
)

func NewCommand() *cobra.Command {
	parseCommand := &cobra.Command{
		Use:   "parse <URL>",
		Short: "Parse a single URL and describe its contents",
		Args:  cobra.ExactArgs(1),
		Example: "" +
			"  " + os.Args[0] + " parse https://ftm.livejournal.com/7232256.html",
		Run: runParseCommand,
	}

	return parseCommand
}

func runParseCommand(cmd *cobra.Command, args []string) {
	pageURL, err := url.Parse(args[0])
	if err != nil {
		log.Fatalf("Bad URL: %v", err)
	}

	text, err := fetch.NewClient().FetchText(pageURL.String())
	if err != nil {
		log.Fatal(err)
	}

	isTty := term.IsTerminal(int(os.Stdout.Fd()))

	if archiver.EntryURL(pageURL.String()) {
		result, err := ljparse.ParseEntry(text, pageURL.Query().Get("thread"))
		if err != nil {
			log.Fatal(err)
		}
		if isTty {
			paginateEntry(result)
		} else {
			describeEntry(os.Stdout, result)
		}
	} else {
		result, err := ljparse.ParseEntryList(text)
		if err != nil {
			log.Fatal(err)
		}
		links := make([]string, 0, len(result.EntryLinks))
		for link := range result.EntryLinks {
			links = append(links, link)
		}
		sort.Strings(links)
		for _, link := range links {
			fmt.Println(link)
		}
		if result.PrevLink != "" {
			fmt.Printf("Previous page: %s\n", result.PrevLink)
		}
	}
}

func paginateEntry(result *ljparse.EntryParseResult) {
	cmd := exec.Command("/usr/bin/less", "-FRX")
	cmd.Stdout = os.Stdout

	if stdin, err := cmd.StdinPipe(); err == nil {
		go func() {
			defer stdin.Close()

			entry := result.Entry
			ansi.Fprintf(stdin, ansi.Green, "%s\n", entry.Subject)
			ansi.Fprintf(stdin, ansi.Red, "%s ", entry.Author)
			ansi.Fprintf(stdin, ansi.Yellow, "%s\n", entry.Published)
			ansi.Fprintf(stdin, ansi.Default, "%s\n", entry.Content)
			ansi.Fprintf(stdin, ansi.Purple, "Tags: %v\n", entry.Tags)
			ansi.Fprintln(stdin, ansi.Blue, "--------")
			for _, comment := range entry.Comments {
				writeComment(stdin, comment, 0)
			}
			for thread := range result.Threads {
				ansi.Fprintf(stdin, ansi.Cyan, "Collapsed thread: %s\n", thread)
			}
			if result.NextPage != "" {
				ansi.Fprintf(stdin, ansi.Cyan, "Next page: %s\n", result.NextPage)
			}
		}()
	} else {
		log.Fatal(err)
	}

	err := cmd.Run()
	if err != nil {
		log.Fatal(err)
	}
}

func writeComment(w io.Writer, comment *model.Comment, depth int) {
	for i := 0; i < depth; i++ {
		fmt.Fprint(w, "  ")
	}
	if comment.State == model.Deleted {
		ansi.Fprintf(w, ansi.Red, "%s (deleted)\n", comment.ID)
	} else {
		ansi.Fprintf(w, ansi.Green, "%s %s ", comment.ID, comment.Author)
		ansi.Fprintf(w, ansi.Yellow, "%s\n", comment.Published)
	}
	for _, child := range comment.Children {
		writeComment(w, child, depth+1)
	}
}

func describeEntry(w io.Writer, result *ljparse.EntryParseResult) {
	fmt.Fprintln(w, result.Entry)
	for thread := range result.Threads {
		fmt.Fprintf(w, "Collapsed thread: %s\n", thread)
	}
	if result.NextPage != "" {
		fmt.Fprintf(w, "Next page: %s\n", result.NextPage)
	}
}
