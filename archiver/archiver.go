// Package archiver is the request-handling surface between the scheduler and
// the parsing engine: it fetches a page, invokes the right parser, persists
// the result, and enqueues the follow-up work the parse discovered.
package archiver

import (
	"fmt"
	"log"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/zvonler/ljcorpus/database"
	"github.com/zvonler/ljcorpus/ljparse"
	"github.com/zvonler/ljcorpus/quirks"
	"github.com/zvonler/ljcorpus/scheduler"
)

// Fetcher supplies decoded page text for a URL.
type Fetcher interface {
	FetchText(url string) (string, error)
}

type Archiver struct {
	fetcher Fetcher
	db      *database.ArchiveDB
	sched   *scheduler.Scheduler
}

func New(fetcher Fetcher, db *database.ArchiveDB, sched *scheduler.Scheduler) *Archiver {
	a := &Archiver{fetcher: fetcher, db: db, sched: sched}
	sched.Register(scheduler.EntryListQueue, a.ScrapeEntryList)
	sched.Register(scheduler.EntryQueue, a.ScrapeEntry)
	return a
}

var entryPathPattern = regexp.MustCompile(`^/(\d+)\.html$`)

// EntryURL reports whether a URL names a single entry page rather than an
// archive index.
func EntryURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	return err == nil && entryPathPattern.MatchString(parsed.Path)
}

// ScrapeEntryList fetches one archive index page, enqueues every entry found
// on it and follows the pagination backward through the archive.
func (a *Archiver) ScrapeEntryList(rawURL string) error {
	text, err := a.fetcher.FetchText(rawURL)
	if err != nil {
		return err
	}
	parsed, err := ljparse.ParseEntryList(text)
	if err != nil {
		return err
	}

	links := make([]string, 0, len(parsed.EntryLinks))
	for link := range parsed.EntryLinks {
		links = append(links, link)
	}
	sort.Strings(links)
	a.sched.EnqueueEntries(links)

	if parsed.PrevLink != "" {
		a.sched.EnqueueEntryList(parsed.PrevLink)
	} else {
		// The oldest known page, or a pager we failed to recognize. Worth an
		// operator's eye either way.
		log.Printf("Missing prev link for %s", rawURL)
	}
	return nil
}

// ScrapeEntry fetches one entry page and stores its comment tree. A
// ?thread=<id> query means the fetch exists to materialize that collapsed
// thread; ?thread= and ?page= both mean only comments get persisted, since
// the entry metadata was already stored by the first page.
func (a *Archiver) ScrapeEntry(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("bad entry URL %q: %w", rawURL, err)
	}
	community, _, _ := strings.Cut(parsedURL.Hostname(), ".")
	qs := parsedURL.Query()
	reparseRoot := qs.Get("thread")
	commentsOnly := qs.Has("thread") || qs.Has("page")

	m := entryPathPattern.FindStringSubmatch(parsedURL.Path)
	if m == nil {
		return fmt.Errorf("entry URL %q carries no entry id", rawURL)
	}
	entryID := m[1]

	text, err := a.fetcher.FetchText(rawURL)
	if err != nil {
		return err
	}

	if err := a.parseAndStore(parsedURL, community, entryID, text, reparseRoot, commentsOnly); err != nil {
		// A partially wrong tree is worse than none. Record the unit for
		// manual reprocessing and keep the rest of the crawl moving.
		log.Printf("Scrape failed: community %s, entry %s, url %s: %v", community, entryID, rawURL, err)
		a.db.InsertDeadLetter(community, entryID, rawURL, err.Error())
	}
	return nil
}

func (a *Archiver) parseAndStore(pageURL *url.URL, community, entryID, text, reparseRoot string, commentsOnly bool) error {
	result, err := ljparse.ParseEntry(text, reparseRoot)
	if err != nil {
		return err
	}
	if reparseRoot != "" && result.Threads[reparseRoot] {
		return quirks.Anomalyf("thread %s came back zipped again", reparseRoot)
	}

	if _, err := a.db.StoreEntry(community, entryID, result.Entry, commentsOnly); err != nil {
		return err
	}

	threadURLs := make([]string, 0, len(result.Threads))
	for thread := range result.Threads {
		ref := &url.URL{RawQuery: "thread=" + thread}
		threadURLs = append(threadURLs, pageURL.ResolveReference(ref).String())
	}
	sort.Strings(threadURLs)
	a.sched.EnqueueEntries(threadURLs)

	if result.NextPage != "" {
		a.sched.EnqueueEntries([]string{result.NextPage})
	}
	return nil
}
