package archiver

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zvonler/ljcorpus/database"
	"github.com/zvonler/ljcorpus/fetch"
	"github.com/zvonler/ljcorpus/scheduler"
)

type stubFetcher struct {
	pages   map[string]string
	fetched []string
}

func (f *stubFetcher) FetchText(url string) (string, error) {
	f.fetched = append(f.fetched, url)
	if text, ok := f.pages[url]; ok {
		return text, nil
	}
	return "", &fetch.TransportError{URL: url, Err: errors.New("no such page")}
}

func ftmPage(entryID, title string, comments ...string) string {
	head := fmt.Sprintf(`<html><head>
<meta property="og:url" content="https://ftm.livejournal.com/%s.html"/>
<meta property="og:title" content="%s"/>
</head><body>
<div class="entry-text">
<div class="entry-date"><abbr title="2013-03-26T17:43:00+00:00">March 26th, 2013</abbr></div>
<span class="username"><b>someuser</b></span>
<div class="entry-content">Entry body</div>
</div>
`, entryID, title)
	return head + strings.Join(comments, "\n") + "</body></html>"
}

func liveCmt(id string, indent int, author, content string) string {
	return fmt.Sprintf(`<div id="ljcmt%s" class="ljcmt_full" style="margin-left: %dpx">`+
		`<span class="i-ljuser-username"><b>%s</b></span>`+
		`<a class="comment-permalink" href="#t%s">2013-03-26 05:43 pm (UTC)</a>`+
		`<div class="comment-text">%s</div></div>`,
		id, indent, author, id, content)
}

func zippedCmt(id string, indent int) string {
	return fmt.Sprintf(`<div id="ljcmt%s" style="margin-left: %dpx"><a href="#">Expand</a></div>`, id, indent)
}

func newTestArchiver(t *testing.T, pages map[string]string) (*stubFetcher, *database.ArchiveDB, *scheduler.Scheduler) {
	adb, err := database.OpenArchiveDB(t.TempDir() + "/test.db")
	require.Equal(t, nil, err)
	t.Cleanup(adb.Close)

	fetcher := &stubFetcher{pages: pages}
	sched := scheduler.New(adb, "1")
	New(fetcher, adb, sched)
	return fetcher, adb, sched
}

func TestEntryURL(t *testing.T) {
	require.Equal(t, true, EntryURL("https://ftm.livejournal.com/7232256.html"))
	require.Equal(t, true, EntryURL("https://ftm.livejournal.com/7232256.html?thread=1001"))
	require.Equal(t, false, EntryURL("https://ftm.livejournal.com/2013/03/26/"))
	require.Equal(t, false, EntryURL("https://ftm.livejournal.com/profile"))
}

func TestScrapeArchivePage(t *testing.T) {
	listPage := `<html><head>
<meta property="og:url" content="https://ftm.livejournal.com/2013/03/26/"/>
</head><body>
<a href="https://ftm.livejournal.com/7232256.html">First</a>
<a href="https://ftm.livejournal.com/7233000.html">Second</a>
</body></html>`

	pages := map[string]string{
		"https://ftm.livejournal.com/2013/03/26": listPage,
		"https://ftm.livejournal.com/7232256.html": ftmPage("7232256", "First",
			liveCmt("1001", 0, "alice", "hello")),
		"https://ftm.livejournal.com/7233000.html": ftmPage("7233000", "Second"),
	}

	_, adb, sched := newTestArchiver(t, pages)
	sched.EnqueueEntryList("https://ftm.livejournal.com/2013/03/26/")
	sched.Run()

	entries, err := adb.GetEntries()
	require.Equal(t, nil, err)
	require.Equal(t, 2, len(entries))
	require.Equal(t, "First", entries[0].Subject)
	require.Equal(t, "7232256", entries[0].SourceID)
	require.Equal(t, "Second", entries[1].Subject)

	roots, err := adb.EntryCommentTree(entries[0].Id)
	require.Equal(t, nil, err)
	require.Equal(t, 1, len(roots))
	require.Equal(t, "alice", roots[0].Author)
}

func TestScrapeFollowsCollapsedThreads(t *testing.T) {
	pages := map[string]string{
		"https://ftm.livejournal.com/7232256.html": ftmPage("7232256", "Original subject",
			liveCmt("2001", 0, "carol", "visible root"),
			zippedCmt("1001", 0)),
		"https://ftm.livejournal.com/7232256.html?thread=1001": ftmPage("7232256", "Re-fetched thread",
			liveCmt("1001", 0, "alice", "thread top"),
			liveCmt("1002", 25, "bob", "reply"),
			zippedCmt("1003", 50)),
		"https://ftm.livejournal.com/7232256.html?thread=1002": ftmPage("7232256", "Re-fetched thread",
			liveCmt("1002", 0, "bob", "reply"),
			liveCmt("1003", 25, "alice", "deep reply")),
	}

	fetcher, adb, sched := newTestArchiver(t, pages)
	sched.EnqueueEntry("https://ftm.livejournal.com/7232256.html")
	sched.Run()

	require.Equal(t, []string{
		"https://ftm.livejournal.com/7232256.html",
		"https://ftm.livejournal.com/7232256.html?thread=1001",
		"https://ftm.livejournal.com/7232256.html?thread=1002",
	}, fetcher.fetched)

	entries, err := adb.GetEntries()
	require.Equal(t, nil, err)
	require.Equal(t, 1, len(entries))
	// The thread fetches only touch comments; the first parse owns the
	// entry metadata.
	require.Equal(t, "Original subject", entries[0].Subject)

	roots, err := adb.EntryCommentTree(entries[0].Id)
	require.Equal(t, nil, err)
	require.Equal(t, 2, len(roots))
	require.Equal(t, "2001", roots[0].ID)
	require.Equal(t, "1001", roots[1].ID)
	require.Equal(t, "1002", roots[1].Children[0].ID)
	require.Equal(t, "1003", roots[1].Children[0].Children[0].ID)

	letters, err := adb.DeadLetters()
	require.Equal(t, nil, err)
	require.Equal(t, 0, len(letters))
}

func TestScrapeEntryAnomalyDeadLetters(t *testing.T) {
	pages := map[string]string{
		"https://ftm.livejournal.com/7232256.html": ftmPage("7232256", "Odd indents",
			liveCmt("1001", 0, "alice", "root"),
			liveCmt("1002", 40, "bob", "nothing steps by 40")),
	}

	_, adb, sched := newTestArchiver(t, pages)
	sched.EnqueueEntry("https://ftm.livejournal.com/7232256.html")
	sched.Run()

	entries, err := adb.GetEntries()
	require.Equal(t, nil, err)
	require.Equal(t, 0, len(entries))

	letters, err := adb.DeadLetters()
	require.Equal(t, nil, err)
	require.Equal(t, 1, len(letters))
	require.Equal(t, "ftm", letters[0].Site)
	require.Equal(t, "7232256", letters[0].EntryID)
	require.Contains(t, letters[0].Reason, "could not find parent")
}

func TestScrapeEntryNextCommentPage(t *testing.T) {
	firstPage := ftmPage("7232256", "Busy entry",
		liveCmt("1001", 0, "alice", "page one root"),
		`<div class="comments-pages-next"><a href="https://ftm.livejournal.com/7232256.html?page=2">Next page</a></div>`)
	secondPage := ftmPage("7232256", "Busy entry",
		liveCmt("3001", 0, "dave", "page two root"))

	pages := map[string]string{
		"https://ftm.livejournal.com/7232256.html":        firstPage,
		"https://ftm.livejournal.com/7232256.html?page=2": secondPage,
	}

	fetcher, adb, sched := newTestArchiver(t, pages)
	sched.EnqueueEntry("https://ftm.livejournal.com/7232256.html")
	sched.Run()

	require.Equal(t, 2, len(fetcher.fetched))

	entries, err := adb.GetEntries()
	require.Equal(t, nil, err)
	require.Equal(t, 1, len(entries))

	roots, err := adb.EntryCommentTree(entries[0].Id)
	require.Equal(t, nil, err)
	require.Equal(t, 2, len(roots))
}
