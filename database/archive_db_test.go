package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zvonler/ljcorpus/model"
)

func testEntry() *model.Entry {
	published := time.Unix(1364319780, 0)
	root := model.LiveComment("1001", published, "alice", "First comment")
	reply := model.LiveComment("1002", published, "bob", "A reply")
	root.AddChild(reply)
	reply.SetParent(root)
	tombstone := model.DeletedComment("1003")
	root.AddChild(tombstone)
	tombstone.SetParent(root)

	return &model.Entry{
		Published: published,
		Author:    "someuser",
		Subject:   "Binding questions",
		Content:   "Has anyone tried this?",
		Comments:  []*model.Comment{root},
		Tags:      []string{"binding", "surgery"},
	}
}

func TestStoreAndRetrieveEntry(t *testing.T) {
	tmpDir := t.TempDir()
	adb, err := OpenArchiveDB(tmpDir + "/test.db")
	require.Equal(t, nil, err)
	defer adb.Close()

	entryId, err := adb.StoreEntry("ftm", "7232256", testEntry(), false)
	require.Equal(t, nil, err)
	require.Greater(t, entryId, EntryID(0))

	entries, err := adb.GetEntries()
	require.Equal(t, nil, err)
	require.Equal(t, 1, len(entries))
	require.Equal(t, "ftm", entries[0].Site)
	require.Equal(t, "7232256", entries[0].SourceID)
	require.Equal(t, "Binding questions", entries[0].Subject)
	require.Equal(t, []string{"binding", "surgery"}, entries[0].Tags)

	roots, err := adb.EntryCommentTree(entryId)
	require.Equal(t, nil, err)
	require.Equal(t, 1, len(roots))
	require.Equal(t, "1001", roots[0].ID)
	require.Equal(t, 3, roots[0].TreeSize())
	require.Equal(t, "1002", roots[0].Children[0].ID)
	require.Equal(t, "bob", roots[0].Children[0].Author)
	require.Equal(t, "1003", roots[0].Children[1].ID)
	require.Equal(t, model.Deleted, roots[0].Children[1].State)
}

func TestStoreEntryIdempotent(t *testing.T) {
	tmpDir := t.TempDir()
	adb, err := OpenArchiveDB(tmpDir + "/test.db")
	require.Equal(t, nil, err)
	defer adb.Close()

	first, err := adb.StoreEntry("ftm", "7232256", testEntry(), false)
	require.Equal(t, nil, err)
	second, err := adb.StoreEntry("ftm", "7232256", testEntry(), false)
	require.Equal(t, nil, err)
	require.Equal(t, first, second)

	entries, err := adb.GetEntries()
	require.Equal(t, nil, err)
	require.Equal(t, 1, len(entries))
}

func TestCommentsOnlyKeepsParent(t *testing.T) {
	tmpDir := t.TempDir()
	adb, err := OpenArchiveDB(tmpDir + "/test.db")
	require.Equal(t, nil, err)
	defer adb.Close()

	entryId, err := adb.StoreEntry("ftm", "7232256", testEntry(), false)
	require.Equal(t, nil, err)

	// A thread fetch re-stores comment 1002 without knowing its parent. The
	// parent recorded by the full-page parse must survive.
	published := time.Unix(1364400000, 0)
	update := &model.Entry{
		Comments: []*model.Comment{
			model.LiveComment("1002", published, "bob", "A reply, edited"),
		},
	}
	updateId, err := adb.StoreEntry("ftm", "7232256", update, true)
	require.Equal(t, nil, err)
	require.Equal(t, entryId, updateId)

	entries, err := adb.GetEntries()
	require.Equal(t, nil, err)
	require.Equal(t, 1, len(entries))
	require.Equal(t, "Binding questions", entries[0].Subject)

	roots, err := adb.EntryCommentTree(entryId)
	require.Equal(t, nil, err)
	require.Equal(t, 1, len(roots))
	require.Equal(t, "1002", roots[0].Children[0].ID)
	require.Equal(t, "A reply, edited", roots[0].Children[0].Content)
}

func TestZippedCommentRejected(t *testing.T) {
	tmpDir := t.TempDir()
	adb, err := OpenArchiveDB(tmpDir + "/test.db")
	require.Equal(t, nil, err)
	defer adb.Close()

	entry := &model.Entry{
		Comments: []*model.Comment{model.ZippedComment("1001")},
	}
	_, err = adb.StoreEntry("ftm", "7232256", entry, true)
	require.NotEqual(t, nil, err)
	require.Contains(t, err.Error(), "zipped")
}

func TestFindEntry(t *testing.T) {
	tmpDir := t.TempDir()
	adb, err := OpenArchiveDB(tmpDir + "/test.db")
	require.Equal(t, nil, err)
	defer adb.Close()

	entryId, err := adb.StoreEntry("ftm", "7232256", testEntry(), false)
	require.Equal(t, nil, err)

	byId, err := adb.FindEntry("1")
	require.Equal(t, nil, err)
	require.Equal(t, entryId, byId.Id)

	byURL, err := adb.FindEntry("https://ftm.livejournal.com/7232256.html")
	require.Equal(t, nil, err)
	require.Equal(t, entryId, byURL.Id)

	_, err = adb.FindEntry("https://ftm.livejournal.com/999.html")
	require.NotEqual(t, nil, err)
	_, err = adb.FindEntry("no-such-entry")
	require.NotEqual(t, nil, err)
}

func TestGetSites(t *testing.T) {
	tmpDir := t.TempDir()
	adb, err := OpenArchiveDB(tmpDir + "/test.db")
	require.Equal(t, nil, err)
	defer adb.Close()

	_, err = adb.StoreEntry("ftm", "7232256", testEntry(), false)
	require.Equal(t, nil, err)
	_, err = adb.StoreEntry("mtf", "123", testEntry(), false)
	require.Equal(t, nil, err)

	sites, err := adb.GetSites()
	require.Equal(t, nil, err)
	require.Equal(t, 2, len(sites))
	require.Equal(t, "ftm", sites[SiteID(1)])
	require.Equal(t, "mtf", sites[SiteID(2)])
}

func TestClaimTask(t *testing.T) {
	tmpDir := t.TempDir()
	adb, err := OpenArchiveDB(tmpDir + "/test.db")
	require.Equal(t, nil, err)
	defer adb.Close()

	url := "https://ftm.livejournal.com/7232256.html"

	claimed, err := adb.ClaimTask("entries", url, "digest-epoch-1")
	require.Equal(t, nil, err)
	require.Equal(t, true, claimed)

	claimed, err = adb.ClaimTask("entries", url, "digest-epoch-1")
	require.Equal(t, nil, err)
	require.Equal(t, false, claimed)

	// A new epoch digests differently and allows the rerun.
	claimed, err = adb.ClaimTask("entries", url, "digest-epoch-2")
	require.Equal(t, nil, err)
	require.Equal(t, true, claimed)
}

func TestDeadLetters(t *testing.T) {
	tmpDir := t.TempDir()
	adb, err := OpenArchiveDB(tmpDir + "/test.db")
	require.Equal(t, nil, err)
	defer adb.Close()

	letters, err := adb.DeadLetters()
	require.Equal(t, nil, err)
	require.Equal(t, 0, len(letters))

	adb.InsertDeadLetter("ftm", "7232256", "https://ftm.livejournal.com/7232256.html?thread=1001", "thread 1001 came back zipped again")

	letters, err = adb.DeadLetters()
	require.Equal(t, nil, err)
	require.Equal(t, 1, len(letters))
	require.Equal(t, "ftm", letters[0].Site)
	require.Equal(t, "7232256", letters[0].EntryID)
	require.Contains(t, letters[0].Reason, "zipped again")

	adb.DeleteDeadLetter(letters[0].Id)
	letters, err = adb.DeadLetters()
	require.Equal(t, nil, err)
	require.Equal(t, 0, len(letters))
}
