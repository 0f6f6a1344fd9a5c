package database

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	_ "github.com/mattn/go-sqlite3"
	"github.com/zvonler/ljcorpus/model"
)

type SiteID uint
type EntryID uint
type CommentID uint

// ArchiveDB persists parsed entries and comments. Comments are stored flat,
// keyed by their source id with a reference to the parent's source id, so
// arbitrarily deep threads never nest physically and the tree is rebuilt by
// following parent references.
type ArchiveDB struct {
	Filename          string
	DB                *sql.DB
	insertSiteStmt    string
	insertEntryStmt   string
	entryStubStmt     string
	insertCommentStmt string
	claimTaskStmt     string
}

func regex(re, s string) (bool, error) {
	return regexp.MatchString(re, s)
}

var registerDriver sync.Once

func OpenArchiveDB(path string) (adb *ArchiveDB, err error) {
	registerDriver.Do(func() {
		sql.Register("sqlite3_regex",
			&sqlite3.SQLiteDriver{
				ConnectHook: func(conn *sqlite3.SQLiteConn) error {
					return conn.RegisterFunc("regexp", regex, true)
				},
			})
	})

	if existing_db, err := exists(path); err == nil {
		if db, err := sql.Open("sqlite3_regex", path); err == nil {
			adb = new(ArchiveDB)
			adb.Filename = path
			adb.DB = db
			if !existing_db {
				adb.initTables()
			}
			adb.initSQLStatements()
		}
	}
	return
}

func (adb *ArchiveDB) Close() {
	adb.DB.Close()
}

type RowsReceiver func(*sql.Rows) bool

func (adb *ArchiveDB) ForEachRowOrPanic(receiver RowsReceiver, stmt string, params ...any) {
	if rows, err := adb.DB.Query(stmt, params...); err == nil {
		defer rows.Close()
		for rows.Next() {
			if !receiver(rows) {
				break
			}
		}
	} else {
		panic(err)
	}
}

func (adb *ArchiveDB) ForSingleRowOrPanic(receiver RowsReceiver, stmt string, params ...any) {
	var rowReceived bool
	singleReceiver := func(rows *sql.Rows) bool {
		if rowReceived {
			panic(fmt.Sprintf("Received second row for %q", stmt))
		}
		receiver(rows)
		rowReceived = true
		return true
	}
	adb.ForEachRowOrPanic(singleReceiver, stmt, params...)
}

func (adb *ArchiveDB) ExecOrPanic(stmt string, params ...any) {
	if _, err := adb.DB.Exec(stmt, params...); err != nil {
		panic(err)
	}
}

// StoreEntry writes one parsed entry and its comment tree. With commentsOnly
// set (thread and comment-page fetches) the entry metadata is left alone and
// only a stub row is ensured so the comments have something to hang off.
func (adb *ArchiveDB) StoreEntry(netloc, sourceID string, entry *model.Entry, commentsOnly bool) (entryId EntryID, err error) {
	var siteId SiteID
	if siteId, err = adb.getOrInsertSite(netloc); err != nil {
		return
	}

	if commentsOnly {
		adb.ForSingleRowOrPanic(
			func(rows *sql.Rows) bool {
				err = rows.Scan(&entryId)
				return true
			},
			adb.entryStubStmt, siteId, sourceID)
	} else {
		adb.ForSingleRowOrPanic(
			func(rows *sql.Rows) bool {
				err = rows.Scan(&entryId)
				return true
			},
			adb.insertEntryStmt,
			siteId, sourceID, entry.Published.Unix(), entry.Author,
			entry.Subject, entry.Content, strings.Join(entry.Tags, ","))
	}
	if err != nil {
		return
	}

	for _, comment := range entry.Comments {
		if err = adb.storeComment(entryId, comment); err != nil {
			return
		}
	}
	return
}

func (adb *ArchiveDB) storeComment(entryId EntryID, comment *model.Comment) (err error) {
	if comment.State == model.Zipped {
		return fmt.Errorf("comment %s: refusing to store a zipped placeholder", comment.ID)
	}

	// The parent reference is passed as NULL when this parse found none, and
	// the upsert keeps any previously stored parent in that case. A comment
	// re-stored by a thread fetch must not lose the parent the full-page
	// parse recorded.
	var parentID any
	if comment.Parent != nil {
		parentID = comment.Parent.ID
	}
	deleted := 0
	if comment.State == model.Deleted {
		deleted = 1
	}
	var published any
	if !comment.Published.IsZero() {
		published = comment.Published.Unix()
	}

	adb.ExecOrPanic(adb.insertCommentStmt,
		entryId, comment.ID, parentID, deleted, published, comment.Author, comment.Content)

	for _, child := range comment.Children {
		if err = adb.storeComment(entryId, child); err != nil {
			return
		}
	}
	return
}

func (adb *ArchiveDB) getOrInsertSite(netloc string) (id SiteID, err error) {
	adb.ForSingleRowOrPanic(
		func(rows *sql.Rows) bool {
			err = rows.Scan(&id)
			return true
		},
		adb.insertSiteStmt, netloc)
	return
}

// StoredEntry is one entry row joined with its site.
type StoredEntry struct {
	Id        EntryID
	Site      string
	SourceID  string
	Published time.Time
	Author    string
	Subject   string
	Content   string
	Tags      []string
}

func (adb *ArchiveDB) GetEntries() (entries []StoredEntry, err error) {
	stmt := `
		SELECT
			e.id, s.netloc, e.source_id,
			COALESCE(e.published, 0), COALESCE(e.author, ''),
			COALESCE(e.subject, ''), COALESCE(e.content, ''), COALESCE(e.tags, '')
		FROM entry e, site s
		WHERE e.site_id = s.id
		ORDER BY e.id`
	adb.ForEachRowOrPanic(
		func(rows *sql.Rows) bool {
			var e StoredEntry
			var published int64
			var tags string
			if err = rows.Scan(&e.Id, &e.Site, &e.SourceID, &published, &e.Author, &e.Subject, &e.Content, &tags); err != nil {
				return false
			}
			e.Published = time.Unix(published, 0)
			if tags != "" {
				e.Tags = strings.Split(tags, ",")
			}
			entries = append(entries, e)
			return true
		},
		stmt)
	return
}

// FindEntry accepts either a database entry id or an entry URL.
func (adb *ArchiveDB) FindEntry(ref string) (entry StoredEntry, err error) {
	digits := regexp.MustCompile(`^\d+$`)
	var entries []StoredEntry
	if entries, err = adb.GetEntries(); err != nil {
		return
	}
	if digits.MatchString(ref) {
		for _, e := range entries {
			if fmt.Sprint(e.Id) == ref {
				return e, nil
			}
		}
	} else if parsed, urlErr := url.Parse(ref); urlErr == nil {
		label, _, _ := strings.Cut(parsed.Hostname(), ".")
		pathID := regexp.MustCompile(`^/(\d+)\.html$`).FindStringSubmatch(parsed.Path)
		if pathID != nil {
			for _, e := range entries {
				if e.Site == label && e.SourceID == pathID[1] {
					return e, nil
				}
			}
		}
	}
	err = errors.New("Not found")
	return
}

// EntryCommentTree rebuilds the comment tree for an entry from the flat rows
// by following parent references. Comments whose parent is not stored (yet)
// surface as roots.
func (adb *ArchiveDB) EntryCommentTree(entryId EntryID) (roots []*model.Comment, err error) {
	stmt := `
		SELECT
			source_id, COALESCE(parent_source_id, ''), deleted,
			COALESCE(published, 0), COALESCE(author, ''), COALESCE(content, '')
		FROM comment
		WHERE entry_id = ?
		ORDER BY id`

	byId := make(map[string]*model.Comment)
	parents := make(map[string]string)
	var order []string

	adb.ForEachRowOrPanic(
		func(rows *sql.Rows) bool {
			var sourceId, parentId, author, content string
			var deleted int
			var published int64
			if err = rows.Scan(&sourceId, &parentId, &deleted, &published, &author, &content); err != nil {
				return false
			}
			var c *model.Comment
			if deleted != 0 {
				c = model.DeletedComment(sourceId)
			} else {
				c = model.LiveComment(sourceId, time.Unix(published, 0), author, content)
			}
			byId[sourceId] = c
			parents[sourceId] = parentId
			order = append(order, sourceId)
			return true
		},
		stmt, entryId)
	if err != nil {
		return
	}

	for _, id := range order {
		c := byId[id]
		if parent, ok := byId[parents[id]]; ok {
			if err = parent.AddChild(c); err != nil {
				return
			}
			if err = c.SetParent(parent); err != nil {
				return
			}
		} else {
			roots = append(roots, c)
		}
	}
	return
}

func (adb *ArchiveDB) GetSites() (sitesById map[SiteID]string, err error) {
	sitesById = make(map[SiteID]string)
	adb.ForEachRowOrPanic(
		func(rows *sql.Rows) bool {
			var id SiteID
			var netloc string
			if err = rows.Scan(&id, &netloc); err != nil {
				return false
			}
			sitesById[id] = netloc
			return true
		},
		"SELECT id, netloc FROM site")
	return
}

// ClaimTask records a unit of work by its digest and reports whether it was
// newly claimed. A false return means the same logical fetch was already
// enqueued this epoch and should not be duplicated.
func (adb *ArchiveDB) ClaimTask(queue, url, digest string) (claimed bool, err error) {
	var res sql.Result
	if res, err = adb.DB.Exec(adb.claimTaskStmt, queue, url, digest, time.Now().Unix()); err == nil {
		var affected int64
		if affected, err = res.RowsAffected(); err == nil {
			claimed = affected > 0
		}
	}
	return
}

// DeadLetter is a durable record of a unit of work that failed unrecoverably,
// retained for manual reprocessing.
type DeadLetter struct {
	Id       uint
	Site     string
	EntryID  string
	URL      string
	Reason   string
	FailedAt time.Time
}

func (adb *ArchiveDB) InsertDeadLetter(site, entryID, url, reason string) {
	adb.ExecOrPanic(
		"INSERT INTO dead_letter (site, entry_source_id, url, reason, failed_at) VALUES (?, ?, ?, ?, ?)",
		site, entryID, url, reason, time.Now().Unix())
}

func (adb *ArchiveDB) DeadLetters() (letters []DeadLetter, err error) {
	adb.ForEachRowOrPanic(
		func(rows *sql.Rows) bool {
			var dl DeadLetter
			var failedAt int64
			if err = rows.Scan(&dl.Id, &dl.Site, &dl.EntryID, &dl.URL, &dl.Reason, &failedAt); err != nil {
				return false
			}
			dl.FailedAt = time.Unix(failedAt, 0)
			letters = append(letters, dl)
			return true
		},
		"SELECT id, site, entry_source_id, url, reason, failed_at FROM dead_letter ORDER BY id")
	return
}

func (adb *ArchiveDB) DeleteDeadLetter(id uint) {
	adb.ExecOrPanic("DELETE FROM dead_letter WHERE id = ?", id)
}

func (adb *ArchiveDB) initTables() {
	schema := `
CREATE TABLE site (
	id INTEGER NOT NULL PRIMARY KEY,
	netloc TEXT UNIQUE
);

CREATE TABLE entry (
	id INTEGER NOT NULL PRIMARY KEY,
	site_id INTEGER NOT NULL,
	source_id TEXT NOT NULL,
	published INTEGER,
	author TEXT,
	subject TEXT,
	content TEXT,
	tags TEXT,

	UNIQUE(site_id, source_id)
);

CREATE TABLE comment (
	id INTEGER NOT NULL PRIMARY KEY,
	entry_id INTEGER NOT NULL,
	source_id TEXT NOT NULL,
	parent_source_id TEXT,
	deleted INTEGER NOT NULL DEFAULT 0,
	published INTEGER,
	author TEXT,
	content TEXT,

	UNIQUE(entry_id, source_id)
);

CREATE TABLE task (
	id INTEGER NOT NULL PRIMARY KEY,
	queue TEXT NOT NULL,
	url TEXT NOT NULL,
	digest TEXT UNIQUE,
	enqueued INTEGER
);

CREATE TABLE dead_letter (
	id INTEGER NOT NULL PRIMARY KEY,
	site TEXT,
	entry_source_id TEXT,
	url TEXT,
	reason TEXT,
	failed_at INTEGER
);
`
	_, err := adb.DB.Exec(schema)
	if err != nil {
		fmt.Printf("Error loading schema: %q\n", err)
		return
	}
}

func (adb *ArchiveDB) initSQLStatements() {
	adb.insertSiteStmt = `
		INSERT INTO site
			(netloc)
		VALUES
			(?)
		ON CONFLICT DO UPDATE SET
			netloc = netloc
		RETURNING id`

	adb.insertEntryStmt = `
		INSERT INTO entry
			(site_id, source_id, published, author, subject, content, tags)
		VALUES
			(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(site_id, source_id) DO UPDATE SET
			published = excluded.published,
			author = excluded.author,
			subject = excluded.subject,
			content = excluded.content,
			tags = excluded.tags
		RETURNING id`

	adb.entryStubStmt = `
		INSERT INTO entry
			(site_id, source_id)
		VALUES
			(?, ?)
		ON CONFLICT(site_id, source_id) DO UPDATE SET
			source_id = source_id
		RETURNING id`

	adb.insertCommentStmt = `
		INSERT INTO comment
			(entry_id, source_id, parent_source_id, deleted, published, author, content)
		VALUES
			(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entry_id, source_id) DO UPDATE SET
			deleted = excluded.deleted,
			published = excluded.published,
			author = excluded.author,
			content = excluded.content,
			parent_source_id = COALESCE(excluded.parent_source_id, comment.parent_source_id)`

	adb.claimTaskStmt = `
		INSERT INTO task
			(queue, url, digest, enqueued)
		VALUES
			(?, ?, ?, ?)
		ON CONFLICT DO NOTHING`
}

func exists(path string) (res bool, err error) {
	_, statErr := os.Stat(path)
	if statErr == nil {
		res = true
	} else if !os.IsNotExist(statErr) {
		err = statErr
	}
	return
}
