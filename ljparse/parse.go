// Package ljparse reconstructs entries and comment trees from raw LiveJournal
// page text. It performs no I/O; callers feed it fetched documents and decide
// what to do with the links and thread ids it reports back.
package ljparse

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/zvonler/ljcorpus/model"
	"github.com/zvonler/ljcorpus/quirks"
)

// AnonymousAuthor is recorded for live comments posted without a username.
const AnonymousAuthor = "(Anonymous)"

// EntryListParseResult holds the canonical entry URLs found on one archive
// index page. PrevLink is "" on the oldest known page.
type EntryListParseResult struct {
	EntryLinks map[string]bool
	PrevLink   string
}

// EntryParseResult holds one parsed entry page. Threads lists the comment ids
// whose subtrees were collapsed in this view and must be fetched as separate
// thread pages; none of them appear in Entry.Comments. NextPage is "" when
// the comments fit on this page.
type EntryParseResult struct {
	Entry    *model.Entry
	Threads  map[string]bool
	NextPage string
}

// ParseEntryList extracts entry links and the previous-page cursor from an
// archive index page.
func ParseEntryList(rawEntryList string) (*EntryListParseResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawEntryList))
	if err != nil {
		return nil, quirks.Anomalyf("unparseable entry list document: %v", err)
	}
	community, err := quirks.FindCommunity(doc)
	if err != nil {
		return nil, err
	}

	pattern := entryLinkPattern(community)
	links := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if m := pattern.FindStringSubmatch(href); m != nil {
			// Multiple raw hrefs can point at the same entry; the canonical
			// form dedupes them.
			links[community.EntryURL(m[1])] = true
		}
	})

	return &EntryListParseResult{
		EntryLinks: links,
		PrevLink:   community.EntryListPrevLink(doc),
	}, nil
}

// ParseEntry reconstructs one entry page. reparseRoot is set only when this
// fetch exists to re-materialize a previously collapsed thread; that comment
// is rooted directly because its parent is out of view.
func ParseEntry(rawEntry string, reparseRoot string) (*EntryParseResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawEntry))
	if err != nil {
		return nil, quirks.Anomalyf("unparseable entry document: %v", err)
	}
	community, err := quirks.FindCommunity(doc)
	if err != nil {
		return nil, err
	}

	subject, ok := doc.Find(`meta[property="og:title"]`).Attr("content")
	if !ok {
		return nil, quirks.Anomalyf("entry has no og:title meta tag")
	}
	published, err := community.EntryPublished(doc)
	if err != nil {
		return nil, err
	}
	username, err := community.EntryUsername(doc)
	if err != nil {
		return nil, err
	}
	content, err := community.EntryContent(doc)
	if err != nil {
		return nil, err
	}
	var tags []string
	doc.Find(`meta[property="article:tag"]`).Each(func(_ int, m *goquery.Selection) {
		if tag, ok := m.Attr("content"); ok {
			tags = append(tags, tag)
		}
	})

	roots, threads, err := parseEntryComments(doc, community, reparseRoot)
	if err != nil {
		return nil, err
	}

	// Roots that are also collapsed thread markers get persisted by the
	// thread fetch instead, so elide them here.
	comments := make([]*model.Comment, 0, len(roots))
	for _, root := range roots {
		if !threads[root.ID] {
			comments = append(comments, root)
		}
	}

	entry := &model.Entry{
		Published: published,
		Author:    username,
		Subject:   subject,
		Content:   content,
		Comments:  comments,
		Tags:      tags,
	}

	return &EntryParseResult{
		Entry:    entry,
		Threads:  threads,
		NextPage: searchNextCommentPage(doc),
	}, nil
}

func searchNextCommentPage(doc *goquery.Document) string {
	href, _ := doc.Find(".comments-pages-next a").First().Attr("href")
	return href
}

type treeBuilder struct {
	community   quirks.Community
	reparseRoot string
	parsed      map[string]*model.Comment
	roots       []*model.Comment
	threads     map[string]bool
}

func parseEntryComments(doc *goquery.Document, community quirks.Community, reparseRoot string) ([]*model.Comment, map[string]bool, error) {
	builder := &treeBuilder{
		community:   community,
		reparseRoot: reparseRoot,
		parsed:      make(map[string]*model.Comment),
		threads:     make(map[string]bool),
	}

	// Older templates wrap each comment in an id="ljcmt..." div, newer ones
	// in an article tree of b-tree-twig divs. Zero matches on both just
	// means the entry has no comments.
	fragments := doc.Find(`[id^='ljcmt']`)
	if fragments.Length() == 0 {
		fragments = doc.Find("article .b-tree-twig")
	}

	var walkErr error
	fragments.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if err := builder.addFragment(sel); err != nil {
			walkErr = err
			return false
		}
		return true
	})
	if walkErr != nil {
		return nil, nil, walkErr
	}
	return builder.roots, builder.threads, nil
}

func (b *treeBuilder) addFragment(sel *goquery.Selection) error {
	var id string
	if tid, ok := sel.Attr("data-tid"); ok {
		id = strings.TrimPrefix(tid, "t")
		if id == "" {
			// Not a comment at all: a marker for a collapsed group hidden
			// below a sibling, which names the thread to refetch directly.
			parent, ok := sel.Find(`[class*='b-leaf-seemore'][data-parent]`).Attr("data-parent")
			if !ok {
				return quirks.Anomalyf("seemore fragment without a data-parent")
			}
			b.threads[parent] = true
			return nil
		}
	} else if rawID, ok := sel.Attr("id"); ok {
		id = strings.TrimPrefix(rawID, "ljcmt")
	} else {
		return quirks.Anomalyf("comment fragment has neither data-tid nor id")
	}

	if b.community.IsCommentDeleted(sel) {
		return b.addDeleted(id, sel)
	}
	return b.addLive(id, sel)
}

func (b *treeBuilder) addLive(id string, sel *goquery.Selection) error {
	if b.community.IsCommentZipped(sel) {
		return b.markZipped(id, sel)
	}

	published, err := b.community.CommentPublished(sel)
	if err != nil {
		return err
	}
	author := AnonymousAuthor
	if name := sel.Find(".i-ljuser-username b"); name.Length() > 0 {
		author = name.First().Text()
	}
	content, err := b.community.CommentContent(sel)
	if err != nil {
		return err
	}

	modeled := model.LiveComment(id, published, author, content)
	b.parsed[id] = modeled

	if b.reparseRoot != "" && b.reparseRoot == id {
		// This is the subtree the fetch was for; its parent is not on this
		// page and looking it up would fail.
		b.roots = append(b.roots, modeled)
		return nil
	}
	return b.attach(modeled, sel)
}

func (b *treeBuilder) addDeleted(id string, sel *goquery.Selection) error {
	modeled := model.DeletedComment(id)
	b.parsed[id] = modeled
	return b.attach(modeled, sel)
}

// attach links a constructed comment under its resolved parent, or records it
// as a root when it has none.
func (b *treeBuilder) attach(modeled *model.Comment, sel *goquery.Selection) error {
	parentID, err := b.resolveParent(sel)
	if err != nil {
		return err
	}
	if parentID == "" {
		b.roots = append(b.roots, modeled)
		return nil
	}
	parent, ok := b.parsed[parentID]
	if !ok {
		return quirks.Anomalyf("comment %s: parent %s not yet parsed", modeled.ID, parentID)
	}
	if err := parent.AddChild(modeled); err != nil {
		return quirks.Anomalyf("%s", err)
	}
	if err := modeled.SetParent(parent); err != nil {
		return quirks.Anomalyf("%s", err)
	}
	return nil
}

// markZipped records the thread that owns a collapsed fragment. The fragment
// itself contributes no content; a transient node is kept only so that later
// fragments can resolve parents through it.
func (b *treeBuilder) markZipped(id string, sel *goquery.Selection) error {
	zipped := model.ZippedComment(id)
	b.parsed[id] = zipped
	threadID := id

	parentID, err := b.resolveParent(sel)
	if err != nil {
		return err
	}
	if parentID != "" {
		parent, ok := b.parsed[parentID]
		if !ok {
			return quirks.Anomalyf("zipped comment %s: parent %s not yet parsed", id, parentID)
		}
		if err := zipped.SetParent(parent); err != nil {
			return quirks.Anomalyf("%s", err)
		}
		for parent != nil {
			threadID = parent.ID
			if b.threads[threadID] {
				// Another branch of the same collapsed thread already
				// scheduled it.
				return nil
			}
			parent = parent.Parent
		}
		if !b.isRoot(threadID) {
			return quirks.Anomalyf("zipped comment %s: thread %s is not a root", id, threadID)
		}
		if b.reparseRoot != "" && b.reparseRoot == threadID {
			// This page was fetched to resolve threadID and it is zipped
			// again. Queue the immediate parent so the dispatcher narrows in
			// instead of looping on the same target.
			threadID = parentID
		}
	}
	b.threads[threadID] = true
	return nil
}

func (b *treeBuilder) isRoot(id string) bool {
	for _, root := range b.roots {
		if root.ID == id {
			return true
		}
	}
	return false
}
