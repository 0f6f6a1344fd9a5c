// Package quirks holds the per-community markup rules for the supported
// LiveJournal deployments. All four communities run the same platform but
// render entries and comments with different templates, so everything
// template-shaped lives behind the Community interface.
package quirks

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// UnknownCommunityError indicates a document from a site with no registered
// rules. There is no generic fallback; refetching reproduces the same
// document, so callers should not retry.
type UnknownCommunityError struct {
	Netloc string
}

func (e UnknownCommunityError) Error() string {
	return fmt.Sprintf("unknown community %q", e.Netloc)
}

// StructureError indicates a document shape the parser has no rule for. It is
// distinct from ordinary absence of data (no comments, no prev link), which
// is reported as an empty value instead.
type StructureError struct {
	Reason string
}

func (e *StructureError) Error() string {
	return e.Reason
}

func Anomalyf(format string, args ...any) *StructureError {
	return &StructureError{Reason: fmt.Sprintf(format, args...)}
}

// Community answers the markup queries that vary across deployments.
// Implementations are stateless; the registry below is fixed for the life of
// the process.
type Community interface {
	Netloc() string
	// EntryURL canonicalizes a numeric entry id into the community's entry
	// page URL.
	EntryURL(id string) string
	// IndentSteps lists the pixel deltas this community's templates use for
	// one level of comment nesting. Any other delta is an anomaly.
	IndentSteps() []int

	CommentContent(sel *goquery.Selection) (string, error)
	CommentPublished(sel *goquery.Selection) (time.Time, error)
	EntryContent(doc *goquery.Document) (string, error)
	// EntryListPrevLink returns the previous-page link of an archive index,
	// or "" when this is the oldest known page.
	EntryListPrevLink(doc *goquery.Document) string
	EntryPublished(doc *goquery.Document) (time.Time, error)
	EntryUsername(doc *goquery.Document) (string, error)
	IsCommentDeleted(sel *goquery.Selection) bool
	IsCommentZipped(sel *goquery.Selection) bool
}

func communities() []Community {
	return []Community{
		ftm{netloc: "ftm"},
		mtf{netloc: "mtf"},
		genderqueer{mtf{netloc: "genderqueer"}},
		transgender{genderqueer{mtf{netloc: "transgender"}}},
	}
}

// FromNetloc looks up a community by the first label of its hostname.
func FromNetloc(netloc string) (Community, error) {
	for _, c := range communities() {
		if c.Netloc() == netloc {
			return c, nil
		}
	}
	return nil, UnknownCommunityError{Netloc: netloc}
}

// FindCommunity resolves the community for a document from its canonical URL
// meta field.
func FindCommunity(doc *goquery.Document) (Community, error) {
	selfURL, ok := doc.Find(`meta[property="og:url"]`).Attr("content")
	if !ok {
		return nil, Anomalyf("document has no og:url meta tag")
	}
	parsed, err := url.Parse(selfURL)
	if err != nil {
		return nil, Anomalyf("unparseable og:url %q: %v", selfURL, err)
	}
	label, _, _ := strings.Cut(parsed.Hostname(), ".")
	return FromNetloc(label)
}

// Comment permalinks and old-template timestamps render like
// "2013-03-26 05:43 pm (UTC)".
const permalinkTimeLayout = "2006-01-02 03:04 pm (UTC)"

var ordinalPattern = regexp.MustCompile(`(\d+)(?:st|nd|rd|th)`)

// parseLooseTime handles the timestamp renderings seen across template
// generations.
func parseLooseTime(raw string) (time.Time, error) {
	cleaned := ordinalPattern.ReplaceAllString(strings.TrimSpace(raw), "$1")
	layouts := []string{
		time.RFC3339,
		permalinkTimeLayout,
		"Jan. 2, 2006 03:04 pm",
		"Jan. 2, 2006",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t, nil
		}
	}
	return time.Time{}, Anomalyf("unparseable timestamp %q", raw)
}

/*---------------------------------------------------------------------------*/

type ftm struct {
	netloc string
}

func (c ftm) Netloc() string { return c.netloc }

func (c ftm) EntryURL(id string) string {
	return fmt.Sprintf("https://%s.livejournal.com/%s.html", c.netloc, id)
}

func (c ftm) IndentSteps() []int { return []int{25, 30} }

func (c ftm) CommentContent(sel *goquery.Selection) (string, error) {
	text := sel.Find(".comment-text")
	if text.Length() == 0 {
		return "", Anomalyf("comment has no .comment-text")
	}
	return text.First().Text(), nil
}

func (c ftm) CommentPublished(sel *goquery.Selection) (time.Time, error) {
	link := sel.Find(".comment-permalink")
	if link.Length() == 0 {
		return time.Time{}, Anomalyf("comment has no .comment-permalink")
	}
	raw := strings.TrimSpace(link.First().Text())
	t, err := time.Parse(permalinkTimeLayout, raw)
	if err != nil {
		return time.Time{}, Anomalyf("unparseable comment timestamp %q", raw)
	}
	return t, nil
}

func (c ftm) EntryContent(doc *goquery.Document) (string, error) {
	content := doc.Find(".entry-text .entry-content")
	if content.Length() == 0 {
		return "", Anomalyf("entry has no .entry-content")
	}
	return content.First().Text(), nil
}

func (c ftm) EntryListPrevLink(doc *goquery.Document) (href string) {
	doc.Find(`ul[class*='page-nav'] a[href]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.TrimSpace(a.Text()) == "Next 10" {
			href, _ = a.Attr("href")
			return false
		}
		return true
	})
	return
}

func (c ftm) EntryPublished(doc *goquery.Document) (time.Time, error) {
	title, ok := doc.Find(".entry-text .entry-date abbr").Attr("title")
	if !ok {
		return time.Time{}, Anomalyf("entry has no dated abbr element")
	}
	return parseLooseTime(title)
}

func (c ftm) EntryUsername(doc *goquery.Document) (string, error) {
	b := doc.Find(".entry-text .username b")
	if b.Length() == 0 {
		return "", Anomalyf("entry has no .username")
	}
	return b.First().Text(), nil
}

func (c ftm) IsCommentDeleted(sel *goquery.Selection) bool {
	return sel.HasClass("deleted")
}

func (c ftm) IsCommentZipped(sel *goquery.Selection) bool {
	return sel.Find(".comment-permalink").Length() == 0
}

/*---------------------------------------------------------------------------*/

type mtf struct {
	netloc string
}

func (c mtf) Netloc() string { return c.netloc }

func (c mtf) EntryURL(id string) string {
	return fmt.Sprintf("https://%s.livejournal.com/%s.html", c.netloc, id)
}

func (c mtf) IndentSteps() []int { return []int{25, 30} }

func (c mtf) CommentContent(sel *goquery.Selection) (string, error) {
	divs := sel.Find("div")
	if divs.Length() < 2 {
		return "", Anomalyf("comment has no content div")
	}
	return divs.Eq(1).Text(), nil
}

func (c mtf) CommentPublished(sel *goquery.Selection) (time.Time, error) {
	link := sel.Find(`[title*='journal']`)
	if link.Length() == 0 {
		return time.Time{}, Anomalyf("comment has no permalink title")
	}
	raw := strings.TrimSpace(link.First().Text())
	t, err := time.Parse(permalinkTimeLayout, raw)
	if err != nil {
		return time.Time{}, Anomalyf("unparseable comment timestamp %q", raw)
	}
	return t, nil
}

func (c mtf) EntryContent(doc *goquery.Document) (string, error) {
	if article := doc.Find("article.entry-content"); article.Length() > 0 {
		return article.First().Text(), nil
	}
	// Old S2 template renders the entry inside a table, with the poster's
	// userhead repeated at the front of the text.
	cell := doc.Find("table.s2-entrytext tr:nth-child(2)")
	if cell.Length() == 0 {
		return "", Anomalyf("entry has neither article nor s2-entrytext content")
	}
	raw := cell.First().Text()
	userhead := regexp.MustCompile(c.netloc + `\[\S+\]`)
	if loc := userhead.FindStringIndex(raw); loc != nil {
		raw = raw[:loc[0]] + raw[loc[1]:]
	}
	return raw, nil
}

func (c mtf) EntryListPrevLink(doc *goquery.Document) (href string) {
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.TrimSpace(a.Text()) == "earlier" {
			href, _ = a.Attr("href")
			return false
		}
		return true
	})
	return
}

func (c mtf) EntryPublished(doc *goquery.Document) (time.Time, error) {
	if t := doc.Find("article time"); t.Length() > 0 {
		return parseLooseTime(t.First().Text())
	}
	idx := doc.Find("table.s2-entrytext td.index")
	if idx.Length() == 0 {
		return time.Time{}, Anomalyf("entry has no timestamp element")
	}
	// Renders like "[Feb. 3rd, 2008|08:53 pm]".
	raw := strings.Trim(strings.TrimSpace(idx.First().Text()), "[]")
	return parseLooseTime(strings.ReplaceAll(raw, "|", " "))
}

func (c mtf) EntryUsername(doc *goquery.Document) (string, error) {
	if dt := doc.Find("article dl.author dt"); dt.Length() > 0 {
		user, ok := dt.First().Attr("lj:user")
		if !ok {
			return "", Anomalyf("entry author has no lj:user attribute")
		}
		return user, nil
	}
	fonts := doc.Find("table.s2-entrytext td font")
	if fonts.Length() < 2 {
		return "", Anomalyf("entry has no author element")
	}
	return fonts.Eq(1).Text(), nil
}

func (c mtf) IsCommentDeleted(sel *goquery.Selection) bool {
	if !sel.HasClass("ljcmt_full") && strings.TrimSpace(sel.Text()) == "(Deleted comment)" {
		return true
	}
	return sel.Find(".b-leaf-deleted").Length() > 0
}

func (c mtf) IsCommentZipped(sel *goquery.Selection) bool {
	return !sel.HasClass("ljcmt_full")
}

/*---------------------------------------------------------------------------*/

// genderqueer shares the mtf rules except for the four overrides below. The
// overrides are the complete delta; anything not defined here resolves to the
// embedded mtf method.
type genderqueer struct {
	mtf
}

func (c genderqueer) EntryURL(id string) string {
	return fmt.Sprintf("https://%s.livejournal.com/%s.html?nojs=1", c.netloc, id)
}

func (c genderqueer) CommentContent(sel *goquery.Selection) (string, error) {
	article := sel.Find(".b-leaf-article")
	if article.Length() == 0 {
		return "", Anomalyf("comment has no .b-leaf-article")
	}
	return article.First().Text(), nil
}

func (c genderqueer) CommentPublished(sel *goquery.Selection) (time.Time, error) {
	ts, ok := sel.Find("div.comment[data-updated-ts]").Attr("data-updated-ts")
	if !ok {
		return time.Time{}, Anomalyf("comment has no data-updated-ts")
	}
	seconds, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, Anomalyf("unparseable data-updated-ts %q", ts)
	}
	return time.Unix(seconds, 0), nil
}

func (c genderqueer) IsCommentZipped(sel *goquery.Selection) bool {
	return sel.Find(".b-leaf-collapsed").Length() > 0
}

/*---------------------------------------------------------------------------*/

// transgender is genderqueer with a restyled archive pager.
type transgender struct {
	genderqueer
}

func (c transgender) EntryListPrevLink(doc *goquery.Document) string {
	href, _ := doc.Find(".j-page-nav-item-prev a[href]").First().Attr("href")
	return href
}
