package ljparse

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/zvonler/ljcorpus/quirks"
	"golang.org/x/net/html"
)

func entryLinkPattern(community quirks.Community) *regexp.Regexp {
	return regexp.MustCompile(`^https://` + community.Netloc() + `\.livejournal\.com/(\d+)\.html`)
}

func (b *treeBuilder) resolveParent(sel *goquery.Selection) (string, error) {
	return resolveParent(b.community, sel)
}

// resolveParent returns the id of the fragment's parent comment, or "" for a
// root. An explicit "Parent" link is authoritative when present; otherwise
// the parent is inferred from indentation relative to earlier siblings, which
// is the fragile path and fails loudly on any shape it has no rule for.
func resolveParent(community quirks.Community, sel *goquery.Selection) (string, error) {
	if parentID, err := parentIDFromHref(community, sel); err != nil || parentID != "" {
		return parentID, err
	}

	indent, err := commentIndent(sel)
	if err != nil {
		return "", err
	}
	if indent == 0 {
		// No indent means a root, which has no parent.
		return "", nil
	}

	previous := previousCommentSiblings(sel)
	if len(previous) == 0 {
		return "", quirks.Anomalyf("indented comment has no previous comment siblings")
	}

	for _, prevNode := range previous {
		prevIndent, err := commentIndent(selectionForNode(prevNode))
		if err != nil {
			return "", err
		}
		if prevIndent > indent {
			// Deeper branch of an earlier subthread; keep scanning back.
			continue
		}
		if prevIndent == indent {
			// Same level, so same parent.
			parentID, err := resolveParent(community, selectionForNode(prevNode))
			if err != nil {
				return "", err
			}
			if parentID == "" {
				// A same-level sibling of a non-root must itself have a
				// parent; a root would have been caught by the indent check.
				return "", quirks.Anomalyf("expected sibling at indent %d to have a parent", indent)
			}
			return parentID, nil
		}
		for _, step := range community.IndentSteps() {
			if prevIndent == indent-step {
				// Exactly one level up: the previous sibling is the parent.
				// Seen when a deleted placeholder is the first reply.
				return fragmentID(prevNode)
			}
		}
		return "", quirks.Anomalyf("could not find parent: indent %d follows indent %d", indent, prevIndent)
	}
	return "", quirks.Anomalyf("ran out of siblings resolving parent at indent %d", indent)
}

// parentIDFromHref looks for the explicit "Parent" anchor pointing back into
// the community's own domain. Returns "" when no such anchor exists.
func parentIDFromHref(community quirks.Community, sel *goquery.Selection) (string, error) {
	pattern := regexp.MustCompile(`^https?://` + community.Netloc() + `\.livejournal\.com`)
	var hrefs []string
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if strings.TrimSpace(a.Text()) != "Parent" {
			return
		}
		if href, _ := a.Attr("href"); pattern.MatchString(href) {
			hrefs = append(hrefs, href)
		}
	})
	if len(hrefs) == 0 {
		return "", nil
	}
	if len(hrefs) > 1 {
		return "", quirks.Anomalyf("comment has %d Parent links", len(hrefs))
	}
	parsed, err := url.Parse(hrefs[0])
	if err != nil {
		return "", quirks.Anomalyf("unparseable Parent link %q", hrefs[0])
	}
	id := strings.TrimPrefix(parsed.Fragment, "t")
	if id == "" {
		return "", quirks.Anomalyf("Parent link %q carries no comment id", hrefs[0])
	}
	return id, nil
}

var marginPattern = regexp.MustCompile(`margin-left:\s*(\d+)px`)

// commentIndent reads the nesting level the template encodes as a
// margin-left pixel count in the fragment's style attribute.
func commentIndent(sel *goquery.Selection) (int, error) {
	if style, ok := sel.Attr("style"); ok {
		if m := marginPattern.FindStringSubmatch(style); m != nil {
			indent, err := strconv.Atoi(m[1])
			if err == nil {
				return indent, nil
			}
		}
	}
	return 0, quirks.Anomalyf("could not determine comment indent")
}

// fragmentID derives a comment id from a raw fragment node using whichever
// id-encoding scheme the node carries.
func fragmentID(n *html.Node) (string, error) {
	tidPattern := regexp.MustCompile(`^t(\d+)$`)
	for _, attr := range n.Attr {
		if attr.Key == "data-tid" {
			if m := tidPattern.FindStringSubmatch(attr.Val); m != nil {
				return m[1], nil
			}
			return "", quirks.Anomalyf("fragment has malformed data-tid %q", attr.Val)
		}
	}
	for _, attr := range n.Attr {
		if attr.Key == "id" {
			return strings.TrimPrefix(attr.Val, "ljcmt"), nil
		}
	}
	return "", quirks.Anomalyf("fragment has neither data-tid nor id")
}

// previousCommentSiblings collects the document-order siblings before the
// fragment that look like comments, nearest first.
func previousCommentSiblings(sel *goquery.Selection) (res []*html.Node) {
	for n := sel.Get(0).PrevSibling; n != nil; n = n.PrevSibling {
		if isCommentNode(n) {
			res = append(res, n)
		}
	}
	return
}

func isCommentNode(n *html.Node) bool {
	if n.Type != html.ElementNode || n.Data != "div" {
		return false
	}
	for _, attr := range n.Attr {
		switch attr.Key {
		case "id":
			if strings.HasPrefix(attr.Val, "ljcmt") {
				return true
			}
		case "class":
			for _, cls := range strings.Fields(attr.Val) {
				if cls == "b-tree-twig" {
					return true
				}
			}
		}
	}
	return false
}

func selectionForNode(n *html.Node) *goquery.Selection {
	return goquery.NewDocumentFromNode(n).Selection
}
