package model

import (
	"fmt"
	"strings"
	"time"
)

// Entry is one published post with its comment tree. Entries are built once
// per page parse and not modified afterwards.
type Entry struct {
	Published time.Time
	Author    string
	Subject   string
	Content   string
	Comments  []*Comment
	Tags      []string
}

// TotalComments counts every comment in the tree, roots included.
func (e *Entry) TotalComments() (total int) {
	for _, c := range e.Comments {
		total += c.TreeSize()
	}
	return
}

func (e *Entry) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Entry: %q by %s, published %s\n", e.Subject, e.Author, e.Published)
	fmt.Fprintf(&sb, "%d comments total\n", e.TotalComments())
	for _, c := range e.Comments {
		c.describe(&sb, 1)
	}
	fmt.Fprintf(&sb, "Tags: %v", e.Tags)
	return sb.String()
}

type CommentState int

const (
	// Live comments carry author, timestamp and content.
	Live CommentState = iota
	// Deleted comments are tombstones with no content.
	Deleted
	// Zipped comments are collapsed placeholders. They only exist while a
	// page is being reconstructed and are never persisted.
	Zipped
)

// Comment is one reply node. Children are owned; Parent is a lookup-only
// back-reference and never implies ownership.
type Comment struct {
	ID        string
	State     CommentState
	Published time.Time
	Author    string
	Content   string
	Children  []*Comment
	Parent    *Comment
}

func LiveComment(id string, published time.Time, author, content string) *Comment {
	return &Comment{ID: id, State: Live, Published: published, Author: author, Content: content}
}

func DeletedComment(id string) *Comment {
	return &Comment{ID: id, State: Deleted}
}

func ZippedComment(id string) *Comment {
	return &Comment{ID: id, State: Zipped}
}

// AddChild appends child in discovery order. A self-reference or a duplicate
// child indicates a parser bug and fails loudly.
func (c *Comment) AddChild(child *Comment) error {
	if child.ID == c.ID {
		return fmt.Errorf("comment %s: cannot add self as child", c.ID)
	}
	for _, existing := range c.Children {
		if existing.ID == child.ID {
			return fmt.Errorf("comment %s: duplicate child %s", c.ID, child.ID)
		}
	}
	c.Children = append(c.Children, child)
	return nil
}

func (c *Comment) SetParent(parent *Comment) error {
	if parent.ID == c.ID {
		return fmt.Errorf("comment %s: cannot add self as parent", c.ID)
	}
	c.Parent = parent
	return nil
}

// TreeSize counts the comment and all of its descendants.
func (c *Comment) TreeSize() (total int) {
	total = 1
	for _, child := range c.Children {
		total += child.TreeSize()
	}
	return
}

func (c *Comment) describe(sb *strings.Builder, depth int) {
	sb.WriteString(strings.Repeat("* ", depth))
	if c.State == Deleted {
		sb.WriteString("(deleted)\n")
	} else {
		fmt.Fprintf(sb, "%s on %s\n", c.Author, c.Published)
	}
	for _, child := range c.Children {
		child.describe(sb, depth+1)
	}
}
