package model

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCommentTree(t *testing.T) {
	published := time.Unix(1364319780, 0)

	root := LiveComment("1001", published, "alice", "First!")
	require.Equal(t, Live, root.State)
	require.Equal(t, 1, root.TreeSize())

	reply := LiveComment("1002", published, "bob", "A reply")
	require.Equal(t, nil, root.AddChild(reply))
	require.Equal(t, nil, reply.SetParent(root))
	require.Equal(t, 2, root.TreeSize())
	require.Equal(t, root, reply.Parent)

	tombstone := DeletedComment("1003")
	require.Equal(t, Deleted, tombstone.State)
	require.Equal(t, nil, reply.AddChild(tombstone))
	require.Equal(t, 3, root.TreeSize())

	err := root.AddChild(root)
	require.NotEqual(t, nil, err)
	require.Contains(t, err.Error(), "self")

	err = root.AddChild(LiveComment("1002", published, "bob", "Again"))
	require.NotEqual(t, nil, err)
	require.Contains(t, err.Error(), "duplicate")

	err = root.SetParent(root)
	require.NotEqual(t, nil, err)
}

func TestZippedComment(t *testing.T) {
	zipped := ZippedComment("2001")
	require.Equal(t, Zipped, zipped.State)
	require.Equal(t, "", zipped.Author)
	require.Equal(t, "", zipped.Content)
}

func TestEntryTotals(t *testing.T) {
	published := time.Unix(1364319780, 0)

	entry := &Entry{
		Published: published,
		Author:    "someuser",
		Subject:   "A subject",
		Content:   "Body text",
	}
	require.Equal(t, 0, entry.TotalComments())

	first := LiveComment("1", published, "alice", "one")
	second := LiveComment("2", published, "bob", "two")
	child := LiveComment("3", published, "carol", "three")
	require.Equal(t, nil, second.AddChild(child))
	entry.Comments = []*Comment{first, second}

	require.Equal(t, 3, entry.TotalComments())

	description := entry.String()
	require.Contains(t, description, "3 comments total")
	require.True(t, strings.Contains(description, "* alice"))
	require.True(t, strings.Contains(description, "* * carol"))
}
