package simplepost_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-post/pkg/simplepost"
	"github.com/tendant/simple-post/pkg/simplepost/repo/memory"
)

func TestSplitParagraphs(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"blank line separated", "First\n\nSecond", []string{"First", "Second"}},
		{"single newline stays in paragraph", "Line one\nline two\n\nNext", []string{"Line one\nline two", "Next"}},
		{"crlf and whitespace-only lines", "A\r\n   \r\nB\r\n\r\n\r\nC", []string{"A", "B", "C"}},
		{"trims and drops empties", "\n\n  A  \n\n\n\n", []string{"A"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, simplepost.SplitParagraphs(tt.body))
		})
	}
}

func TestParagraphReplacer(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	post := &simplepost.Post{Slug: "p", Title: "p", Date: time.Now(), Visibility: simplepost.VisibilityPublic, UserID: uuid.New()}
	require.NoError(t, store.InsertPost(ctx, post))

	replacer := simplepost.NewParagraphReplacer(store)

	require.NoError(t, replacer.Replace(ctx, post.ID, []string{"A", "B", "C"}))
	first, err := store.ListParagraphsForPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, first, 3)

	require.NoError(t, replacer.Replace(ctx, post.ID, []string{"C", "A"}))
	second, err := store.ListParagraphsForPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, 0, second[0].Index)
	assert.Equal(t, "C", second[0].Content)
	assert.Equal(t, 1, second[1].Index)
	assert.Equal(t, "A", second[1].Content)

	for _, old := range first {
		for _, fresh := range second {
			assert.NotEqual(t, old.ID, fresh.ID, "paragraph ids are never reused")
		}
	}

	require.NoError(t, replacer.Replace(ctx, post.ID, nil))
	none, err := store.ListParagraphsForPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}
