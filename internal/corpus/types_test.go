package corpus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContent(t *testing.T) {
	t.Parallel()

	got := BuildContent("Title", "Summary", "Jane Doe", "Body text")
	assert.Equal(t, "Title\nSummary\nBy Jane Doe\nBody text", got)
}

func TestNewArticleFallsBackToInfoAuthor(t *testing.T) {
	t.Parallel()

	info := ArticleInfo{Date: "2019-01-02T00:00:00+00:00", Title: "T", URL: "https://x/1", Author: "Ann"}
	a := NewArticle(info, "", "", "body")
	assert.Equal(t, "Ann", a.Author)
	assert.Equal(t, info, a.Info())
	assert.Equal(t, "T\n\nBy Ann\nbody", a.Content)
}

func TestKeyStringRoundTrip(t *testing.T) {
	t.Parallel()

	k := Key(12345678)
	parsed, err := ParseKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	_, err = ParseKey("not-a-number")
	assert.Error(t, err)
}

func TestFormatAndParseDate(t *testing.T) {
	t.Parallel()

	raw := FormatDate(2019, 10, 3)
	assert.Equal(t, "2019-10-03T00:00:00+00:00", raw)

	parsed, err := ParseDate(raw)
	require.NoError(t, err)
	assert.Equal(t, 2019, parsed.Year())

	parsed, err = ParseDate("2020-02-29T18:30:00-05:00")
	require.NoError(t, err)
	assert.Equal(t, 29, parsed.Day())

	_, err = ParseDate("yesterday")
	assert.Error(t, err)
}

func TestHasKnownAuthor(t *testing.T) {
	t.Parallel()

	assert.False(t, ArticleInfo{Author: UnknownAuthor}.HasKnownAuthor())
	assert.False(t, ArticleInfo{}.HasKnownAuthor())
	assert.True(t, ArticleInfo{Author: "Lucas Navarrete"}.HasKnownAuthor())
}
