package checkpoint

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sbnation-corpus/internal/corpus"
	"github.com/JakeFAU/sbnation-corpus/internal/storage/memory"
)

func sampleInfos() []struct {
	key  corpus.Key
	info corpus.ArticleInfo
} {
	return []struct {
		key  corpus.Key
		info corpus.ArticleInfo
	}{
		{key: 90000001, info: corpus.ArticleInfo{Date: "2019-01-01T00:00:00+00:00", Title: "First", URL: "https://example.com/2019/1/1/first", Author: "unknown"}},
		{key: 5, info: corpus.ArticleInfo{Date: "2019-01-02T10:00:00+00:00", Title: "Second \"quoted\"", URL: "https://example.com/2019/1/2/second", Author: "Ann"}},
		{key: 42, info: corpus.ArticleInfo{Date: "2019-01-03T00:00:00+00:00", Title: "Tercero ñ", URL: "https://example.com/2019/1/3/third", Author: "Bo"}},
	}
}

func TestPutFirstWriteWins(t *testing.T) {
	t.Parallel()

	s := NewStore[corpus.ArticleInfo](memory.NewBlobStore(), "list.json")
	assert.True(t, s.Put(1, corpus.ArticleInfo{Title: "original"}))
	assert.False(t, s.Put(1, corpus.ArticleInfo{Title: "replacement"}))

	got, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, "original", got.Title)
	assert.Equal(t, 1, s.Len())
}

func TestRoundTripPreservesMappingAndOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	objects := memory.NewBlobStore()
	s := NewStore[corpus.ArticleInfo](objects, "bb/bb_article_list.json")
	for _, rec := range sampleInfos() {
		require.True(t, s.Put(rec.key, rec.info))
	}

	uri, err := s.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, "memory://bb/bb_article_list.json", uri)

	loaded, err := Load[corpus.ArticleInfo](ctx, objects, "bb/bb_article_list.json")
	require.NoError(t, err)
	assert.Equal(t, s.Keys(), loaded.Keys())
	for _, rec := range sampleInfos() {
		got, ok := loaded.Get(rec.key)
		require.True(t, ok)
		assert.Equal(t, rec.info, got)
	}
}

func TestLoadMissingYieldsEmptyStore(t *testing.T) {
	t.Parallel()

	s, err := Load[corpus.Article](context.Background(), memory.NewBlobStore(), "absent.json")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, "absent.json", s.Name())
}

func TestUnmarshalKeepsDocumentOrder(t *testing.T) {
	t.Parallel()

	doc := `{"30": {"date": "d3", "title": "c", "url": "u3", "author": "x"},
	         "10": {"date": "d1", "title": "a", "url": "u1", "author": "y"},
	         "20": {"date": "d2", "title": "b", "url": "u2", "author": "z"}}`
	s := NewStore[corpus.ArticleInfo](nil, "x")
	require.NoError(t, s.UnmarshalJSON([]byte(doc)))
	assert.Equal(t, []corpus.Key{30, 10, 20}, s.Keys())

	var titles []string
	s.Each(func(_ corpus.Key, v corpus.ArticleInfo) bool {
		titles = append(titles, v.Title)
		return len(titles) < 2
	})
	assert.Equal(t, []string{"c", "a"}, titles)
}

func TestUnmarshalRejectsMalformedDocuments(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"array":       `[1,2]`,
		"bad key":     `{"abc": {}}`,
		"bad value":   `{"1": "string"}`,
		"truncated":   `{"1": {}`,
		"empty input": ``,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := NewStore[corpus.ArticleInfo](nil, "x")
			assert.Error(t, s.UnmarshalJSON([]byte(doc)))
		})
	}
}

func TestMarshalEmptyStore(t *testing.T) {
	t.Parallel()

	data, err := NewStore[corpus.Article](nil, "x").MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

type failingObjects struct{}

func (failingObjects) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}

func (failingObjects) GetObject(context.Context, string) ([]byte, error) {
	return nil, errors.New("permission denied")
}

func TestFlushAndLoadPropagateBackendErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore[corpus.Article](failingObjects{}, "a.json")
	_, err := s.Flush(ctx)
	assert.ErrorContains(t, err, "disk full")

	_, err = Load[corpus.Article](ctx, failingObjects{}, "a.json")
	assert.ErrorContains(t, err, "permission denied")

	_, err = Load[corpus.Article](ctx, nil, "a.json")
	assert.Error(t, err)
}
