package harvester

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sbnation-corpus/internal/checkpoint"
	"github.com/JakeFAU/sbnation-corpus/internal/corpus"
	"github.com/JakeFAU/sbnation-corpus/internal/hash/sha1"
	"github.com/JakeFAU/sbnation-corpus/internal/progress"
	"github.com/JakeFAU/sbnation-corpus/internal/storage/memory"
)

const (
	testRoot  = "https://www.barcablaugranes.com/archives/"
	loadMore  = ".c-archives-load-more__button"
	consent   = `//*[@id="accept-privacy-consent"]/div`
	clickWait = 2 * time.Second
)

func newTestHarvester(t *testing.T, b *MockBrowser, cfg Config) (*Harvester, *recordingSleeper) {
	t.Helper()
	if cfg.ArchiveRoot == "" {
		cfg.ArchiveRoot = testRoot
	}
	if cfg.ClickDelay == 0 {
		cfg.ClickDelay = 2 * time.Second
	}
	sleeper := &recordingSleeper{}
	h, err := New(b, sha1.New(), cfg, WithSleeper(sleeper))
	require.NoError(t, err)
	return h, sleeper
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, sha1.New(), Config{ArchiveRoot: testRoot})
	require.Error(t, err)
	_, err = New(&MockBrowser{}, nil, Config{ArchiveRoot: testRoot})
	require.Error(t, err)
	_, err = New(&MockBrowser{}, sha1.New(), Config{})
	require.Error(t, err)

	h, err := New(&MockBrowser{}, sha1.New(), Config{ArchiveRoot: testRoot})
	require.NoError(t, err)
	assert.Equal(t, 3, h.cfg.RefreshAfter)
	assert.Equal(t, DefaultSelectors(), h.cfg.Selectors)
}

func TestMonthURL(t *testing.T) {
	t.Parallel()

	h, _ := newTestHarvester(t, &MockBrowser{}, Config{})
	assert.Equal(t, "https://www.barcablaugranes.com/archives/2019/3", h.MonthURL(2019, 3))
}

func TestLoadMonthClicksUntilControlDisappears(t *testing.T) {
	t.Parallel()

	b := &MockBrowser{}
	b.On("Navigate", mock.Anything, testRoot+"2019/10").Return(nil).Once()
	b.On("CountLoadMore", mock.Anything, loadMore).Return(1, nil).Twice()
	b.On("CountLoadMore", mock.Anything, loadMore).Return(0, nil).Once()
	b.On("ClickLoadMore", mock.Anything, loadMore, clickWait).Return(nil).Twice()
	b.On("HTML", mock.Anything).Return(archiveFixture, nil).Once()

	h, sleeper := newTestHarvester(t, b, Config{RefreshAfter: 3, SkipAfter: 7})
	res, err := h.LoadMonth(context.Background(), 2019, 10)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Clicks)
	assert.Zero(t, res.ClickFailures)
	assert.Zero(t, res.Refreshes)
	assert.False(t, res.Abandoned)
	assert.Equal(t, archiveFixture, res.HTML)
	assert.Equal(t, 3, sleeper.count(2*time.Second))
	b.AssertExpectations(t)
	b.AssertNotCalled(t, "Reload", mock.Anything)
}

// TestLoadMonthRefreshesThenAbandons walks the failure budget: two failed
// clicks trigger a refresh, and a failure after the last permitted refresh
// abandons the month while keeping what loaded.
func TestLoadMonthRefreshesThenAbandons(t *testing.T) {
	t.Parallel()

	b := &MockBrowser{}
	b.On("Navigate", mock.Anything, testRoot+"2019/1").Return(nil).Once()
	b.On("CountLoadMore", mock.Anything, loadMore).Return(1, nil)
	b.On("ClickLoadMore", mock.Anything, loadMore, clickWait).Return(errors.New("not clickable"))
	b.On("ScrollToBottom", mock.Anything).Return(nil)
	b.On("Reload", mock.Anything).Return(nil)
	b.On("HTML", mock.Anything).Return("<html></html>", nil).Once()

	h, _ := newTestHarvester(t, b, Config{RefreshAfter: 2, SkipAfter: 1})
	res, err := h.LoadMonth(context.Background(), 2019, 1)
	require.NoError(t, err)

	assert.True(t, res.Abandoned)
	assert.Zero(t, res.Clicks)
	assert.Equal(t, 3, res.ClickFailures)
	assert.Equal(t, 1, res.Refreshes)
	b.AssertNumberOfCalls(t, "CountLoadMore", 4)
	b.AssertNumberOfCalls(t, "ClickLoadMore", 3)
	b.AssertNumberOfCalls(t, "ScrollToBottom", 2)
	b.AssertNumberOfCalls(t, "Reload", 1)
}

// TestLoadMonthSuccessResetsFailureCount ensures only consecutive failures
// count towards a refresh.
func TestLoadMonthSuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b := &MockBrowser{}
	b.On("Navigate", mock.Anything, mock.Anything).Return(nil).Once()
	b.On("CountLoadMore", mock.Anything, loadMore).Return(1, nil).Times(3)
	b.On("CountLoadMore", mock.Anything, loadMore).Return(0, nil).Once()
	b.On("ClickLoadMore", mock.Anything, loadMore, clickWait).Return(errors.New("timeout")).Once()
	b.On("ClickLoadMore", mock.Anything, loadMore, clickWait).Return(nil).Once()
	b.On("ClickLoadMore", mock.Anything, loadMore, clickWait).Return(errors.New("timeout")).Once()
	b.On("ScrollToBottom", mock.Anything).Return(nil)
	b.On("HTML", mock.Anything).Return("<html></html>", nil).Once()

	h, _ := newTestHarvester(t, b, Config{RefreshAfter: 2, SkipAfter: 5})
	res, err := h.LoadMonth(context.Background(), 2019, 2)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Clicks)
	assert.Equal(t, 2, res.ClickFailures)
	assert.Zero(t, res.Refreshes)
	b.AssertExpectations(t)
	b.AssertNotCalled(t, "Reload", mock.Anything)
}

func TestLoadMonthStopsAtMaxClicks(t *testing.T) {
	t.Parallel()

	b := &MockBrowser{}
	b.On("Navigate", mock.Anything, mock.Anything).Return(nil).Once()
	b.On("CountLoadMore", mock.Anything, loadMore).Return(1, nil)
	b.On("ClickLoadMore", mock.Anything, loadMore, clickWait).Return(nil)
	b.On("HTML", mock.Anything).Return("<html></html>", nil).Once()

	h, _ := newTestHarvester(t, b, Config{MaxClicks: 2})
	res, err := h.LoadMonth(context.Background(), 2019, 3)
	require.NoError(t, err)

	assert.True(t, res.Capped)
	assert.Equal(t, 2, res.Clicks)
	b.AssertNumberOfCalls(t, "ClickLoadMore", 2)
}

func TestLoadMonthZeroSkipAfterAbandonsOnFirstFailure(t *testing.T) {
	t.Parallel()

	b := &MockBrowser{}
	b.On("Navigate", mock.Anything, mock.Anything).Return(nil).Once()
	b.On("CountLoadMore", mock.Anything, loadMore).Return(1, nil)
	b.On("ClickLoadMore", mock.Anything, loadMore, clickWait).Return(errors.New("not clickable")).Once()
	b.On("HTML", mock.Anything).Return(archiveFixture, nil).Once()

	h, _ := newTestHarvester(t, b, Config{RefreshAfter: 3})
	res, err := h.LoadMonth(context.Background(), 2019, 5)
	require.NoError(t, err)

	assert.True(t, res.Abandoned)
	assert.Equal(t, 1, res.ClickFailures)
	assert.Equal(t, archiveFixture, res.HTML)
	b.AssertNotCalled(t, "ScrollToBottom", mock.Anything)
}

func TestLoadMonthIgnoresDuplicateControls(t *testing.T) {
	t.Parallel()

	b := &MockBrowser{}
	b.On("Navigate", mock.Anything, mock.Anything).Return(nil).Once()
	b.On("CountLoadMore", mock.Anything, loadMore).Return(2, nil).Once()
	b.On("HTML", mock.Anything).Return(archiveFixture, nil).Once()

	h, _ := newTestHarvester(t, b, Config{})
	res, err := h.LoadMonth(context.Background(), 2019, 6)
	require.NoError(t, err)

	assert.Zero(t, res.Clicks)
	assert.False(t, res.Abandoned)
	b.AssertNotCalled(t, "ClickLoadMore", mock.Anything, mock.Anything, mock.Anything)
}

// TestLoadMonthBrowserErrorKeepsLoadedListings stops paginating on a browser
// error but still returns the page as loaded so far.
func TestLoadMonthBrowserErrorKeepsLoadedListings(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		setup func(b *MockBrowser)
	}{
		{"count fails", func(b *MockBrowser) {
			b.On("CountLoadMore", mock.Anything, loadMore).Return(1, nil).Twice()
			b.On("CountLoadMore", mock.Anything, loadMore).Return(0, errors.New("target closed")).Once()
			b.On("ClickLoadMore", mock.Anything, loadMore, clickWait).Return(nil).Twice()
		}},
		{"reload fails", func(b *MockBrowser) {
			b.On("CountLoadMore", mock.Anything, loadMore).Return(1, nil)
			b.On("ClickLoadMore", mock.Anything, loadMore, clickWait).Return(nil).Twice()
			b.On("ClickLoadMore", mock.Anything, loadMore, clickWait).Return(errors.New("not clickable"))
			b.On("ScrollToBottom", mock.Anything).Return(nil)
			b.On("Reload", mock.Anything).Return(errors.New("target closed")).Once()
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			b := &MockBrowser{}
			b.On("Navigate", mock.Anything, mock.Anything).Return(nil).Once()
			tc.setup(b)
			b.On("HTML", mock.Anything).Return(archiveFixture, nil).Once()

			h, _ := newTestHarvester(t, b, Config{RefreshAfter: 1, SkipAfter: 7})
			res, err := h.LoadMonth(context.Background(), 2019, 7)
			require.NoError(t, err)

			assert.Equal(t, 2, res.Clicks)
			assert.True(t, res.Abandoned)
			require.Error(t, res.Interrupted)
			assert.ErrorContains(t, res.Interrupted, "target closed")
			assert.Equal(t, archiveFixture, res.HTML)
			b.AssertExpectations(t)
		})
	}
}

func TestRunParsesMonthInterruptedByBrowserError(t *testing.T) {
	t.Parallel()

	b := &MockBrowser{}
	b.On("Navigate", mock.Anything, mock.Anything).Return(nil)
	b.On("WaitClickable", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	b.On("Click", mock.Anything, mock.Anything).Return(nil)
	b.On("WaitInvisible", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	b.On("CountLoadMore", mock.Anything, loadMore).Return(1, nil).Twice()
	b.On("CountLoadMore", mock.Anything, loadMore).Return(0, errors.New("target closed")).Once()
	b.On("ClickLoadMore", mock.Anything, loadMore, clickWait).Return(nil).Twice()
	b.On("HTML", mock.Anything).Return(archiveFixture, nil).Once()

	store := checkpoint.NewStore[corpus.ArticleInfo](memory.NewBlobStore(), "links.json")
	h, _ := newTestHarvester(t, b, Config{})
	stats, err := h.Run(context.Background(), []int{2019}, []int{10}, store, nil)
	require.NoError(t, err)

	assert.Zero(t, stats.MonthsFailed)
	assert.Equal(t, 1, stats.MonthsAbandoned)
	assert.Equal(t, 2, stats.Clicks)
	assert.Equal(t, 3, stats.Added)
	assert.Equal(t, 3, store.Len())
}

func TestLoadMonthNavigateFailure(t *testing.T) {
	t.Parallel()

	b := &MockBrowser{}
	b.On("Navigate", mock.Anything, mock.Anything).Return(errors.New("net::ERR_CONNECTION_RESET")).Once()

	h, _ := newTestHarvester(t, b, Config{})
	_, err := h.LoadMonth(context.Background(), 2019, 4)
	require.Error(t, err)
	b.AssertNotCalled(t, "HTML", mock.Anything)
}

func TestOpenConsentFailureIsFatal(t *testing.T) {
	t.Parallel()

	b := &MockBrowser{}
	b.On("Navigate", mock.Anything, testRoot).Return(nil).Once()
	b.On("WaitClickable", mock.Anything, consent, 10*time.Second).Return(errors.New("deadline exceeded")).Once()

	h, _ := newTestHarvester(t, b, Config{})
	store := checkpoint.NewStore[corpus.ArticleInfo](memory.NewBlobStore(), "links.json")
	_, err := h.Run(context.Background(), []int{2019}, []int{1}, store, nil)

	require.ErrorIs(t, err, ErrConsentUnavailable)
	b.AssertNotCalled(t, "CountLoadMore", mock.Anything, mock.Anything)
	assert.Zero(t, store.Len())
}

// TestRunContinuesPastFailedMonth checks that one broken month does not stop
// the run, duplicates are counted, and every month is checkpointed.
func TestRunContinuesPastFailedMonth(t *testing.T) {
	t.Parallel()

	b := &MockBrowser{}
	b.On("Navigate", mock.Anything, testRoot).Return(nil).Once()
	b.On("WaitClickable", mock.Anything, consent, mock.Anything).Return(nil).Once()
	b.On("Click", mock.Anything, consent).Return(nil).Once()
	b.On("WaitInvisible", mock.Anything, consent, mock.Anything).Return(nil).Once()
	b.On("Navigate", mock.Anything, testRoot+"2018/1").Return(nil).Once()
	b.On("Navigate", mock.Anything, testRoot+"2018/2").Return(errors.New("blank page")).Once()
	b.On("Navigate", mock.Anything, testRoot+"2019/1").Return(nil).Once()
	b.On("Navigate", mock.Anything, testRoot+"2019/2").Return(nil).Once()
	b.On("CountLoadMore", mock.Anything, loadMore).Return(0, nil)
	b.On("HTML", mock.Anything).Return(archiveFixture, nil)

	objects := memory.NewBlobStore()
	store := checkpoint.NewStore[corpus.ArticleInfo](objects, "links.json")
	cp := checkpoint.NewCheckpointer(store, checkpoint.Config{Stage: "links", Every: 1}, nil, nil)

	sink := &captureSink{}
	sleeper := &recordingSleeper{}
	h, err := New(b, sha1.New(), Config{ArchiveRoot: testRoot, YearDelay: 5 * time.Second},
		WithSleeper(sleeper), WithProgress(progress.NewFanout(nil, sink), "run-7"))
	require.NoError(t, err)

	stats, err := h.Run(context.Background(), []int{2018, 2019}, []int{1, 2}, store, cp)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Months)
	assert.Equal(t, 1, stats.MonthsFailed)
	assert.Equal(t, 3, stats.Added)
	assert.Equal(t, 6, stats.Duplicates)
	assert.Equal(t, 6, stats.Skipped)
	assert.Equal(t, 3, store.Len())
	assert.Equal(t, 1, sleeper.count(5*time.Second))

	assert.Equal(t, 5, objects.Puts("links.json"))
	assert.Equal(t, 5, cp.Flushes())

	events := sink.events
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.True(t, last.Final)
	assert.Equal(t, 4, last.Done)
	assert.Equal(t, 4, last.Total)
	assert.Equal(t, "run-7", last.RunID)
}

// TestRunResumesIntoExistingStore keeps records from an earlier run and adds
// nothing twice.
func TestRunResumesIntoExistingStore(t *testing.T) {
	t.Parallel()

	objects := memory.NewBlobStore()
	keyer := sha1.New()
	store := checkpoint.NewStore[corpus.ArticleInfo](objects, "links.json")
	listing, err := ParseListing(archiveFixture, DefaultSelectors())
	require.NoError(t, err)
	store.Put(keyer.KeyOf(listing.Infos[0]), listing.Infos[0])

	b := &MockBrowser{}
	b.On("Navigate", mock.Anything, mock.Anything).Return(nil)
	b.On("WaitClickable", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	b.On("Click", mock.Anything, mock.Anything).Return(nil)
	b.On("WaitInvisible", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("still visible"))
	b.On("CountLoadMore", mock.Anything, loadMore).Return(0, nil)
	b.On("HTML", mock.Anything).Return(archiveFixture, nil)

	h, _ := newTestHarvester(t, b, Config{})
	stats, err := h.Run(context.Background(), []int{2019}, []int{10}, store, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 3, store.Len())
	assert.Equal(t, listing.Infos[0], mustGet(t, store, keyer.KeyOf(listing.Infos[0])))
}

func TestRunStopsOnCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	b := &MockBrowser{}
	b.On("Navigate", mock.Anything, testRoot).Return(nil).Once()
	b.On("WaitClickable", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	b.On("Click", mock.Anything, mock.Anything).Return(nil)
	b.On("WaitInvisible", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	b.On("Navigate", mock.Anything, testRoot+"2019/1").Run(func(mock.Arguments) { cancel() }).Return(context.Canceled).Once()

	objects := memory.NewBlobStore()
	store := checkpoint.NewStore[corpus.ArticleInfo](objects, "links.json")
	cp := checkpoint.NewCheckpointer(store, checkpoint.Config{Stage: "links", Every: 1}, nil, nil)

	h, _ := newTestHarvester(t, b, Config{})
	stats, err := h.Run(ctx, []int{2019}, []int{1, 2}, store, cp)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.MonthsFailed)
	assert.Equal(t, 1, objects.Puts("links.json"), "final checkpoint is still written")
}

func mustGet(t *testing.T, store *checkpoint.Store[corpus.ArticleInfo], key corpus.Key) corpus.ArticleInfo {
	t.Helper()
	v, ok := store.Get(key)
	require.True(t, ok)
	return v
}

type captureSink struct {
	events []progress.Event
}

func (s *captureSink) Consume(_ context.Context, batch []progress.Event) error {
	s.events = append(s.events, batch...)
	return nil
}

func (s *captureSink) Close(context.Context) error { return nil }
