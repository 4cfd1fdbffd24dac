package harvester

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockBrowser is a mock implementation of the browser.Browser interface.
type MockBrowser struct {
	mock.Mock
}

func (m *MockBrowser) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockBrowser) WaitClickable(ctx context.Context, selector string, timeout time.Duration) error {
	args := m.Called(ctx, selector, timeout)
	return args.Error(0)
}

func (m *MockBrowser) Click(ctx context.Context, selector string) error {
	args := m.Called(ctx, selector)
	return args.Error(0)
}

func (m *MockBrowser) WaitInvisible(ctx context.Context, selector string, timeout time.Duration) error {
	args := m.Called(ctx, selector, timeout)
	return args.Error(0)
}

func (m *MockBrowser) CountLoadMore(ctx context.Context, selector string) (int, error) {
	args := m.Called(ctx, selector)
	return args.Int(0), args.Error(1)
}

func (m *MockBrowser) ClickLoadMore(ctx context.Context, selector string, wait time.Duration) error {
	args := m.Called(ctx, selector, wait)
	return args.Error(0)
}

func (m *MockBrowser) ScrollToBottom(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBrowser) Reload(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBrowser) HTML(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockBrowser) Close() error {
	args := m.Called()
	return args.Error(0)
}

// recordingSleeper returns immediately and remembers every requested pause.
type recordingSleeper struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.pauses = append(s.pauses, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) count(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.pauses {
		if p == d {
			n++
		}
	}
	return n
}
