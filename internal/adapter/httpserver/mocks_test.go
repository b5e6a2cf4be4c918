package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/moodroom/internal/domain"
	"github.com/pscheid92/moodroom/internal/platform/config"
)

var testStart = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

type mockRoom struct {
	submitVoteFn   func(ctx context.Context, participantID string, emotion domain.Emotion) error
	voteFn         func(ctx context.Context, participantID string) (*domain.Vote, bool, error)
	distributionFn func(ctx context.Context) (domain.Distribution, error)
	selectNextFn   func(ctx context.Context) (domain.Pick, error)
	statsFn        func(ctx context.Context, limit int) (domain.Stats, error)
	evaluateFn     func(ctx context.Context) (domain.Satisfaction, error)
	resetFn        func(ctx context.Context) error
}

func (m *mockRoom) SubmitVote(ctx context.Context, participantID string, emotion domain.Emotion) error {
	if m.submitVoteFn != nil {
		return m.submitVoteFn(ctx, participantID, emotion)
	}
	if !emotion.Valid() {
		return domain.ErrInvalidEmotion
	}
	return nil
}

func (m *mockRoom) Vote(ctx context.Context, participantID string) (*domain.Vote, bool, error) {
	if m.voteFn != nil {
		return m.voteFn(ctx, participantID)
	}
	return nil, false, domain.ErrVoteNotFound
}

func (m *mockRoom) Distribution(ctx context.Context) (domain.Distribution, error) {
	if m.distributionFn != nil {
		return m.distributionFn(ctx)
	}
	return domain.Distribution{}, nil
}

func (m *mockRoom) SelectNext(ctx context.Context) (domain.Pick, error) {
	if m.selectNextFn != nil {
		return m.selectNextFn(ctx)
	}
	return domain.Pick{}, nil
}

func (m *mockRoom) Stats(ctx context.Context, limit int) (domain.Stats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, limit)
	}
	return domain.Stats{Distribution: domain.Distribution{}}, nil
}

func (m *mockRoom) Evaluate(ctx context.Context) (domain.Satisfaction, error) {
	if m.evaluateFn != nil {
		return m.evaluateFn(ctx)
	}
	return domain.Satisfaction{Baseline: 100, Fairness: 100}, nil
}

func (m *mockRoom) Reset(ctx context.Context) error {
	if m.resetFn != nil {
		return m.resetFn(ctx)
	}
	return nil
}

var errStoreDown = errors.New("store down")

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:            "development",
		Port:              "0",
		SessionSecret:     "test-secret-that-is-long-enough-32b",
		SessionMaxAge:     time.Hour,
		StoreBackend:      config.BackendMemory,
		VoteWindow:        30 * time.Minute,
		StatsDefaultLimit: 100,
		StatsMaxLimit:     1000,
		VoteRateLimit:     100,
		VoteRateBurst:     100,
	}
}

type testServer struct {
	*Server
	clock *clockwork.FakeClock
}

func newTestServer(t *testing.T, room roomService, opts ...Option) *testServer {
	t.Helper()
	return newTestServerWithConfig(t, testConfig(), room, opts...)
}

func newTestServerWithConfig(t *testing.T, cfg *config.Config, room roomService, opts ...Option) *testServer {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testStart)
	srv := NewServer(cfg, room, clock, opts...)
	require.NotNil(t, srv)
	return &testServer{Server: srv, clock: clock}
}

// do sends a request through the full middleware chain. A non-empty body is
// sent as JSON.
func (s *testServer) do(method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionName {
			return c
		}
	}
	require.FailNow(t, "session cookie not set")
	return nil
}
