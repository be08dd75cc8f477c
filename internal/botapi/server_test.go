package botapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/planetary-social/planetary-cli/internal/feed"
	"github.com/planetary-social/planetary-cli/internal/feed/mocks"
	"github.com/planetary-social/planetary-cli/internal/metrics"
	"github.com/planetary-social/planetary-cli/internal/ssb"
)

func testMessages(n int) []ssb.Message {
	msgs := make([]ssb.Message, n)
	for i := range msgs {
		msgs[i] = ssb.Message{
			Key: ssb.MessageKey(fmt.Sprintf("%%m%d.sha256", i)),
			Value: ssb.Value{
				Author:    "@alice=.ed25519",
				Sequence:  int64(i + 1),
				Timestamp: 1700000000000,
				Content:   ssb.NewPost(ssb.Post{Text: fmt.Sprintf("post %d", i)}),
			},
			Timestamp: 1700000000000,
		}
	}
	return msgs
}

func newTestServer(t *testing.T, cfg ServerConfig) *httptest.Server {
	t.Helper()
	s, err := NewServer(cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return ts
}

func decodeError(t *testing.T, resp *http.Response) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestNewServer_RequiresStore(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	require.Error(t, err)
}

func TestServer_FeedPassesQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().
		Feed(gomock.Any(), feed.Strategy{Kind: feed.KindRandom, Seed: 7}, 20, 40).
		Return(testMessages(2), nil)

	ts := newTestServer(t, ServerConfig{Store: store})
	resp, err := http.Get(ts.URL + "/v1/feed?strategy=random&seed=7&limit=20&offset=40")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body FeedResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Messages, 2)
	require.Equal(t, "post 1", body.Messages[1].Value.Content.Post.Text)
}

func TestServer_FeedPassesThreadAndHashtag(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	gomock.InOrder(
		store.EXPECT().Feed(gomock.Any(), feed.RepliesStrategy("%root.sha256"), 10, 0).Return(nil, nil),
		store.EXPECT().Feed(gomock.Any(), feed.HashtagStrategy("gardening"), 10, 0).Return(nil, nil),
	)
	ts := newTestServer(t, ServerConfig{Store: store})

	c := NewClient(ts.URL)
	_, err := c.Feed(context.Background(), feed.RepliesStrategy("%root.sha256"), 10, 0)
	require.NoError(t, err)
	_, err = c.Feed(context.Background(), feed.HashtagStrategy("#Gardening"), 10, 0)
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/v1/feed?strategy=hashtag")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, CodeInvalidArgument, decodeError(t, resp).Code)
}

func TestServer_FeedDefaultsAndClamps(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantLimit int
		wantKind  feed.Kind
	}{
		{name: "defaults", query: "", wantLimit: DefaultLimit, wantKind: feed.DefaultHomeStrategy.Kind},
		{name: "too large", query: "?limit=5000", wantLimit: MaxLimit, wantKind: feed.DefaultHomeStrategy.Kind},
		{name: "too small", query: "?limit=-3&strategy=one-hop", wantLimit: 1, wantKind: feed.KindOneHop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			type call struct {
				kind  feed.Kind
				limit int
			}
			calls := make(chan call, 1)
			store := feed.StoreFunc(func(_ context.Context, s feed.Strategy, limit, _ int) ([]ssb.Message, error) {
				calls <- call{kind: s.Kind, limit: limit}
				return nil, nil
			})
			ts := newTestServer(t, ServerConfig{Store: store})

			resp, err := http.Get(ts.URL + "/v1/feed" + tt.query)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, http.StatusOK, resp.StatusCode)
			got := <-calls
			require.Equal(t, tt.wantLimit, got.limit)
			require.Equal(t, tt.wantKind, got.kind)

			var raw map[string]json.RawMessage
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
			require.JSONEq(t, `[]`, string(raw["messages"]))
		})
	}
}

func TestServer_FeedRejectsBadArguments(t *testing.T) {
	store := feed.StoreFunc(func(context.Context, feed.Strategy, int, int) ([]ssb.Message, error) {
		t.Error("store must not be called")
		return nil, nil
	})
	ts := newTestServer(t, ServerConfig{Store: store})

	for _, query := range []string{
		"?strategy=bogus",
		"?strategy=profile",
		"?seed=abc",
		"?limit=ten",
		"?offset=-1",
	} {
		resp, err := http.Get(ts.URL + "/v1/feed" + query)
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
		require.Equal(t, CodeInvalidArgument, decodeError(t, resp).Code, query)
		resp.Body.Close()
	}
}

func TestServer_FeedStoreFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	store := feed.StoreFunc(func(context.Context, feed.Strategy, int, int) ([]ssb.Message, error) {
		return nil, errors.New("database is locked")
	})
	ts := newTestServer(t, ServerConfig{Store: store, Logger: zap.New(core)})

	resp, err := http.Get(ts.URL + "/v1/feed")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decodeError(t, resp)
	require.Equal(t, CodeInternal, body.Code)
	require.NotContains(t, body.Message, "locked")
	require.Equal(t, 1, logs.FilterMessage("failed to load feed page").Len())
}

func TestServer_Health(t *testing.T) {
	store := feed.StoreFunc(func(context.Context, feed.Strategy, int, int) ([]ssb.Message, error) { return nil, nil })
	var unhealthy atomic.Bool
	ts := newTestServer(t, ServerConfig{
		Store: store,
		Health: func(context.Context) error {
			if !unhealthy.Load() {
				return nil
			}
			return errors.New("readonly database")
		},
	})

	resp, err := http.Get(ts.URL + "/v1/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	unhealthy.Store(true)
	resp, err = http.Get(ts.URL + "/v1/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, CodeUnavailable, decodeError(t, resp).Code)
}

func TestServer_RateLimitsPerClient(t *testing.T) {
	store := feed.StoreFunc(func(context.Context, feed.Strategy, int, int) ([]ssb.Message, error) { return nil, nil })
	ts := newTestServer(t, ServerConfig{
		Store:     store,
		RateLimit: RateLimiterConfig{Rate: rate.Limit(0.001), Burst: 2},
	})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/v1/feed")
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests {
			require.NotEmpty(t, resp.Header.Get("Retry-After"))
			require.Equal(t, CodeRateLimited, decodeError(t, resp).Code)
		}
		resp.Body.Close()
	}
	require.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)

	// Health checks are not rate limited.
	resp, err := http.Get(ts.URL + "/v1/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_MetricsAndNotFound(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	store := feed.StoreFunc(func(context.Context, feed.Strategy, int, int) ([]ssb.Message, error) { return nil, nil })
	ts := newTestServer(t, ServerConfig{Store: store, Observer: collector, Gatherer: reg})

	resp, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, CodeNotFound, decodeError(t, resp).Code)
	resp.Body.Close()

	// The request is observed after its response is written.
	require.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return strings.Contains(readAll(t, resp), `planetary_http_requests_total{status_code="404"} 1`)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_RecoversPanics(t *testing.T) {
	store := feed.StoreFunc(func(context.Context, feed.Strategy, int, int) ([]ssb.Message, error) {
		panic("boom")
	})
	ts := newTestServer(t, ServerConfig{Store: store})

	resp, err := http.Get(ts.URL + "/v1/feed")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, CodeInternal, decodeError(t, resp).Code)
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	store := feed.StoreFunc(func(context.Context, feed.Strategy, int, int) ([]ssb.Message, error) { return nil, nil })
	s, err := NewServer(ServerConfig{Store: store})
	require.NoError(t, err)
	defer s.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/v1/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}
