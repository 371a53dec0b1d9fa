package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/ppiankov/claimroot/internal/model"
	"github.com/ppiankov/claimroot/internal/worker"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeTwitter serves a conversation with two reply pages, one retweeter
// page and one quote page
type fakeTwitter struct {
	searchCalls atomic.Int32
	authHeader  atomic.Value
}

func (f *fakeTwitter) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/tweets/search/recent", func(w http.ResponseWriter, r *http.Request) {
		f.searchCalls.Add(1)
		f.authHeader.Store(r.Header.Get("Authorization"))
		q := r.URL.Query()
		if q.Get("query") != "conversation_id:123" || q.Get("max_results") != "100" || q.Get("expansions") != "author_id" {
			t.Errorf("unexpected search query: %s", r.URL.RawQuery)
		}

		switch q.Get("next_token") {
		case "":
			writeJSON(w, map[string]any{
				"data": []map[string]string{
					{"id": "1", "text": "alice.eth", "author_id": "u1"},
					{"id": "2", "text": "bob.eth", "author_id": "u2"},
				},
				"includes": map[string]any{"users": []map[string]string{
					{"id": "u1", "username": "alice"},
					{"id": "u2", "username": "bob"},
				}},
				"meta": map[string]any{"result_count": 2, "next_token": "p2"},
			})
		case "p2":
			writeJSON(w, map[string]any{
				"data": []map[string]string{
					{"id": "3", "text": "carol.eth", "author_id": "u3"},
				},
				"includes": map[string]any{"users": []map[string]string{
					{"id": "u3", "username": "carol"},
				}},
				"meta": map[string]any{"result_count": 1},
			})
		default:
			t.Errorf("unexpected next_token %q", q.Get("next_token"))
		}
	})

	mux.HandleFunc("/tweets/123/retweeted_by", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"data": []map[string]string{
				{"id": "u1", "username": "alice"},
				{"id": "u3", "username": "carol"},
			},
			"meta": map[string]any{"result_count": 2},
		})
	})

	mux.HandleFunc("/tweets/123/quote_tweets", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pagination_token") != "" {
			t.Errorf("unexpected quote pagination")
		}
		writeJSON(w, map[string]any{
			"data": []map[string]string{
				{"id": "9", "text": "dave.eth", "author_id": "u4"},
			},
			"includes": map[string]any{"users": []map[string]string{
				{"id": "u4", "username": "dave"},
			}},
			"meta": map[string]any{"result_count": 1},
		})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, baseURL string, pageLimit int) *Client {
	t.Helper()
	c, err := NewClient(Options{BaseURL: baseURL, BearerToken: "secret", PageLimit: pageLimit})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func noSleep(t *testing.T) {
	orig := retrySleepFunc
	retrySleepFunc = func(time.Duration) {}
	t.Cleanup(func() { retrySleepFunc = orig })
}

func TestCollect_RepliesFilteredThenQuotes(t *testing.T) {
	fake := &fakeTwitter{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	c := newTestClient(t, server.URL, 0)
	records, stats, err := c.Collect(context.Background(), "123", CollectOptions{RequireRetweet: true, IncludeQuotes: true})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	want := []model.EngagementRecord{
		{ID: "1", AuthorID: "u1", AuthorHandle: "alice", Text: "alice.eth", Kind: model.EngagementReply},
		{ID: "3", AuthorID: "u3", AuthorHandle: "carol", Text: "carol.eth", Kind: model.EngagementReply},
		{ID: "9", AuthorID: "u4", AuthorHandle: "dave", Text: "dave.eth", Kind: model.EngagementQuote},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	wantStats := Stats{Replies: 3, RepliesKept: 2, Retweeters: 2, Quotes: 1, PagesFetched: 4}
	if stats != wantStats {
		t.Errorf("expected stats %+v, got %+v", wantStats, stats)
	}
	if got := fake.authHeader.Load(); got != "Bearer secret" {
		t.Errorf("expected bearer auth, got %v", got)
	}
}

func TestCollect_NoFilterNoQuotes(t *testing.T) {
	server := httptest.NewServer((&fakeTwitter{}).handler(t))
	defer server.Close()

	records, _, err := newTestClient(t, server.URL, 0).Collect(context.Background(), "123", CollectOptions{})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(records) != 3 {
		t.Errorf("expected all 3 replies, got %d", len(records))
	}
}

func TestReplies_PageLimit(t *testing.T) {
	fake := &fakeTwitter{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	c := newTestClient(t, server.URL, 1)
	records, pages, limited, err := c.replies(context.Background(), "123")
	if err != nil {
		t.Fatalf("replies failed: %v", err)
	}
	if len(records) != 2 || pages != 1 || !limited {
		t.Errorf("expected one page of 2 records and limited=true, got %d records, %d pages, limited=%v", len(records), pages, limited)
	}
	if fake.searchCalls.Load() != 1 {
		t.Errorf("expected 1 search call, got %d", fake.searchCalls.Load())
	}
}

func TestReplies_HardPageCap(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		writeJSON(w, map[string]any{
			"data":     []map[string]string{},
			"includes": map[string]any{"users": []map[string]string{}},
			"meta":     map[string]any{"next_token": fmt.Sprintf("t%d", n)},
		})
	}))
	defer server.Close()

	_, pages, limited, err := newTestClient(t, server.URL, 0).replies(context.Background(), "123")
	if err != nil {
		t.Fatalf("replies failed: %v", err)
	}
	if pages != maxPages || !limited {
		t.Errorf("expected to stop at %d pages, got %d (limited=%v)", maxPages, pages, limited)
	}
}

func TestGetJSON_TransientThenSuccess(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, map[string]any{"data": []map[string]string{{"id": "u1", "username": "alice"}}})
	}))
	defer server.Close()

	users, err := newTestClient(t, server.URL, 0).Retweeters(context.Background(), "123")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if users["u1"] != "alice" {
		t.Errorf("unexpected users: %v", users)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestGetJSON_429Retried(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(w, map[string]any{"data": []map[string]string{}})
	}))
	defer server.Close()

	if _, err := newTestClient(t, server.URL, 0).Retweeters(context.Background(), "123"); err != nil {
		t.Fatalf("expected success after 429 retry, got %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestGetJSON_PermanentFailure(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(t, server.URL, 0).Replies(context.Background(), "123")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("401 should not be retried, got %d attempts", attempts.Load())
	}
}

func TestGetJSON_AllRetriesExhausted(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	if _, err := newTestClient(t, server.URL, 0).Quotes(context.Background(), "123"); err == nil {
		t.Fatal("expected error after all retries exhausted")
	}
	if attempts.Load() != maxAttempts {
		t.Errorf("expected %d attempts, got %d", maxAttempts, attempts.Load())
	}
}

func TestNewClient_RequiresBearer(t *testing.T) {
	if _, err := NewClient(Options{}); !errors.Is(err, ErrNoBearerToken) {
		t.Errorf("expected ErrNoBearerToken, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"503", &StatusError{Code: 503}, true},
		{"500", &StatusError{Code: 500}, true},
		{"429", &StatusError{Code: 429}, true},
		{"404", &StatusError{Code: 404}, false},
		{"403", &StatusError{Code: 403}, false},
		{"transport", &transportError{err: errors.New("connection refused")}, true},
		{"cancelled transport", &transportError{err: context.Canceled}, false},
		{"decode", errors.New("decode response: unexpected EOF"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.retryable {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := map[string]time.Duration{
		"":     0,
		"abc":  0,
		"-3":   0,
		"2":    2 * time.Second,
		"9999": 15 * time.Minute,
	}
	for in, want := range tests {
		if got := parseRetryAfter(in); got != want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCollect_RetweetersIgnorePageLimit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tweets/search/recent", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"data": []map[string]string{
				{"id": "1", "text": "alice.eth", "author_id": "u1"},
				{"id": "2", "text": "bob.eth", "author_id": "u2"},
			},
			"includes": map[string]any{"users": []map[string]string{
				{"id": "u1", "username": "alice"},
				{"id": "u2", "username": "bob"},
			}},
			"meta": map[string]any{"result_count": 2},
		})
	})
	mux.HandleFunc("/tweets/123/retweeted_by", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pagination_token") == "" {
			writeJSON(w, map[string]any{
				"data": []map[string]string{{"id": "u1", "username": "alice"}},
				"meta": map[string]any{"result_count": 1, "next_token": "r2"},
			})
			return
		}
		writeJSON(w, map[string]any{
			"data": []map[string]string{{"id": "u2", "username": "bob"}},
			"meta": map[string]any{"result_count": 1},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := newTestClient(t, server.URL, 1)
	records, stats, err := c.Collect(context.Background(), "123", CollectOptions{RequireRetweet: true})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if len(records) != 2 {
		t.Errorf("expected both replies kept, got %d", len(records))
	}
	if stats.Retweeters != 2 || stats.PageLimitHit {
		t.Errorf("expected 2 retweeters and no page limit hit, got %+v", stats)
	}
}

func TestGetJSON_LogsThrottledRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{})
	}))
	defer server.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	c, err := NewClient(Options{
		BaseURL:     server.URL,
		BearerToken: "secret",
		Limiter:     worker.NewLimiter(2, 1),
		Logger:      zap.New(core),
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	var out map[string]any
	for i := 0; i < 2; i++ {
		if err := c.getJSON(context.Background(), server.URL+"/tweets", &out); err != nil {
			t.Fatalf("getJSON failed: %v", err)
		}
	}

	if n := logs.FilterMessage("Throttled request").Len(); n != 1 {
		t.Errorf("expected the second request to be throttled once, got %d log entries", n)
	}
}
