package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/scripture-client/internal/testutil"
	"github.com/Sternrassler/scripture-client/pkg/apierr"
	"github.com/Sternrassler/scripture-client/pkg/retry"
	"github.com/Sternrassler/scripture-client/pkg/scripture"
)

type fakeSearcher struct {
	verses  []scripture.Verse
	err     error
	queries []string
}

func (f *fakeSearcher) SearchVerses(ctx context.Context, query string, opts scripture.SearchOptions) ([]scripture.Verse, error) {
	f.queries = append(f.queries, query)
	return f.verses, f.err
}

func fastExecutor() *retry.Executor {
	return retry.New(retry.Config{
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2,
	})
}

func setupChat(t *testing.T, reply string, opts ...Option) (*Client, *testutil.MockChat) {
	t.Helper()
	mock := testutil.NewMockChat(reply)
	t.Cleanup(mock.Close)

	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.APIURL = mock.URL()
	cfg.Referer = "http://localhost"

	opts = append([]Option{WithExecutor(fastExecutor())}, opts...)
	return New(cfg, opts...), mock
}

func TestGetChatResponse_NotConfigured(t *testing.T) {
	c := New(Config{})

	_, err := c.GetChatResponse(context.Background(), "hello", nil)
	if !errors.Is(err, apierr.ErrNotConfigured) {
		t.Fatalf("GetChatResponse() error = %v, want not configured", err)
	}
	if c.Configured() {
		t.Error("Configured() = true without key and URL")
	}
	if got := c.Missing(); len(got) != 2 {
		t.Errorf("Missing() = %v", got)
	}
}

func TestGetChatResponse_EnrichesWithVerses(t *testing.T) {
	searcher := &fakeSearcher{verses: []scripture.Verse{
		{Reference: "1 John 4:8", Text: "God is love."},
		{Reference: "John 3:16", Text: "For God so loved the world"},
		{Reference: "Romans 5:8", Text: "But God commendeth his love"},
	}}
	c, mock := setupChat(t, "Love is patient.", WithVerseSearcher(searcher))

	resp, err := c.GetChatResponse(context.Background(), "What does the Bible say about love?", nil)
	if err != nil {
		t.Fatalf("GetChatResponse() error = %v", err)
	}
	if resp.Text != "Love is patient." {
		t.Errorf("Text = %q", resp.Text)
	}
	if len(resp.RelevantVerses) != DefaultVerseLimit || !resp.HasVerses() {
		t.Errorf("RelevantVerses = %d, want %d", len(resp.RelevantVerses), DefaultVerseLimit)
	}
	if len(searcher.queries) != 1 || !strings.Contains(searcher.queries[0], "love") {
		t.Errorf("search queries = %v", searcher.queries)
	}

	req, header := mock.LastRequest()
	if header.Get("Authorization") != "Bearer test-key" {
		t.Errorf("Authorization = %q", header.Get("Authorization"))
	}
	if header.Get("X-Title") != DefaultTitle {
		t.Errorf("X-Title = %q", header.Get("X-Title"))
	}
	if header.Get("HTTP-Referer") != "http://localhost" {
		t.Errorf("HTTP-Referer = %q", header.Get("HTTP-Referer"))
	}
	if req.Model != DefaultModel || req.MaxTokens != DefaultMaxTokens {
		t.Errorf("request = %+v", req)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v", req.Messages)
	}
	if !strings.Contains(req.Messages[0].Content, "1 John 4:8") {
		t.Error("system prompt does not list the verses")
	}
	if strings.Contains(req.Messages[0].Content, "Romans 5:8") {
		t.Error("system prompt lists more verses than the limit")
	}
}

func TestGetChatResponse_SearchFailureDoesNotFail(t *testing.T) {
	searcher := &fakeSearcher{err: apierr.RateLimited(time.Second, "")}
	c, _ := setupChat(t, "Have faith.", WithVerseSearcher(searcher))

	resp, err := c.GetChatResponse(context.Background(), "Tell me about faith", nil)
	if err != nil {
		t.Fatalf("GetChatResponse() error = %v", err)
	}
	if resp.HasVerses() {
		t.Error("verses returned despite search failure")
	}
}

func TestGetChatResponse_TrimsHistory(t *testing.T) {
	c, mock := setupChat(t, "ok")

	var history []Message
	for i := 0; i < 8; i++ {
		history = append(history, Message{Role: "user", Content: string(rune('a' + i))})
	}

	if _, err := c.GetChatResponse(context.Background(), "next", history); err != nil {
		t.Fatalf("GetChatResponse() error = %v", err)
	}

	req, _ := mock.LastRequest()
	// system + 5 history + user
	if len(req.Messages) != 7 {
		t.Fatalf("len(messages) = %d, want 7", len(req.Messages))
	}
	if req.Messages[1].Content != "d" {
		t.Errorf("first history message = %q, want d", req.Messages[1].Content)
	}
	if req.Messages[6].Content != "next" {
		t.Errorf("last message = %q", req.Messages[6].Content)
	}
}

func TestGetChatResponse_RetriesServerErrors(t *testing.T) {
	c, mock := setupChat(t, "recovered")
	mock.FailNext(testutil.NewServerErrorResponse(), testutil.NewServerErrorResponse())

	resp, err := c.GetChatResponse(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("GetChatResponse() error = %v", err)
	}
	if resp.Text != "recovered" {
		t.Errorf("Text = %q", resp.Text)
	}
	if mock.CallCount() != 3 {
		t.Errorf("CallCount() = %d, want 3", mock.CallCount())
	}
}

func TestGetChatResponse_ClientErrorNotRetried(t *testing.T) {
	c, mock := setupChat(t, "unused")
	mock.FailNext(testutil.MockResponse{StatusCode: http.StatusUnauthorized, Body: `{"error":"bad key"}`})

	_, err := c.GetChatResponse(context.Background(), "hello", nil)
	if apierr.ClassOf(err) != apierr.ClassClient {
		t.Fatalf("error class = %q, want client", apierr.ClassOf(err))
	}
	if mock.CallCount() != 1 {
		t.Errorf("CallCount() = %d, want 1", mock.CallCount())
	}
}

func TestGetChatResponse_EmptyReply(t *testing.T) {
	c, _ := setupChat(t, "")

	resp, err := c.GetChatResponse(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("GetChatResponse() error = %v", err)
	}
	if resp.Text != emptyResponse {
		t.Errorf("Text = %q, want fallback", resp.Text)
	}
}

func TestBiblicalPerspective_Fallback(t *testing.T) {
	c, mock := setupChat(t, "unused")
	mock.FailNext(testutil.MockResponse{StatusCode: http.StatusBadRequest})

	p := c.BiblicalPerspective(context.Background(), "patience")
	if p.Err == nil {
		t.Fatal("Err = nil, want provider error")
	}
	if !strings.Contains(p.Text, "patience") {
		t.Errorf("fallback text = %q", p.Text)
	}
	if p.Topic != "patience" {
		t.Errorf("Topic = %q", p.Topic)
	}
}

func TestBiblicalPerspective_Success(t *testing.T) {
	searcher := &fakeSearcher{verses: []scripture.Verse{{Reference: "James 1:4", Text: "Let patience have her perfect work"}}}
	c, _ := setupChat(t, "Patience is a fruit of the Spirit.", WithVerseSearcher(searcher))

	p := c.BiblicalPerspective(context.Background(), "patience")
	if p.Err != nil {
		t.Fatalf("Err = %v", p.Err)
	}
	if p.Text != "Patience is a fruit of the Spirit." {
		t.Errorf("Text = %q", p.Text)
	}
	if len(p.Verses) != 1 {
		t.Errorf("Verses = %d, want 1", len(p.Verses))
	}
}
