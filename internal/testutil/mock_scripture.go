// Package testutil provides mock upstreams for Scripture and chat client tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockScripture is a configurable mock Scripture API server for testing.
// Unless overridden, it serves every endpoint with generated content and
// requires the api-key header.
type MockScripture struct {
	server *httptest.Server
	apiKey string
	mux    *http.ServeMux

	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	requestCount int
	pathCounts   map[string]int
	requestTimes []time.Time
	lastHeader   http.Header
}

// NewMockScripture creates a mock server accepting apiKey.
func NewMockScripture(apiKey string) *MockScripture {
	mock := &MockScripture{
		apiKey:     apiKey,
		mux:        http.NewServeMux(),
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		pathCounts: make(map[string]int),
	}

	mock.mux.HandleFunc("GET /bibles", mock.handleBibles)
	mock.mux.HandleFunc("GET /bibles/{bible}/passages/{passage}", mock.handlePassage)
	mock.mux.HandleFunc("GET /bibles/{bible}/search", mock.handleSearch)
	mock.mux.HandleFunc("GET /bibles/{bible}/books", mock.handleBooks)
	mock.mux.HandleFunc("GET /bibles/{bible}/books/{book}/chapters", mock.handleChapters)
	mock.mux.HandleFunc("GET /bibles/{bible}/books/{book}/chapters/{chapter}/verses", mock.handleVerses)

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.pathCounts[r.URL.Path]++
		mock.requestTimes = append(mock.requestTimes, time.Now())
		mock.lastHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if mock.apiKey != "" && r.Header.Get("api-key") != mock.apiKey {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized", "message": "Invalid API key"})
			return
		}

		if exists {
			handler(w, r)
			return
		}
		mock.mux.ServeHTTP(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockScripture) URL() string {
	return m.server.URL
}

// Client returns an HTTP client for the server.
func (m *MockScripture) Client() *http.Client {
	return m.server.Client()
}

// Close shuts down the mock server.
func (m *MockScripture) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockScripture) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.pathCounts = make(map[string]int)
	m.requestTimes = nil
	m.lastHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockScripture) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// ClearHandler restores the default handler for path.
func (m *MockScripture) ClearHandler(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, path)
}

// SetResponse configures a simple response for a path.
func (m *MockScripture) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, resp.handle)
}

// SetSequence serves responses in order for path, then falls back to the
// default handler.
func (m *MockScripture) SetSequence(path string, responses ...MockResponse) {
	var (
		mu   sync.Mutex
		next int
	)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		i := next
		next++
		mu.Unlock()

		if i < len(responses) {
			responses[i].handle(w, r)
			return
		}
		m.mux.ServeHTTP(w, r)
	})
}

func (resp MockResponse) handle(w http.ResponseWriter, _ *http.Request) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// RequestCount returns the number of requests made to the server.
func (m *MockScripture) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// PathCount returns the number of requests made to path.
func (m *MockScripture) PathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// RequestTimes returns the arrival time of every request.
func (m *MockScripture) RequestTimes() []time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]time.Time(nil), m.requestTimes...)
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockScripture) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

// PassageText is the plain text served for a passage id.
func PassageText(passageID string) string {
	return "Text of " + passageID
}

func (m *MockScripture) handleBibles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
		{"id": "de4e12af7f28f599-02", "name": "King James (Authorised) Version", "abbreviation": "engKJV", "language": map[string]string{"id": "eng", "name": "English"}},
		{"id": "9879dbb7cfe39e4d-04", "name": "World English Bible", "abbreviation": "WEB", "language": map[string]string{"id": "eng", "name": "English"}},
		{"id": "926aa5efbc5e04e2-01", "name": "Lutherbibel 1912", "abbreviation": "LUT", "language": map[string]string{"id": "deu", "name": "German"}},
	}})
}

func (m *MockScripture) handlePassage(w http.ResponseWriter, r *http.Request) {
	passage := r.PathValue("passage")
	content := PassageText(passage)
	if r.URL.Query().Get("include-verse-numbers") == "true" {
		content = `<span class="v">1</span>` + content
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"id":        passage,
		"bibleId":   r.PathValue("bible"),
		"reference": passage,
		"content":   "<p>" + content + "</p>",
		"copyright": "PUBLIC DOMAIN",
	}})
}

func (m *MockScripture) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"query": query,
		"total": 2,
		"verses": []map[string]any{
			{"id": "1JN.4.8", "bookId": "1JN", "chapterId": "1JN.4", "reference": "1 John 4:8", "text": "<p>God is " + query + ".</p>"},
			{"id": "JHN.3.16", "bookId": "JHN", "chapterId": "JHN.3", "reference": "John 3:16", "text": "For God so " + query + "d the world"},
		},
	}})
}

func (m *MockScripture) handleBooks(w http.ResponseWriter, r *http.Request) {
	bible := r.PathValue("bible")
	writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
		{"id": "MAT", "bibleId": bible, "abbreviation": "Mat", "name": "Matthew", "nameLong": "The Gospel According to Matthew"},
		{"id": "GEN", "bibleId": bible, "abbreviation": "Gen", "name": "Genesis", "nameLong": "The First Book of Moses"},
		{"id": "EXO", "bibleId": bible, "abbreviation": "Exo", "name": "Exodus", "nameLong": "The Second Book of Moses"},
	}})
}

// MockChapterCount is the number of numbered chapters served per book.
const MockChapterCount = 3

func (m *MockScripture) handleChapters(w http.ResponseWriter, r *http.Request) {
	bible, book := r.PathValue("bible"), r.PathValue("book")
	chapters := []map[string]any{{"id": book + ".intro", "bibleId": bible, "bookId": book, "number": "intro", "reference": book + " Introduction"}}
	for n := 1; n <= MockChapterCount; n++ {
		chapters = append(chapters, map[string]any{
			"id": fmt.Sprintf("%s.%d", book, n), "bibleId": bible, "bookId": book,
			"number": fmt.Sprint(n), "reference": fmt.Sprintf("%s %d", book, n),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": chapters})
}

func (m *MockScripture) handleVerses(w http.ResponseWriter, r *http.Request) {
	bible, book, chapter := r.PathValue("bible"), r.PathValue("book"), r.PathValue("chapter")
	var verses []map[string]any
	for v := 1; v <= 3; v++ {
		id := fmt.Sprintf("%s.%s.%d", book, chapter, v)
		verses = append(verses, map[string]any{
			"id": id, "orgId": id, "bibleId": bible, "bookId": book,
			"chapterId": book + "." + chapter, "reference": strings.ReplaceAll(id, ".", " "),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": verses})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// NewRateLimitResponse creates a 429 response carrying a wait hint in the body.
func NewRateLimitResponse(wait time.Duration) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       fmt.Sprintf(`{"statusCode":429,"message":"Rate limit exceeded. Wait %dms before making more requests."}`, wait.Milliseconds()),
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewNotFoundResponse creates a 404 response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"statusCode":404,"error":"Not Found","message":"Passage not found"}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}
