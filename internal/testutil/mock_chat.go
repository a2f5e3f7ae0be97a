package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// ChatRequest is the decoded body of a chat completion request.
type ChatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

// MockChat is a mock chat completion provider.
type MockChat struct {
	server *httptest.Server

	mu        sync.Mutex
	reply     string
	failures  []MockResponse
	requests  []ChatRequest
	headers   []http.Header
	callCount int
}

// NewMockChat creates a provider answering every request with reply.
func NewMockChat(reply string) *MockChat {
	mock := &MockChat{reply: reply}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		json.NewDecoder(r.Body).Decode(&req)

		mock.mu.Lock()
		mock.callCount++
		mock.requests = append(mock.requests, req)
		mock.headers = append(mock.headers, r.Header.Clone())
		var failure *MockResponse
		if len(mock.failures) > 0 {
			failure = &mock.failures[0]
			mock.failures = mock.failures[1:]
		}
		reply := mock.reply
		mock.mu.Unlock()

		if failure != nil {
			failure.handle(w, r)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))

	return mock
}

// URL returns the completion endpoint.
func (m *MockChat) URL() string {
	return m.server.URL + "/api/v1/chat/completions"
}

// Close shuts down the mock server.
func (m *MockChat) Close() {
	m.server.Close()
}

// FailNext serves responses before returning to normal replies.
func (m *MockChat) FailNext(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, responses...)
}

// CallCount returns the number of completion requests.
func (m *MockChat) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastRequest returns the most recent request body and headers.
func (m *MockChat) LastRequest() (ChatRequest, http.Header) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ChatRequest{}, nil
	}
	return m.requests[len(m.requests)-1], m.headers[len(m.headers)-1]
}
