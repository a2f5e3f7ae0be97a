package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/scripture-client/internal/testutil"
)

const testBible = "test-bible"

// setupCLI writes a config file pointing at mock upstreams and returns the
// arguments selecting it.
func setupCLI(t *testing.T) (*testutil.MockScripture, *testutil.MockChat, []string) {
	t.Helper()

	mock := testutil.NewMockScripture("test-key")
	t.Cleanup(mock.Close)
	chatMock := testutil.NewMockChat("Love is patient.")
	t.Cleanup(chatMock.Close)

	// Environment overrides would win over the file.
	for _, key := range []string{"BIBLE_API_KEY", "BIBLE_BASE_URL", "DEFAULT_BIBLE_ID", "OPENROUTER_API_KEY", "OPENROUTER_API_URL", "REDIS_URL", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	config := fmt.Sprintf(`bible:
  api_key: test-key
  base_url: %s
  default_bible_id: %s
chat:
  api_key: chat-key
  api_url: %s
queue:
  min_interval: 1ms
  buffer_delay: 1ms
rate_limit:
  max_requests: 100
retry:
  base_delay: 1ms
  max_delay: 5ms
log:
  level: error
`, mock.URL(), testBible, chatMock.URL())

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(config), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return mock, chatMock, []string{"--config", path}
}

func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestVersion(t *testing.T) {
	stdout, _, code := runCLI(t, "version")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.HasPrefix(stdout, "scripture dev") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestPassage(t *testing.T) {
	mock, _, base := setupCLI(t)

	stdout, stderr, code := runCLI(t, append(base, "passage", "John", "3:16")...)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}
	if !strings.Contains(stdout, "Text of JHN.3.16") {
		t.Errorf("stdout = %q, want passage text", stdout)
	}
	if got := mock.PathCount("/bibles/" + testBible + "/passages/JHN.3.16"); got != 1 {
		t.Errorf("passage requests = %d, want 1", got)
	}
}

func TestPassage_JSON(t *testing.T) {
	_, _, base := setupCLI(t)

	stdout, stderr, code := runCLI(t, append(base, "--json", "passage", "GEN.1")...)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}
	var p struct {
		Reference string `json:"reference"`
		BibleID   string `json:"bibleId"`
	}
	if err := json.Unmarshal([]byte(stdout), &p); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if p.Reference != "GEN.1" {
		t.Errorf("reference = %q, want GEN.1", p.Reference)
	}
}

func TestPassage_InvalidReference(t *testing.T) {
	mock, _, base := setupCLI(t)

	_, stderr, code := runCLI(t, append(base, "passage", "not a verse")...)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "invalid verse reference") {
		t.Errorf("stderr = %q", stderr)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("upstream called %d times for an invalid reference", mock.RequestCount())
	}
}

func TestSearch(t *testing.T) {
	_, _, base := setupCLI(t)

	stdout, stderr, code := runCLI(t, append(base, "search", "love")...)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}
	if !strings.Contains(stdout, "John 3:16") {
		t.Errorf("stdout = %q, want search hits", stdout)
	}
}

func TestBooks_CanonicalOrder(t *testing.T) {
	_, _, base := setupCLI(t)

	stdout, stderr, code := runCLI(t, append(base, "books")...)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}
	gen, mat := strings.Index(stdout, "Genesis"), strings.Index(stdout, "Matthew")
	if gen < 0 || mat < 0 || gen > mat {
		t.Errorf("stdout = %q, want Genesis before Matthew", stdout)
	}
}

func TestBook(t *testing.T) {
	_, _, base := setupCLI(t)

	stdout, stderr, code := runCLI(t, append(base, "book", "GEN")...)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}
	for _, want := range []string{"== Chapter 1 ==", "== Chapter 3 ==", "Text of GEN.2"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q", want)
		}
	}
}

func TestFacts(t *testing.T) {
	_, _, base := setupCLI(t)

	stdout, stderr, code := runCLI(t, append(base, "facts", "--day", "10")...)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}
	if !strings.Contains(stdout, "Text of") {
		t.Errorf("stdout = %q, want verse content", stdout)
	}
}

func TestChat(t *testing.T) {
	_, chatMock, base := setupCLI(t)

	stdout, stderr, code := runCLI(t, append(base, "chat", "what", "is", "love")...)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}
	if !strings.Contains(stdout, "Love is patient.") {
		t.Errorf("stdout = %q", stdout)
	}
	if chatMock.CallCount() != 1 {
		t.Errorf("chat calls = %d, want 1", chatMock.CallCount())
	}
}

func TestStatus_JSON(t *testing.T) {
	_, _, base := setupCLI(t)

	stdout, stderr, code := runCLI(t, append(base, "--json", "status")...)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}
	var status map[string]any
	if err := json.Unmarshal([]byte(stdout), &status); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if status["cooldown_store"] != "memory" {
		t.Errorf("cooldown_store = %v, want memory", status["cooldown_store"])
	}
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("queue: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, stderr, code := runCLI(t, "--config", path, "books")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "parsing config") {
		t.Errorf("stderr = %q", stderr)
	}
}
