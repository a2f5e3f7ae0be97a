package chat

import (
	"reflect"
	"strings"
	"testing"

	"github.com/Sternrassler/scripture-client/pkg/scripture"
)

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"What does the Bible say about love?", []string{"love"}},
		{"I need forgiveness and hope", []string{"forgiveness", "hope"}},
		{"How do I forgive someone?", []string{"forgive"}},
		{"Tell me about the Holy Spirit", []string{"holy spirit", "holy", "spirit"}},
		{"He loved, and LOVED again", []string{"loved"}},
		{"for the weather today", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := ExtractKeywords(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractKeywords(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestSystemPrompt(t *testing.T) {
	if got := SystemPrompt(nil); got != basePrompt {
		t.Error("SystemPrompt(nil) should be the base prompt")
	}

	got := SystemPrompt([]scripture.Verse{
		{Reference: "John 3:16", Text: "For God so loved the world"},
	})
	if !strings.HasPrefix(got, basePrompt) {
		t.Error("prompt does not start with the base prompt")
	}
	if !strings.Contains(got, `1. John 3:16: "For God so loved the world"`) {
		t.Errorf("prompt missing verse line:\n%s", got)
	}
}
