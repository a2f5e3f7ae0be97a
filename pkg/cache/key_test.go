package cache

import (
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "chapter with version",
			key:  Key{Type: TypeChapter, ID: "GEN.1", Version: "kjv"},
			want: "chapter:GEN.1:kjv",
		},
		{
			name: "version independent",
			key:  Key{Type: TypeFacts, ID: "day-42"},
			want: "facts:day-42",
		},
		{
			name: "passage range",
			key:  Key{Type: TypePassage, ID: "PRO.3.5-PRO.3.6", Version: "web"},
			want: "passage:PRO.3.5-PRO.3.6:web",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_Comparable(t *testing.T) {
	// A search ID that embeds the separator must not alias a chapter key.
	a := Key{Type: TypeSearch, ID: "love-auto", Version: "kjv"}
	b := Key{Type: TypeSearch, ID: "love", Version: "auto-kjv"}
	if a == b {
		t.Error("distinct keys compared equal")
	}

	m := map[Key]int{a: 1, b: 2}
	if len(m) != 2 {
		t.Errorf("map has %d entries, want 2", len(m))
	}

	if (Key{Type: TypeChapter, ID: "GEN.1", Version: "kjv"}) == (Key{Type: TypeChapter, ID: "GEN.1", Version: "web"}) {
		t.Error("keys for different versions compared equal")
	}
}
