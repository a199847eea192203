package model

import "testing"

func TestPassageTexts(t *testing.T) {
	passages := []ContextPassage{
		{Text: "a"},
		{Text: "b"},
		{Text: "", Metadata: map[string]any{"k": "v"}},
	}
	got := PassageTexts(passages)
	want := []string{"a", "b", ""}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPassageTextsEmpty(t *testing.T) {
	if got := PassageTexts(nil); len(got) != 0 {
		t.Errorf("expected empty slice, got %v", got)
	}
}
