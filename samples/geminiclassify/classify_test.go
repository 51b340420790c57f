package geminiclassify

import "testing"

func TestMatchBranchExact(t *testing.T) {
	got := matchBranch("Approve", []string{"approve", "reject"})
	if got != "approve" {
		t.Fatalf("got %q, want approve", got)
	}
}

func TestMatchBranchSubstring(t *testing.T) {
	got := matchBranch("I think we should reject this one.", []string{"approve", "reject"})
	if got != "reject" {
		t.Fatalf("got %q, want reject", got)
	}
}

func TestMatchBranchNoMatch(t *testing.T) {
	got := matchBranch("unsure", []string{"approve", "reject"})
	if got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestStringSliceValid(t *testing.T) {
	got, err := stringSlice([]any{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got %v", got)
	}
}

func TestStringSliceInvalidEntry(t *testing.T) {
	if _, err := stringSlice([]any{"a", 5}); err == nil {
		t.Fatal("expected error for non-string entry")
	}
}

func TestClassifyRejectsEmptyAPIKey(t *testing.T) {
	c := NewClassifier("", "")
	if _, err := c.classify(nil, "content", []string{"a", "b"}, ""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}
