package segment

import "testing"

func TestPhraseID(t *testing.T) {
	tests := []struct {
		session  string
		index    int
		expected string
	}{
		{"mic-1", 0, "mic-1-phrase-1"},
		{"mic-1", 1, "mic-1-phrase-2"},
		{"mic-2", 41, "mic-2-phrase-42"},
	}
	for _, tt := range tests {
		if got := PhraseID(tt.session, tt.index); got != tt.expected {
			t.Errorf("expected '%s', got %s", tt.expected, got)
		}
	}
}

func TestTranscriptLog_ReplaceAndAppend(t *testing.T) {
	l := NewTranscriptLog()
	if l.Len() != 1 {
		t.Fatalf("expected a single open element, got %d", l.Len())
	}

	if idx := l.Replace("hel"); idx != 0 {
		t.Errorf("expected index 0, got %d", idx)
	}
	l.Replace("hello")
	if idx := l.Append("world"); idx != 1 {
		t.Errorf("expected index 1, got %d", idx)
	}
	l.Replace("world!")

	lines := l.Lines()
	if len(lines) != 2 || lines[0] != "hello" || lines[1] != "world!" {
		t.Errorf("unexpected lines %q", lines)
	}

	// Lines returns a copy.
	lines[0] = "mutated"
	if l.Lines()[0] != "hello" {
		t.Error("expected Lines to return a copy")
	}
}
