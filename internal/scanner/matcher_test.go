package scanner

import "testing"

func TestRegexMatcher_FullMatch(t *testing.T) {
	m, err := NewRegexMatcher(`/data/.*\.(jpg|png)`)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		path string
		want bool
	}{
		{"/data/a.jpg", true},
		{"/data/x/y.png", true},
		{"/data/a.jpg.bak", false},
		{"/other/data/a.jpg", false},
	}
	for _, tt := range tests {
		if got := m.Match(tt.path); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestRegexMatcher_Alternation(t *testing.T) {
	// Without grouping, the anchors would bind to only one alternative.
	m, err := NewRegexMatcher(`.*\.jpg|.*\.png`)
	if err != nil {
		t.Fatal(err)
	}
	if m.Match("/a.png.txt") || m.Match("/a.jpg.txt") {
		t.Fatal("expected both alternatives to be anchored")
	}
	if !m.Match("/a.png") {
		t.Fatal("expected /a.png to match")
	}
}

func TestRegexMatcher_Invalid(t *testing.T) {
	if _, err := NewRegexMatcher(`(`); err == nil {
		t.Fatal("expected error for invalid expression")
	}
}

func TestGlobMatcher(t *testing.T) {
	m, err := NewGlobMatcher("/photos/*.jpg")
	if err != nil {
		t.Fatal(err)
	}
	if !m.Match("/photos/a.jpg") {
		t.Fatal("expected direct child to match")
	}
	if m.Match("/photos/2024/a.jpg") {
		t.Fatal("expected * not to cross separators")
	}

	deep, err := NewGlobMatcher("**.{jpg,png}")
	if err != nil {
		t.Fatal(err)
	}
	if !deep.Match("/photos/2024/a.png") {
		t.Fatal("expected ** to cross separators")
	}
}

func TestNewMatcher(t *testing.T) {
	m, err := NewMatcher("", "")
	if err != nil || m != nil {
		t.Fatalf("expected no matcher, got %v, %v", m, err)
	}

	m, err = NewMatcher(`.*\.jpg`, "/keep/**")
	if err != nil {
		t.Fatal(err)
	}
	if !m.Match("/keep/a.jpg") {
		t.Fatal("expected path satisfying both to match")
	}
	if m.Match("/drop/a.jpg") || m.Match("/keep/a.png") {
		t.Fatal("expected both filters to apply")
	}

	if _, err := NewMatcher("", "[unclosed"); err == nil {
		t.Fatal("expected error for invalid glob")
	}
}
