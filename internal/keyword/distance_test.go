package keyword

import "testing"

func TestLevenshteinDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical empty", "", "", 0},
		{"identical unicode", "こんにちは", "こんにちは", 0},
		{"empty a", "", "hello", 5},
		{"empty b", "hello", "", 5},
		{"substitution", "cat", "bat", 1},
		{"insertion", "cat", "cart", 1},
		{"deletion", "cart", "cat", 1},
		{"kitten to sitting", "kitten", "sitting", 3},
		{"saturday to sunday", "saturday", "sunday", 3},
		{"typo", "dragon", "dargon", 2},
		{"unicode substitution", "café", "cafe", 1},
		{"transposition is two edits", "ab", "ba", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LevenshteinDistance(tt.a, tt.b); got != tt.want {
				t.Errorf("LevenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if rev := LevenshteinDistance(tt.b, tt.a); rev != tt.want {
				t.Errorf("not symmetric: (%q,%q) = %d", tt.b, tt.a, rev)
			}
		})
	}
}

func TestDamerauLevenshteinDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "hello", "hello", 0},
		{"empty a", "", "abc", 3},
		{"substitution", "cat", "bat", 1},
		{"transposition ab-ba", "ab", "ba", 1},
		{"transposition teh-the", "teh", "the", 1},
		{"transposition dargon-dragon", "dargon", "dragon", 1},
		{"recieve", "recieve", "receive", 1},
		{"kitten to sitting", "kitten", "sitting", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DamerauLevenshteinDistance(tt.a, tt.b); got != tt.want {
				t.Errorf("DamerauLevenshteinDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if rev := DamerauLevenshteinDistance(tt.b, tt.a); rev != tt.want {
				t.Errorf("not symmetric: (%q,%q) = %d", tt.b, tt.a, rev)
			}
		})
	}
}

func BenchmarkDamerauLevenshteinDistance(b *testing.B) {
	for i := 0; i < b.N; i++ {
		DamerauLevenshteinDistance("the quick brown fox", "the quikc brown foz")
	}
}
