package evaluate

import "testing"

func TestEditDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"identical", "abc", "abc", 0},
		{"empty_a", "", "abc", 3},
		{"empty_b", "abc", "", 3},
		{"both_empty", "", "", 0},
		{"substitution", "abc", "abd", 1},
		{"insertion", "ac", "abc", 1},
		{"deletion", "abc", "ac", 1},
		{"kitten", "kitten", "sitting", 3},
		{"multibyte", "caféx", "cafe", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EditDistance([]rune(tt.a), []rune(tt.b))
			if got != tt.want {
				t.Errorf("EditDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if back := EditDistance([]rune(tt.b), []rune(tt.a)); back != got {
				t.Errorf("EditDistance is not symmetric: %d vs %d", got, back)
			}
		})
	}
}

func TestEditDistance_Words(t *testing.T) {
	a := []string{"the", "cat", "sat"}
	b := []string{"the", "cat", "sat", "down"}
	if got := EditDistance(a, b); got != 1 {
		t.Errorf("EditDistance(words) = %d, want 1", got)
	}
}
