package parser

import "testing"

func TestNormalize(t *testing.T) {
	canonical := `L 07/15/2024 - 22:33:10: World triggered "Round_Start"`

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"identity", canonical, canonical},
		{"leading whitespace", "   " + canonical, canonical},
		{"wire prefix", "\xff\xff\xff\xfflog " + canonical, canonical},
		{"trailing newline", canonical + "\n", canonical},
		{"no marker", "garbage without prefix", "garbage without prefix"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	raw := "\xff\xff\xff\xfflog L 07/15/2024 - 22:33:10: Started map \"de_dust\"\n"
	once := Normalize(raw)
	if twice := Normalize(once); twice != once {
		t.Errorf("second Normalize changed the line: %q -> %q", once, twice)
	}
}
