package common

import "testing"

func TestNormalizeISBN(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  string
		shouldErr bool
	}{
		{"empty", "", "", false},
		{"isbn10", "0306406152", "0306406152", false},
		{"isbn10 hyphens", "0-306-40615-2", "0306406152", false},
		{"isbn10 check X", "097522980X", "097522980X", false},
		{"isbn10 lowercase x", "097522980x", "097522980X", false},
		{"isbn13", "9780306406157", "9780306406157", false},
		{"isbn13 hyphens", "978-0-306-40615-7", "9780306406157", false},
		{"isbn13 spaces", "978 0306406157", "9780306406157", false},
		{"bad isbn10 check", "0306406153", "", true},
		{"bad isbn13 check", "9780306406158", "", true},
		{"bad length", "12345", "", true},
		{"letters inside", "03064O6152", "", true},
		{"x not last", "030640X152", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeISBN(tt.input)
			if tt.shouldErr {
				if err == nil {
					t.Errorf("NormalizeISBN(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeISBN(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("NormalizeISBN(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
