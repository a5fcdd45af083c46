package sync

import "testing"

func TestToStorageDateAcceptsBothFormats(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"15-08-2026", "2026-08-15"},
		{"2026-08-15", "2026-08-15"},
		{"01-01-2026", "2026-01-01"},
	}
	for _, tc := range tests {
		got, err := ToStorageDate(tc.input)
		if err != nil {
			t.Fatalf("ToStorageDate(%q) errored: %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("ToStorageDate(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestToStorageDateRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "August 15", "15/08/2026", "2026-13-40"} {
		if _, err := ToStorageDate(input); err == nil {
			t.Fatalf("ToStorageDate(%q) should fail", input)
		}
	}
}

func TestToDisplayDate(t *testing.T) {
	if got := ToDisplayDate("2026-08-15"); got != "15-08-2026" {
		t.Fatalf("unexpected display date: %q", got)
	}
	// Unknown shapes pass through untouched.
	if got := ToDisplayDate("n/a"); got != "n/a" {
		t.Fatalf("unexpected passthrough: %q", got)
	}
}
