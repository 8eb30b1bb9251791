package shared

import "testing"

func TestFormatDuration(t *testing.T) {
	tc := []struct {
		name    string
		seconds int
		want    string
	}{
		{name: "zero", seconds: 0, want: "0:00"},
		{name: "seconds only", seconds: 42, want: "0:42"},
		{name: "minutes", seconds: 185, want: "3:05"},
		{name: "hours", seconds: 3725, want: "1:02:05"},
		{name: "negative clamps", seconds: -5, want: "0:00"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.seconds); got != tt.want {
				t.Errorf("FormatDuration(%d) = %v, want %v", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestFormatCount(t *testing.T) {
	tc := []struct {
		n    int64
		want string
	}{
		{n: 999, want: "999"},
		{n: 1000, want: "1K"},
		{n: 1250, want: "1.2K"},
		{n: 3_400_000, want: "3.4M"},
		{n: 2_000_000_000, want: "2B"},
	}

	for _, tt := range tc {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatCount(tt.n); got != tt.want {
				t.Errorf("FormatCount(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty IDs, got %q and %q", a, b)
	}
}
