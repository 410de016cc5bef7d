package hooks

import (
	"testing"
	"time"
)

func TestParseExpiry(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantOK  bool
		wantNil bool
		want    time.Time
	}{
		{
			name:    "empty means no expiry",
			raw:     "",
			wantOK:  true,
			wantNil: true,
		},
		{
			name:    "null literal",
			raw:     "null",
			wantOK:  true,
			wantNil: true,
		},
		{
			name:   "rfc3339 with Z",
			raw:    "2025-01-01T00:00:00Z",
			wantOK: true,
			want:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "rfc3339 with offset",
			raw:    "2025-06-15T12:00:00+03:00",
			wantOK: true,
			want:   time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC),
		},
		{
			name:   "bare datetime taken as UTC",
			raw:    "2025-03-10T08:30:00",
			wantOK: true,
			want:   time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC),
		},
		{
			name:   "date only",
			raw:    "2025-12-31",
			wantOK: true,
			want:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "garbage",
			raw:    "скоро",
			wantOK: false,
		},
		{
			name:   "partially valid",
			raw:    "2025-13-45T99:00:00Z",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseExpiry(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ParseExpiry(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if !tt.wantOK {
				if got != nil {
					t.Errorf("failed parse must return nil, got %v", got)
				}
				return
			}
			if tt.wantNil {
				if got != nil {
					t.Errorf("ParseExpiry(%q) = %v, want nil", tt.raw, got)
				}
				return
			}
			if got == nil || !got.Equal(tt.want) {
				t.Errorf("ParseExpiry(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}
