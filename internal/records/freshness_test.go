package records

import (
	"testing"
	"time"
)

func TestFreshness(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		age  time.Duration
		want Status
	}{
		{0, StatusActive},
		{5 * time.Minute, StatusActive},
		{6 * time.Minute, StatusIdle},
		{time.Hour, StatusIdle},
		{61 * time.Minute, StatusOffline},
	}
	for _, tt := range tests {
		if got := Freshness(now, now.Add(-tt.age)); got != tt.want {
			t.Fatalf("Freshness(age=%s) = %s, want %s", tt.age, got, tt.want)
		}
	}
	if got := Freshness(now, time.Time{}); got != StatusOffline {
		t.Fatalf("zero timestamp should be offline, got %s", got)
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		age  time.Duration
		want string
	}{
		{30 * time.Second, "Just now"},
		{-time.Minute, "Just now"},
		{time.Minute, "1 min ago"},
		{59 * time.Minute, "59 mins ago"},
		{time.Hour, "1 hour ago"},
		{23 * time.Hour, "23 hours ago"},
		{24 * time.Hour, "1 day ago"},
		{72 * time.Hour, "3 days ago"},
	}
	for _, tt := range tests {
		if got := RelativeTime(now, now.Add(-tt.age)); got != tt.want {
			t.Fatalf("RelativeTime(age=%s) = %q, want %q", tt.age, got, tt.want)
		}
	}
}
