package metrics

import (
	"context"
	"testing"
	"time"

	"meal-planner/internal/database/dbtest"
	"meal-planner/internal/shared"
)

func TestMapUsage(t *testing.T) {
	m := MapUsage("url_extraction", shared.TokenUsage{PromptTokens: 10, CompletionTokens: 5, Model: "gemini"}, 1500*time.Millisecond)
	if m.Operation != "url_extraction" || m.Model != "gemini" {
		t.Errorf("Unexpected mapping: %+v", m)
	}
	if m.LatencyMS != 1500 {
		t.Errorf("Expected 1500ms, got %d", m.LatencyMS)
	}
	if m.Timestamp.IsZero() {
		t.Error("Expected timestamp to be set")
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{90 * time.Second, "1m30s"},
		{26 * time.Hour, "1d2h0m0s"},
	}
	for _, tt := range tests {
		if got := formatUptime(tt.in); got != tt.want {
			t.Errorf("formatUptime(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetSysHealth(t *testing.T) {
	h := GetSysHealth(time.Now().Add(-time.Minute))
	if h.Goroutines < 1 {
		t.Errorf("Expected at least one goroutine, got %d", h.Goroutines)
	}
	if h.Uptime == "" {
		t.Error("Expected uptime")
	}
}

func TestStoreIntegration(t *testing.T) {
	ctx := context.Background()
	s := NewStore(dbtest.Open(t))

	if err := s.RecordMeta(ctx, shared.CallMeta{Operation: "noop"}); err != nil {
		t.Fatal(err)
	}
	meta := shared.CallMeta{Operation: "translation", Usage: shared.TokenUsage{PromptTokens: 100, CompletionTokens: 40, Model: "m"}}
	if err := s.RecordMeta(ctx, meta); err != nil {
		t.Fatal(err)
	}
	old := MapUsage("translation", meta.Usage, 0)
	old.Timestamp = time.Now().UTC().AddDate(0, 0, -40)
	if err := s.Record(ctx, old); err != nil {
		t.Fatal(err)
	}

	usage, err := s.GetDailyUsage(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(usage) != 1 || usage[0].TotalPrompt != 100 || usage[0].TotalCalls != 1 {
		t.Errorf("Unexpected daily usage: %+v", usage)
	}

	n, err := s.Cleanup(ctx, 30)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Expected 1 row removed, got %d", n)
	}
}
