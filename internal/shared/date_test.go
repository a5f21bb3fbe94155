package shared

import (
	"encoding/json"
	"testing"
)

func TestDateWeekStart(t *testing.T) {
	tests := map[string]string{
		"2024-06-10": "2024-06-10", // Monday
		"2024-06-12": "2024-06-10",
		"2024-06-16": "2024-06-10", // Sunday
		"2024-06-17": "2024-06-17",
		"2024-01-03": "2024-01-01",
	}
	for in, want := range tests {
		d, err := ParseDate(in)
		if err != nil {
			t.Fatalf("ParseDate(%q) failed: %v", in, err)
		}
		if got := d.WeekStart().String(); got != want {
			t.Errorf("WeekStart(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestDateJSON(t *testing.T) {
	var payload struct {
		Day Date `json:"day"`
	}
	if err := json.Unmarshal([]byte(`{"day":"2024-02-29"}`), &payload); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	out, _ := json.Marshal(payload)
	if string(out) != `{"day":"2024-02-29"}` {
		t.Errorf("Unexpected JSON %s", out)
	}

	if err := json.Unmarshal([]byte(`{"day":"29/02/2024"}`), &payload); err == nil {
		t.Error("Expected error for malformed date")
	}
}
