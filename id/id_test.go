package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/xraph/burst/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"PlanID", id.NewPlanID, "plan_"},
		{"RunID", id.NewRunID, "run_"},
		{"DeliveryID", id.NewDeliveryID, "dlv_"},
		{"ReplayID", id.NewReplayID, "rpl_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"PlanID", id.NewPlanID, id.ParsePlanID},
		{"RunID", id.NewRunID, id.ParseRunID},
		{"DeliveryID", id.NewDeliveryID, id.ParseDeliveryID},
		{"ReplayID", id.NewReplayID, id.ParseReplayID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	runID := id.NewRunID().String()
	if _, err := id.ParsePlanID(runID); err == nil {
		t.Errorf("expected error parsing run ID %q as plan ID", runID)
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Fatal("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("nil ID String() = %q, want empty", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("nil ID Prefix() = %q, want empty", i.Prefix())
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		ID id.ID `json:"id"`
	}

	original := wrapper{ID: id.NewDeliveryID()}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded wrapper
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ID.String() != original.ID.String() {
		t.Errorf("got %q, want %q", decoded.ID.String(), original.ID.String())
	}
}
