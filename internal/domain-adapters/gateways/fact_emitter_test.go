package gateways

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/veritrail/veritrail/internal/domain/entities"
	"github.com/veritrail/veritrail/internal/domain/interfaces"
)

func TestFactEmitter_Emit(t *testing.T) {
	store := interfaces.NewMemoryFactStore()
	emitter := NewFactEmitter(store, &interfaces.NoOpLogger{})
	comp := entities.Component{Repository: "https://github.com/acme/pkg", Commit: "abc"}

	results := []entities.CheckResult{
		{
			CheckID:    "build_tool",
			Status:     entities.StatusPassed,
			Confidence: 1.0,
			Evidence:   []entities.Evidence{{Key: "build_tool", Value: "maven", File: "pom.xml"}},
			Timestamp:  time.Now(),
		},
		{
			CheckID:    "artifact_signature",
			Status:     entities.StatusUnknown,
			Confidence: 0.2,
			Timestamp:  time.Now(),
		},
	}

	facts, err := emitter.Emit(context.Background(), comp, results)
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("emitted %d facts, want 2", len(facts))
	}
	// Sorted by check ID regardless of input order.
	if facts[0].CheckID != "artifact_signature" || facts[1].CheckID != "build_tool" {
		t.Errorf("fact order = [%s %s], want sorted by check ID", facts[0].CheckID, facts[1].CheckID)
	}
	if facts[0].ComponentID != comp.ID() {
		t.Errorf("component ID = %q, want %q", facts[0].ComponentID, comp.ID())
	}

	var record struct {
		CheckID    string  `json:"check_id"`
		Status     string  `json:"status"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(facts[1].EvidenceRef), &record); err != nil {
		t.Fatalf("evidence ref is not valid JSON: %v", err)
	}
	if record.Status != "PASSED" || record.Confidence != 1.0 {
		t.Errorf("evidence record = %+v", record)
	}
}

// Facts exclude timestamps so two runs over identical inputs serialize
// identically, and re-emission overwrites rather than accumulates.
func TestFactEmitter_IdempotentAcrossRuns(t *testing.T) {
	store := interfaces.NewMemoryFactStore()
	emitter := NewFactEmitter(store, &interfaces.NoOpLogger{})
	comp := entities.Component{Repository: "repo", Commit: "c1"}

	results := func(ts time.Time) []entities.CheckResult {
		return []entities.CheckResult{
			{
				CheckID:    "version_control",
				Status:     entities.StatusPassed,
				Confidence: 1.0,
				Evidence:   []entities.Evidence{{Key: "commit", Value: "c1"}},
				Timestamp:  ts,
			},
		}
	}

	first, err := emitter.Emit(context.Background(), comp, results(time.Now()))
	if err != nil {
		t.Fatalf("first Emit failed: %v", err)
	}
	second, err := emitter.Emit(context.Background(), comp, results(time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("second Emit failed: %v", err)
	}
	if first[0] != second[0] {
		t.Errorf("facts differ across runs:\n  %+v\n  %+v", first[0], second[0])
	}

	stored, err := store.List(context.Background(), comp.ID())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(stored) != 1 {
		t.Errorf("store holds %d facts, want 1", len(stored))
	}
}
