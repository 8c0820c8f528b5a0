package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/veritrail/veritrail/internal/domain/entities"
	"github.com/veritrail/veritrail/internal/domain/interfaces"
)

// FactEmitter normalizes finalized check results into fact tuples and
// upserts them into the fact store. Emission is deterministic: results are
// ordered by check ID and evidence is serialized with a fixed field order,
// so re-running an unchanged analysis yields byte-identical facts.
type FactEmitter struct {
	store interfaces.FactStore
	log   interfaces.Logger
}

// NewFactEmitter creates an emitter writing to the given store.
func NewFactEmitter(store interfaces.FactStore, log interfaces.Logger) *FactEmitter {
	return &FactEmitter{store: store, log: log}
}

// evidenceRecord is the serialized audit trail attached to a fact. The
// result timestamp is deliberately excluded: facts must be reproducible for
// identical inputs.
type evidenceRecord struct {
	CheckID    string         `json:"check_id"`
	Status     string         `json:"status"`
	Confidence float64        `json:"confidence"`
	Evidence   []evidenceItem `json:"evidence,omitempty"`
}

type evidenceItem struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	File  string `json:"file,omitempty"`
	Step  string `json:"step,omitempty"`
}

// Emit writes one fact per result, keyed by (component, check). Prior facts
// under the same key are overwritten; the store reflects only the latest
// analysis of the component.
func (e *FactEmitter) Emit(ctx context.Context, comp entities.Component, results []entities.CheckResult) ([]entities.Fact, error) {
	sorted := make([]entities.CheckResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CheckID < sorted[j].CheckID })

	facts := make([]entities.Fact, 0, len(sorted))
	for _, res := range sorted {
		record := evidenceRecord{
			CheckID:    res.CheckID,
			Status:     string(res.Status),
			Confidence: res.Confidence,
		}
		for _, item := range res.Evidence {
			record.Evidence = append(record.Evidence, evidenceItem{
				Key:   item.Key,
				Value: item.Value,
				File:  item.File,
				Step:  item.Step,
			})
		}
		ref, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("serializing evidence for %s: %w", res.CheckID, err)
		}
		fact := entities.Fact{
			ComponentID: comp.ID(),
			CheckID:     res.CheckID,
			Status:      res.Status,
			Confidence:  res.Confidence,
			EvidenceRef: string(ref),
		}
		if err := e.store.Upsert(ctx, fact); err != nil {
			return nil, fmt.Errorf("upserting fact %s/%s: %w", fact.ComponentID, fact.CheckID, err)
		}
		facts = append(facts, fact)
	}
	e.log.Info("facts emitted",
		interfaces.F("component", comp.ID()), interfaces.F("count", len(facts)))
	return facts, nil
}
