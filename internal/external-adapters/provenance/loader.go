// Package provenance loads build attestations: raw in-toto statements or
// DSSE envelopes wrapping one. Transport and signature validation happen
// upstream; this adapter only extracts the fields trust derivation needs.
package provenance

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/veritrail/veritrail/internal/domain/entities"
)

// ErrMalformed marks a provenance payload whose structure cannot be
// interpreted. Checks treat it as trust level NONE, never as a run error.
var ErrMalformed = errors.New("malformed provenance")

const dssePayloadType = "application/vnd.in-toto+json"

// Statement type URIs accepted as the outer in-toto envelope.
var statementTypes = []string{
	"https://in-toto.io/Statement/v0.1",
	"https://in-toto.io/Statement/v1",
}

// FileLoader loads a provenance statement from a local file. An empty path
// means "no provenance supplied" and loads as nil without error.
type FileLoader struct {
	Path string
}

// Load implements the ProvenanceLoader contract.
func (l *FileLoader) Load(_ context.Context) (*entities.ProvenanceStatement, error) {
	if l.Path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("reading provenance: %w", err)
	}
	return Parse(data)
}

type dsseEnvelope struct {
	PayloadType string `json:"payloadType"`
	Payload     string `json:"payload"`
}

type rawStatement struct {
	Type          string          `json:"_type"`
	PredicateType string          `json:"predicateType"`
	Subject       []rawSubject    `json:"subject"`
	Predicate     json.RawMessage `json:"predicate"`
}

type rawSubject struct {
	Name   string            `json:"name"`
	Digest map[string]string `json:"digest"`
}

// Parse interprets data as either a DSSE envelope or a bare in-toto
// statement.
func Parse(data []byte) (*entities.ProvenanceStatement, error) {
	var envelope dsseEnvelope
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Payload != "" {
		if envelope.PayloadType != dssePayloadType {
			return nil, fmt.Errorf("%w: unexpected payload type %q", ErrMalformed, envelope.PayloadType)
		}
		payload, err := base64.StdEncoding.DecodeString(envelope.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding envelope payload: %v", ErrMalformed, err)
		}
		data = payload
	}
	return parseStatement(data)
}

func parseStatement(data []byte) (*entities.ProvenanceStatement, error) {
	var stmt rawStatement
	if err := json.Unmarshal(data, &stmt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !isStatementType(stmt.Type) {
		return nil, fmt.Errorf("%w: unexpected statement type %q", ErrMalformed, stmt.Type)
	}
	if len(stmt.Subject) == 0 {
		return nil, fmt.Errorf("%w: statement has no subjects", ErrMalformed)
	}

	out := &entities.ProvenanceStatement{PredicateType: stmt.PredicateType}
	for _, sub := range stmt.Subject {
		out.Subjects = append(out.Subjects, entities.Subject{
			Name:   sub.Name,
			Digest: entities.DigestSet(sub.Digest),
		})
	}

	var predicate map[string]any
	if len(stmt.Predicate) > 0 {
		if err := json.Unmarshal(stmt.Predicate, &predicate); err != nil {
			return nil, fmt.Errorf("%w: decoding predicate: %v", ErrMalformed, err)
		}
	}
	if stmt.PredicateType == "https://slsa.dev/provenance/v1" {
		extractV1(out, predicate)
	} else {
		extractV02(out, predicate)
	}
	// Parameters are collected from maps; sort them so a reparse of the
	// same payload is always identical.
	sort.Strings(out.Invocation.Parameters)
	return out, nil
}

func isStatementType(t string) bool {
	for _, valid := range statementTypes {
		if t == valid {
			return true
		}
	}
	return false
}

// extractV1 lifts fields from SLSA provenance v1: builder under
// runDetails, build definition under buildDefinition.
func extractV1(out *entities.ProvenanceStatement, predicate map[string]any) {
	if runDetails, ok := predicate["runDetails"].(map[string]any); ok {
		if builder, ok := runDetails["builder"].(map[string]any); ok {
			out.BuilderID, _ = builder["id"].(string)
		}
	}
	buildDef, ok := predicate["buildDefinition"].(map[string]any)
	if !ok {
		return
	}
	out.BuildType, _ = buildDef["buildType"].(string)
	if extParams, ok := buildDef["externalParameters"].(map[string]any); ok {
		if workflow, ok := extParams["workflow"].(map[string]any); ok {
			out.Invocation.URI, _ = workflow["repository"].(string)
			out.Invocation.EntryPoint, _ = workflow["path"].(string)
		}
		for key, val := range extParams {
			if key == "workflow" {
				continue
			}
			if s, ok := val.(string); ok {
				out.Invocation.Parameters = append(out.Invocation.Parameters, key+"="+s)
			}
		}
	}
	if deps, ok := buildDef["resolvedDependencies"].([]any); ok {
		for _, dep := range deps {
			depMap, ok := dep.(map[string]any)
			if !ok {
				continue
			}
			mat := entities.Material{}
			mat.URI, _ = depMap["uri"].(string)
			if digest, ok := depMap["digest"].(map[string]any); ok {
				mat.Digest = toDigestSet(digest)
				if sha, ok := digest["gitCommit"].(string); ok && out.Invocation.Digest == "" {
					out.Invocation.Digest = sha
				}
			}
			out.Materials = append(out.Materials, mat)
		}
	}
}

// extractV02 lifts fields from SLSA provenance v0.2: builder at top level,
// config source under invocation.
func extractV02(out *entities.ProvenanceStatement, predicate map[string]any) {
	if builder, ok := predicate["builder"].(map[string]any); ok {
		out.BuilderID, _ = builder["id"].(string)
	}
	out.BuildType, _ = predicate["buildType"].(string)
	if invocation, ok := predicate["invocation"].(map[string]any); ok {
		if configSource, ok := invocation["configSource"].(map[string]any); ok {
			out.Invocation.URI, _ = configSource["uri"].(string)
			out.Invocation.EntryPoint, _ = configSource["entryPoint"].(string)
			if digest, ok := configSource["digest"].(map[string]any); ok {
				out.Invocation.Digest, _ = digest["sha1"].(string)
			}
		}
		if params, ok := invocation["parameters"].(map[string]any); ok {
			for key, val := range params {
				if s, ok := val.(string); ok {
					out.Invocation.Parameters = append(out.Invocation.Parameters, key+"="+s)
				}
			}
		}
	}
	if materials, ok := predicate["materials"].([]any); ok {
		for _, m := range materials {
			matMap, ok := m.(map[string]any)
			if !ok {
				continue
			}
			mat := entities.Material{}
			mat.URI, _ = matMap["uri"].(string)
			if digest, ok := matMap["digest"].(map[string]any); ok {
				mat.Digest = toDigestSet(digest)
				if sha, ok := digest["sha1"].(string); ok && out.Invocation.Digest == "" {
					out.Invocation.Digest = sha
				}
			}
			out.Materials = append(out.Materials, mat)
		}
	}
}

func toDigestSet(in map[string]any) entities.DigestSet {
	out := make(entities.DigestSet, len(in))
	for alg, val := range in {
		if s, ok := val.(string); ok {
			out[alg] = s
		}
	}
	return out
}
