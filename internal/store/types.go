package store

import (
	"github.com/roach88/graphite/internal/canon"
	"github.com/roach88/graphite/internal/engine"
	"github.com/roach88/graphite/internal/graph"
)

// PassRecord is a stored pass. Values are canonical JSON text.
type PassRecord struct {
	TriggerID     string            `json:"trigger_id"`
	Seq           int64             `json:"seq"`
	Blueprint     string            `json:"blueprint,omitempty"`
	BlueprintHash string            `json:"blueprint_hash,omitempty"`
	TriggerNode   graph.NodeID      `json:"trigger_node"`
	TriggerName   string            `json:"trigger_name,omitempty"`
	Payload       string            `json:"payload"`
	Aborted       bool              `json:"aborted,omitempty"`
	Cause         string            `json:"cause,omitempty"`
	Executions    []ExecutionRecord `json:"executions"`
	Errors        []ErrorRecord     `json:"errors"`
}

// ExecutionRecord is one stored node execution.
type ExecutionRecord struct {
	TriggerID string       `json:"-"`
	Seq       int64        `json:"seq"`
	NodeID    graph.NodeID `json:"node_id"`
	NodeName  string       `json:"node"`
	Input     string       `json:"input"`
	Output    string       `json:"output,omitempty"`
	Produced  bool         `json:"produced"`
	Failed    bool         `json:"failed,omitempty"`
	Reentry   int          `json:"reentry,omitempty"`
}

// ErrorRecord is one stored runtime error.
type ErrorRecord struct {
	Code     string       `json:"code"`
	Phase    string       `json:"phase,omitempty"`
	NodeID   graph.NodeID `json:"node_id,omitempty"`
	NodeName string       `json:"node,omitempty"`
	Step     string       `json:"step,omitempty"`
	Message  string       `json:"message"`
}

// Meta labels the passes written through a Tracer.
type Meta struct {
	Blueprint     string
	BlueprintHash string
}

// NewPassRecord converts a finished pass. names resolves node ids to display
// names and may be nil.
func NewPassRecord(p *engine.Pass, meta Meta, names func(graph.NodeID) string) PassRecord {
	rec := PassRecord{
		TriggerID:     p.TriggerID,
		Seq:           p.Seq,
		Blueprint:     meta.Blueprint,
		BlueprintHash: meta.BlueprintHash,
		TriggerNode:   p.Trigger.Node,
		Payload:       canon.String(p.Trigger.Payload),
		Aborted:       p.Aborted,
		Executions:    make([]ExecutionRecord, 0, len(p.Executions)),
		Errors:        make([]ErrorRecord, 0, len(p.Errors)),
	}
	if p.Cause != nil {
		rec.Cause = p.Cause.Error()
	}
	if names != nil {
		rec.TriggerName = names(p.Trigger.Node)
	}

	for _, ex := range p.Executions {
		name := ex.Name
		if names != nil {
			name = names(ex.Node)
		}
		if rec.TriggerName == "" && ex.Node == p.Trigger.Node {
			rec.TriggerName = name
		}
		er := ExecutionRecord{
			TriggerID: p.TriggerID,
			Seq:       ex.Seq,
			NodeID:    ex.Node,
			NodeName:  name,
			Input:     canon.String(ex.Input),
			Produced:  ex.Produced,
			Failed:    ex.Failed,
			Reentry:   ex.Reentry,
		}
		if ex.Produced {
			er.Output = canon.String(ex.Output)
		}
		rec.Executions = append(rec.Executions, er)
	}

	for _, e := range p.Errors {
		name := e.NodeName
		if names != nil && e.NodeID != 0 {
			name = names(e.NodeID)
		}
		rec.Errors = append(rec.Errors, ErrorRecord{
			Code:     string(e.Code),
			Phase:    string(e.Phase),
			NodeID:   e.NodeID,
			NodeName: name,
			Step:     e.Step,
			Message:  e.Message,
		})
	}

	return rec
}
