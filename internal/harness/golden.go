package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/graphite/internal/canon"
)

// TraceSnapshot captures the trace of a scenario run for golden comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to plain maps so canonical JSON
// only carries the fields each event type uses.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{"type": ev.Type}
		if ev.TriggerID != "" {
			m["trigger_id"] = ev.TriggerID
		}
		if ev.Node != "" {
			m["node"] = ev.Node
		}

		switch ev.Type {
		case EventPass:
			m["seq"] = ev.Seq
			m["payload"] = ev.Input
		case EventExecute:
			m["seq"] = ev.Seq
			m["input"] = ev.Input
			if ev.Produced {
				m["output"] = ev.Output
			}
			if ev.Failed {
				m["failed"] = true
			}
			if ev.Reentry > 0 {
				m["reentry"] = ev.Reentry
			}
		case EventObserve:
			m["value"] = ev.Output
		case EventError:
			m["code"] = ev.Code
		case EventFinish:
			if ev.Aborted {
				m["aborted"] = true
			}
		}
		trace[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
	}
}

// MarshalTrace renders result's trace as canonical JSON.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}
	return canon.Marshal(snapshot.toCanonicalMap())
}

// TraceHash fingerprints result's trace. Two runs of the same scenario hash
// equal exactly when their golden files would be identical.
func TraceHash(scenarioName string, result *Result) (string, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	}
	return canon.Hash(canon.DomainTrace, snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check assertions too. Test failure (via
// goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
