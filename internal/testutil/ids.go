package testutil

// ConstantTriggerID returns the same trigger id every time.
//
// Unlike engine.FixedGenerator which walks a list, every pass gets the same
// id. Useful when a golden file should not depend on how many passes ran
// before the one under test.
//
// Thread-safety: ConstantTriggerID is stateless and safe for concurrent use.
type ConstantTriggerID string

// Generate returns the constant id, or "test-trigger" if it is empty.
//
// Implements engine.TriggerIDGenerator.
func (c ConstantTriggerID) Generate() string {
	if c == "" {
		return "test-trigger"
	}
	return string(c)
}
