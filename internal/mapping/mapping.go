// Package mapping resolves logical layout buttons to the physical targets
// they emit, including ordered combos. The mapping table itself is produced
// by the layout editor; this package only consumes it.
package mapping

import (
	"encoding/json"
	"fmt"
)

// Target is either a single physical id or an ordered combo of ids. Its JSON
// form is a string or an array of strings, matching the layout file shape.
type Target struct {
	IDs []string
}

func (t *Target) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		t.IDs = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		t.IDs = many
		return nil
	}
	return fmt.Errorf("mapping target must be a string or array of strings")
}

func (t Target) MarshalJSON() ([]byte, error) {
	if len(t.IDs) == 1 {
		return json.Marshal(t.IDs[0])
	}
	return json.Marshal(t.IDs)
}

// IsCombo reports whether the target expands to more than one physical id.
func (t Target) IsCombo() bool {
	return len(t.IDs) > 1
}

// Table maps logical button ids to their targets.
type Table map[string]Target

// Resolve returns the physical ids for a logical id. An absent or empty
// mapping is identity: the logical id is its own physical target.
func (m Table) Resolve(logicalID string) []string {
	target, ok := m[logicalID]
	if !ok || len(target.IDs) == 0 {
		return []string{logicalID}
	}
	return target.IDs
}
