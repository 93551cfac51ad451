package domain

import (
	"encoding/json"
	"fmt"
)

type rawToolDocument struct {
	Tools []json.RawMessage `json:"tools"`
}

type rawToolEntry struct {
	Name string `json:"name"`
}

// ParseToolDocument decodes a tool configuration document. The document
// is an object with a "tools" array; each entry needs at least a name,
// everything else stays opaque in ToolDefinition.Spec. Entry order is
// preserved; a later duplicate name replaces an earlier one.
func ParseToolDocument(data []byte) ([]ToolDefinition, error) {
	var doc rawToolDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, E(CodeInvalidArgument, "domain.ParseToolDocument", "decode tool document", err)
	}

	defs := make([]ToolDefinition, 0, len(doc.Tools))
	seen := make(map[string]int, len(doc.Tools))
	for i, raw := range doc.Tools {
		var entry rawToolEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, E(CodeInvalidArgument, "domain.ParseToolDocument", fmt.Sprintf("decode tool entry %d", i), err)
		}
		if entry.Name == "" {
			return nil, E(CodeInvalidArgument, "domain.ParseToolDocument", fmt.Sprintf("tool entry %d has no name", i), nil)
		}
		def := ToolDefinition{Name: entry.Name, Spec: raw}
		if idx, ok := seen[entry.Name]; ok {
			defs[idx] = def
			continue
		}
		seen[entry.Name] = len(defs)
		defs = append(defs, def)
	}
	return defs, nil
}
