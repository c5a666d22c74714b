package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"neuropipe/internal/processing"
)

// parseParams merges a JSON parameters file with key=value pairs. Values of
// kind's textual parameters (names, ranges, choices) are kept verbatim. Other
// values are decoded as JSON when they parse (numbers, booleans, arrays) and
// kept as strings otherwise. Pairs win over the file.
func parseParams(pairs []string, file string, kind processing.Kind) (processing.Params, error) {
	params := processing.Params{}
	textual := make(map[string]bool)
	for _, spec := range processing.Describe(kind) {
		switch spec.Type {
		case "string", "range", "choice":
			textual[spec.Name] = true
		}
	}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read params file: %w", err)
		}
		if err := json.Unmarshal(data, &params); err != nil {
			return nil, fmt.Errorf("params file %s is not a JSON object: %w", file, err)
		}
	}

	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", pair)
		}
		var v any = raw
		if !textual[key] {
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				v = raw
			}
		}
		params[key] = v
	}
	return params, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
