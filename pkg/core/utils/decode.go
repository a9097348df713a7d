package utils

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// Strategy names the decoder that accepted a document.
type Strategy string

const (
	StrategyJSON     Strategy = "json"
	StrategyRepaired Strategy = "json_repair"
	StrategyHJSON    Strategy = "hjson"
)

// DecodeStrict unmarshals JSON into out and rejects unknown keys, so a
// misspelled assumption fails loudly instead of silently defaulting to zero.
func DecodeStrict(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("JSON_DECODE_ERROR: %w", err)
	}
	return nil
}

// RepairJSON fixes common hand-editing mistakes:
// - single quotes instead of double quotes
// - trailing commas
// - unquoted keys
// - unclosed arrays/objects
// - comments
func RepairJSON(malformed string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformed)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %w", err)
	}
	return repaired, nil
}

// HJSONToJSON converts Human JSON (comments, unquoted keys and strings,
// optional commas) into standard JSON.
func HJSONToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := hjson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("HJSON_PARSE_ERROR: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("JSON_MARSHAL_ERROR: %w", err)
	}
	return out, nil
}

// SmartParse decodes a JSON-ish document into out, trying in order:
// 1. strict JSON
// 2. repaired JSON
// 3. Hjson (most lenient)
// It returns the strategy that succeeded. Unknown keys are rejected by
// every strategy. On failure the strict decoder's error is reported.
func SmartParse(data []byte, out any) (Strategy, error) {
	// Try 1: Standard JSON
	strictErr := DecodeStrict(data, out)
	if strictErr == nil {
		return StrategyJSON, nil
	}

	// Try 2: JSON Repair
	if repaired, err := RepairJSON(string(data)); err == nil {
		if err := DecodeStrict([]byte(repaired), out); err == nil {
			return StrategyRepaired, nil
		}
	}

	// Try 3: Hjson
	if converted, err := HJSONToJSON(data); err == nil {
		if err := DecodeStrict(converted, out); err == nil {
			return StrategyHJSON, nil
		}
	}

	return "", fmt.Errorf("SMART_PARSE_FAILED: %w", strictErr)
}
