// Package jsonx converts typed values into dynamic JSON shapes.
package jsonx

import json "github.com/goccy/go-json"

// ToDynamic round-trips a value through JSON into a map[string]any. SDKs
// that accept schemas or payloads as untyped maps get fed through here.
func ToDynamic(val any) (map[string]any, error) {
	b, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	result := make(map[string]any)
	if err := json.Unmarshal(b, &result); err != nil {
		return nil, err
	}
	return result, nil
}
