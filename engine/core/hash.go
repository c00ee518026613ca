package core

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// StableJSONBytes returns a canonical JSON encoding of v: object keys are
// sorted recursively and array order is preserved. Values that are not
// already plain JSON types are normalized through encoding/json first, so
// typed maps and structs hash the same as their decoded counterparts.
func StableJSONBytes(v any) ([]byte, error) {
	norm, err := normalizeJSON(v)
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	writeStable(&b, norm)
	return b.Bytes(), nil
}

// HashOf returns the SHA-256 hex digest of the canonical JSON form of v.
// Identity keys for task invocations are built from this digest.
func HashOf(v any) (string, error) {
	raw, err := StableJSONBytes(v)
	if err != nil {
		return "", fmt.Errorf("failed to hash value: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func normalizeJSON(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("value is not JSON-encodable: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeStable(b *bytes.Buffer, v any) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			b.Write(kb)
			b.WriteByte(':')
			writeStable(b, t[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			writeStable(b, e)
		}
		b.WriteByte(']')
	default:
		// normalizeJSON guarantees t is a JSON primitive here.
		raw, err := json.Marshal(t)
		if err != nil {
			b.WriteString("null")
			return
		}
		b.Write(raw)
	}
}
