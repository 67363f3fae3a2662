// Package fingerprint derives a deterministic identifier for an evaluation
// run from its corpus and parameters.
//
// Two submissions with the same documents (in the same order) and the same
// parameters produce the same fingerprint, so a stored report can be reused.
//
// Canonical form:
//   - Floats rounded to 9 decimal places
//   - Keys sorted alphabetically
//   - No whitespace (compact JSON)
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Document is the part of a corpus document that identifies a run.
type Document struct {
	ID    string
	Label string
	Text  string
}

// F9 formats a float64 to exactly 9 decimal places.
//
//	F9(1.23456789012345) // "1.234567890"
//	F9(0.5)              // "0.500000000"
func F9(x float64) string {
	return strconv.FormatFloat(x, 'f', 9, 64)
}

// Round9 rounds a float64 to 9 decimal places. Values too large to carry nine
// decimals, and non-finite values, are returned unchanged.
func Round9(x float64) float64 {
	const factor = 1e9
	if math.IsNaN(x) || math.IsInf(x, 0) || math.Abs(x) > 1e6 {
		return x
	}
	return math.Round(x*factor) / factor
}

// CanonicalJSONBytes returns the canonical encoding of a run. Document order
// is significant: splits are drawn over positions.
func CanonicalJSONBytes(docs []Document, params map[string]any) ([]byte, error) {
	rows := make([][3]string, len(docs))
	for i, d := range docs {
		rows[i] = [3]string{d.ID, d.Label, d.Text}
	}

	normalized, err := normalize(params)
	if err != nil {
		return nil, err
	}

	// encoding/json sorts map keys
	return json.Marshal(map[string]any{
		"documents":  rows,
		"parameters": normalized,
	})
}

// Compute returns the hex sha256 of the canonical encoding.
func Compute(docs []Document, params map[string]any) (string, error) {
	payload, err := CanonicalJSONBytes(docs, params)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func normalize(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("fingerprint: non-finite parameter %v", x)
		}
		return Round9(x), nil
	case float32:
		return normalize(float64(x))
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			n, err := normalize(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = n
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}
	return v, nil
}
