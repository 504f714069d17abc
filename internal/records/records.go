// Package records loads structured opportunity records exported as JSON.
package records

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"rfp/internal/domain"
)

// Record is one decoded JSON object, such as a SAM.gov opportunity.
type Record map[string]any

// Load reads path and decodes either a JSON array of records or a single record.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	recs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// Parse decodes either a JSON array of records or a single record.
func Parse(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty records document", domain.ErrInvalidInput)
	}
	if trimmed[0] == '{' {
		var one Record
		if err := sonic.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		return []Record{one}, nil
	}
	var many []Record
	if err := sonic.Unmarshal(trimmed, &many); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return many, nil
}

// String returns the scalar at the given key path, or "" when absent.
// Numbers and booleans are formatted; objects and arrays yield "".
func (r Record) String(path ...string) string {
	var cur any = map[string]any(r)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		if cur, ok = m[key]; !ok {
			return ""
		}
	}
	switch v := cur.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// First returns the first non-blank value among the given single keys.
func (r Record) First(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(r.String(k)); v != "" {
			return v
		}
	}
	return ""
}
