package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/akinalp/runeshop/pkg"
)

// decodeData parses stored JSON keeping numbers exact (json.Number).
func decodeData(raw []byte) (map[string]any, error) {
	data := make(map[string]any)
	if len(raw) == 0 {
		return data, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode stored document: %w", err)
	}
	return data, nil
}

// applyFields merges a write into target, resolving sentinels against the
// current stored values. now is the commit timestamp.
func applyFields(target map[string]any, data Fields, now time.Time) error {
	for key, value := range data {
		if !fieldPattern.MatchString(key) {
			return fmt.Errorf("%w: %q", ErrInvalidField, key)
		}

		switch v := value.(type) {
		case serverTimestamp:
			target[key] = FormatTime(now)
		case increment:
			sum, err := addNumber(target[key], v.n)
			if err != nil {
				return fmt.Errorf("%w: field %q: %v", pkg.ErrBadRequest, key, err)
			}
			target[key] = sum
		case time.Time:
			target[key] = FormatTime(v)
		case *time.Time:
			if v == nil {
				target[key] = nil
			} else {
				target[key] = FormatTime(*v)
			}
		default:
			target[key] = v
		}
	}
	return nil
}

// addNumber adds n to a stored numeric value.
func addNumber(current any, n int64) (any, error) {
	switch c := current.(type) {
	case nil:
		return n, nil
	case json.Number:
		if i, err := c.Int64(); err == nil {
			return i + n, nil
		}
		f, err := c.Float64()
		if err != nil {
			return nil, fmt.Errorf("not a number: %s", c)
		}
		return f + float64(n), nil
	case int:
		return int64(c) + n, nil
	case int64:
		return c + n, nil
	case float64:
		if c == math.Trunc(c) {
			return int64(c) + n, nil
		}
		return c + float64(n), nil
	default:
		return nil, fmt.Errorf("cannot increment %T", current)
	}
}

// encodeData serialises the merged document.
func encodeData(data map[string]any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	return string(raw), nil
}
