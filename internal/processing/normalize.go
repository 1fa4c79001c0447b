package processing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Reserved keys of the normalized record.
const (
	normalizedKeyOriginal     = "original"
	normalizedKeyNormalizedAt = "normalized_at"
)

// Recognized payload fields lifted to the top level of the normalized
// record. Everything else survives only inside the original copy.
var (
	normalizedTextFields    = []string{"page", "referrer"}
	normalizedNumericFields = []string{"duration", "scroll_depth"}
)

// Normalizer derives a stable, typed, metadata-annotated record from a raw
// payload without discarding the original. Normalize is total: it never
// fails, whatever the payload contains.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a normalizer stamping records with the real clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: func() time.Time { return time.Now().UTC() }}
}

// Normalize produces the annotated record: the untouched original payload,
// a normalization timestamp captured at call time, and best-effort typed
// copies of the recognized fields. Re-normalizing a record's original copy
// yields an equivalent record except for the timestamp.
func (n *Normalizer) Normalize(payload map[string]any) map[string]any {
	normalized := map[string]any{
		normalizedKeyOriginal:     payload,
		normalizedKeyNormalizedAt: n.now().Format(time.RFC3339Nano),
	}

	for _, field := range normalizedTextFields {
		if value, ok := payload[field]; ok {
			normalized[field] = coerceString(value)
		}
	}

	for _, field := range normalizedNumericFields {
		if value, ok := payload[field]; ok {
			normalized[field] = coerceFloat(value)
		}
	}

	return normalized
}

// coerceString renders any value as trimmed text.
func coerceString(value any) string {
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

// coerceFloat parses a value as a floating point number, defaulting to 0.0
// when absent or unparsable.
func coerceFloat(value any) float64 {
	switch typed := value.(type) {
	case float64:
		return typed
	case float32:
		return float64(typed)
	case int:
		return float64(typed)
	case int64:
		return float64(typed)
	case bool:
		if typed {
			return 1.0
		}
		return 0.0
	case string:
		parsed, err := decimal.NewFromString(strings.TrimSpace(typed))
		if err != nil {
			return 0.0
		}
		return parsed.InexactFloat64()
	default:
		return 0.0
	}
}
