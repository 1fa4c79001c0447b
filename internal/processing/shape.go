package processing

import (
	"encoding/json"
	"fmt"
)

// ShapeErrorKind classifies structural payload violations. All of them are
// terminal: a payload that fails shape validation is never retried.
type ShapeErrorKind string

const (
	ShapeNotMapping   ShapeErrorKind = "not_mapping"
	ShapeNotEncodable ShapeErrorKind = "not_encodable"
	ShapeTooLarge     ShapeErrorKind = "too_large"
	ShapeTooDeep      ShapeErrorKind = "too_deep"
)

// ShapeError describes one structural violation of a raw payload.
type ShapeError struct {
	Kind    ShapeErrorKind
	Message string
}

func (e *ShapeError) Error() string {
	return e.Message
}

// ShapeValidator checks raw payloads against generic structural constraints:
// type, JSON encodability, encoded size and nesting depth. It carries no
// state besides its limits; the same input always yields the same verdict.
type ShapeValidator struct {
	maxBytes int
	maxDepth int
}

// NewShapeValidator creates a validator with the given limits.
// Non-positive limits fall back to the deployment defaults (1 MiB, depth 10).
func NewShapeValidator(maxBytes, maxDepth int) *ShapeValidator {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	if maxDepth <= 0 {
		maxDepth = 10
	}
	return &ShapeValidator{maxBytes: maxBytes, maxDepth: maxDepth}
}

// Validate checks a raw payload and returns it as a mapping.
//
// An absent (nil) payload is treated as an empty mapping. Anything that is
// not a string-keyed mapping, is not losslessly JSON-encodable, exceeds the
// size limit when encoded, or nests deeper than the depth limit yields a
// ShapeError.
func (v *ShapeValidator) Validate(payload any) (map[string]any, *ShapeError) {
	if payload == nil {
		return map[string]any{}, nil
	}

	mapping, ok := payload.(map[string]any)
	if !ok {
		return nil, &ShapeError{
			Kind:    ShapeNotMapping,
			Message: fmt.Sprintf("payload must be a mapping, got %T", payload),
		}
	}

	encoded, err := json.Marshal(mapping)
	if err != nil {
		return nil, &ShapeError{
			Kind:    ShapeNotEncodable,
			Message: fmt.Sprintf("payload not JSON-encodable: %v", err),
		}
	}

	if len(encoded) > v.maxBytes {
		return nil, &ShapeError{
			Kind:    ShapeTooLarge,
			Message: fmt.Sprintf("payload exceeds %d byte size limit", v.maxBytes),
		}
	}

	if err := v.checkDepth(mapping, 0); err != nil {
		return nil, err
	}

	return mapping, nil
}

// checkDepth walks the payload depth-first and fails fast at the first
// level past the limit. Each mapping or sequence counts as one level.
func (v *ShapeValidator) checkDepth(value any, depth int) *ShapeError {
	if depth > v.maxDepth {
		return &ShapeError{
			Kind:    ShapeTooDeep,
			Message: fmt.Sprintf("payload exceeds max nesting depth (%d)", v.maxDepth),
		}
	}

	switch typed := value.(type) {
	case map[string]any:
		for _, nested := range typed {
			if err := v.checkDepth(nested, depth+1); err != nil {
				return err
			}
		}
	case []any:
		for _, nested := range typed {
			if err := v.checkDepth(nested, depth+1); err != nil {
				return err
			}
		}
	}

	return nil
}
