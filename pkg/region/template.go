package region

import (
	"bytes"
	"encoding/json"
	"fmt"

	apperrors "go-roi-inspector/internal/errors"
)

// Serialize encodes regions as an indented JSON list in their current order.
func Serialize(regions []Region) ([]byte, error) {
	if regions == nil {
		regions = []Region{}
	}
	data, err := json.MarshalIndent(regions, "", "  ")
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode template", err)
	}
	return data, nil
}

// Deserialize parses a template. Each entry needs an integer id, a known shape
// and a params object; geometry is checked later, by Region.Geometry.
func Deserialize(data []byte) ([]Region, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, apperrors.NewMalformedTemplateError("template is not a JSON list", err)
	}
	if items == nil {
		return nil, apperrors.NewMalformedTemplateError("template is not a JSON list", nil)
	}

	regions := make([]Region, 0, len(items))
	for i, item := range items {
		r, err := decodeEntry(item)
		if err != nil {
			return nil, apperrors.NewMalformedTemplateError(fmt.Sprintf("template entry %d", i), err)
		}
		regions = append(regions, r)
	}
	return regions, nil
}

func decodeEntry(item json.RawMessage) (Region, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
		return Region{}, fmt.Errorf("entry is not an object")
	}

	idRaw, ok := fields["id"]
	if !ok || isNull(idRaw) {
		return Region{}, fmt.Errorf("missing id")
	}
	var id int
	if err := json.Unmarshal(idRaw, &id); err != nil {
		return Region{}, fmt.Errorf("id is not an integer: %w", err)
	}

	shapeRaw, ok := fields["shape"]
	if !ok || isNull(shapeRaw) {
		return Region{}, fmt.Errorf("missing shape")
	}
	var name string
	if err := json.Unmarshal(shapeRaw, &name); err != nil {
		return Region{}, fmt.Errorf("shape is not a string: %w", err)
	}
	shape, ok := ParseShape(name)
	if !ok {
		return Region{}, fmt.Errorf("unknown shape %q", name)
	}

	paramsRaw, ok := fields["params"]
	if !ok {
		return Region{}, fmt.Errorf("missing params")
	}
	trimmed := bytes.TrimSpace(paramsRaw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Region{}, fmt.Errorf("params is not an object")
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return Region{}, fmt.Errorf("params: %w", err)
	}

	return Region{ID: id, Shape: shape, Params: json.RawMessage(compact.Bytes())}, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// UnmarshalJSON applies the template entry rules to a single region, so
// regions embedded in other documents are checked and compacted the same way.
func (r *Region) UnmarshalJSON(data []byte) error {
	parsed, err := decodeEntry(data)
	if err != nil {
		return apperrors.NewMalformedTemplateError("region", err)
	}
	*r = parsed
	return nil
}
