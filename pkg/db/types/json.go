package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/firmasegura/certifications-backend/pkg/enums"
)

// JSONMap stores a free-form JSON object column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("JSONMap: marshal: %w", err)
	}
	return string(raw), nil
}

func (m *JSONMap) Scan(src any) error {
	raw, err := scanBytes(src)
	if err != nil {
		return fmt.Errorf("JSONMap: %w", err)
	}
	out := JSONMap{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("JSONMap: unmarshal: %w", err)
		}
	}
	*m = out
	return nil
}

// Clone returns a shallow copy safe to mutate.
func (m JSONMap) Clone() JSONMap {
	out := make(JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String returns the value at key when it is a string.
func (m JSONMap) String(key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Attachments maps a slot to its object-store reference.
type Attachments map[enums.AttachmentSlot]string

func (a Attachments) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("Attachments: marshal: %w", err)
	}
	return string(raw), nil
}

func (a *Attachments) Scan(src any) error {
	raw, err := scanBytes(src)
	if err != nil {
		return fmt.Errorf("Attachments: %w", err)
	}
	out := Attachments{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("Attachments: unmarshal: %w", err)
		}
	}
	*a = out
	return nil
}

// Has reports whether the slot holds a reference.
func (a Attachments) Has(slot enums.AttachmentSlot) bool {
	return a != nil && a[slot] != ""
}

func (a Attachments) Clone() Attachments {
	out := make(Attachments, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func scanBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported Scan type %T", src)
	}
}
