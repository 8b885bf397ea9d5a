package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Metadata is an open key/value bag persisted as jsonb.
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return string(raw), nil
}

func (m *Metadata) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata source type %T", src)
	}

	decoded := Metadata{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	*m = decoded
	return nil
}

// Clone returns a shallow copy that is safe to extend.
func (m Metadata) Clone() Metadata {
	clone := make(Metadata, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}
