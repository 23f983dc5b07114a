package types

import (
	"bytes"
	stdjson "encoding/json"
	"fmt"
	"io"
)

func (e Enumeration) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range e {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := stdjson.Marshal(entry.Value)
		if err != nil {
			return nil, err
		}
		val, err := stdjson.Marshal(entry.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON walks the object token by token so that key order survives a
// storage round trip.
func (e *Enumeration) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*e = nil
		return nil
	}

	dec := stdjson.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read enumeration: %w", err)
	}
	if delim, ok := tok.(stdjson.Delim); !ok || delim != '{' {
		return fmt.Errorf("enumeration must be a JSON object, got %v", tok)
	}

	out := Enumeration{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read enumeration key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("enumeration key must be a string, got %v", keyTok)
		}
		var name string
		if err := dec.Decode(&name); err != nil {
			return fmt.Errorf("failed to read enumeration value for %q: %w", key, err)
		}
		out = append(out, EnumEntry{Value: key, Name: name})
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return fmt.Errorf("failed to close enumeration: %w", err)
	}

	*e = out
	return nil
}
