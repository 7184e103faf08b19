package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Param is one entry of an ordered parameter mapping.
type Param struct {
	Key   string
	Value json.RawMessage
}

// Params is a JSON object whose key order survives a marshal/unmarshal round trip.
type Params []Param

// Get returns the raw value stored under key.
func (p Params) Get(key string) (json.RawMessage, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for _, kv := range p {
		keys = append(keys, kv.Key)
	}
	return keys
}

// MarshalJSON implements json.Marshaler.
func (p Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(kv.Value) == 0 {
			buf.WriteString("null")
			continue
		}
		if err := json.Compact(&buf, kv.Value); err != nil {
			return nil, fmt.Errorf("param %q: %w", kv.Key, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Params) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*p = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("params must be a JSON object")
	}

	out := Params{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected params key %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("param %q: %w", key, err)
		}
		out = append(out, Param{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*p = out
	return nil
}
