package helpers

import (
	"bytes"
	"encoding/json"
)

// MarshalJson encodes v without HTML escaping and without the trailing newline
// added by json.Encoder, so the output can be spliced into JS source.
func MarshalJson(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(v)
	return bytes.TrimRight(buf.Bytes(), "\n"), err
}

// MarshalOrderedStringMap encodes m as a JSON object whose members follow keys.
// Keys missing from m are skipped.
func MarshalOrderedStringMap(keys []string, m map[string]string) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	first := true
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false

		kb, err := MarshalJson(k)
		if err != nil {
			return nil, err
		}
		vb, err := MarshalJson(v)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
