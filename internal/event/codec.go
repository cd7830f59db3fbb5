package event

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Marshal encodes an event as a single compact JSON line (no trailing
// newline). Struct field order fixes the key order, and HTML escaping is
// disabled, so encode -> decode -> encode reproduces identical bytes. This is
// the only encoder the store and merge resolver use; nothing else may write
// log records.
func Marshal(ev *StatusEvent) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return nil, fmt.Errorf("encode event %s: %w", ev.EventID, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Unmarshal decodes a single log line into an event. Unknown fields are
// rejected so schema drift in a newer tool version surfaces as a parse
// failure instead of silent data loss.
func Unmarshal(line []byte) (*StatusEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()
	var ev StatusEvent
	if err := dec.Decode(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
