// Package domain defines raw CDR records, the logical fields the pipeline
// resolves from them, and the classification of rows into normalized
// communication records. It acts as the validation gate at pipeline entry.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Kind distinguishes voice calls from text messages.
type Kind string

const (
	KindCall Kind = "CALL"
	KindSMS  Kind = "SMS"
)

// Coordinates is a longitude/latitude pair extracted from a location
// descriptor. Extraction is all-or-nothing: a record either carries both
// values or neither.
type Coordinates struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// NormalizedRecord is one fully classified row, ready for the graph writer.
type NormalizedRecord struct {
	Caller        string       `json:"caller"`
	Callee        string       `json:"callee"`
	CalleeService bool         `json:"callee_service"`
	Timestamp     time.Time    `json:"timestamp"`
	Duration      string       `json:"duration,omitempty"`
	Kind          Kind         `json:"kind"`
	IMEI          string       `json:"imei,omitempty"`
	Location      string       `json:"location,omitempty"`
	Coords        *Coordinates `json:"coords,omitempty"`
}

// RawRecord is one exported row: a mapping from literal header text to an
// optional scalar value (string, number, or nil). Insertion order is
// preserved because field resolution breaks prefix-match ties by first
// match in row order.
type RawRecord struct {
	keys   []string
	values map[string]any
}

// NewRawRecord creates an empty RawRecord.
func NewRawRecord() *RawRecord {
	return &RawRecord{values: make(map[string]any)}
}

// Set stores a value under the given header. A repeated header keeps its
// original position and takes the new value.
func (r *RawRecord) Set(key string, value any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value stored under the exact header text.
func (r *RawRecord) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the headers in insertion order.
func (r *RawRecord) Keys() []string {
	return r.keys
}

// Len returns the number of headers.
func (r *RawRecord) Len() int {
	return len(r.keys)
}

// MarshalJSON encodes the record as a JSON object in insertion order.
func (r *RawRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving key order.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("raw record: expected object, got %v", tok)
	}

	r.keys = nil
	r.values = make(map[string]any)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("raw record: non-string key %v", keyTok)
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return err
		}
		if n, ok := val.(json.Number); ok {
			val = n.String()
		}
		r.Set(key, val)
	}
	_, err = dec.Token() // closing brace
	return err
}
