package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is one hydrated row: the owning schema, the field values in their
// runtime types, and the row identity.
//
// Records are built by the engine during hydration; callers read them.
type Record struct {
	schema  *Schema
	id      int64
	values  map[string]any
	related map[string]*Record
}

// NewRecord builds a record from hydrated values. The values map is owned by
// the record after the call.
func NewRecord(s *Schema, id int64, values map[string]any) *Record {
	return &Record{schema: s, id: id, values: values}
}

// Schema returns the schema this record belongs to.
func (r *Record) Schema() *Schema { return r.schema }

// ID returns the row identity.
func (r *Record) ID() int64 { return r.id }

// Get returns the value of a field and whether the field is declared.
// A declared field holding NULL returns (nil, true).
func (r *Record) Get(name string) (any, bool) {
	if _, ok := r.schema.Field(name); !ok {
		return nil, false
	}
	return r.values[name], true
}

// Related returns the record resolved for a foreign-key field, when eager
// reference fetching attached one.
func (r *Record) Related(name string) (*Record, bool) {
	rel, ok := r.related[name]
	return rel, ok
}

// AttachRelated stores a resolved foreign-key record under the field name.
func (r *Record) AttachRelated(name string, rel *Record) {
	if r.related == nil {
		r.related = make(map[string]*Record)
	}
	r.related[name] = rel
}

// MarshalJSON renders the record as an object with fields in declaration
// order. Standard json.Marshal would sort keys; row order is part of the
// contract here, so the object is assembled by hand.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.schema.Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.values[f.Name])
		if err != nil {
			return nil, fmt.Errorf("marshal field %q: %w", f.Name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
