// Package model holds the registry of declared models, the immutable schema
// built from each declaration, and the validation pipeline that guards every
// write. Declaration order is load-bearing throughout: it fixes column order
// in DDL, the column list of generated INSERTs, and the tuple order of
// hydrated rows.
package model

import (
	"strings"

	"github.com/petracek/modelite/internal/field"
)

// Declaration is the input to registration: a model name, an optional table
// name, and the ordered field specs.
type Declaration struct {
	Name   string
	Table  string // empty means strings.ToLower(Name)
	Fields []field.Spec
}

// TableName returns the explicit table name or the lowercased model name.
func (d Declaration) TableName() string {
	if d.Table != "" {
		return d.Table
	}
	return strings.ToLower(d.Name)
}

// refTarget is a resolved foreign-key destination.
type refTarget struct {
	schema *Schema
	fld    field.Spec
}

// Schema is the immutable result of registering a declaration.
//
// A *Schema handed out by a Registry is never mutated afterward; equal
// fingerprints identify equivalent declarations.
type Schema struct {
	name        string
	table       string
	fields      []field.Spec
	pk          int // index into fields
	fingerprint string
	refs        map[string]refTarget // field name -> resolved target
}

// Name returns the model name.
func (s *Schema) Name() string { return s.name }

// Table returns the table name.
func (s *Schema) Table() string { return s.table }

// Fields returns the fields in declaration order. Callers must not modify
// the returned slice.
func (s *Schema) Fields() []field.Spec { return s.fields }

// Field looks up a declared field by name.
func (s *Schema) Field(name string) (field.Spec, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}
	return field.Spec{}, false
}

// PrimaryKey returns the primary-key field.
func (s *Schema) PrimaryKey() field.Spec { return s.fields[s.pk] }

// Columns returns the column names in declaration order.
func (s *Schema) Columns() []string {
	cols := make([]string, len(s.fields))
	for i, f := range s.fields {
		cols[i] = f.Name
	}
	return cols
}

// Fingerprint returns the hex digest identifying this declaration.
func (s *Schema) Fingerprint() string { return s.fingerprint }

// RefTarget resolves a foreign-key field to its target schema and field.
// Resolution happened at registration, so no registry access is needed here.
func (s *Schema) RefTarget(fieldName string) (*Schema, field.Spec, bool) {
	t, ok := s.refs[fieldName]
	if !ok {
		return nil, field.Spec{}, false
	}
	return t.schema, t.fld, true
}
