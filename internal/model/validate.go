package model

import (
	"fmt"
	"sort"

	"github.com/petracek/modelite/internal/field"
)

// LookupFunc answers whether a row whose target field holds the given value
// exists in the target model's table. The engine injects one backed by the
// store; tests inject stubs. Returned errors are I/O failures and propagate
// as-is.
type LookupFunc func(target *Schema, targetField field.Spec, value any) (bool, error)

// ValidateRecord runs the full validation pipeline for an insert.
//
// Cheap checks run first and fail fast in declaration order: unknown field
// names, a caller-supplied primary key, nullability, then per-type checks.
// Only when every field has passed do foreign-key lookups run, so a record
// that is locally invalid never costs a query.
//
// On success the returned map holds the normalized value for every declared
// field except the primary key, with defaults substituted for absent fields.
func ValidateRecord(s *Schema, values map[string]any, lookup LookupFunc) (map[string]any, error) {
	if err := rejectUndeclared(s, values); err != nil {
		return nil, err
	}
	if err := rejectPrimaryKey(s, values); err != nil {
		return nil, err
	}

	pk := s.PrimaryKey().Name
	out := make(map[string]any, len(s.Fields()))
	for _, f := range s.Fields() {
		if f.Name == pk {
			continue
		}
		v, present := values[f.Name]
		if !present {
			if f.Default != nil {
				// Defaults were normalized at registration.
				out[f.Name] = f.Default
				continue
			}
			v = nil
		}
		norm, err := checkValue(f, v)
		if err != nil {
			return nil, err
		}
		out[f.Name] = norm
	}

	if err := checkRefs(s, out, lookup); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateChanges runs the pipeline for an update, touching only the fields
// present in changes. Absent fields keep their stored values, so no default
// substitution happens here.
func ValidateChanges(s *Schema, changes map[string]any, lookup LookupFunc) (map[string]any, error) {
	if err := rejectUndeclared(s, changes); err != nil {
		return nil, err
	}
	if err := rejectPrimaryKey(s, changes); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(changes))
	for _, f := range s.Fields() {
		v, present := changes[f.Name]
		if !present {
			continue
		}
		norm, err := checkValue(f, v)
		if err != nil {
			return nil, err
		}
		out[f.Name] = norm
	}

	if err := checkRefs(s, out, lookup); err != nil {
		return nil, err
	}
	return out, nil
}

// rejectUndeclared fails on any value keyed by a name the model does not
// declare. Names are sorted so the reported field is deterministic.
func rejectUndeclared(s *Schema, values map[string]any) error {
	var unknown []string
	for name := range values {
		if _, ok := s.Field(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return &field.FieldError{
		Field:   unknown[0],
		Code:    field.CodeUnknownField,
		Message: fmt.Sprintf("model %q declares no field %q", s.Name(), unknown[0]),
	}
}

// rejectPrimaryKey fails when the caller tries to set the driver-assigned
// identity.
func rejectPrimaryKey(s *Schema, values map[string]any) error {
	pk := s.PrimaryKey().Name
	if _, present := values[pk]; !present {
		return nil
	}
	return &field.FieldError{
		Field:   pk,
		Code:    field.CodePrimaryKey,
		Message: "primary key is assigned by the database and cannot be set",
	}
}

// checkValue applies nullability and the field type's own check to one value.
func checkValue(f field.Spec, v any) (any, error) {
	if v == nil {
		if f.Nullable {
			return nil, nil
		}
		return nil, &field.FieldError{
			Field:   f.Name,
			Code:    field.CodeNull,
			Message: "field is required",
		}
	}
	norm, err := f.Type.Validate(v)
	if err != nil {
		return nil, &field.FieldError{
			Field:   f.Name,
			Code:    field.CodeType,
			Message: err.Error(),
		}
	}
	return norm, nil
}

// checkRefs runs the deferred foreign-key existence checks in declaration
// order. A nil reference value was already admitted by nullability and means
// "points at nothing", so it is skipped.
func checkRefs(s *Schema, values map[string]any, lookup LookupFunc) error {
	for _, f := range s.Fields() {
		if f.Ref == nil {
			continue
		}
		v, present := values[f.Name]
		if !present || v == nil {
			continue
		}
		target, targetField, ok := s.RefTarget(f.Name)
		if !ok {
			return fmt.Errorf("field %q: reference target not resolved", f.Name)
		}
		exists, err := lookup(target, targetField, v)
		if err != nil {
			return fmt.Errorf("checking reference %q: %w", f.Name, err)
		}
		if !exists {
			return &RefError{Field: f.Name, Model: target.Name(), Value: v}
		}
	}
	return nil
}
