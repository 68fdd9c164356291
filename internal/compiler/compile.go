// Package compiler turns CUE model declarations into registry declarations.
//
// Declarations live in .cue files so they can carry constraints and be
// composed with CUE's own tooling. The compiler only decodes structure;
// semantic rules (duplicate fields, reference targets, default types) are
// enforced when the declaration is registered.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/petracek/modelite/internal/field"
	"github.com/petracek/modelite/internal/model"
)

// CompileModels parses every model declaration in a CUE value.
//
// The value may carry a single declaration under "model" or an ordered list
// under "models". List order matters: a declaration may only reference models
// that appear before it.
func CompileModels(v cue.Value) ([]model.Declaration, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	if listVal := v.LookupPath(cue.ParsePath("models")); listVal.Exists() {
		iter, err := listVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var decls []model.Declaration
		for iter.Next() {
			decl, err := CompileModel(iter.Value())
			if err != nil {
				return nil, err
			}
			decls = append(decls, decl)
		}
		if len(decls) == 0 {
			return nil, &CompileError{
				Field:   "models",
				Message: "at least one model is required",
				Pos:     listVal.Pos(),
			}
		}
		return decls, nil
	}

	if singleVal := v.LookupPath(cue.ParsePath("model")); singleVal.Exists() {
		decl, err := CompileModel(singleVal)
		if err != nil {
			return nil, err
		}
		return []model.Declaration{decl}, nil
	}

	return nil, &CompileError{
		Field:   "models",
		Message: "expected a model struct or a models list",
		Pos:     v.Pos(),
	}
}

// CompileModel parses one model declaration struct, e.g.:
//
//	{
//		name:  "User"
//		table: "users"
//		fields: [
//			{name: "email", type: "text", unique: true},
//			{name: "active", type: "boolean", default: true},
//		]
//	}
func CompileModel(v cue.Value) (model.Declaration, error) {
	var decl model.Declaration
	if err := v.Err(); err != nil {
		return decl, formatCUEError(err)
	}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return decl, &CompileError{
			Field:   "name",
			Message: "model name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return decl, formatCUEError(err)
	}
	decl.Name = name

	if tableVal := v.LookupPath(cue.ParsePath("table")); tableVal.Exists() {
		table, err := tableVal.String()
		if err != nil {
			return decl, formatCUEError(err)
		}
		decl.Table = table
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return decl, &CompileError{
			Field:   fmt.Sprintf("%s.fields", name),
			Message: "fields list is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := fieldsVal.List()
	if err != nil {
		return decl, formatCUEError(err)
	}
	for iter.Next() {
		spec, err := parseField(name, iter.Value())
		if err != nil {
			return decl, err
		}
		decl.Fields = append(decl.Fields, spec)
	}
	if len(decl.Fields) == 0 {
		return decl, &CompileError{
			Field:   fmt.Sprintf("%s.fields", name),
			Message: "at least one field is required",
			Pos:     fieldsVal.Pos(),
		}
	}

	return decl, nil
}

// parseField decodes one field entry of a declaration.
func parseField(modelName string, v cue.Value) (field.Spec, error) {
	var spec field.Spec

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return spec, &CompileError{
			Field:   fmt.Sprintf("%s.fields", modelName),
			Message: "field name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return spec, formatCUEError(err)
	}
	spec.Name = name

	at := fmt.Sprintf("%s.%s", modelName, name)

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return spec, &CompileError{
			Field:   at,
			Message: "field type is required",
			Pos:     v.Pos(),
		}
	}
	typeName, err := typeVal.String()
	if err != nil {
		return spec, formatCUEError(err)
	}
	spec.Type, err = parseType(at, typeName, v)
	if err != nil {
		return spec, err
	}

	if err := lookupBool(v, "primaryKey", &spec.PrimaryKey); err != nil {
		return spec, err
	}
	if err := lookupBool(v, "nullable", &spec.Nullable); err != nil {
		return spec, err
	}
	if err := lookupBool(v, "unique", &spec.Unique); err != nil {
		return spec, err
	}

	if defVal := v.LookupPath(cue.ParsePath("default")); defVal.Exists() {
		def, err := parseDefault(at, defVal)
		if err != nil {
			return spec, err
		}
		spec.Default = def
	}

	if refVal := v.LookupPath(cue.ParsePath("ref")); refVal.Exists() {
		ref, err := parseRef(at, refVal)
		if err != nil {
			return spec, err
		}
		spec.Ref = ref
	}

	return spec, nil
}

// parseType maps a declared type string to its field type. Datetime fields
// read their autofill flags from the same struct.
func parseType(at, typeName string, v cue.Value) (field.Type, error) {
	switch typeName {
	case "integer":
		return field.Integer{}, nil
	case "text":
		return field.Text{}, nil
	case "real":
		return field.Real{}, nil
	case "blob":
		return field.Blob{}, nil
	case "boolean":
		return field.Boolean{}, nil
	case "datetime":
		var dt field.DateTime
		if err := lookupBool(v, "onCreate", &dt.OnCreate); err != nil {
			return nil, err
		}
		if err := lookupBool(v, "onUpdate", &dt.OnUpdate); err != nil {
			return nil, err
		}
		return dt, nil
	default:
		return nil, &CompileError{
			Field:   at,
			Message: fmt.Sprintf("unknown type %q", typeName),
			Pos:     v.Pos(),
		}
	}
}

// parseDefault decodes a default literal by its CUE kind. Type agreement with
// the declared field type is checked at registration, not here.
func parseDefault(at string, v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return s, nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return n, nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return f, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return b, nil
	case cue.BytesKind:
		b, err := v.Bytes()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return b, nil
	default:
		return nil, &CompileError{
			Field:   at,
			Message: fmt.Sprintf("unsupported default kind %v", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

// lookupBool reads an optional boolean attribute into dst. A missing
// attribute leaves dst untouched.
func lookupBool(v cue.Value, path string, dst *bool) error {
	flagVal := v.LookupPath(cue.ParsePath(path))
	if !flagVal.Exists() {
		return nil
	}
	b, err := flagVal.Bool()
	if err != nil {
		return formatCUEError(err)
	}
	*dst = b
	return nil
}

// parseRef decodes a reference target, e.g. ref: {model: "User"} with an
// optional field overriding the target's primary key.
func parseRef(at string, v cue.Value) (*field.Ref, error) {
	modelVal := v.LookupPath(cue.ParsePath("model"))
	if !modelVal.Exists() {
		return nil, &CompileError{
			Field:   at,
			Message: "ref requires a model",
			Pos:     v.Pos(),
		}
	}
	modelName, err := modelVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	ref := &field.Ref{Model: modelName}

	if fieldVal := v.LookupPath(cue.ParsePath("field")); fieldVal.Exists() {
		fieldName, err := fieldVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ref.Field = fieldName
	}
	return ref, nil
}
