package model

import (
	"fmt"
	"sync"

	"github.com/petracek/modelite/internal/field"
)

// implicitPK is the identity field injected when a declaration names no
// primary key.
var implicitPK = field.Spec{Name: "id", Type: field.Integer{}, PrimaryKey: true}

// Registry maps model names to registered schemas.
//
// Registration is ordered: a foreign key may only reference a model that has
// already been registered. All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// Default is the process-wide registry used by the package-level helpers.
var Default = NewRegistry()

// Register validates a declaration and adds it to the registry.
//
// Re-registering a declaration with an identical fingerprint is idempotent
// and returns the existing schema. A differing fingerprint returns
// *ConflictError and leaves the registry unchanged.
func (r *Registry) Register(decl Declaration) (*Schema, error) {
	if decl.Name == "" {
		return nil, fmt.Errorf("model name must not be empty")
	}

	fields, pk, err := normalizeFields(decl)
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", decl.Name, err)
	}
	normalized := Declaration{Name: decl.Name, Table: decl.TableName(), Fields: fields}
	fp := Fingerprint(normalized)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.schemas[decl.Name]; ok {
		if existing.fingerprint == fp {
			return existing, nil
		}
		return nil, &ConflictError{
			Model:    decl.Name,
			Existing: existing.fingerprint,
			Proposed: fp,
		}
	}

	refs, err := r.resolveRefs(decl.Name, fields)
	if err != nil {
		return nil, err
	}

	s := &Schema{
		name:        decl.Name,
		table:       normalized.Table,
		fields:      fields,
		pk:          pk,
		fingerprint: fp,
		refs:        refs,
	}
	r.schemas[decl.Name] = s
	r.order = append(r.order, decl.Name)
	return s, nil
}

// Get returns the schema registered under name.
func (r *Registry) Get(name string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// Schemas returns all registered schemas in registration order.
func (r *Registry) Schemas() []*Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Schema, len(r.order))
	for i, name := range r.order {
		out[i] = r.schemas[name]
	}
	return out
}

// Register adds a declaration to the Default registry.
func Register(decl Declaration) (*Schema, error) {
	return Default.Register(decl)
}

// Lookup returns a schema from the Default registry.
func Lookup(name string) (*Schema, bool) {
	return Default.Get(name)
}

// normalizeFields checks the declared fields, injects the implicit primary
// key when none is declared, normalizes default values, and returns the
// final field slice plus the primary-key index.
func normalizeFields(decl Declaration) ([]field.Spec, int, error) {
	fields := make([]field.Spec, 0, len(decl.Fields)+1)

	pk := -1
	seen := make(map[string]struct{}, len(decl.Fields))
	for _, f := range decl.Fields {
		if f.Name == "" {
			return nil, 0, fmt.Errorf("field name must not be empty")
		}
		if f.Type == nil {
			return nil, 0, fmt.Errorf("field %q: type must not be nil", f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, 0, fmt.Errorf("field %q: declared twice", f.Name)
		}
		seen[f.Name] = struct{}{}

		if f.PrimaryKey {
			if pk >= 0 {
				return nil, 0, fmt.Errorf("field %q: model already has a primary key", f.Name)
			}
			if f.Type.Kind() != field.KindInteger {
				return nil, 0, fmt.Errorf("field %q: primary key must be integer, got %s", f.Name, f.Type.Kind())
			}
			if f.Ref != nil {
				return nil, 0, fmt.Errorf("field %q: primary key cannot be a foreign key", f.Name)
			}
			pk = len(fields)
		}

		if f.Default != nil {
			norm, err := f.Type.Validate(f.Default)
			if err != nil {
				return nil, 0, fmt.Errorf("field %q: default: %w", f.Name, err)
			}
			f.Default = norm
		}

		fields = append(fields, f)
	}

	if pk < 0 {
		if _, taken := seen[implicitPK.Name]; taken {
			return nil, 0, fmt.Errorf("field %q: collides with the implicit primary key; declare it as the primary key instead", implicitPK.Name)
		}
		fields = append([]field.Spec{implicitPK}, fields...)
		pk = 0
	}

	return fields, pk, nil
}

// resolveRefs resolves every foreign key against already-registered models.
// Caller holds the registry lock.
func (r *Registry) resolveRefs(modelName string, fields []field.Spec) (map[string]refTarget, error) {
	var refs map[string]refTarget
	for _, f := range fields {
		if f.Ref == nil {
			continue
		}
		target, ok := r.schemas[f.Ref.Model]
		if !ok {
			return nil, fmt.Errorf("model %q: field %q references unregistered model %q", modelName, f.Name, f.Ref.Model)
		}
		tf := target.PrimaryKey()
		if f.Ref.Field != "" {
			tf, ok = target.Field(f.Ref.Field)
			if !ok {
				return nil, fmt.Errorf("model %q: field %q references unknown field %s.%q", modelName, f.Name, f.Ref.Model, f.Ref.Field)
			}
		}
		if f.Type.Kind() != tf.Type.Kind() {
			return nil, fmt.Errorf("model %q: field %q is %s but references %s field %s.%q",
				modelName, f.Name, f.Type.Kind(), tf.Type.Kind(), f.Ref.Model, tf.Name)
		}
		if refs == nil {
			refs = make(map[string]refTarget)
		}
		refs[f.Name] = refTarget{schema: target, fld: tf}
	}
	return refs, nil
}
