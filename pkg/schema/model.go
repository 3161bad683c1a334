// Package schema turns registered collection models into compact textual
// descriptions suitable as prompt material for an LLM.
//
// Models are declared once at startup as a closed, declarative field tree.
// Reflection is a pure function over that tree: the same registry state always
// produces the same descriptors, and the same descriptors always format to the
// same strings.
package schema

import (
	"errors"
	"fmt"
	"sync"
)

// FieldType enumerates the declarable field types.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeNumber   FieldType = "number"
	TypeBoolean  FieldType = "boolean"
	TypeDate     FieldType = "date"
	TypeObjectID FieldType = "objectId"
	TypeArray    FieldType = "array"
	TypeObject   FieldType = "object"
	TypeMap      FieldType = "map"
)

// Field declares a single field of a model.
//
// Constraint fields are pointers so that "not declared" is distinguishable
// from a zero value. Enum is meaningful only for string fields; Ref only for
// objectId fields; Items only for array fields; Fields only for object fields.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	Unique   bool
	Indexed  bool
	Default  any
	// HasDefault marks a declared default even when the value itself is nil.
	HasDefault bool

	Enum      []string
	Min       *float64
	Max       *float64
	MinLength *int
	MaxLength *int
	Pattern   string

	// Ref names the target model for objectId references.
	Ref string

	Items  *Field
	Fields []Field
}

// Model declares one collection: its name, its fields in declaration order,
// and whether createdAt/updatedAt bookkeeping is enabled.
type Model struct {
	Name       string
	Collection string
	Fields     []Field
	Timestamps bool
}

// ErrUnknownCollection is returned when a collection name is not registered.
var ErrUnknownCollection = errors.New("unknown collection")

// Registry holds the registered models, keyed by collection name, and the
// model-name to collection-name table used to resolve references.
// Registration happens at startup; afterwards the registry is read-only.
type Registry struct {
	mu          sync.RWMutex
	order       []string
	collections map[string]*Model
	modelNames  map[string]string
}

// NewRegistry creates an empty model registry.
func NewRegistry() *Registry {
	return &Registry{
		collections: make(map[string]*Model),
		modelNames:  make(map[string]string),
	}
}

// Register adds a model to the registry.
func (r *Registry) Register(m Model) error {
	if m.Name == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	if m.Collection == "" {
		return fmt.Errorf("model %q: collection name cannot be empty", m.Name)
	}
	for _, f := range m.Fields {
		if err := validateField(m.Name, f); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collections[m.Collection]; exists {
		return fmt.Errorf("collection %q already registered", m.Collection)
	}
	model := m
	r.collections[m.Collection] = &model
	r.modelNames[m.Name] = m.Collection
	r.order = append(r.order, m.Collection)
	return nil
}

// MustRegister is Register that panics on error, for static startup wiring.
func (r *Registry) MustRegister(m Model) {
	if err := r.Register(m); err != nil {
		panic(err)
	}
}

// Get returns the model registered under the given collection name.
func (r *Registry) Get(collection string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.collections[collection]
	return m, ok
}

// Collections returns all registered collection names in registration order.
func (r *Registry) Collections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ResolveModelName maps a model name to its collection name. The second
// return reports whether the model name is known.
func (r *Registry) ResolveModelName(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.modelNames[name]
	return c, ok
}

func validateField(model string, f Field) error {
	if f.Name == "" {
		return fmt.Errorf("model %q: field name cannot be empty", model)
	}
	return validateConstraints(model, f)
}

func validateConstraints(model string, f Field) error {
	if len(f.Enum) > 0 && f.Type != TypeString {
		return fmt.Errorf("model %q: field %q: enum is only valid on string fields", model, f.Name)
	}
	if f.Type == TypeArray {
		if f.Items == nil {
			return fmt.Errorf("model %q: field %q: array fields require an items declaration", model, f.Name)
		}
		// Item declarations are anonymous; only their constraints are checked.
		if err := validateConstraints(model, *f.Items); err != nil {
			return err
		}
	}
	if f.Type == TypeObject {
		for _, nested := range f.Fields {
			if err := validateField(model, nested); err != nil {
				return err
			}
		}
	}
	return nil
}
