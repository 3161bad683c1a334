package schema

import (
	"fmt"
)

// Reflector walks a registered model's field tree into a descriptor tree.
type Reflector struct {
	registry *Registry
}

// NewReflector creates a reflector over the given registry.
func NewReflector(registry *Registry) *Reflector {
	return &Reflector{registry: registry}
}

// Reflect builds a fresh CollectionDescriptor for the named collection.
// It fails with ErrUnknownCollection when the name is not registered.
// A descriptor with zero fields is a valid result at this layer; the tool
// boundary decides whether that is worth reporting to the caller.
func (r *Reflector) Reflect(collection string) (*CollectionDescriptor, error) {
	model, ok := r.registry.Get(collection)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}

	desc := &CollectionDescriptor{Collection: collection}
	for _, f := range model.Fields {
		desc.Fields = append(desc.Fields, NamedDescriptor{
			Name:       f.Name,
			Descriptor: r.reflectField(f),
		})
	}

	if model.Timestamps {
		for _, name := range []string{"createdAt", "updatedAt"} {
			desc.Fields = append(desc.Fields, NamedDescriptor{
				Name:       name,
				Descriptor: &FieldDescriptor{Kind: KindTimestamp, Computed: true},
			})
		}
	}

	return desc, nil
}

func (r *Reflector) reflectField(f Field) *FieldDescriptor {
	d := &FieldDescriptor{
		Kind:       classify(f.Type),
		Required:   f.Required,
		Unique:     f.Unique,
		Indexed:    f.Indexed,
		HasDefault: f.HasDefault || f.Default != nil,
	}

	switch d.Kind {
	case KindText:
		d.Enum = append([]string(nil), f.Enum...)
		d.MinLength = f.MinLength
		d.MaxLength = f.MaxLength
		d.Pattern = f.Pattern
	case KindNumber, KindTimestamp:
		d.Min = f.Min
		d.Max = f.Max
	case KindIdentifier:
		if f.Ref != "" {
			// Unresolvable model names leave the reference absent; a dangling
			// ref is a schema wart, not a reason to fail reflection.
			if collection, ok := r.registry.ResolveModelName(f.Ref); ok {
				d.Reference = collection
			}
		}
	case KindArray:
		if f.Items != nil {
			d.Items = r.reflectField(*f.Items)
		} else {
			d.Items = &FieldDescriptor{Kind: KindUnknown}
		}
	case KindObject:
		for _, nested := range f.Fields {
			d.Fields = append(d.Fields, NamedDescriptor{
				Name:       nested.Name,
				Descriptor: r.reflectField(nested),
			})
		}
	}

	return d
}

func classify(t FieldType) Kind {
	switch t {
	case TypeString:
		return KindText
	case TypeNumber:
		return KindNumber
	case TypeBoolean:
		return KindBoolean
	case TypeDate:
		return KindTimestamp
	case TypeObjectID:
		return KindIdentifier
	case TypeArray:
		return KindArray
	case TypeObject:
		return KindObject
	case TypeMap:
		return KindMap
	default:
		return KindUnknown
	}
}
