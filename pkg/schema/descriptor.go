package schema

// Kind classifies a reflected field.
type Kind string

const (
	KindText       Kind = "Text"
	KindNumber     Kind = "Number"
	KindBoolean    Kind = "Boolean"
	KindTimestamp  Kind = "Timestamp"
	KindIdentifier Kind = "Identifier"
	KindArray      Kind = "Array"
	KindObject     Kind = "Object"
	KindMap        Kind = "Map"
	KindUnknown    Kind = "Unknown"
)

// FieldDescriptor is the normalized representation of one reflected field.
// Descriptor trees are finite and acyclic: models cannot reference themselves
// structurally, only by name through Identifier references.
type FieldDescriptor struct {
	Kind Kind

	Required   bool
	Unique     bool
	Indexed    bool
	HasDefault bool
	// Computed marks fields the store maintains itself (createdAt/updatedAt).
	Computed bool

	// Enum holds allowed values in declaration order. Text only.
	Enum []string

	Min       *float64
	Max       *float64
	MinLength *int
	MaxLength *int
	Pattern   string

	// Reference is the target collection of an Identifier field, when the
	// declared model name resolved. Empty when absent or unresolvable.
	Reference string

	// Items is the element descriptor of an Array field, always set for arrays.
	Items *FieldDescriptor

	// Fields holds the nested descriptors of an Object field in declaration order.
	Fields []NamedDescriptor
}

// NamedDescriptor pairs a nested field name with its descriptor, preserving
// declaration order.
type NamedDescriptor struct {
	Name       string
	Descriptor *FieldDescriptor
}

// CollectionDescriptor is the reflected view of one collection.
// It is built fresh per Reflect call and owned by the caller.
type CollectionDescriptor struct {
	Collection string
	Fields     []NamedDescriptor
}

// Len returns the number of top-level reflected fields.
func (d *CollectionDescriptor) Len() int {
	return len(d.Fields)
}
