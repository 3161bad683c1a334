package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Formatter renders descriptor trees into the compact text encoding consumed
// as prompt material.
//
// The encoding is deterministic: identical descriptors always produce
// identical strings. Per field, in fixed order:
//
//	<Kind>(<modifiers>) -> <reference> [enum|values] {min:..,max:..,minLen:..,maxLen:..}
//
// with every section after the kind optional. Arrays render as
// Array<item encoding>, objects as Object<name: encoding, ...>.
type Formatter struct{}

// NewFormatter creates a formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// Format renders every top-level field of the descriptor, keyed by field path.
func (f *Formatter) Format(desc *CollectionDescriptor) map[string]string {
	out := make(map[string]string, len(desc.Fields))
	for _, field := range desc.Fields {
		out[field.Name] = f.formatField(field.Descriptor)
	}
	return out
}

func (f *Formatter) formatField(d *FieldDescriptor) string {
	var b strings.Builder

	switch d.Kind {
	case KindArray:
		b.WriteString("Array<")
		if d.Items != nil {
			b.WriteString(f.formatField(d.Items))
		}
		b.WriteString(">")
	case KindObject:
		b.WriteString("Object<")
		for i, nested := range d.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(nested.Name)
			b.WriteString(": ")
			b.WriteString(f.formatField(nested.Descriptor))
		}
		b.WriteString(">")
	default:
		b.WriteString(string(d.Kind))
	}

	if mods := modifiers(d); mods != "" {
		b.WriteString("(")
		b.WriteString(mods)
		b.WriteString(")")
	}

	if d.Reference != "" {
		b.WriteString(" -> ")
		b.WriteString(d.Reference)
	}

	if len(d.Enum) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(d.Enum, "|"))
		b.WriteString("]")
	}

	if cons := constraints(d); cons != "" {
		b.WriteString(" {")
		b.WriteString(cons)
		b.WriteString("}")
	}

	return b.String()
}

// modifiers renders the flag set in its fixed order. Computed fields are
// store-maintained and carry no caller-facing modifiers.
func modifiers(d *FieldDescriptor) string {
	var mods []string
	if d.Required {
		mods = append(mods, "required")
	}
	if d.Unique {
		mods = append(mods, "unique")
	}
	if d.Indexed {
		mods = append(mods, "indexed")
	}
	if d.HasDefault {
		mods = append(mods, "has-default")
	}
	return strings.Join(mods, ", ")
}

func constraints(d *FieldDescriptor) string {
	var parts []string
	if d.Min != nil {
		parts = append(parts, "min:"+formatNumber(*d.Min))
	}
	if d.Max != nil {
		parts = append(parts, "max:"+formatNumber(*d.Max))
	}
	if d.MinLength != nil {
		parts = append(parts, fmt.Sprintf("minLen:%d", *d.MinLength))
	}
	if d.MaxLength != nil {
		parts = append(parts, fmt.Sprintf("maxLen:%d", *d.MaxLength))
	}
	return strings.Join(parts, ",")
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
