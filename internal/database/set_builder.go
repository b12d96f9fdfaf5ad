package database

import (
	"fmt"
	"strings"
)

// setBuilder renders a SurrealQL SET clause from optional patch fields.
// Field names are always constants from the calling store.
type setBuilder struct {
	parts []string
	vals  map[string]any
}

func newSetBuilder() *setBuilder {
	return &setBuilder{vals: make(map[string]any)}
}

// value sets field to v.
func (b *setBuilder) value(field string, v any) {
	b.parts = append(b.parts, fmt.Sprintf("%s = $%s", field, field))
	b.vals[field] = v
}

// optionalString skips nil, clears the field for "" and sets it otherwise.
func (b *setBuilder) optionalString(field string, v *string) {
	switch {
	case v == nil:
	case *v == "":
		b.parts = append(b.parts, field+" = NONE")
	default:
		b.value(field, *v)
	}
}

func (b *setBuilder) optionalInt(field string, v *int) {
	if v != nil {
		b.value(field, *v)
	}
}

// raw appends a server-side expression such as "updated_at = time::now()".
func (b *setBuilder) raw(expr string) {
	b.parts = append(b.parts, expr)
}

func (b *setBuilder) empty() bool { return len(b.parts) == 0 }

func (b *setBuilder) clause() string { return strings.Join(b.parts, ", ") }

// params returns a copy so callers can add their own entries.
func (b *setBuilder) params() map[string]any {
	out := make(map[string]any, len(b.vals)+1)
	for k, v := range b.vals {
		out[k] = v
	}
	return out
}
