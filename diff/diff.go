package diff

// Field-by-field comparison of two decoded saves.

import (
	"fmt"
	"strings"

	"lanasave/save"
	"lanasave/tables"
	"lanasave/types"
)

type Change struct {
	Field types.Field
	Old   types.Value
	New   types.Value

	// Axes marks which components of a vector differ.  Always all false for other kinds.
	Axes [3]bool
}

func (c Change) String() string {
	if c.Field.Kind == types.KIND_VECTOR3 && c.Old.Present() && c.New.Present() {
		parts := []string{}
		for i, changed := range c.Axes {
			if changed {
				parts = append(parts, fmt.Sprintf("%v: %v -> %v", "xyz"[i:i+1], c.Old.Vector[i], c.New.Vector[i]))
			}
		}
		return fmt.Sprintf("%v %v", c.Field.Name, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%v: %v -> %v", c.Field.Name, c.Old, c.New)
}

// ChangeSet maps field names to changes.  A field that didn't change is not in it.
type ChangeSet map[string]Change

func (cs ChangeSet) Empty() bool {
	return len(cs) == 0
}

func (cs ChangeSet) Has(name string) bool {
	_, ok := cs[name]
	return ok
}

// Names lists the changed fields in table order, which is also the order people expect to read them in.
func (cs ChangeSet) Names() []string {
	out := []string{}
	for _, name := range tables.Names() {
		if cs.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

func (cs ChangeSet) String() string {
	lines := []string{}
	for _, name := range cs.Names() {
		lines = append(lines, cs[name].String())
	}
	return strings.Join(lines, "\n")
}

// lookup treats a missing field as the zero (absent) value
func lookup(r *save.Record, name string) types.Value {
	v, err := r.Value(name)
	if err != nil {
		return types.Value{}
	}
	return v
}

// Diff compares a and b by decoded value, so differences in how a number was written can't
// produce false alarms.  Old values come from a, new ones from b.
func Diff(a, b *save.Record) ChangeSet {
	out := ChangeSet{}

	for _, f := range tables.Fields() {
		before, after := lookup(a, f.Name), lookup(b, f.Name)
		if before.Equal(after) {
			continue
		}

		c := Change{Field: f, Old: before, New: after}
		if f.Kind == types.KIND_VECTOR3 {
			for i := range c.Axes {
				// An absent side has no components to agree with
				c.Axes[i] = !before.Present() || !after.Present() || before.Vector[i] != after.Vector[i]
			}
		}
		out[f.Name] = c
	}

	return out
}
