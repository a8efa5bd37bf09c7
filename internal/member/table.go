package member

import (
	"reflect"
	"slices"
)

// Declaration is one member entry in a Table.
type Declaration struct {
	Signature Signature

	// Exempt members are skipped when blanket selectors expand. Explicit
	// and predicate selectors still match them.
	Exempt bool
}

// DeclareOption configures a Declaration.
type DeclareOption func(*Declaration)

// DoNotIntercept is the exemption marker.
func DoNotIntercept() DeclareOption {
	return func(d *Declaration) {
		d.Exempt = true
	}
}

// Table lists the members reachable through interface I, including members
// promoted from embedded interfaces, in declaration order.
type Table struct {
	iface reflect.Type
	decls []Declaration
	index map[string]int
}

// NewTable creates an empty table for interface I.
func NewTable[I any]() *Table {
	return &Table{
		iface: reflect.TypeFor[I](),
		index: make(map[string]int),
	}
}

// Declare adds a member. Generic members are declared by their definition.
// Declaring the same signature twice replaces the earlier entry.
func (t *Table) Declare(sig Signature, opts ...DeclareOption) *Table {
	d := Declaration{Signature: sig.Definition()}
	for _, opt := range opts {
		opt(&d)
	}
	key := d.Signature.Key()
	if i, ok := t.index[key]; ok {
		t.decls[i] = d
		return t
	}
	t.index[key] = len(t.decls)
	t.decls = append(t.decls, d)
	return t
}

// Interface returns the interface type the table describes.
func (t *Table) Interface() reflect.Type { return t.iface }

// Members returns all declarations in declaration order.
func (t *Table) Members() []Declaration {
	return slices.Clone(t.decls)
}

// Lookup finds the declaration of sig, matching instantiations by their
// generic definition.
func (t *Table) Lookup(sig Signature) (Declaration, bool) {
	i, ok := t.index[sig.Definition().Key()]
	if !ok {
		return Declaration{}, false
	}
	return t.decls[i], true
}

// Exempt reports whether sig carries the exemption marker.
func (t *Table) Exempt(sig Signature) bool {
	d, ok := t.Lookup(sig)
	return ok && d.Exempt
}

// Named returns every declaration with the given logical name.
func (t *Table) Named(name string) []Declaration {
	var out []Declaration
	for _, d := range t.decls {
		if d.Signature.Name() == name {
			out = append(out, d)
		}
	}
	return out
}

// Declared reports whether d is declared directly on the table's interface
// rather than promoted from an embedded one.
func (t *Table) Declared(d Declaration) bool {
	return d.Signature.Declaring() == t.iface
}
