package bind

import "github.com/htsql-go/htsql/catalog"

// Scope is a lookup surface (spec §4.3): class scopes expose attributes
// and links, projection scopes expose kernel elements and the complement
// link, and the root scope exposes all visible classes and user globals.
type Scope interface {
	// Lookup resolves name within this scope, returning the binding it
	// produces and whether the name was found. References ($name) are
	// looked up through LookupReference instead.
	Lookup(name string) (Binding, bool)
	LookupReference(name string) (Binding, bool)
}

// RootScope exposes every visible class and user global (spec §4.3).
type RootScope struct {
	Model   *catalog.Model
	View    *catalog.View
	Globals map[string]Binding
}

func NewRootScope(m *catalog.Model, v *catalog.View) *RootScope {
	return &RootScope{Model: m, View: v, Globals: map[string]Binding{}}
}

func (r *RootScope) Lookup(name string) (Binding, bool) {
	n := catalog.NormalizeName(name)
	for i := range r.Model.Classes {
		if r.Model.Classes[i].Name == n {
			c := r.Model.Classes[i]
			return &ClassBinding{
				// A root class ranges over every row of its table, so it is
				// plural from the moment it enters scope.
				base:  base{typ: catalog.Type{Domain: catalog.DomainRecord, RecordOf: c.Name}, plural: true},
				Class: c.Name,
				Table: c.Table,
			}, true
		}
	}
	if g, ok := r.Globals[n]; ok {
		return g, true
	}
	return nil, false
}

func (r *RootScope) LookupReference(name string) (Binding, bool) { return nil, false }

// ClassScope exposes a class's attributes and links plus any calculated
// fields and in-scope defines added through Define (spec §4.3).
type ClassScope struct {
	Parent     Scope
	Class      string
	Table      *catalog.Table
	Model      *catalog.Model
	Base       Binding
	Calculated map[string]Binding // defines/calculated fields, name -> factory result binding
	refs       map[string]Binding
}

func NewClassScope(parent Scope, class string, table *catalog.Table, model *catalog.Model, base Binding) *ClassScope {
	return &ClassScope{
		Parent: parent, Class: class, Table: table, Model: model, Base: base,
		Calculated: map[string]Binding{}, refs: map[string]Binding{},
	}
}

func (c *ClassScope) Lookup(name string) (Binding, bool) {
	n := catalog.NormalizeName(name)

	// Match the query-visible column name only: a renamed column's physical
	// name is resolvable through Table.Column (key lists need it) but is not
	// part of this scope's surface.
	for _, col := range c.Table.Columns {
		if catalog.NormalizeName(col.Name) == n {
			return &ColumnBinding{base: base{typ: col.Type}, Column: col.SQLName(), Nullable: col.Nullable, Base: c.Base}, true
		}
	}
	for i := range c.Model.Arrows {
		a := c.Model.Arrows[i]
		if a.From != c.Class || a.Name != n {
			continue
		}
		var table *catalog.Table
		for j := range c.Model.Classes {
			if c.Model.Classes[j].Name == a.To {
				table = c.Model.Classes[j].Table
				break
			}
		}
		return &ClassBinding{
			base:  base{typ: catalog.Type{Domain: catalog.DomainRecord, RecordOf: a.To}, plural: !a.Singular},
			Class: a.To,
			Table: table,
			Arrow: &a,
			Base:  c.Base,
		}, true
	}
	if v, ok := c.Calculated[n]; ok {
		return v, true
	}
	// Enclosing scopes stay visible from within a class scope: a root class
	// name or a global still resolves inside a selection or predicate.
	return c.Parent.Lookup(name)
}

func (c *ClassScope) LookupReference(name string) (Binding, bool) {
	if v, ok := c.refs[catalog.NormalizeName(name)]; ok {
		return v, true
	}
	return c.Parent.LookupReference(name)
}

// Define extends the scope with a new calculated-attribute factory
// (spec §4.3: "define(x:=...) ... extend the current scope").
func (c *ClassScope) Define(name string, b Binding) {
	c.Calculated[catalog.NormalizeName(name)] = b
}

func (c *ClassScope) CaptureReference(name string, b Binding) {
	c.refs[catalog.NormalizeName(name)] = b
}

// ProjectionScope exposes kernel elements and the complement link
// (spec §4.3).
type ProjectionScope struct {
	Parent     Scope
	Projection *ProjectionBinding
	KernelName map[string]Binding // kernel element name -> its binding, for by-name lookup when kernels are named
}

func NewProjectionScope(parent Scope, p *ProjectionBinding) *ProjectionScope {
	return &ProjectionScope{Parent: parent, Projection: p, KernelName: map[string]Binding{}}
}

func (p *ProjectionScope) Lookup(name string) (Binding, bool) {
	n := catalog.NormalizeName(name)
	baseClass := p.Projection.BaseFlow.Domain().RecordOf
	if name == "^" || n == catalog.NormalizeName(baseClass) {
		return &ComplementBinding{
			base:       base{typ: catalog.Type{Domain: catalog.DomainRecord, RecordOf: baseClass}, plural: true},
			Projection: p.Projection,
		}, true
	}
	if b, ok := p.KernelName[n]; ok {
		return b, true
	}
	return p.Parent.Lookup(name)
}

func (p *ProjectionScope) LookupReference(name string) (Binding, bool) {
	return p.Parent.LookupReference(name)
}
