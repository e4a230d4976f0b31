// Package catalog holds the read-only schema model the compiler consumes:
// the catalog view (§3, a snapshot of the target database's structure) and
// the derived, read-only model graph (classes and arrows) built from it.
//
// The catalog view is assembled by an external collaborator (see
// github.com/htsql-go/htsql/introspect, or a hand-built/YAML-loaded View
// for tests); the compiler itself never performs introspection or I/O.
package catalog

// Column is one column of a Table. Name is the name the query language
// sees; Physical, when set, is the underlying SQL column a rename
// override moved it from, and is what the serializer must emit.
type Column struct {
	Name     string
	Physical string // "" when Name is the SQL name
	Type     Type
	Nullable bool
}

// SQLName returns the column name to use in emitted SQL.
func (c Column) SQLName() string {
	if c.Physical != "" {
		return c.Physical
	}
	return c.Name
}

// UniqueKey is a set of columns guaranteed unique within a Table. Primary
// marks the table's designated primary key, if any.
type UniqueKey struct {
	Columns []string
	Primary bool
}

// ForeignKey is an ordered column list on Table referencing an ordered
// column list on Target.
type ForeignKey struct {
	Columns       []string
	Target        string
	TargetColumns []string
}

// Table is a visible relation in the catalog.
type Table struct {
	Name        string
	Columns     []Column
	UniqueKeys  []UniqueKey
	ForeignKeys []ForeignKey
}

// Column looks up a column by name (case-insensitive, per NormalizeName).
// Both the query-visible name and, for a renamed column, the underlying
// physical name match, so key/foreign-key column lists -- which always name
// physical columns -- keep resolving after a rename override.
func (t *Table) Column(name string) (Column, bool) {
	n := NormalizeName(name)
	for _, c := range t.Columns {
		if NormalizeName(c.Name) == n || (c.Physical != "" && NormalizeName(c.Physical) == n) {
			return c, true
		}
	}
	return Column{}, false
}

// PrimaryKey returns the table's designated primary unique key, if any.
func (t *Table) PrimaryKey() *UniqueKey {
	for i := range t.UniqueKeys {
		if t.UniqueKeys[i].Primary {
			return &t.UniqueKeys[i]
		}
	}
	return nil
}

// CalculatedField is a catalog override: a user-defined expression exposed
// as though it were a column or link on a table.
type CalculatedField struct {
	Table      string
	Name       string
	Expression string // HTSQL source of the expression body
}

// Global is a catalog override: a user-defined top-level name bound to a
// parsed expression, visible from the root scope.
type Global struct {
	Name       string
	Expression string
}

// SyntheticKey is a catalog-declared foreign key the physical schema does
// not carry: Table names the origin whose Columns reference Target's
// TargetColumns.
type SyntheticKey struct {
	Table         string
	Columns       []string
	Target        string
	TargetColumns []string
}

// Overrides are optional adjustments layered on top of the introspected
// schema (spec §3: "hidden tables/columns, synthetic constraints, renamed
// or calculated fields, user-defined globals").
type Overrides struct {
	HiddenTables  []string
	HiddenColumns map[string][]string // table -> columns
	Renamed       map[string]string   // "table.column" -> new name
	Calculated    []CalculatedField
	Globals       []Global
	SyntheticKeys []SyntheticKey
}

// Engine names a target SQL dialect. Kept distinct from dialect.Name so
// catalog stays dialect-package-agnostic; htsql.Compile maps one to the
// other.
type Engine string

// View is the compiler's sole input describing the target database: the
// full table set, the selected engine, and any overrides. It is built once
// by an external collaborator and is immutable and safe to share across
// concurrent compiles (spec §5).
type View struct {
	Tables    []Table
	Engine    Engine
	Overrides Overrides
}

// Table looks up a visible table by name, applying HiddenTables.
func (v *View) Table(name string) (*Table, bool) {
	n := NormalizeName(name)
	for i := range v.Tables {
		if NormalizeName(v.Tables[i].Name) == n {
			if v.isHidden(v.Tables[i].Name) {
				return nil, false
			}
			return &v.Tables[i], true
		}
	}
	return nil, false
}

func (v *View) isHidden(table string) bool {
	n := NormalizeName(table)
	for _, h := range v.Overrides.HiddenTables {
		if NormalizeName(h) == n {
			return true
		}
	}
	return false
}

// VisibleTables returns the tables not named in Overrides.HiddenTables, in
// catalog order (determinism, spec §5).
func (v *View) VisibleTables() []*Table {
	var out []*Table
	for i := range v.Tables {
		if !v.isHidden(v.Tables[i].Name) {
			out = append(out, &v.Tables[i])
		}
	}
	return out
}
