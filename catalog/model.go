package catalog

import (
	"sort"
	"strings"

	"github.com/htsql-go/htsql/herr"
)

// NormalizeName folds a catalog identifier for case-insensitive comparison.
// Grounded on schema/identifier.go's per-dialect NormalizeIdentifierName:
// the teacher switches on GeneratorMode because SQL identifier folding is
// engine-specific (Postgres preserves quoted case, MySQL/MSSQL/SQLite fold
// unquoted names to lowercase). The model graph sits above any one engine,
// so it applies the same fold unconditionally; dialect-specific quoting of
// the final, already-resolved name happens later, in the frame assembler.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Class is a node in the derived model graph: one queryable collection,
// rooted at a catalog Table.
type Class struct {
	Name  string
	Table *Table
}

// Arrow is an edge in the model graph: a named, directed link from one
// Class to another, derived from a foreign key or its reverse.
//
// Singular reports whether following the arrow from one instance of the
// origin class yields at most one instance of the target (spec §3: arrows
// carry singular/total flags). Total reports whether every instance of the
// origin class has at least one image under the arrow (i.e., the
// originating columns are all NOT NULL).
type Arrow struct {
	Name     string
	From     string // origin class name
	To       string // target class name
	Singular bool
	Total    bool
	Columns       []string // origin-side columns
	TargetColumns []string // target-side columns
	Reverse       bool     // true if this arrow runs against a foreign key's direction
}

// Model is the derived, read-only graph of Classes and Arrows built from a
// View (spec §3: "Model graph (derived). Classes ... and arrows between
// classes ..."). It never mutates once built and is safe to share across
// concurrent compiles, alongside the View it was built from.
type Model struct {
	Classes []Class
	Arrows  []Arrow
}

// BuildModel derives the Model graph from a catalog View: one Class per
// visible table, a singular arrow per foreign key (origin to target; total
// only when every origin column is NOT NULL), and its reverse (target to
// origin, never total, singular only when the foreign key's origin columns
// also form a unique key). Calculated fields
// and globals from Overrides become arrows/attributes in bind, not here;
// this stage only reifies structural links. BuildModel is also the
// compiler's one mandatory checkpoint for Overrides validity: every View
// reaches it on the way to a compile (see htsql.Compile), so it is where
// a CatalogError for an override naming a nonexistent table or column is
// guaranteed to surface, regardless of how the View's Overrides were set.
func BuildModel(v *View) (*Model, *herr.Error) {
	if verr := validateOverrides(v); verr != nil {
		return nil, verr
	}

	tables := v.VisibleTables()

	m := &Model{}
	for _, t := range tables {
		m.Classes = append(m.Classes, Class{Name: NormalizeName(t.Name), Table: effectiveTable(v, t)})
	}

	used := make(map[string]map[string]bool) // class -> arrow names already taken
	reserve := func(class, name string) bool {
		if used[class] == nil {
			used[class] = make(map[string]bool)
		}
		if used[class][name] {
			return false
		}
		used[class][name] = true
		return true
	}

	type fk struct {
		origin *Table
		fk     ForeignKey
	}
	var fks []fk
	for _, t := range tables {
		for _, f := range t.ForeignKeys {
			fks = append(fks, fk{origin: t, fk: f})
		}
	}
	for _, ov := range v.Overrides.SyntheticKeys {
		if origin, ok := v.Table(ov.Table); ok {
			fks = append(fks, fk{origin: origin, fk: ForeignKey{
				Columns: ov.Columns, Target: ov.Target, TargetColumns: ov.TargetColumns,
			}})
		}
	}

	for _, f := range fks {
		if _, ok := rawTable(v, f.fk.Target); !ok {
			return nil, herr.Catalog(herr.Span{}, "foreign key on {} references nonexistent table {}", NormalizeName(f.origin.Name), f.fk.Target)
		}
		target, ok := v.Table(f.fk.Target)
		if !ok {
			// Target exists but is hidden: no arrow reaches it.
			continue
		}
		originClass := NormalizeName(f.origin.Name)
		targetClass := NormalizeName(target.Name)

		forwardTotal := columnsNotNull(f.origin, f.fk.Columns)
		forwardName := directArrowName(f.fk.Columns, f.fk.TargetColumns, target.Name)
		forwardName = uniqueArrowName(forwardName, originClass, reserve)
		m.Arrows = append(m.Arrows, Arrow{
			Name: forwardName, From: originClass, To: targetClass,
			Singular: true, Total: forwardTotal,
			Columns: f.fk.Columns, TargetColumns: f.fk.TargetColumns,
		})

		reverseSingular := isUniqueOn(f.origin, f.fk.Columns)
		reverseName := reverseArrowName(f.origin.Name, f.fk.Columns, f.fk.TargetColumns, targetClass, reserve)
		m.Arrows = append(m.Arrows, Arrow{
			Name: reverseName, From: targetClass, To: originClass,
			Singular: reverseSingular, Total: false,
			Columns: f.fk.TargetColumns, TargetColumns: f.fk.Columns,
			Reverse: true,
		})
	}

	sort.SliceStable(m.Arrows, func(i, j int) bool {
		if m.Arrows[i].From != m.Arrows[j].From {
			return m.Arrows[i].From < m.Arrows[j].From
		}
		return m.Arrows[i].Name < m.Arrows[j].Name
	})
	return m, nil
}

// directArrowName implements the attribute/direct-FK naming rule (spec §3):
// a single-column foreign key arrows under its own referring name minus its
// trailing target-key suffix -- e.g. program.department_code, referencing
// department(code), arrows as "department" (strip "_code"); a self-FK like
// program.part_of_code, referencing program(code), arrows as "part_of". A
// foreign key whose target key is itself named "id" still strips "_id"/"id"
// by the same rule, since "id" is just that table's particular key-column
// name, not a hardcoded special case. Any shape the rule can't strip down to
// a nonempty prefix (composite keys, or a column that doesn't carry the
// target key's name as a suffix) falls back to the bare target table name.
func directArrowName(columns, targetColumns []string, target string) string {
	if len(columns) == 1 && len(targetColumns) == 1 {
		c := NormalizeName(columns[0])
		tk := NormalizeName(targetColumns[0])
		if strings.HasSuffix(c, tk) && len(c) > len(tk) {
			prefix := strings.TrimSuffix(c[:len(c)-len(tk)], "_")
			if prefix != "" {
				return prefix
			}
		}
	}
	return NormalizeName(target)
}

// reverseArrowName implements the reverse-FK naming rule (spec §3): the
// referencing table's own name, then `<origin>_via_<prefix>` (prefix being
// the referring column minus the target-key suffix), then
// `<origin>_via_<column>`; the first non-colliding candidate wins.
func reverseArrowName(originTable string, columns, targetColumns []string, targetClass string, reserve func(class, name string) bool) string {
	origin := NormalizeName(originTable)
	candidates := []string{origin}
	if len(columns) == 1 && len(targetColumns) == 1 {
		c := NormalizeName(columns[0])
		tk := NormalizeName(targetColumns[0])
		if strings.HasSuffix(c, tk) && len(c) > len(tk) {
			if prefix := strings.TrimSuffix(c[:len(c)-len(tk)], "_"); prefix != "" {
				candidates = append(candidates, origin+"_via_"+prefix)
			}
		}
		candidates = append(candidates, origin+"_via_"+c)
	}
	for _, cand := range candidates {
		if reserve(targetClass, cand) {
			return cand
		}
	}
	return uniqueArrowName(candidates[len(candidates)-1], targetClass, reserve)
}

// effectiveTable applies column-level overrides (hidden_columns, renamed)
// to t, returning a copy the model graph exposes instead of the raw table.
// A renamed column keeps its physical name in Column.Physical so key and
// foreign-key column lists still resolve and the serializer still emits
// the real SQL name.
func effectiveTable(v *View, t *Table) *Table {
	hidden := map[string]bool{}
	for key, cols := range v.Overrides.HiddenColumns {
		if NormalizeName(key) == NormalizeName(t.Name) {
			for _, c := range cols {
				hidden[NormalizeName(c)] = true
			}
		}
	}

	out := &Table{Name: t.Name, UniqueKeys: t.UniqueKeys, ForeignKeys: t.ForeignKeys}
	for _, c := range t.Columns {
		if hidden[NormalizeName(c.Name)] {
			continue
		}
		if newName, ok := renameFor(v, t.Name, c.Name); ok {
			c.Physical = c.Name
			c.Name = newName
		}
		out.Columns = append(out.Columns, c)
	}
	return out
}

func renameFor(v *View, table, column string) (string, bool) {
	for key, newName := range v.Overrides.Renamed {
		tn, cn, ok := splitTableColumn(key)
		if !ok {
			continue
		}
		if NormalizeName(tn) == NormalizeName(table) && NormalizeName(cn) == NormalizeName(column) {
			return newName, true
		}
	}
	return "", false
}

// uniqueArrowName applies the collision fallback: if name is already used
// on class, it tries name suffixed by an ordinal ("_2", "_3", ... up to
// "_999") and returns the first free one; if all are taken it returns name
// itself unchanged (spec §3's collision fallback).
func uniqueArrowName(name, class string, reserve func(class, name string) bool) string {
	if reserve(class, name) {
		return name
	}
	for n := 2; n < 1000; n++ {
		candidate := name + "_" + itoa(n)
		if reserve(class, candidate) {
			return candidate
		}
	}
	return name
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func columnsNotNull(t *Table, columns []string) bool {
	for _, cn := range columns {
		c, ok := t.Column(cn)
		if !ok || c.Nullable {
			return false
		}
	}
	return true
}

func isUniqueOn(t *Table, columns []string) bool {
	want := make(map[string]bool, len(columns))
	for _, c := range columns {
		want[NormalizeName(c)] = true
	}
	for _, uk := range t.UniqueKeys {
		if len(uk.Columns) != len(want) {
			continue
		}
		ok := true
		for _, c := range uk.Columns {
			if !want[NormalizeName(c)] {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}
