package catalog

import (
	"strings"

	"github.com/htsql-go/htsql/herr"
)

// validateOverrides checks that every table/column an override names
// actually exists in v's raw table set (spec §6: "Supplying an override
// whose referenced column does not exist is a CatalogError"). Lookups go
// through rawTable rather than View.Table/VisibleTables, since an override
// is free to name a table that a different override in the same set then
// hides -- visibility is a presentation concern, not a structural one.
func validateOverrides(v *View) *herr.Error {
	o := v.Overrides

	for _, t := range o.HiddenTables {
		if _, ok := rawTable(v, t); !ok {
			return herr.Catalog(herr.Span{}, "hidden_tables: no such table {}", t)
		}
	}

	for t, cols := range o.HiddenColumns {
		table, ok := rawTable(v, t)
		if !ok {
			return herr.Catalog(herr.Span{}, "hidden_columns: no such table {}", t)
		}
		for _, c := range cols {
			if _, ok := table.Column(c); !ok {
				return herr.Catalog(herr.Span{}, "hidden_columns: no such column {} on table {}", c, t)
			}
		}
	}

	for key := range o.Renamed {
		tableName, colName, ok := splitTableColumn(key)
		if !ok {
			return herr.Catalog(herr.Span{}, "renamed: malformed key {}, expected table.column", key)
		}
		table, ok := rawTable(v, tableName)
		if !ok {
			return herr.Catalog(herr.Span{}, "renamed: no such table {}", tableName)
		}
		if _, ok := table.Column(colName); !ok {
			return herr.Catalog(herr.Span{}, "renamed: no such column {} on table {}", colName, tableName)
		}
	}

	for _, c := range o.Calculated {
		if _, ok := rawTable(v, c.Table); !ok {
			return herr.Catalog(herr.Span{}, "calculated: no such table {}", c.Table)
		}
	}

	for _, k := range o.SyntheticKeys {
		origin, ok := rawTable(v, k.Table)
		if !ok {
			return herr.Catalog(herr.Span{}, "synthetic_keys: no such table {}", k.Table)
		}
		target, ok := rawTable(v, k.Target)
		if !ok {
			return herr.Catalog(herr.Span{}, "synthetic_keys: no such target table {}", k.Target)
		}
		for _, c := range k.Columns {
			if _, ok := origin.Column(c); !ok {
				return herr.Catalog(herr.Span{}, "synthetic_keys: no such column {} on table {}", c, k.Table)
			}
		}
		for _, c := range k.TargetColumns {
			if _, ok := target.Column(c); !ok {
				return herr.Catalog(herr.Span{}, "synthetic_keys: no such column {} on table {}", c, k.Target)
			}
		}
	}

	return nil
}

// rawTable looks up a table by name ignoring HiddenTables, so validation
// can tell "never existed" apart from "exists but hidden".
func rawTable(v *View, name string) (*Table, bool) {
	n := NormalizeName(name)
	for i := range v.Tables {
		if NormalizeName(v.Tables[i].Name) == n {
			return &v.Tables[i], true
		}
	}
	return nil, false
}

func splitTableColumn(key string) (table, column string, ok bool) {
	i := strings.LastIndex(key, ".")
	if i < 0 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}
