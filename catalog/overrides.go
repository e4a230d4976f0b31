package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// overridesDoc mirrors Overrides' YAML wire shape. Grounded on
// database/database.go's ParseGeneratorConfig/parseGeneratorConfigFromBytes,
// which decode a YAML document into a plain struct before folding it into
// the running config; here the "running config" being folded into is a
// catalog.View rather than a schema.GeneratorConfig.
type overridesDoc struct {
	HiddenTables  []string            `yaml:"hidden_tables"`
	HiddenColumns map[string][]string `yaml:"hidden_columns"`
	Renamed       map[string]string   `yaml:"renamed"`
	Calculated    []struct {
		Table      string `yaml:"table"`
		Name       string `yaml:"name"`
		Expression string `yaml:"expression"`
	} `yaml:"calculated"`
	Globals []struct {
		Name       string `yaml:"name"`
		Expression string `yaml:"expression"`
	} `yaml:"globals"`
	SyntheticKeys []struct {
		Table         string   `yaml:"table"`
		Columns       []string `yaml:"columns"`
		Target        string   `yaml:"target"`
		TargetColumns []string `yaml:"target_columns"`
	} `yaml:"synthetic_keys"`
}

// ParseOverrides decodes a YAML overrides document (hidden tables/columns,
// renamed or calculated fields, user-defined globals, synthetic foreign
// keys) into an Overrides value.
func ParseOverrides(data []byte) (Overrides, error) {
	var doc overridesDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Overrides{}, fmt.Errorf("catalog: parsing overrides: %w", err)
	}

	out := Overrides{
		HiddenTables:  doc.HiddenTables,
		HiddenColumns: doc.HiddenColumns,
		Renamed:       doc.Renamed,
	}
	for _, c := range doc.Calculated {
		out.Calculated = append(out.Calculated, CalculatedField{
			Table: c.Table, Name: c.Name, Expression: c.Expression,
		})
	}
	for _, g := range doc.Globals {
		out.Globals = append(out.Globals, Global{Name: g.Name, Expression: g.Expression})
	}
	for _, k := range doc.SyntheticKeys {
		out.SyntheticKeys = append(out.SyntheticKeys, SyntheticKey{
			Table: k.Table, Columns: k.Columns, Target: k.Target, TargetColumns: k.TargetColumns,
		})
	}
	return out, nil
}

// ApplyOverrides returns a new View with o layered on top of v's own
// overrides (o wins on conflicting keys). Used when a caller loads base
// overrides from a catalog file and wants to add ad hoc ones on the CLI.
func (v *View) ApplyOverrides(o Overrides) *View {
	merged := v.Overrides
	merged.HiddenTables = append(append([]string{}, merged.HiddenTables...), o.HiddenTables...)
	if merged.HiddenColumns == nil {
		merged.HiddenColumns = map[string][]string{}
	}
	for k, cols := range o.HiddenColumns {
		merged.HiddenColumns[k] = append(merged.HiddenColumns[k], cols...)
	}
	if merged.Renamed == nil {
		merged.Renamed = map[string]string{}
	}
	for k, v2 := range o.Renamed {
		merged.Renamed[k] = v2
	}
	merged.Calculated = append(append([]CalculatedField{}, merged.Calculated...), o.Calculated...)
	merged.Globals = append(append([]Global{}, merged.Globals...), o.Globals...)
	merged.SyntheticKeys = append(append([]SyntheticKey{}, merged.SyntheticKeys...), o.SyntheticKeys...)

	return &View{Tables: v.Tables, Engine: v.Engine, Overrides: merged}
}
