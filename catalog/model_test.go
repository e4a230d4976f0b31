package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htsql-go/htsql/herr"
)

func schoolView() *View {
	return &View{
		Engine: "sqlite",
		Tables: []Table{
			{
				Name: "department",
				Columns: []Column{
					{Name: "code", Type: Simple(DomainString)},
					{Name: "name", Type: Simple(DomainString), Nullable: true},
				},
				UniqueKeys: []UniqueKey{{Columns: []string{"code"}, Primary: true}},
			},
			{
				Name: "program",
				Columns: []Column{
					{Name: "school", Type: Simple(DomainString)},
					{Name: "code", Type: Simple(DomainString)},
					{Name: "department_code", Type: Simple(DomainString)},
				},
				UniqueKeys: []UniqueKey{{Columns: []string{"school", "code"}, Primary: true}},
				ForeignKeys: []ForeignKey{
					{Columns: []string{"department_code"}, Target: "department", TargetColumns: []string{"code"}},
				},
			},
		},
	}
}

func TestBuildModelForwardArrow(t *testing.T) {
	m, err := BuildModel(schoolView())
	require.Nil(t, err)
	require.Len(t, m.Classes, 2)

	var forward *Arrow
	for i := range m.Arrows {
		if m.Arrows[i].From == "program" && !m.Arrows[i].Reverse {
			forward = &m.Arrows[i]
		}
	}
	require.NotNil(t, forward)
	assert.Equal(t, "department", forward.Name)
	assert.True(t, forward.Singular)
	assert.True(t, forward.Total)
}

func TestBuildModelReverseArrowNotSingular(t *testing.T) {
	m, err := BuildModel(schoolView())
	require.Nil(t, err)

	var reverse *Arrow
	for i := range m.Arrows {
		if m.Arrows[i].From == "department" && m.Arrows[i].Reverse {
			reverse = &m.Arrows[i]
		}
	}
	require.NotNil(t, reverse)
	assert.Equal(t, "program", reverse.Name)
	assert.False(t, reverse.Singular, "a department has many programs")
}

// selfFKView has a self-referencing foreign key (program.part_of_code ->
// program.code) whose prefix, once the target key's own column name is
// stripped, isn't the target table's name -- the spec §3 worked example
// directArrowName must get right instead of falling back to "program".
func selfFKView() *View {
	return &View{
		Engine: "sqlite",
		Tables: []Table{
			{
				Name: "program",
				Columns: []Column{
					{Name: "code", Type: Simple(DomainString)},
					{Name: "part_of_code", Type: Simple(DomainString), Nullable: true},
				},
				UniqueKeys: []UniqueKey{{Columns: []string{"code"}, Primary: true}},
				ForeignKeys: []ForeignKey{
					{Columns: []string{"part_of_code"}, Target: "program", TargetColumns: []string{"code"}},
				},
			},
		},
	}
}

func TestDirectArrowNameStripsTargetKeyNotLiteralID(t *testing.T) {
	m, err := BuildModel(selfFKView())
	require.Nil(t, err)

	var forward *Arrow
	for i := range m.Arrows {
		if m.Arrows[i].From == "program" && !m.Arrows[i].Reverse {
			forward = &m.Arrows[i]
		}
	}
	require.NotNil(t, forward)
	assert.Equal(t, "part_of", forward.Name, "arrow name is the referring column minus the target key's own column name")
}

func TestBuildModelRejectsForeignKeyToMissingTable(t *testing.T) {
	v := schoolView()
	v.Tables[1].ForeignKeys[0].Target = "no_such_table"

	_, err := BuildModel(v)
	require.NotNil(t, err)
	assert.Equal(t, herr.KindCatalog, err.Kind)
}

func TestBuildModelRejectsHiddenColumnOnMissingColumn(t *testing.T) {
	v := schoolView()
	v.Overrides.HiddenColumns = map[string][]string{"department": {"no_such_column"}}

	_, err := BuildModel(v)
	require.NotNil(t, err)
	assert.Equal(t, herr.KindCatalog, err.Kind)
}

func TestBuildModelRejectsRenamedOnMissingTable(t *testing.T) {
	v := schoolView()
	v.Overrides.Renamed = map[string]string{"no_such_table.code": "id"}

	_, err := BuildModel(v)
	require.NotNil(t, err)
	assert.Equal(t, herr.KindCatalog, err.Kind)
}

func TestBuildModelRejectsCalculatedOnMissingTable(t *testing.T) {
	v := schoolView()
	v.Overrides.Calculated = []CalculatedField{{Table: "no_such_table", Name: "x", Expression: "1"}}

	_, err := BuildModel(v)
	require.NotNil(t, err)
	assert.Equal(t, herr.KindCatalog, err.Kind)
}

func TestBuildModelRejectsSyntheticKeyOnMissingColumn(t *testing.T) {
	v := schoolView()
	v.Overrides.SyntheticKeys = []SyntheticKey{
		{Table: "program", Columns: []string{"no_such_column"}, Target: "department", TargetColumns: []string{"code"}},
	}

	_, err := BuildModel(v)
	require.NotNil(t, err)
	assert.Equal(t, herr.KindCatalog, err.Kind)
}

func TestBuildModelSyntheticKeyAddsArrows(t *testing.T) {
	v := schoolView()
	// Pretend program.school references a one-column department key; the
	// synthetic key only needs to be structurally valid to grow arrows.
	v.Overrides.SyntheticKeys = []SyntheticKey{
		{Table: "program", Columns: []string{"school"}, Target: "department", TargetColumns: []string{"code"}},
	}

	m, err := BuildModel(v)
	require.Nil(t, err)

	count := 0
	for _, a := range m.Arrows {
		if a.From == "program" && a.To == "department" && !a.Reverse {
			count++
		}
	}
	assert.Equal(t, 2, count, "the synthetic key grows a second direct arrow next to the physical one")
}

func TestBuildModelHiddenColumnLeavesClassWithout(t *testing.T) {
	v := schoolView()
	v.Overrides.HiddenColumns = map[string][]string{"department": {"name"}}

	m, err := BuildModel(v)
	require.Nil(t, err)
	for _, c := range m.Classes {
		if c.Name != "department" {
			continue
		}
		_, ok := c.Table.Column("name")
		assert.False(t, ok, "a hidden column must not appear on the model's table view")
	}
}

func TestBuildModelRenamedColumnKeepsPhysicalName(t *testing.T) {
	v := schoolView()
	v.Overrides.Renamed = map[string]string{"department.name": "title"}

	m, err := BuildModel(v)
	require.Nil(t, err)
	for _, c := range m.Classes {
		if c.Name != "department" {
			continue
		}
		col, ok := c.Table.Column("title")
		require.True(t, ok)
		assert.Equal(t, "title", col.Name)
		assert.Equal(t, "name", col.SQLName())
	}
}

func TestReverseArrowViaFallbackOnCollision(t *testing.T) {
	// enrollment carries two foreign keys to student, so the second reverse
	// arrow on student cannot also be called "enrollment".
	v := &View{
		Engine: "sqlite",
		Tables: []Table{
			{
				Name: "student",
				Columns: []Column{{Name: "id", Type: Simple(DomainInteger)}},
				UniqueKeys: []UniqueKey{{Columns: []string{"id"}, Primary: true}},
			},
			{
				Name: "enrollment",
				Columns: []Column{
					{Name: "code", Type: Simple(DomainString)},
					{Name: "student_id", Type: Simple(DomainInteger)},
					{Name: "sponsor_id", Type: Simple(DomainInteger), Nullable: true},
				},
				UniqueKeys: []UniqueKey{{Columns: []string{"code"}, Primary: true}},
				ForeignKeys: []ForeignKey{
					{Columns: []string{"student_id"}, Target: "student", TargetColumns: []string{"id"}},
					{Columns: []string{"sponsor_id"}, Target: "student", TargetColumns: []string{"id"}},
				},
			},
		},
	}

	m, err := BuildModel(v)
	require.Nil(t, err)

	var reverses []string
	for _, a := range m.Arrows {
		if a.From == "student" && a.Reverse {
			reverses = append(reverses, a.Name)
		}
	}
	require.Len(t, reverses, 2)
	assert.Contains(t, reverses, "enrollment")
	assert.Contains(t, reverses, "enrollment_via_sponsor")
}

func TestViewHiddenTable(t *testing.T) {
	v := schoolView()
	v.Overrides.HiddenTables = []string{"Program"}

	_, ok := v.Table("program")
	assert.False(t, ok)
	assert.Len(t, v.VisibleTables(), 1)
}

func TestNormalizeNameFold(t *testing.T) {
	assert.Equal(t, NormalizeName("Department"), NormalizeName("DEPARTMENT"))
}

func TestParseOverridesRoundTrip(t *testing.T) {
	doc := []byte(`
hidden_tables: [audit_log]
calculated:
  - table: program
    name: full_code
    expression: school + '.' + code
globals:
  - name: current_school
    expression: "'art'"
`)
	o, err := ParseOverrides(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"audit_log"}, o.HiddenTables)
	require.Len(t, o.Calculated, 1)
	assert.Equal(t, "full_code", o.Calculated[0].Name)
	require.Len(t, o.Globals, 1)
	assert.Equal(t, "current_school", o.Globals[0].Name)
}
