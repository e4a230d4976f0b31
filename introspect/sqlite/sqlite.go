// Package sqlite loads a catalog.View from a SQLite database file using
// modernc.org/sqlite, the teacher's own cgo-free driver choice
// (database/sqlite3/sqlite3.go), via SQLite's pragma introspection
// functions rather than parsing CREATE TABLE text.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/htsql-go/htsql/catalog"
)

// Load opens path (a file path or "file::memory:?cache=shared" DSN) and
// introspects it.
func Load(path string) (*catalog.View, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return LoadDB(db)
}

// LoadDB introspects an already-open connection.
func LoadDB(db *sql.DB) (*catalog.View, error) {
	names, err := tableNames(db)
	if err != nil {
		return nil, err
	}

	tables := make([]catalog.Table, 0, len(names))
	for _, name := range names {
		cols, pk, err := columnsAndPK(db, name)
		if err != nil {
			return nil, fmt.Errorf("introspecting %s: %w", name, err)
		}
		fks, err := foreignKeys(db, name)
		if err != nil {
			return nil, fmt.Errorf("introspecting foreign keys of %s: %w", name, err)
		}
		var keys []catalog.UniqueKey
		if pk != nil {
			keys = append(keys, *pk)
		}
		tables = append(tables, catalog.Table{
			Name:        name,
			Columns:     cols,
			UniqueKeys:  keys,
			ForeignKeys: fks,
		})
	}

	return &catalog.View{Tables: tables, Engine: catalog.Engine("sqlite")}, nil
}

func tableNames(db *sql.DB) ([]string, error) {
	const query = `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`
	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// columnsAndPK reads pragma table_info(table), which reports columns in
// declaration order together with a 1-based pk index (0 when the column
// is not part of the primary key), collapsing any multi-column primary
// key into a single catalog.UniqueKey ordered by that pk index.
func columnsAndPK(db *sql.DB, table string) ([]catalog.Column, *catalog.UniqueKey, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	type pkCol struct {
		name string
		seq  int
	}
	var cols []catalog.Column
	var pkCols []pkCol
	for rows.Next() {
		var cid int
		var name, decltype string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &decltype, &notNull, &dflt, &pk); err != nil {
			return nil, nil, err
		}
		cols = append(cols, catalog.Column{
			Name:     name,
			Type:     mapType(decltype),
			Nullable: notNull == 0,
		})
		if pk > 0 {
			pkCols = append(pkCols, pkCol{name: name, seq: pk})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	if len(pkCols) == 0 {
		return cols, nil, nil
	}
	for i := 1; i < len(pkCols); i++ {
		j := i
		for j > 0 && pkCols[j-1].seq > pkCols[j].seq {
			pkCols[j-1], pkCols[j] = pkCols[j], pkCols[j-1]
			j--
		}
	}
	names := make([]string, len(pkCols))
	for i, p := range pkCols {
		names[i] = p.name
	}
	return cols, &catalog.UniqueKey{Columns: names, Primary: true}, nil
}

// foreignKeys reads pragma foreign_key_list(table), grouping its rows by
// the "id" column since a composite foreign key spans several rows with
// the same id and increasing seq.
func foreignKeys(db *sql.DB, table string) ([]catalog.ForeignKey, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA foreign_key_list(%q)`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := map[int]*catalog.ForeignKey{}
	var order []int
	for rows.Next() {
		var id, seq int
		var target, from, to string
		var onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &target, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		fk, ok := byID[id]
		if !ok {
			fk = &catalog.ForeignKey{Target: target}
			byID[id] = fk
			order = append(order, id)
		}
		fk.Columns = append(fk.Columns, from)
		fk.TargetColumns = append(fk.TargetColumns, to)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fks := make([]catalog.ForeignKey, 0, len(order))
	for _, id := range order {
		fks = append(fks, *byID[id])
	}
	return fks, nil
}

// mapType folds SQLite's declared type affinity (not a real static type
// system) into the compiler's domain set, following SQLite's own affinity
// rules: a decltype is classified by substring, not exact match.
func mapType(decltype string) catalog.Type {
	up := strings.ToUpper(decltype)
	switch {
	case strings.Contains(up, "INT"):
		return catalog.Simple(catalog.DomainInteger)
	case strings.Contains(up, "REAL"), strings.Contains(up, "FLOA"), strings.Contains(up, "DOUB"):
		return catalog.Simple(catalog.DomainFloat)
	case strings.Contains(up, "DECIMAL"), strings.Contains(up, "NUMERIC"):
		return catalog.Simple(catalog.DomainDecimal)
	case strings.Contains(up, "DATETIME"), strings.Contains(up, "TIMESTAMP"):
		return catalog.Simple(catalog.DomainDateTime)
	case strings.Contains(up, "DATE"):
		return catalog.Simple(catalog.DomainDate)
	case strings.Contains(up, "TIME"):
		return catalog.Simple(catalog.DomainTime)
	case strings.Contains(up, "BOOL"):
		return catalog.Simple(catalog.DomainBoolean)
	default:
		return catalog.Simple(catalog.DomainString)
	}
}
