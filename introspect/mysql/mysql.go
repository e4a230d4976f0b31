// Package mysql loads a catalog.View by querying a live MySQL database's
// information_schema views, adapted from database/mysql/database.go's
// connection-opening shape (mysqlBuildDSN, sql.Open("mysql", ...)),
// narrowed the same way introspect/postgres is: table/column/key facts
// only, never DDL text.
package mysql

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/htsql-go/htsql/catalog"
	"github.com/htsql-go/htsql/introspect"
)

func buildDSN(c introspect.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Load opens a new connection per c and introspects it.
func Load(c introspect.Config) (*catalog.View, error) {
	db, err := sql.Open("mysql", buildDSN(c))
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return LoadDB(db, c.DBName)
}

// LoadDB introspects an already-open connection against schema (MySQL has
// no separate schema/database distinction: information_schema.tables'
// table_schema IS the database name).
func LoadDB(db *sql.DB, schema string) (*catalog.View, error) {
	names, err := tableNames(db, schema)
	if err != nil {
		return nil, err
	}

	tables := make([]catalog.Table, 0, len(names))
	for _, name := range names {
		cols, err := columns(db, schema, name)
		if err != nil {
			return nil, fmt.Errorf("introspecting %s.%s: %w", schema, name, err)
		}
		keys, err := uniqueKeys(db, schema, name)
		if err != nil {
			return nil, fmt.Errorf("introspecting keys of %s.%s: %w", schema, name, err)
		}
		fks, err := foreignKeys(db, schema, name)
		if err != nil {
			return nil, fmt.Errorf("introspecting foreign keys of %s.%s: %w", schema, name, err)
		}
		tables = append(tables, catalog.Table{
			Name:        name,
			Columns:     cols,
			UniqueKeys:  keys,
			ForeignKeys: fks,
		})
	}

	return &catalog.View{Tables: tables, Engine: catalog.Engine("mysql")}, nil
}

func tableNames(db *sql.DB, schema string) ([]string, error) {
	const query = `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`
	rows, err := db.Query(query, schema)
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

func columns(db *sql.DB, schema, table string) ([]catalog.Column, error) {
	const query = `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`
	rows, err := db.Query(query, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []catalog.Column
	for rows.Next() {
		var name, dataType, isNullable string
		if err := rows.Scan(&name, &dataType, &isNullable); err != nil {
			return nil, err
		}
		cols = append(cols, catalog.Column{
			Name:     name,
			Type:     mapType(dataType),
			Nullable: isNullable == "YES",
		})
	}
	return cols, rows.Err()
}

// uniqueKeys reads every unique index (PRIMARY included) from
// information_schema.statistics, the same view
// database/mysql/database.go's index introspection reads, grouped by
// index name since a composite key spans several rows.
func uniqueKeys(db *sql.DB, schema, table string) ([]catalog.UniqueKey, error) {
	const query = `
		SELECT index_name, column_name
		FROM information_schema.statistics
		WHERE table_schema = ? AND table_name = ? AND non_unique = 0
		ORDER BY index_name, seq_in_index`
	rows, err := db.Query(query, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := map[string]*catalog.UniqueKey{}
	var order []string
	for rows.Next() {
		var idx, col string
		if err := rows.Scan(&idx, &col); err != nil {
			return nil, err
		}
		uk, ok := byName[idx]
		if !ok {
			uk = &catalog.UniqueKey{Primary: idx == "PRIMARY"}
			byName[idx] = uk
			order = append(order, idx)
		}
		uk.Columns = append(uk.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	keys := make([]catalog.UniqueKey, 0, len(order))
	for _, idx := range order {
		keys = append(keys, *byName[idx])
	}
	return keys, nil
}

func foreignKeys(db *sql.DB, schema, table string) ([]catalog.ForeignKey, error) {
	const query = `
		SELECT constraint_name, column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND table_name = ? AND referenced_table_name IS NOT NULL
		ORDER BY constraint_name, ordinal_position`
	rows, err := db.Query(query, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := map[string]*catalog.ForeignKey{}
	var order []string
	for rows.Next() {
		var name, col, targetTable, targetCol string
		if err := rows.Scan(&name, &col, &targetTable, &targetCol); err != nil {
			return nil, err
		}
		fk, ok := byName[name]
		if !ok {
			fk = &catalog.ForeignKey{Target: targetTable}
			byName[name] = fk
			order = append(order, name)
		}
		fk.Columns = append(fk.Columns, col)
		fk.TargetColumns = append(fk.TargetColumns, targetCol)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fks := make([]catalog.ForeignKey, 0, len(order))
	for _, name := range order {
		fks = append(fks, *byName[name])
	}
	return fks, nil
}

func mapType(dataType string) catalog.Type {
	switch dataType {
	case "tinyint", "smallint", "mediumint", "int", "bigint":
		return catalog.Simple(catalog.DomainInteger)
	case "decimal", "numeric":
		return catalog.Simple(catalog.DomainDecimal)
	case "float", "double":
		return catalog.Simple(catalog.DomainFloat)
	case "date":
		return catalog.Simple(catalog.DomainDate)
	case "time":
		return catalog.Simple(catalog.DomainTime)
	case "datetime", "timestamp":
		return catalog.Simple(catalog.DomainDateTime)
	default:
		return catalog.Simple(catalog.DomainString)
	}
}
